// Package worker keeps the denormalized customer debt totals in line with
// the transaction history.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"khata/internal/amqp"
	"khata/internal/core"
	"khata/internal/store"
)

// TransactionMirror receives created transactions for an external,
// append-only copy of the book. Optional.
type TransactionMirror interface {
	AppendTransaction(ctx context.Context, tx core.Transaction, customer core.Customer) error
}

// DebtWorker consumes ledger events and recomputes the affected customer's
// TotalDebt from their full history. Events carry no amounts, so processing
// is idempotent and delivery order does not matter.
type DebtWorker struct {
	store     store.Store
	mirror    TransactionMirror
	batchSize int
}

func NewDebtWorker(st store.Store, mirror TransactionMirror, batchSize int) *DebtWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &DebtWorker{
		store:     st,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleLedgerEvent processes one event from the queue. A returned error
// requeues the message.
func (w *DebtWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"transaction_id", msg.TransactionID,
		"customer_id", msg.CustomerID,
		"action", msg.Action)

	if err := w.RecomputeCustomer(ctx, msg.CustomerID); err != nil {
		// The customer may have been deleted after the event was queued.
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "Customer gone, dropping event",
				"customer_id", msg.CustomerID)
			return nil
		}
		return fmt.Errorf("recompute customer %d: %w", msg.CustomerID, err)
	}

	if msg.Action == amqp.ActionCreated {
		w.mirrorTransaction(ctx, msg.TransactionID, msg.CustomerID)
	}

	return nil
}

// RecomputeCustomer folds the customer's full history into a fresh debt
// total and persists it.
func (w *DebtWorker) RecomputeCustomer(ctx context.Context, customerID int64) error {
	txs, err := w.store.ListTransactionsByCustomer(ctx, customerID)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	var total int64
	for _, tx := range txs {
		total += tx.Type.Signed(tx.Amount)
	}

	if err := w.store.SetCustomerTotalDebt(ctx, customerID, total); err != nil {
		return fmt.Errorf("set total debt: %w", err)
	}

	slog.DebugContext(ctx, "Recomputed customer debt",
		"customer_id", customerID,
		"balance_cents", total,
		"transactions", len(txs))

	return nil
}

// ReconcileAll sweeps every customer and corrects drifted totals. This is
// the backup mechanism for lost or unpublished events. Returns the number
// of customers whose stored total was wrong.
func (w *DebtWorker) ReconcileAll(ctx context.Context) (int, error) {
	customers, err := w.store.ListCustomers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list customers: %w", err)
	}

	corrected := 0
	for i, c := range customers {
		if err := ctx.Err(); err != nil {
			return corrected, err
		}

		txs, err := w.store.ListTransactionsByCustomer(ctx, c.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load transactions during reconcile",
				"customer_id", c.ID, "error", err)
			continue
		}

		var total int64
		for _, tx := range txs {
			total += tx.Type.Signed(tx.Amount)
		}

		if total == c.TotalDebt.Cents {
			continue
		}

		slog.WarnContext(ctx, "Correcting drifted debt total",
			"customer_id", c.ID,
			"stored_cents", c.TotalDebt.Cents,
			"computed_cents", total)

		if err := w.store.SetCustomerTotalDebt(ctx, c.ID, total); err != nil {
			slog.ErrorContext(ctx, "Failed to correct debt total",
				"customer_id", c.ID, "error", err)
			continue
		}
		corrected++

		// Yield between batches so a large book does not monopolize the
		// connection pool.
		if (i+1)%w.batchSize == 0 {
			select {
			case <-ctx.Done():
				return corrected, ctx.Err()
			case <-time.After(10 * time.Millisecond):
			}
		}
	}

	slog.InfoContext(ctx, "Reconcile sweep finished",
		"customers", len(customers),
		"corrected", corrected)

	return corrected, nil
}

// RunReconcileLoop sweeps immediately and then on every tick until the
// context is cancelled.
func (w *DebtWorker) RunReconcileLoop(ctx context.Context, interval time.Duration) error {
	if _, err := w.ReconcileAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.ErrorContext(ctx, "Startup reconcile failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping reconcile loop", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ReconcileAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.ErrorContext(ctx, "Reconcile sweep failed", "error", err)
			}
		}
	}
}

// mirrorTransaction forwards a created transaction to the external mirror.
// Mirror failures are logged and dropped; the mirror is a convenience copy,
// not a system of record.
func (w *DebtWorker) mirrorTransaction(ctx context.Context, transactionID, customerID int64) {
	if w.mirror == nil {
		return
	}

	tx, err := w.store.GetTransaction(ctx, transactionID)
	if err != nil {
		slog.WarnContext(ctx, "Transaction gone before mirroring",
			"transaction_id", transactionID, "error", err)
		return
	}
	customer, err := w.store.GetCustomer(ctx, customerID)
	if err != nil {
		slog.WarnContext(ctx, "Customer gone before mirroring",
			"customer_id", customerID, "error", err)
		return
	}

	if err := w.mirror.AppendTransaction(ctx, tx, customer); err != nil {
		slog.ErrorContext(ctx, "Failed to mirror transaction",
			"transaction_id", transactionID, "error", err)
		return
	}

	slog.InfoContext(ctx, "Mirrored transaction",
		"transaction_id", transactionID,
		"customer_id", customerID)
}
