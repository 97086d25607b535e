// Package services orchestrates ledger operations across storage, AMQP and
// the balance projector.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"khata/internal/amqp"
	"khata/internal/cache"
	"khata/internal/core"
	"khata/internal/ledger"
	"khata/internal/store"
)

// EventPublisher publishes ledger change notifications. Satisfied by
// *amqp.Client; nil disables publishing.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, transactionID, customerID int64, action amqp.Action) error
}

// LedgerView is a customer's (or the whole book's) transaction history with
// running balances, grouped into month buckets.
type LedgerView struct {
	Scope        int64                           `json:"scope"`
	Transactions []ledger.TransactionWithBalance `json:"transactions"`
	Buckets      []ledger.MonthBucket            `json:"buckets"`
	Summary      ledger.Summary                  `json:"summary"`
}

// Statement is a customer bill: the customer record plus their scoped view.
type Statement struct {
	Customer    core.Customer `json:"customer"`
	View        LedgerView    `json:"view"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// LedgerService is the application core behind the HTTP handlers and the
// report builder.
type LedgerService struct {
	store     store.Store
	publisher EventPublisher
	enricher  *ledger.Enricher
	viewCache *cache.LRUCache[*LedgerView]

	now func() time.Time
}

func NewLedgerService(st store.Store, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		store:     st,
		publisher: publisher,
		enricher:  ledger.NewEnricher(st),
		viewCache: cache.NewLRUCache[*LedgerView](64, 30*time.Second),
		now:       time.Now,
	}
}

// CreateTransaction saves a transaction and publishes a created event. A
// publish failure never fails the request; the reconciliation sweep covers
// missed events.
func (s *LedgerService) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	created, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.invalidateViews()

	s.publish(ctx, created.ID, created.CustomerID, amqp.ActionCreated)
	return created, nil
}

// UpdateTransaction replaces a transaction and publishes an updated event.
// When the update moves the transaction to another customer both ledgers
// changed, so the old customer gets an event too.
func (s *LedgerService) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	previous, err := s.store.GetTransaction(ctx, tx.ID)
	if err != nil {
		return core.Transaction{}, err
	}

	updated, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.invalidateViews()

	s.publish(ctx, updated.ID, updated.CustomerID, amqp.ActionUpdated)
	if previous.CustomerID != updated.CustomerID {
		s.publish(ctx, updated.ID, previous.CustomerID, amqp.ActionUpdated)
	}
	return updated, nil
}

// DeleteTransaction removes a transaction and publishes a deleted event for
// the customer it belonged to.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.invalidateViews()

	s.publish(ctx, id, tx.CustomerID, amqp.ActionDeleted)
	return nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	enriched := s.enricher.Enrich(ctx, []core.Transaction{tx})
	return enriched[0], nil
}

func (s *LedgerService) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return s.enricher.Enrich(ctx, txs), nil
}

func (s *LedgerService) ListTransactionsByCustomer(ctx context.Context, customerID int64) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactionsByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.enricher.Enrich(ctx, txs), nil
}

func (s *LedgerService) ListTransactionsByDateRange(ctx context.Context, dr store.DateRange) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactionsByDateRange(ctx, dr)
	if err != nil {
		return nil, err
	}
	return s.enricher.Enrich(ctx, txs), nil
}

func (s *LedgerService) ListTransactionsByCustomerAndDateRange(ctx context.Context, customerID int64, dr store.DateRange) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactionsByCustomerAndDateRange(ctx, customerID, dr)
	if err != nil {
		return nil, err
	}
	return s.enricher.Enrich(ctx, txs), nil
}

// View builds the running-balance projection for a customer, or for the
// whole book when customerID is ledger.AllCustomers. Balances are always
// computed from the full history; dateRange only filters which rows the
// caller sees. Results are cached briefly and dropped on any mutation.
func (s *LedgerService) View(ctx context.Context, customerID int64, dateRange *store.DateRange) (*LedgerView, error) {
	key := viewCacheKey(customerID, dateRange)
	if cached, ok := s.viewCache.Get(key); ok {
		return cached, nil
	}

	var (
		txs []core.Transaction
		err error
	)
	if customerID == ledger.AllCustomers {
		txs, err = s.store.ListTransactions(ctx)
	} else {
		txs, err = s.store.ListTransactionsByCustomer(ctx, customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	txs = s.enricher.Enrich(ctx, txs)

	rows := ledger.ComputeRunningBalances(txs, customerID)
	if dateRange != nil {
		filtered := rows[:0:0]
		for _, row := range rows {
			if dateRange.Contains(row.Date) {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	visible := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		if row.Scoped {
			visible = append(visible, row.Transaction)
		}
	}

	view := &LedgerView{
		Scope:        customerID,
		Transactions: rows,
		Buckets:      ledger.BucketByMonth(rows, s.now()),
		Summary:      ledger.Summarize(visible),
	}
	s.viewCache.Set(key, view)
	return view, nil
}

// Statement assembles the printable bill for one customer.
func (s *LedgerService) Statement(ctx context.Context, customerID int64, dateRange *store.DateRange) (*Statement, error) {
	customer, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	view, err := s.View(ctx, customerID, dateRange)
	if err != nil {
		return nil, err
	}

	return &Statement{
		Customer:    customer,
		View:        *view,
		GeneratedAt: s.now().UTC(),
	}, nil
}

func (s *LedgerService) ListCustomers(ctx context.Context) ([]core.Customer, error) {
	return s.store.ListCustomers(ctx)
}

func (s *LedgerService) GetCustomer(ctx context.Context, id int64) (core.Customer, error) {
	return s.store.GetCustomer(ctx, id)
}

func (s *LedgerService) CreateCustomer(ctx context.Context, c core.Customer) (core.Customer, error) {
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	created, err := s.store.CreateCustomer(ctx, c)
	if err != nil {
		return core.Customer{}, fmt.Errorf("save customer: %w", err)
	}
	s.enricher.Invalidate()
	return created, nil
}

func (s *LedgerService) UpdateCustomer(ctx context.Context, c core.Customer) (core.Customer, error) {
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	updated, err := s.store.UpdateCustomer(ctx, c)
	if err != nil {
		return core.Customer{}, err
	}
	s.enricher.Invalidate()
	s.invalidateViews()
	return updated, nil
}

// DeleteCustomer removes a customer and, through the store's cascade, all
// their transactions.
func (s *LedgerService) DeleteCustomer(ctx context.Context, id int64) error {
	if err := s.store.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.enricher.Invalidate()
	s.invalidateViews()
	return nil
}

func (s *LedgerService) publish(ctx context.Context, transactionID, customerID int64, action amqp.Action) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, transactionID, customerID, action); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"transaction_id", transactionID,
			"customer_id", customerID,
			"action", action,
			"error", err)
	}
}

func (s *LedgerService) invalidateViews() {
	s.viewCache.Purge()
}

func viewCacheKey(customerID int64, dr *store.DateRange) string {
	if dr == nil {
		return fmt.Sprintf("view:%d", customerID)
	}
	return fmt.Sprintf("view:%d:%d:%d", customerID, dr.Start.UnixNano(), dr.End.UnixNano())
}

// Close releases storage and messaging resources.
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if closer, ok := s.publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
