package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"khata/internal/amqp"
	"khata/internal/core"
	"khata/internal/ledger"
	"khata/internal/store"
	"khata/internal/store/memory"
)

type recordedEvent struct {
	transactionID int64
	customerID    int64
	action        amqp.Action
}

type fakePublisher struct {
	events []recordedEvent
	err    error
}

func (p *fakePublisher) PublishLedgerEvent(_ context.Context, transactionID, customerID int64, action amqp.Action) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, recordedEvent{transactionID, customerID, action})
	return nil
}

func newTestService(t *testing.T) (*LedgerService, *fakePublisher, core.Customer) {
	t.Helper()
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(), pub)
	customer, err := svc.CreateCustomer(context.Background(), core.Customer{Name: "Rahim Uddin", Phone: "01711"})
	if err != nil {
		t.Fatalf("CreateCustomer() error = %v", err)
	}
	return svc, pub, customer
}

func debit(customerID int64, cents int64, date time.Time) core.Transaction {
	return core.Transaction{
		CustomerID: customerID,
		Type:       core.Debit,
		Amount:     core.Money{Cents: cents},
		Date:       date,
	}
}

func TestCreateTransactionPublishesEvent(t *testing.T) {
	svc, pub, customer := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTransaction(ctx, debit(customer.ID, 5000, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if created.ID == 0 {
		t.Error("created transaction should have an ID")
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.transactionID != created.ID || ev.customerID != customer.ID || ev.action != amqp.ActionCreated {
		t.Errorf("event = %+v, want created event for transaction %d customer %d", ev, created.ID, customer.ID)
	}
}

func TestCreateTransactionSurvivesPublishFailure(t *testing.T) {
	svc, pub, customer := newTestService(t)
	pub.err = errors.New("broker unavailable")

	created, err := svc.CreateTransaction(context.Background(), debit(customer.ID, 5000, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v, want nil despite publish failure", err)
	}

	got, err := svc.GetTransaction(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if got.Amount.Cents != 5000 {
		t.Errorf("stored amount = %d, want 5000", got.Amount.Cents)
	}
}

func TestCreateTransactionRejectsInvalid(t *testing.T) {
	svc, pub, customer := newTestService(t)

	_, err := svc.CreateTransaction(context.Background(), core.Transaction{
		CustomerID: customer.ID,
		Type:       "Refund",
		Amount:     core.Money{Cents: 100},
		Date:       time.Now(),
	})
	if !errors.Is(err, core.ErrInvalidEntryType) {
		t.Errorf("error = %v, want ErrInvalidEntryType", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("no event should be published for rejected input, got %d", len(pub.events))
	}
}

func TestUpdateTransactionNotifiesBothCustomers(t *testing.T) {
	svc, pub, first := newTestService(t)
	ctx := context.Background()

	second, err := svc.CreateCustomer(ctx, core.Customer{Name: "Karim Mia"})
	if err != nil {
		t.Fatalf("CreateCustomer() error = %v", err)
	}

	created, err := svc.CreateTransaction(ctx, debit(first.ID, 5000, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	pub.events = nil

	created.CustomerID = second.ID
	if _, err := svc.UpdateTransaction(ctx, created); err != nil {
		t.Fatalf("UpdateTransaction() error = %v", err)
	}

	if len(pub.events) != 2 {
		t.Fatalf("expected events for both customers, got %d", len(pub.events))
	}
	if pub.events[0].customerID != second.ID || pub.events[1].customerID != first.ID {
		t.Errorf("events = %+v, want updated events for customers %d and %d", pub.events, second.ID, first.ID)
	}
}

func TestDeleteTransactionPublishesForOwningCustomer(t *testing.T) {
	svc, pub, customer := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTransaction(ctx, debit(customer.ID, 2500, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	pub.events = nil

	if err := svc.DeleteTransaction(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}

	if len(pub.events) != 1 || pub.events[0].action != amqp.ActionDeleted || pub.events[0].customerID != customer.ID {
		t.Errorf("events = %+v, want one deleted event for customer %d", pub.events, customer.ID)
	}

	if _, err := svc.GetTransaction(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetTransaction after delete error = %v, want ErrNotFound", err)
	}
}

func TestListTransactionsEnrichesNames(t *testing.T) {
	svc, _, customer := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateTransaction(ctx, debit(customer.ID, 1000, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	txs, err := svc.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	if txs[0].CustomerName != "Rahim Uddin" {
		t.Errorf("CustomerName = %q, want %q", txs[0].CustomerName, "Rahim Uddin")
	}
}

func TestViewScopedToCustomer(t *testing.T) {
	svc, _, first := newTestService(t)
	ctx := context.Background()

	second, err := svc.CreateCustomer(ctx, core.Customer{Name: "Karim Mia"})
	if err != nil {
		t.Fatalf("CreateCustomer() error = %v", err)
	}

	mar := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := svc.CreateTransaction(ctx, debit(first.ID, 10000, mar)); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if _, err := svc.CreateTransaction(ctx, core.Transaction{
		CustomerID: first.ID,
		Type:       core.Credit,
		Amount:     core.Money{Cents: 4000},
		Date:       mar.AddDate(0, 0, 5),
	}); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if _, err := svc.CreateTransaction(ctx, debit(second.ID, 77700, mar.AddDate(0, 0, 2))); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	view, err := svc.View(ctx, first.ID, nil)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}

	if view.Scope != first.ID {
		t.Errorf("Scope = %d, want %d", view.Scope, first.ID)
	}
	if len(view.Transactions) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(view.Transactions))
	}
	// Rows are newest first: the credit lands on top with the net balance.
	if view.Transactions[0].RunningBalance.Cents != 6000 {
		t.Errorf("top balance = %d, want 6000", view.Transactions[0].RunningBalance.Cents)
	}
	if view.Summary.TotalDebit.Cents != 10000 || view.Summary.TotalCredit.Cents != 4000 || view.Summary.NetAmount.Cents != 6000 {
		t.Errorf("summary = %+v, want debit 10000 credit 4000 net 6000", view.Summary)
	}
}

func TestViewGlobalScope(t *testing.T) {
	svc, _, first := newTestService(t)
	ctx := context.Background()

	mar := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := svc.CreateTransaction(ctx, debit(first.ID, 10000, mar)); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	view, err := svc.View(ctx, ledger.AllCustomers, nil)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if view.Scope != ledger.AllCustomers {
		t.Errorf("Scope = %d, want %d", view.Scope, ledger.AllCustomers)
	}
	if len(view.Buckets) == 0 {
		t.Error("expected at least the current month bucket")
	}
}

func TestViewDateRangeFiltersRowsNotBalances(t *testing.T) {
	svc, _, customer := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateTransaction(ctx, debit(customer.ID, 10000, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if _, err := svc.CreateTransaction(ctx, debit(customer.ID, 5000, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	dr := store.NormalizeRange(
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	)
	view, err := svc.View(ctx, customer.ID, &dr)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}

	if len(view.Transactions) != 1 {
		t.Fatalf("expected 1 row in March, got %d", len(view.Transactions))
	}
	// The January debit still counts toward the running balance.
	if view.Transactions[0].RunningBalance.Cents != 15000 {
		t.Errorf("balance = %d, want 15000 carried over from January", view.Transactions[0].RunningBalance.Cents)
	}
}

func TestViewCacheInvalidatedOnWrite(t *testing.T) {
	svc, _, customer := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateTransaction(ctx, debit(customer.ID, 1000, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	before, err := svc.View(ctx, customer.ID, nil)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}

	if _, err := svc.CreateTransaction(ctx, debit(customer.ID, 2000, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	after, err := svc.View(ctx, customer.ID, nil)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}

	if len(after.Transactions) != len(before.Transactions)+1 {
		t.Errorf("view not refreshed after write: before %d rows, after %d", len(before.Transactions), len(after.Transactions))
	}
}

func TestStatement(t *testing.T) {
	svc, _, customer := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateTransaction(ctx, debit(customer.ID, 12550, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	stmt, err := svc.Statement(ctx, customer.ID, nil)
	if err != nil {
		t.Fatalf("Statement() error = %v", err)
	}
	if stmt.Customer.Name != "Rahim Uddin" {
		t.Errorf("Customer.Name = %q, want %q", stmt.Customer.Name, "Rahim Uddin")
	}
	if stmt.View.Summary.NetAmount.Cents != 12550 {
		t.Errorf("NetAmount = %d, want 12550", stmt.View.Summary.NetAmount.Cents)
	}
	if stmt.GeneratedAt.IsZero() {
		t.Error("GeneratedAt should be set")
	}

	if _, err := svc.Statement(ctx, 9999, nil); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Statement for unknown customer error = %v, want ErrNotFound", err)
	}
}

func TestCloseWithNilPublisher(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
