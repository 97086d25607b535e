package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"khata/internal/core"
	"khata/internal/store"
)

func seed(t *testing.T, s *Store) core.Customer {
	t.Helper()
	c, err := s.CreateCustomer(context.Background(), core.Customer{Name: "Asha"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return c
}

func TestTransactionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := seed(t, s)

	created, err := s.CreateTransaction(ctx, core.Transaction{
		CustomerID: c.ID,
		Type:       core.Debit,
		Amount:     core.Money{Cents: 5000},
		Date:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	got, err := s.GetTransaction(ctx, created.ID)
	if err != nil || got.Amount.Cents != 5000 {
		t.Fatalf("get: %+v, %v", got, err)
	}

	got.Amount = core.Money{Cents: 7500}
	if _, err := s.UpdateTransaction(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.GetTransaction(ctx, created.ID)
	if got.Amount.Cents != 7500 {
		t.Fatalf("update not persisted: %d", got.Amount.Cents)
	}

	if err := s.DeleteTransaction(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTransaction(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateTransactionUnknownCustomer(t *testing.T) {
	s := New()
	_, err := s.CreateTransaction(context.Background(), core.Transaction{
		CustomerID: 42,
		Type:       core.Debit,
		Amount:     core.Money{Cents: 100},
		Date:       time.Now(),
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCustomerCascadesTransactions(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := seed(t, s)
	other, err := s.CreateCustomer(ctx, core.Customer{Name: "Bilal"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	for _, owner := range []int64{c.ID, c.ID, other.ID} {
		if _, err := s.CreateTransaction(ctx, core.Transaction{
			CustomerID: owner,
			Type:       core.Debit,
			Amount:     core.Money{Cents: 5000},
			Date:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		}); err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}

	if err := s.DeleteCustomer(ctx, c.ID); err != nil {
		t.Fatalf("delete customer: %v", err)
	}

	txs, err := s.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected only the other customer's transaction, got %d", len(txs))
	}
	if txs[0].CustomerID != other.ID {
		t.Fatalf("surviving transaction belongs to customer %d", txs[0].CustomerID)
	}
}

func TestListTransactionsByCustomerAndDateRange(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := seed(t, s)
	b, _ := s.CreateCustomer(ctx, core.Customer{Name: "Bilal"})

	mk := func(customer int64, day int) {
		_, err := s.CreateTransaction(ctx, core.Transaction{
			CustomerID: customer,
			Type:       core.Debit,
			Amount:     core.Money{Cents: 100},
			Date:       time.Date(2025, 3, day, 12, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	mk(a.ID, 1)
	mk(a.ID, 10)
	mk(a.ID, 20)
	mk(b.ID, 10)

	r := store.NormalizeRange(
		time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	)
	got, err := s.ListTransactionsByCustomerAndDateRange(ctx, a.ID, r)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Date.Day() != 10 || got[0].CustomerID != a.ID {
		t.Fatalf("got %+v", got)
	}
}

func TestListTransactionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := seed(t, s)

	for _, day := range []int{5, 25, 15} {
		s.CreateTransaction(ctx, core.Transaction{
			CustomerID: c.ID,
			Type:       core.Debit,
			Amount:     core.Money{Cents: 100},
			Date:       time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC),
		})
	}
	got, _ := s.ListTransactions(ctx)
	if got[0].Date.Day() != 25 || got[2].Date.Day() != 5 {
		t.Fatalf("unexpected order: %v, %v, %v", got[0].Date, got[1].Date, got[2].Date)
	}
}

func TestSetCustomerTotalDebt(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := seed(t, s)

	if err := s.SetCustomerTotalDebt(ctx, c.ID, -1500); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, _ := s.GetCustomer(ctx, c.ID)
	if got.TotalDebt.Cents != -1500 {
		t.Fatalf("TotalDebt = %d, want -1500", got.TotalDebt.Cents)
	}

	if err := s.SetCustomerTotalDebt(ctx, 99, 0); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateCustomerKeepsDebtAndCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := seed(t, s)
	s.SetCustomerTotalDebt(ctx, c.ID, 900)

	c.Name = "Asha K"
	c.TotalDebt = core.Money{Cents: 12345} // must be ignored
	updated, err := s.UpdateCustomer(ctx, c)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.TotalDebt.Cents != 900 {
		t.Fatalf("TotalDebt overwritten by update: %d", updated.TotalDebt.Cents)
	}
}
