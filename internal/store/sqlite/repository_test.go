package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"khata/internal/core"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	r, err := New(filepath.Join(t.TempDir(), "khata.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestDSNEnablesForeignKeys(t *testing.T) {
	if got := DSN("./data/khata.db"); !strings.Contains(got, "_pragma=foreign_keys(1)") {
		t.Fatalf("foreign keys not enabled in DSN: %q", got)
	}
}

func TestDeleteCustomerCascadesTransactions(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)

	c, err := r.CreateCustomer(ctx, core.Customer{Name: "Asha"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	other, err := r.CreateCustomer(ctx, core.Customer{Name: "Bilal"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	for _, owner := range []int64{c.ID, c.ID, other.ID} {
		if _, err := r.CreateTransaction(ctx, core.Transaction{
			CustomerID: owner,
			Type:       core.Debit,
			Amount:     core.Money{Cents: 5000},
			Date:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		}); err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}

	if err := r.DeleteCustomer(ctx, c.ID); err != nil {
		t.Fatalf("delete customer: %v", err)
	}

	txs, err := r.ListTransactions(ctx)
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

func TestCreateTransactionUnknownCustomerRejected(t *testing.T) {
	r := newTestRepository(t)

	_, err := r.CreateTransaction(context.Background(), core.Transaction{
		CustomerID: 42,
		Type:       core.Debit,
		Amount:     core.Money{Cents: 100},
		Date:       time.Now(),
	})
	if err == nil {
		t.Fatalf("expected foreign key violation")
	}
}
