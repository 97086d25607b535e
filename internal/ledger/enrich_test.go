package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"khata/internal/core"
)

type stubDirectory struct {
	customers []core.Customer
	err       error
	calls     int
}

func (d *stubDirectory) ListCustomers(ctx context.Context) ([]core.Customer, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.customers, nil
}

func namedTx(id, customer int64, name string) core.Transaction {
	return core.Transaction{
		ID:           id,
		CustomerID:   customer,
		CustomerName: name,
		Type:         core.Debit,
		Amount:       core.Money{Cents: 100},
		Date:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestEnrichFastPathSkipsDirectory(t *testing.T) {
	dir := &stubDirectory{}
	e := NewEnricher(dir)

	txs := []core.Transaction{namedTx(1, 1, "Asha"), namedTx(2, 2, "Bilal")}
	out := e.Enrich(context.Background(), txs)

	if dir.calls != 0 {
		t.Fatalf("directory fetched %d times, want 0", dir.calls)
	}
	if &out[0] != &txs[0] {
		t.Fatalf("fast path should return the input slice unchanged")
	}
}

func TestEnrichBackfillsMissingNames(t *testing.T) {
	dir := &stubDirectory{customers: []core.Customer{{ID: 1, Name: "Asha"}}}
	e := NewEnricher(dir)

	txs := []core.Transaction{namedTx(1, 1, ""), namedTx(2, 9, "")}
	out := e.Enrich(context.Background(), txs)

	if out[0].CustomerName != "Asha" {
		t.Errorf("got %q, want Asha", out[0].CustomerName)
	}
	if out[1].CustomerName != "Customer 9" {
		t.Errorf("got %q, want placeholder Customer 9", out[1].CustomerName)
	}
	// Input must stay untouched.
	if txs[0].CustomerName != "" {
		t.Errorf("input slice was mutated")
	}
}

func TestEnrichDirectoryFailureDegrades(t *testing.T) {
	dir := &stubDirectory{err: errors.New("boom")}
	e := NewEnricher(dir)

	txs := []core.Transaction{namedTx(1, 1, "")}
	out := e.Enrich(context.Background(), txs)

	if len(out) != 1 || out[0].CustomerName != "" {
		t.Fatalf("expected original unenriched list, got %+v", out)
	}
}

func TestEnrichCachesDirectory(t *testing.T) {
	dir := &stubDirectory{customers: []core.Customer{{ID: 1, Name: "Asha"}}}
	e := NewEnricher(dir)

	txs := []core.Transaction{namedTx(1, 1, "")}
	e.Enrich(context.Background(), txs)
	e.Enrich(context.Background(), txs)

	if dir.calls != 1 {
		t.Fatalf("directory fetched %d times, want 1 (cached)", dir.calls)
	}

	e.Invalidate()
	e.Enrich(context.Background(), txs)
	if dir.calls != 2 {
		t.Fatalf("directory fetched %d times after invalidation, want 2", dir.calls)
	}
}
