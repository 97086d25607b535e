package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"khata/internal/cache"
	"khata/internal/core"
)

// CustomerDirectory is the collaborator that enrichment looks names up in.
type CustomerDirectory interface {
	ListCustomers(ctx context.Context) ([]core.Customer, error)
}

const directoryCacheKey = "customers"

// Enricher backfills missing customer names on fetched transactions. The
// authoritative identity of a transaction is CustomerID; CustomerName is a
// display denormalization that older write paths left empty.
type Enricher struct {
	directory CustomerDirectory
	cache     *cache.LRUCache[[]core.Customer]
}

func NewEnricher(directory CustomerDirectory) *Enricher {
	return &Enricher{
		directory: directory,
		cache:     cache.NewLRUCache[[]core.Customer](1, 30*time.Second),
	}
}

// Invalidate drops the cached directory. Called after customer mutations.
func (e *Enricher) Invalidate() {
	e.cache.Purge()
}

// Enrich returns the transaction list with every empty CustomerName filled
// in from the directory. When every transaction already carries a name the
// input is returned as is and the directory is never contacted. Customers
// missing from the directory get a "Customer {id}" placeholder.
//
// A directory failure never fails the read that triggered enrichment: the
// error is logged and the original list is returned unchanged.
func (e *Enricher) Enrich(ctx context.Context, txs []core.Transaction) []core.Transaction {
	missing := false
	for _, tx := range txs {
		if tx.CustomerName == "" {
			missing = true
			break
		}
	}
	if !missing {
		return txs
	}

	customers, ok := e.cache.Get(directoryCacheKey)
	if !ok {
		var err error
		customers, err = e.directory.ListCustomers(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Customer directory fetch failed, returning unenriched transactions",
				"error", err, "count", len(txs))
			return txs
		}
		e.cache.Set(directoryCacheKey, customers)
	}

	names := make(map[int64]string, len(customers))
	for _, c := range customers {
		names[c.ID] = c.Name
	}

	out := make([]core.Transaction, len(txs))
	copy(out, txs)
	for i := range out {
		if out[i].CustomerName != "" {
			continue
		}
		if name, ok := names[out[i].CustomerID]; ok {
			out[i].CustomerName = name
		} else {
			out[i].CustomerName = fmt.Sprintf("Customer %d", out[i].CustomerID)
		}
	}
	return out
}
