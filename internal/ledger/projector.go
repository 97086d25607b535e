// Package ledger derives presentation views from raw transaction sets:
// running balances, calendar-month buckets and summary totals. Everything in
// this package is pure; inputs are treated as immutable snapshots and every
// call recomputes from scratch.
package ledger

import (
	"sort"
	"time"

	"khata/internal/core"
)

// AllCustomers selects the global scope: one running balance per customer.
const AllCustomers int64 = 0

// TransactionWithBalance is a transaction annotated with the ledger balance
// immediately after the transaction was applied, in signed cents.
type TransactionWithBalance struct {
	core.Transaction
	RunningBalance core.Money `json:"running_balance"`
	// Scoped reports whether RunningBalance is meaningful for this row. When
	// projecting with a customer scope, rows belonging to other customers
	// carry the accumulator's value frozen at that point and Scoped is false.
	Scoped bool `json:"scoped"`
}

// Summary aggregates a transaction set. NetAmount = TotalDebit - TotalCredit
// and may be negative. The fold is order-independent.
type Summary struct {
	TotalDebit  core.Money `json:"total_debit"`
	TotalCredit core.Money `json:"total_credit"`
	NetAmount   core.Money `json:"net_amount"`
	Count       int        `json:"count"`
}

// MonthKey identifies a calendar-month bucket.
type MonthKey struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// MonthBucket groups projected rows sharing a calendar month, newest row
// first, with the bucket's own summary.
type MonthBucket struct {
	Key          MonthKey                 `json:"key"`
	Transactions []TransactionWithBalance `json:"transactions"`
	Summary      Summary                  `json:"summary"`
}

// ComputeRunningBalances annotates every transaction with its running
// balance and returns the annotated set in descending (date, id) order,
// regardless of input order. The input slice is not modified.
//
// With scopeCustomerID > 0 a single accumulator is kept and only that
// customer's transactions advance it. With AllCustomers one accumulator is
// kept per customer and each row carries its own customer's balance.
//
// Ties on identical dates break by ascending ID (server insertion order),
// which makes the projection deterministic for any input permutation.
func ComputeRunningBalances(txs []core.Transaction, scopeCustomerID int64) []TransactionWithBalance {
	work := make([]core.Transaction, len(txs))
	copy(work, txs)
	sort.SliceStable(work, func(i, j int) bool {
		if !work[i].Date.Equal(work[j].Date) {
			return work[i].Date.Before(work[j].Date)
		}
		return work[i].ID < work[j].ID
	})

	rows := make([]TransactionWithBalance, 0, len(work))
	if scopeCustomerID > AllCustomers {
		var balance int64
		for _, tx := range work {
			scoped := tx.CustomerID == scopeCustomerID
			if scoped {
				balance += tx.Type.Signed(tx.Amount)
			}
			rows = append(rows, TransactionWithBalance{
				Transaction:    tx,
				RunningBalance: core.Money{Cents: balance},
				Scoped:         scoped,
			})
		}
	} else {
		balances := make(map[int64]int64)
		for _, tx := range work {
			balances[tx.CustomerID] += tx.Type.Signed(tx.Amount)
			rows = append(rows, TransactionWithBalance{
				Transaction:    tx,
				RunningBalance: core.Money{Cents: balances[tx.CustomerID]},
				Scoped:         true,
			})
		}
	}

	// Newest first for display.
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.After(rows[j].Date)
		}
		return rows[i].ID > rows[j].ID
	})
	return rows
}

// Summarize folds a transaction set into totals. Amount magnitudes are
// bucketed by entry type; order of the input is irrelevant.
func Summarize(txs []core.Transaction) Summary {
	var s Summary
	for _, tx := range txs {
		s.Count++
		switch tx.Type {
		case core.Credit:
			s.TotalCredit.Cents += tx.Amount.Cents
		default:
			s.TotalDebit.Cents += tx.Amount.Cents
		}
	}
	s.NetAmount.Cents = s.TotalDebit.Cents - s.TotalCredit.Cents
	return s
}

// BucketByMonth partitions projected rows into calendar-month buckets keyed
// by the local month and year of each transaction's date. The bucket for
// now's month is always present, even when empty. Buckets are ordered most
// recent first; rows inside a bucket keep their descending order, so each
// bucket is a slice of the global running sequence rather than a re-zeroed
// ledger of its own.
func BucketByMonth(rows []TransactionWithBalance, now time.Time) []MonthBucket {
	grouped := make(map[MonthKey][]TransactionWithBalance)
	current := MonthKey{Year: now.Year(), Month: now.Month()}
	grouped[current] = nil

	for _, row := range rows {
		key := MonthKey{Year: row.Date.Year(), Month: row.Date.Month()}
		grouped[key] = append(grouped[key], row)
	}

	keys := make([]MonthKey, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Year != keys[j].Year {
			return keys[i].Year > keys[j].Year
		}
		return keys[i].Month > keys[j].Month
	})

	buckets := make([]MonthBucket, 0, len(keys))
	for _, key := range keys {
		group := grouped[key]
		sort.SliceStable(group, func(i, j int) bool {
			if !group[i].Date.Equal(group[j].Date) {
				return group[i].Date.After(group[j].Date)
			}
			return group[i].ID > group[j].ID
		})
		raw := make([]core.Transaction, len(group))
		for i, row := range group {
			raw[i] = row.Transaction
		}
		buckets = append(buckets, MonthBucket{
			Key:          key,
			Transactions: group,
			Summary:      Summarize(raw),
		})
	}
	return buckets
}
