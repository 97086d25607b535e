// Package store defines the persistence ports the ledger service talks to,
// along with helpers shared by every backend.
package store

import (
	"context"
	"errors"
	"time"

	"khata/internal/core"
)

// ErrNotFound is returned when a customer or transaction does not exist.
// Backends map their driver-specific "no rows" conditions to this error.
var ErrNotFound = errors.New("not found")

// DateRange is a closed interval over transaction dates. Construct it with
// NormalizeRange so both bounds are UTC and End covers its whole day.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NormalizeRange converts both bounds to UTC and expands End to the last
// instant of its calendar day, so a range given as plain dates is inclusive
// of every transaction on the end date.
func NormalizeRange(start, end time.Time) DateRange {
	s := start.UTC()
	e := end.UTC()
	e = time.Date(e.Year(), e.Month(), e.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	return DateRange{Start: s, End: e}
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	u := t.UTC()
	return !u.Before(r.Start) && !u.After(r.End)
}

// TransactionStore is the transaction data source.
type TransactionStore interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	ListTransactionsByCustomer(ctx context.Context, customerID int64) ([]core.Transaction, error)
	ListTransactionsByDateRange(ctx context.Context, r DateRange) ([]core.Transaction, error)
	ListTransactionsByCustomerAndDateRange(ctx context.Context, customerID int64, r DateRange) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
}

// CustomerStore is the customer data source.
type CustomerStore interface {
	ListCustomers(ctx context.Context) ([]core.Customer, error)
	GetCustomer(ctx context.Context, id int64) (core.Customer, error)
	CreateCustomer(ctx context.Context, c core.Customer) (core.Customer, error)
	UpdateCustomer(ctx context.Context, c core.Customer) (core.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error

	// SetCustomerTotalDebt persists the denormalized debt figure maintained
	// by the reconciliation worker. Cents are signed.
	SetCustomerTotalDebt(ctx context.Context, id int64, cents int64) error
}

// Store is the full persistence surface a backend provides.
type Store interface {
	TransactionStore
	CustomerStore
	Close() error
}
