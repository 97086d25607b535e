// Package memory holds an in-memory Store used in tests and for local
// development without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"khata/internal/core"
	"khata/internal/store"
)

type Store struct {
	mu             sync.Mutex
	customers      map[int64]core.Customer
	transactions   map[int64]core.Transaction
	nextCustomer   int64
	nextTransaction int64
}

func New() *Store {
	return &Store{
		customers:       make(map[int64]core.Customer),
		transactions:    make(map[int64]core.Transaction),
		nextCustomer:    1,
		nextTransaction: 1,
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(core.Transaction) bool { return true }), nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, store.ErrNotFound
	}
	return tx, nil
}

func (s *Store) ListTransactionsByCustomer(_ context.Context, customerID int64) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(tx core.Transaction) bool { return tx.CustomerID == customerID }), nil
}

func (s *Store) ListTransactionsByDateRange(_ context.Context, r store.DateRange) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(tx core.Transaction) bool { return r.Contains(tx.Date) }), nil
}

func (s *Store) ListTransactionsByCustomerAndDateRange(_ context.Context, customerID int64, r store.DateRange) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(tx core.Transaction) bool {
		return tx.CustomerID == customerID && r.Contains(tx.Date)
	}), nil
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[tx.CustomerID]; !ok {
		return core.Transaction{}, store.ErrNotFound
	}
	tx.ID = s.nextTransaction
	s.nextTransaction++
	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[tx.ID]; !ok {
		return core.Transaction{}, store.ErrNotFound
	}
	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) ListCustomers(_ context.Context) ([]core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetCustomer(_ context.Context, id int64) (core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return core.Customer{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) CreateCustomer(_ context.Context, c core.Customer) (core.Customer, error) {
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.nextCustomer
	s.nextCustomer++
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.customers[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCustomer(_ context.Context, c core.Customer) (core.Customer, error) {
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.customers[c.ID]
	if !ok {
		return core.Customer{}, store.ErrNotFound
	}
	c.CreatedAt = existing.CreatedAt
	c.TotalDebt = existing.TotalDebt
	s.customers[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.customers, id)
	// Cascade, matching the ON DELETE CASCADE of the SQL backends.
	for txID, tx := range s.transactions {
		if tx.CustomerID == id {
			delete(s.transactions, txID)
		}
	}
	return nil
}

func (s *Store) SetCustomerTotalDebt(_ context.Context, id int64, cents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return store.ErrNotFound
	}
	c.TotalDebt = core.Money{Cents: cents}
	s.customers[id] = c
	return nil
}

// collect returns matching transactions newest first. Caller holds the lock.
func (s *Store) collect(match func(core.Transaction) bool) []core.Transaction {
	out := make([]core.Transaction, 0)
	for _, tx := range s.transactions {
		if match(tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
