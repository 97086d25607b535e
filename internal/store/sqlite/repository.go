// Package sqlite is the default persistence backend, a single-file database
// with embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"khata/internal/core"
	"khata/internal/store"

	_ "modernc.org/sqlite"
)

const transactionColumns = "id, customer_id, entry_type, amount_cents, description, occurred_at"

type Repository struct {
	db *sql.DB
}

var _ store.Store = (*Repository)(nil)

// DSN appends the connection pragmas every database handle needs. The driver
// leaves foreign keys off by default; the customer delete cascade depends on
// them being enforced.
func DSN(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)"
}

func New(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions ORDER BY occurred_at DESC, id DESC`
	return r.queryTransactions(ctx, query)
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, store.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (r *Repository) ListTransactionsByCustomer(ctx context.Context, customerID int64) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE customer_id = ? ORDER BY occurred_at DESC, id DESC`
	return r.queryTransactions(ctx, query, customerID)
}

func (r *Repository) ListTransactionsByDateRange(ctx context.Context, dr store.DateRange) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE occurred_at >= ? AND occurred_at <= ? ORDER BY occurred_at DESC, id DESC`
	return r.queryTransactions(ctx, query, dr.Start, dr.End)
}

func (r *Repository) ListTransactionsByCustomerAndDateRange(ctx context.Context, customerID int64, dr store.DateRange) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE customer_id = ? AND occurred_at >= ? AND occurred_at <= ?
		ORDER BY occurred_at DESC, id DESC`
	return r.queryTransactions(ctx, query, customerID, dr.Start, dr.End)
}

func (r *Repository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	query := `INSERT INTO transactions (customer_id, entry_type, amount_cents, description, occurred_at)
		VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		tx.CustomerID, string(tx.Type), tx.Amount.Cents, tx.Description, tx.Date.UTC())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction id: %w", err)
	}
	tx.ID = id
	tx.Date = tx.Date.UTC()
	return tx, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	query := `UPDATE transactions
		SET customer_id = ?, entry_type = ?, amount_cents = ?, description = ?, occurred_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		tx.CustomerID, string(tx.Type), tx.Amount.Cents, tx.Description, tx.Date.UTC(), tx.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return core.Transaction{}, store.ErrNotFound
	}
	tx.Date = tx.Date.UTC()
	return tx, nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) ListCustomers(ctx context.Context) ([]core.Customer, error) {
	query := `SELECT id, name, phone, address, total_debt_cents, created_at
		FROM customers ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []core.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) GetCustomer(ctx context.Context, id int64) (core.Customer, error) {
	query := `SELECT id, name, phone, address, total_debt_cents, created_at
		FROM customers WHERE id = ?`
	c, err := scanCustomer(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Customer{}, store.ErrNotFound
	}
	if err != nil {
		return core.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (r *Repository) CreateCustomer(ctx context.Context, c core.Customer) (core.Customer, error) {
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO customers (name, phone, address, created_at) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, c.Name, c.Phone, c.Address, c.CreatedAt)
	if err != nil {
		return core.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Customer{}, fmt.Errorf("create customer id: %w", err)
	}
	c.ID = id
	return c, nil
}

func (r *Repository) UpdateCustomer(ctx context.Context, c core.Customer) (core.Customer, error) {
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	query := `UPDATE customers SET name = ?, phone = ?, address = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, c.Name, c.Phone, c.Address, c.ID)
	if err != nil {
		return core.Customer{}, fmt.Errorf("update customer: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return core.Customer{}, store.ErrNotFound
	}
	return r.GetCustomer(ctx, c.ID)
}

func (r *Repository) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) SetCustomerTotalDebt(ctx context.Context, id int64, cents int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE customers SET total_debt_cents = ? WHERE id = ?`, cents, id)
	if err != nil {
		return fmt.Errorf("set customer total debt: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var tx core.Transaction
	var typ string
	if err := s.Scan(&tx.ID, &tx.CustomerID, &typ, &tx.Amount.Cents, &tx.Description, &tx.Date); err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.EntryType(typ)
	tx.Date = tx.Date.UTC()
	return tx, nil
}

func scanCustomer(s scanner) (core.Customer, error) {
	var c core.Customer
	if err := s.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.TotalDebt.Cents, &c.CreatedAt); err != nil {
		return core.Customer{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}
