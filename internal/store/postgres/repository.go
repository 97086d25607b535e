// Package postgres is the shared-database backend, for deployments where
// several instances point at one Postgres server.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"khata/internal/core"
	"khata/internal/store"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const transactionColumns = "id, customer_id, entry_type, amount_cents, description, occurred_at"

type Repository struct {
	db *sql.DB
}

var _ store.Store = (*Repository)(nil)

func New(connStr string) (*Repository, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", d, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions ORDER BY occurred_at DESC, id DESC`
	return r.queryTransactions(ctx, query)
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
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
		WHERE customer_id = $1 ORDER BY occurred_at DESC, id DESC`
	return r.queryTransactions(ctx, query, customerID)
}

func (r *Repository) ListTransactionsByDateRange(ctx context.Context, dr store.DateRange) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE occurred_at >= $1 AND occurred_at <= $2 ORDER BY occurred_at DESC, id DESC`
	return r.queryTransactions(ctx, query, dr.Start, dr.End)
}

func (r *Repository) ListTransactionsByCustomerAndDateRange(ctx context.Context, customerID int64, dr store.DateRange) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE customer_id = $1 AND occurred_at >= $2 AND occurred_at <= $3
		ORDER BY occurred_at DESC, id DESC`
	return r.queryTransactions(ctx, query, customerID, dr.Start, dr.End)
}

func (r *Repository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	query := `INSERT INTO transactions (customer_id, entry_type, amount_cents, description, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		tx.CustomerID, string(tx.Type), tx.Amount.Cents, tx.Description, tx.Date.UTC()).Scan(&tx.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	tx.Date = tx.Date.UTC()
	return tx, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	query := `UPDATE transactions
		SET customer_id = $1, entry_type = $2, amount_cents = $3, description = $4, occurred_at = $5
		WHERE id = $6`
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
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
		FROM customers WHERE id = $1`
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
	query := `INSERT INTO customers (name, phone, address, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, c.Name, c.Phone, c.Address, c.CreatedAt).Scan(&c.ID); err != nil {
		return core.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return c, nil
}

func (r *Repository) UpdateCustomer(ctx context.Context, c core.Customer) (core.Customer, error) {
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	query := `UPDATE customers SET name = $1, phone = $2, address = $3 WHERE id = $4`
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) SetCustomerTotalDebt(ctx context.Context, id int64, cents int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE customers SET total_debt_cents = $1 WHERE id = $2`, cents, id)
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
