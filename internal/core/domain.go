package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Credit EntryType = "Credit"
	Debit  EntryType = "Debit"
)

type (
	// EntryType is the direction of a ledger entry. Debit increases what the
	// customer owes, Credit records a payment against it.
	EntryType string

	Money struct {
		Cents int64 `json:"cents"`
	}

	// Transaction is a single ledger entry for a customer. Amount is always a
	// non-negative magnitude; the sign of its effect on a balance comes from
	// Type alone.
	Transaction struct {
		ID           int64     `json:"id"`
		CustomerID   int64     `json:"customer_id"`
		CustomerName string    `json:"customer_name,omitempty"` // denormalized display name, may be empty on fetch
		Type         EntryType `json:"type"`
		Amount       Money     `json:"amount"`
		Description  string    `json:"description,omitempty"`
		Date         time.Time `json:"date"`
	}

	Customer struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		Phone     string    `json:"phone,omitempty"`
		Address   string    `json:"address,omitempty"`
		TotalDebt Money     `json:"total_debt"` // signed, maintained asynchronously from the ledger
		CreatedAt time.Time `json:"created_at"`
	}
)

var (
	ErrInvalidEntryType = errors.New("invalid entry type")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidCustomer  = errors.New("invalid customer reference")
	ErrEmptyName        = errors.New("empty customer name")
)

func (t EntryType) Validate() error {
	switch t {
	case Credit, Debit:
		return nil
	default:
		return ErrInvalidEntryType
	}
}

// Signed returns the effect of an amount under this entry type: positive for
// Debit, negative for Credit.
func (t EntryType) Signed(m Money) int64 {
	if t == Credit {
		return -m.Cents
	}
	return m.Cents
}

func (tx Transaction) Validate() error {
	if tx.CustomerID <= 0 {
		return ErrInvalidCustomer
	}
	if err := tx.Type.Validate(); err != nil {
		return err
	}
	if err := tx.Amount.Validate(); err != nil {
		return err
	}
	if tx.Date.IsZero() {
		return ErrInvalidDate
	}
	if len(tx.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	return nil
}

func (c Customer) Validate() error {
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyName
	}
	if len(c.Name) > 200 {
		return errors.New("customer name too long (max 200 characters)")
	}
	if len(c.Phone) > 50 {
		return errors.New("phone too long (max 50 characters)")
	}
	if len(c.Address) > 500 {
		return errors.New("address too long (max 500 characters)")
	}
	return nil
}
