package core

import (
	"testing"
	"time"
)

func TestEntryTypeValidate(t *testing.T) {
	if err := Credit.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := Debit.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := EntryType("Refund").Validate(); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestEntryTypeSigned(t *testing.T) {
	m := Money{Cents: 250}
	if got := Debit.Signed(m); got != 250 {
		t.Fatalf("Debit.Signed = %d, want 250", got)
	}
	if got := Credit.Signed(m); got != -250 {
		t.Fatalf("Credit.Signed = %d, want -250", got)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		CustomerID: 1,
		Type:       Debit,
		Amount:     Money{Cents: 100},
		Date:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{CustomerID: 0, Type: Debit, Amount: Money{Cents: 1}, Date: good.Date},
		{CustomerID: 1, Type: "Transfer", Amount: Money{Cents: 1}, Date: good.Date},
		{CustomerID: 1, Type: Debit, Amount: Money{Cents: -1}, Date: good.Date},
		{CustomerID: 1, Type: Debit, Amount: Money{Cents: 1}},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestCustomerValidate(t *testing.T) {
	if err := (Customer{Name: "Asha"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Customer{Name: "   "}).Validate(); err == nil {
		t.Fatalf("expected error for blank name")
	}
}
