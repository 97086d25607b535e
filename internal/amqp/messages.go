package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action identifies what happened to a transaction.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// IsValid returns true if the action is one of the known values.
func (a Action) IsValid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return true
	default:
		return false
	}
}

// LedgerEventMessage is a lightweight notification that a customer's ledger
// changed. It carries only identifiers; consumers fetch the current state
// from the database, so stale or reordered deliveries are harmless.
type LedgerEventMessage struct {
	TransactionID int64     `json:"transaction_id"`
	CustomerID    int64     `json:"customer_id"`
	Action        Action    `json:"action"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewLedgerEventMessage creates an event for the given transaction and customer.
func NewLedgerEventMessage(transactionID, customerID int64, action Action) *LedgerEventMessage {
	return &LedgerEventMessage{
		TransactionID: transactionID,
		CustomerID:    customerID,
		Action:        action,
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Action.IsValid() {
		return nil, fmt.Errorf("unknown action: %q", msg.Action)
	}
	return &msg, nil
}
