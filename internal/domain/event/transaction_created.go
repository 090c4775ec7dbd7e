// Package event defines the TransactionCreated domain event exchanged between
// the ledger API and the consolidation worker, and its wire encoding.
package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/cashflow-consolidation/internal/domain/transaction"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TypeTransactionCreated is carried in the event-type message header
const TypeTransactionCreated = "TransactionCreated"

var (
	ErrMalformedEvent = errors.New("malformed TransactionCreated event")
	ErrMissingID      = errors.New("event id is required")
)

// TransactionCreated announces that a transaction was durably recorded.
// ID is the transaction identity and doubles as the idempotency key.
type TransactionCreated struct {
	ID     uuid.UUID              `json:"id"`
	Date   shared.Date            `json:"date"`
	Type   shared.TransactionType `json:"type"`
	Amount decimal.Decimal        `json:"amount"`
}

func FromTransaction(tx *transaction.Transaction) TransactionCreated {
	return TransactionCreated{
		ID:     tx.ID,
		Date:   tx.Date,
		Type:   tx.Type,
		Amount: tx.Amount,
	}
}

// Validate rejects events that could never be applied, regardless of retries
func (e TransactionCreated) Validate() error {
	if e.ID == uuid.Nil {
		return ErrMissingID
	}
	if e.Date.IsZero() {
		return shared.ErrInvalidDate
	}
	if !e.Type.Valid() {
		return shared.ErrInvalidTransactionType
	}
	return shared.ValidateAmount(e.Amount)
}

func (e TransactionCreated) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a wire payload. It does not validate the result.
func Decode(data []byte) (TransactionCreated, error) {
	var ev TransactionCreated
	if err := json.Unmarshal(data, &ev); err != nil {
		return TransactionCreated{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return ev, nil
}
