package transaction

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cashflow-consolidation/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxDescriptionLength bounds the optional free-text description
const MaxDescriptionLength = 500

var ErrDescriptionTooLong = fmt.Errorf("description must be at most %d characters", MaxDescriptionLength)

// Transaction is an immutable record of a single credit or debit
type Transaction struct {
	ID          uuid.UUID              `json:"id"`
	CreatedAt   time.Time              `json:"created_at"`
	Date        shared.Date            `json:"date"`
	Type        shared.TransactionType `json:"type"`
	Amount      decimal.Decimal        `json:"amount"`
	Description *string                `json:"description,omitempty"`
}

// ValidationError reports input that can never be accepted. Callers should
// surface it immediately and not retry.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err carries a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// New validates the inputs and builds a transaction with a fresh identity.
// The business date keeps only its calendar day.
func New(date shared.Date, txType shared.TransactionType, amount decimal.Decimal, description *string) (*Transaction, error) {
	if !txType.Valid() {
		return nil, &ValidationError{Field: "type", Err: shared.ErrInvalidTransactionType}
	}
	if err := shared.ValidateAmount(amount); err != nil {
		return nil, &ValidationError{Field: "amount", Err: err}
	}
	if date.IsZero() {
		return nil, &ValidationError{Field: "date", Err: shared.ErrInvalidDate}
	}

	var desc *string
	if description != nil {
		trimmed := strings.TrimSpace(*description)
		if len([]rune(trimmed)) > MaxDescriptionLength {
			return nil, &ValidationError{Field: "description", Err: ErrDescriptionTooLong}
		}
		if trimmed != "" {
			desc = &trimmed
		}
	}

	return &Transaction{
		ID:          uuid.New(),
		CreatedAt:   time.Now().UTC(),
		Date:        shared.NewDate(date.Time()),
		Type:        txType,
		Amount:      amount,
		Description: desc,
	}, nil
}
