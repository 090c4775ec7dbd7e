package shared

import (
	"errors"
	"strings"
)

var (
	ErrInvalidTransactionType = errors.New("transaction type must be CREDIT or DEBIT")
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrInvalidDate            = errors.New("invalid business date")
)

// TransactionType defines the direction of a cash movement
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "CREDIT"
	TransactionTypeDebit  TransactionType = "DEBIT"
)

// Valid reports whether t is one of the known transaction types
func (t TransactionType) Valid() bool {
	return t == TransactionTypeCredit || t == TransactionTypeDebit
}

// ParseTransactionType normalizes case and surrounding space before validating
func ParseTransactionType(raw string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", ErrInvalidTransactionType
	}
	return t, nil
}

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
