package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// AmountScale is the number of fractional digits a stored amount keeps
	AmountScale = 4
	// amountIntegerDigits is what NUMERIC(19, 4) leaves before the point
	amountIntegerDigits = 15
)

var (
	ErrAmountPrecision = fmt.Errorf("amount must have at most %d decimal places", AmountScale)
	ErrAmountTooLarge  = errors.New("amount exceeds the supported range")

	maxAmount = decimal.New(1, amountIntegerDigits)
)

// ValidateAmount accepts only positive amounts the store can hold without
// rounding: at most AmountScale decimal places and below 10^15.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return ErrAmountPrecision
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}
