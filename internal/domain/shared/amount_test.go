package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateAmount(t *testing.T) {
	testCases := []struct {
		name   string
		amount string
		target error
	}{
		{"Whole", "100", nil},
		{"FourPlaces", "1.2345", nil},
		{"TrailingZerosBeyondScale", "1.230000", nil},
		{"LargestStorable", "999999999999999.9999", nil},
		{"Zero", "0", ErrInvalidAmount},
		{"Negative", "-0.01", ErrInvalidAmount},
		{"BelowStoredScale", "0.00001", ErrAmountPrecision},
		{"WouldBeRounded", "1.23456", ErrAmountPrecision},
		{"TooLarge", "1000000000000000", ErrAmountTooLarge},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAmount(decimal.RequireFromString(tc.amount))
			if tc.target == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.target)
		})
	}
}
