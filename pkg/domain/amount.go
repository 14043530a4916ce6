package domain

import (
	"github.com/shopspring/decimal"

	dErrors "efrn/pkg/domain-errors"
)

// maxAmountScale is the number of fractional digits accepted on input.
const maxAmountScale = 4

// ParseAmount validates a transaction amount. Amounts must be strictly
// positive and carry at most four fractional digits.
func ParseAmount(d decimal.Decimal) (decimal.Decimal, error) {
	if !d.IsPositive() {
		return decimal.Zero, dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	if -d.Exponent() > maxAmountScale && !d.Equal(d.Truncate(maxAmountScale)) {
		return decimal.Zero, dErrors.New(dErrors.CodeInvalidInput, "amount must have at most 4 decimal places")
	}
	return d, nil
}
