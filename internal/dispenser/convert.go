package dispenser

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var maxInt = decimal.NewFromInt(math.MaxInt)

// AmountFromDecimal converts a wire-format amount into an integer amount.
func AmountFromDecimal(v decimal.Decimal) (int, error) {
	if v.IsNegative() || !v.IsInteger() || v.GreaterThan(maxInt) {
		return 0, fmt.Errorf("%w: got %s", ErrInvalidAmount, v.String())
	}
	return int(v.IntPart()), nil
}

// DenominationsFromDecimals converts wire-format denominations into integers.
// A nil input yields a nil slice so callers can tell "absent" from "empty".
func DenominationsFromDecimals(values []decimal.Decimal) ([]int, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]int, 0, len(values))
	for _, v := range values {
		if !v.IsPositive() || !v.IsInteger() || v.GreaterThan(maxInt) {
			return nil, fmt.Errorf("%w: got %s", ErrInvalidDenomination, v.String())
		}
		out = append(out, int(v.IntPart()))
	}
	return out, nil
}
