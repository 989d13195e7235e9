package dispenser

import "errors"

var (
	// ErrInvalidAmount is returned when the amount is negative or not a whole number.
	ErrInvalidAmount = errors.New("amount must be a non-negative integer")
	// ErrInvalidDenomination is returned when a denomination is not a positive whole number.
	ErrInvalidDenomination = errors.New("denominations must be positive integers")
)
