// Package risk provides market risk measures for single assets and portfolios.
package risk

import "errors"

var (
	// ErrTooFewPrices is returned when a series is too short for the measure.
	ErrTooFewPrices = errors.New("too few prices")
	// ErrInvalidInput is returned for mismatched or out-of-range arguments.
	ErrInvalidInput = errors.New("invalid risk input")
)
