package optimization

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFeasiblePortfolio is returned when no sampled portfolio satisfies a
	// requested restriction such as all-non-zero weights.
	ErrNoFeasiblePortfolio = errors.New("no feasible portfolio")
	// ErrNoFrontierMatch is returned when widening the risk tolerance hit its cap
	// without matching any sampled portfolio.
	ErrNoFrontierMatch = errors.New("no sampled portfolio matches frontier point")
	// ErrInsufficientData is returned when the inputs are too small to estimate moments.
	ErrInsufficientData = errors.New("insufficient data")

	// errSamplingExhausted signals that the constrained sampler spent its attempt
	// budget. It is consumed by the fallback and never returned to callers.
	errSamplingExhausted = errors.New("sampling attempts exhausted")
)

// ValidationError reports malformed or out-of-range inputs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SolverError reports a quadratic program that failed to converge.
// GridIndex is -1 for the anchor re-solve.
type SolverError struct {
	GridIndex    int
	RiskAversion float64
	Iterations   int
	Err          error
}

func (e *SolverError) Error() string {
	if e.GridIndex < 0 {
		return fmt.Sprintf("qp solver failed for anchor (risk aversion %.6g) after %d iterations: %v",
			e.RiskAversion, e.Iterations, e.Err)
	}
	return fmt.Sprintf("qp solver failed at grid point %d (risk aversion %.6g) after %d iterations: %v",
		e.GridIndex, e.RiskAversion, e.Iterations, e.Err)
}

func (e *SolverError) Unwrap() error {
	return e.Err
}
