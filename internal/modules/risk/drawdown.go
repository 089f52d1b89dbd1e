package risk

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// Drawdown returns |min over t of v[t]/v[t-tau] - 1|, the largest move over
// any window of tau periods. tau = 0 yields 0.
func Drawdown(prices []float64, tau int) (float64, error) {
	if tau < 0 {
		return 0, fmt.Errorf("negative window %d: %w", tau, ErrInvalidInput)
	}
	if tau >= len(prices) {
		return 0, fmt.Errorf("window %d needs more than %d prices: %w", tau, len(prices), ErrTooFewPrices)
	}
	if tau == 0 {
		return 0, nil
	}

	roc := talib.Roc(prices, tau)
	worst := math.Inf(1)
	for _, pct := range roc[tau:] {
		if change := pct / 100; change < worst {
			worst = change
		}
	}
	return math.Abs(worst), nil
}

// MaxDrawdown is the largest Drawdown over every window in [0, len(prices)).
func MaxDrawdown(prices []float64) (float64, error) {
	if len(prices) == 0 {
		return 0, fmt.Errorf("max drawdown needs prices: %w", ErrTooFewPrices)
	}
	worst := 0.0
	for tau := 0; tau < len(prices); tau++ {
		dd, err := Drawdown(prices, tau)
		if err != nil {
			return 0, err
		}
		worst = math.Max(worst, dd)
	}
	return worst, nil
}

// DrawdownFromReturns applies Drawdown to returns normalized at base.
func DrawdownFromReturns(returns []float64, tau int, base float64) (float64, error) {
	return Drawdown(NormalizePrices(returns, base), tau)
}
