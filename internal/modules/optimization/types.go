package optimization

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// DefaultPeriodsPerYear is the number of trading periods used to annualize
// per-period statistics.
const DefaultPeriodsPerYear = 252

// ReturnMatrix holds per-asset periodic returns, one row per asset and one
// column per period.
type ReturnMatrix struct {
	Assets []string
	Dates  []time.Time
	Data   *mat.Dense
}

// NewReturnMatrix builds a ReturnMatrix from row-major data (rows = assets).
func NewReturnMatrix(assets []string, rows [][]float64) (*ReturnMatrix, error) {
	if len(assets) == 0 {
		return nil, &ValidationError{Field: "assets", Reason: "at least one asset is required"}
	}
	if len(rows) != len(assets) {
		return nil, &ValidationError{Field: "returns", Reason: fmt.Sprintf("%d rows for %d assets", len(rows), len(assets))}
	}
	seen := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		if _, dup := seen[a]; dup {
			return nil, &ValidationError{Field: "assets", Reason: "duplicate asset " + a}
		}
		seen[a] = struct{}{}
	}

	periods := len(rows[0])
	data := make([]float64, 0, len(assets)*periods)
	for i, row := range rows {
		if len(row) != periods {
			return nil, &ValidationError{Field: "returns", Reason: fmt.Sprintf("row %d has %d periods, expected %d", i, len(row), periods)}
		}
		data = append(data, row...)
	}
	if periods == 0 {
		return nil, &ValidationError{Field: "returns", Reason: "no periods"}
	}

	return &ReturnMatrix{
		Assets: append([]string(nil), assets...),
		Data:   mat.NewDense(len(assets), periods, data),
	}, nil
}

// NumAssets returns the number of assets (rows).
func (m *ReturnMatrix) NumAssets() int {
	r, _ := m.Data.Dims()
	return r
}

// NumPeriods returns the number of observation periods (columns).
func (m *ReturnMatrix) NumPeriods() int {
	_, c := m.Data.Dims()
	return c
}

// Portfolio is one sampled or solved weight vector with its annualized statistics.
type Portfolio struct {
	Weights []float64 `json:"weights" msgpack:"weights"`
	Mu      float64   `json:"mu" msgpack:"mu"`
	Sigma   float64   `json:"sigma" msgpack:"sigma"`
	Sharpe  float64   `json:"sharpe" msgpack:"sharpe"`
}

// RandomPortfolios is the column-oriented output of the generator: entry i of
// every slice describes the i-th sampled portfolio.
type RandomPortfolios struct {
	Mus     []float64   `json:"mus" msgpack:"mus"`
	Sigmas  []float64   `json:"sigmas" msgpack:"sigmas"`
	Sharpes []float64   `json:"sharpes" msgpack:"sharpes"`
	Weights [][]float64 `json:"weights" msgpack:"weights"`
}

// Len returns the number of sampled portfolios.
func (p *RandomPortfolios) Len() int {
	return len(p.Mus)
}

// At returns the i-th sampled portfolio.
func (p *RandomPortfolios) At(i int) Portfolio {
	return Portfolio{
		Weights: p.Weights[i],
		Mu:      p.Mus[i],
		Sigma:   p.Sigmas[i],
		Sharpe:  p.Sharpes[i],
	}
}

func (p *RandomPortfolios) append(other *RandomPortfolios) {
	p.Mus = append(p.Mus, other.Mus...)
	p.Sigmas = append(p.Sigmas, other.Sigmas...)
	p.Sharpes = append(p.Sharpes, other.Sharpes...)
	p.Weights = append(p.Weights, other.Weights...)
}

// Frontier is the result of the quadratic-program sweep. Points are ordered by
// increasing risk aversion, not by risk.
type Frontier struct {
	RiskAversion []float64   `json:"risk_aversion" msgpack:"risk_aversion"`
	Returns      []float64   `json:"returns" msgpack:"returns"`
	Risks        []float64   `json:"risks" msgpack:"risks"`
	Weights      [][]float64 `json:"weights" msgpack:"weights"`

	// Optimal is the anchor portfolio re-solved at AnchorRiskAversion.
	Optimal            []float64 `json:"optimal" msgpack:"optimal"`
	AnchorRiskAversion float64   `json:"anchor_risk_aversion" msgpack:"anchor_risk_aversion"`
	// AnchorFromGrid is set when the polynomial fit gave no usable level and the
	// most risk-averse grid point was used instead.
	AnchorFromGrid bool `json:"anchor_from_grid" msgpack:"anchor_from_grid"`
}

// FrontierRow pairs a frontier point with the best matching sampled portfolio.
type FrontierRow struct {
	Weights   []float64 `json:"weights" msgpack:"weights"`
	Mu        float64   `json:"mu" msgpack:"mu"`
	Sigma     float64   `json:"sigma" msgpack:"sigma"`
	Sharpe    float64   `json:"sharpe" msgpack:"sharpe"`
	Sample    int       `json:"sample" msgpack:"sample"`
	Tolerance float64   `json:"tolerance" msgpack:"tolerance"`
}

// Strategy names a portfolio selection rule.
type Strategy string

const (
	StrategyMaxSharpe Strategy = "max_sharpe"
	StrategyMinSigma  Strategy = "min_sigma"
)

// AllocationResult is an executable allocation derived from a selected portfolio.
type AllocationResult struct {
	ID            string    `json:"id" msgpack:"id"`
	RunID         string    `json:"run_id" msgpack:"run_id"`
	Strategy      Strategy  `json:"strategy" msgpack:"strategy"`
	Tickers       []string  `json:"tickers" msgpack:"tickers"`
	Index         int       `json:"index" msgpack:"index"`
	Weights       []float64 `json:"weights" msgpack:"weights"`
	Risk          float64   `json:"risk" msgpack:"risk"`
	Return        float64   `json:"return" msgpack:"return"`
	Sharpe        float64   `json:"sharpe" msgpack:"sharpe"`
	Quantities    []int64   `json:"quantities" msgpack:"quantities"`
	Prices        []float64 `json:"prices" msgpack:"prices"`
	Notionals     []float64 `json:"notionals" msgpack:"notionals"`
	NotionalTotal float64   `json:"notional_total" msgpack:"notional_total"`
	CreatedAt     time.Time `json:"created_at" msgpack:"created_at"`
}

// finiteOrNil maps NaN and ±Inf to nil. A portfolio with zero risk has an
// undefined Sharpe ratio, which JSON cannot represent as a number.
func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// MarshalJSON writes a non-finite Sharpe ratio as null.
func (r FrontierRow) MarshalJSON() ([]byte, error) {
	type row FrontierRow
	return json.Marshal(struct {
		row
		Sharpe *float64 `json:"sharpe"`
	}{row(r), finiteOrNil(r.Sharpe)})
}

// MarshalJSON writes a non-finite Sharpe ratio as null.
func (a AllocationResult) MarshalJSON() ([]byte, error) {
	type allocation AllocationResult
	return json.Marshal(struct {
		allocation
		Sharpe *float64 `json:"sharpe"`
	}{allocation(a), finiteOrNil(a.Sharpe)})
}
