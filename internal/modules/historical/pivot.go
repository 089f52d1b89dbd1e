package historical

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/frontier/internal/modules/optimization"
)

// Pivot turns long-format observations into an assets × dates return matrix
// and the latest close per asset. Observations without a return are dropped,
// assets are sorted, and an asset missing on a date gets a zero return.
// The latest close is read at each asset's own most recent date.
func Pivot(obs []Observation) (*optimization.ReturnMatrix, []float64, error) {
	type last struct {
		date  time.Time
		close float64
	}
	latest := make(map[string]last)
	returns := make(map[string]map[time.Time]float64)
	dateSet := make(map[time.Time]struct{})

	for _, o := range obs {
		if l, ok := latest[o.Ticker]; !ok || !o.Date.Before(l.date) {
			latest[o.Ticker] = last{date: o.Date, close: o.Close}
		}
		if o.Return == nil {
			continue
		}
		if returns[o.Ticker] == nil {
			returns[o.Ticker] = make(map[time.Time]float64)
		}
		returns[o.Ticker][o.Date] = *o.Return
		dateSet[o.Date] = struct{}{}
	}

	if len(returns) == 0 {
		return nil, nil, fmt.Errorf("no observations with returns: %w", optimization.ErrInsufficientData)
	}

	assets := make([]string, 0, len(returns))
	for a := range returns {
		assets = append(assets, a)
	}
	sort.Strings(assets)

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rows := make([][]float64, len(assets))
	closes := make([]float64, len(assets))
	for i, a := range assets {
		rows[i] = make([]float64, len(dates))
		for j, d := range dates {
			rows[i][j] = returns[a][d] // missing -> 0
		}
		closes[i] = latest[a].close
	}

	m, err := optimization.NewReturnMatrix(assets, rows)
	if err != nil {
		return nil, nil, err
	}
	m.Dates = dates
	return m, closes, nil
}
