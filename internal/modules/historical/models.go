// Package historical stores daily price history and turns it into return matrices.
package historical

import "time"

// DateLayout is the storage and CSV format of trading dates.
const DateLayout = "2006-01-02"

// DailyPrice is one stored close.
type DailyPrice struct {
	Date      string   `json:"date"`
	Close     float64  `json:"close"`
	PctChange *float64 `json:"pct_change,omitempty"`
}

// Observation is one (date, asset) cell of the long-format price table.
// Return is nil when the period-over-period change is unknown, as for the
// first row of every series.
type Observation struct {
	Ticker string
	Date   time.Time
	Close  float64
	Return *float64
}

// ImportSummary reports what a CSV import wrote.
type ImportSummary struct {
	Rows    int            `json:"rows"`
	Tickers map[string]int `json:"tickers"`
}
