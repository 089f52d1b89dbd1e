package testing

import (
	"testing"
	"time"

	"github.com/aristath/frontier/internal/database"
)

// FixtureStart is the first trading day used by price fixtures.
var FixtureStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// PriceFixtures returns daily closes for three assets with distinct volatility.
func PriceFixtures() map[string][]float64 {
	return map[string][]float64{
		"AAA": {100, 101, 103, 102, 104, 106, 105, 107, 108, 110},
		"BBB": {50, 50.5, 50.2, 50.8, 51, 50.9, 51.3, 51.6, 51.4, 51.9},
		"CCC": {20, 21, 19.5, 20.5, 22, 21, 22.5, 23, 21.5, 23.5},
	}
}

// SeedPrices inserts consecutive daily closes for ticker starting at start.
// pct_change is filled from the previous close; the first row has none.
func SeedPrices(t *testing.T, db *database.DB, ticker string, start time.Time, closes []float64) {
	t.Helper()

	for i, c := range closes {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		var pct interface{}
		if i > 0 {
			pct = c/closes[i-1] - 1
		}
		_, err := db.Conn().Exec(
			`INSERT INTO daily_prices (ticker, date, close, pct_change) VALUES (?, ?, ?, ?)`,
			ticker, date, c, pct,
		)
		if err != nil {
			t.Fatalf("Failed to seed price %s %s: %v", ticker, date, err)
		}
	}
}

// SeedPriceFixtures seeds every series from PriceFixtures.
func SeedPriceFixtures(t *testing.T, db *database.DB) {
	t.Helper()
	for ticker, closes := range PriceFixtures() {
		SeedPrices(t, db, ticker, FixtureStart, closes)
	}
}
