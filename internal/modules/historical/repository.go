package historical

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/optimization"
)

// PriceRepository provides access to the daily price history.
// It implements optimization.MarketData.
type PriceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("repo", "prices").Logger(),
	}
}

// Upsert writes closes for ticker and recomputes its period returns.
func (r *PriceRepository) Upsert(ctx context.Context, ticker string, prices []DailyPrice) error {
	if ticker == "" {
		return fmt.Errorf("ticker is required")
	}

	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO daily_prices (ticker, date, close)
			VALUES (?, ?, ?)
			ON CONFLICT(ticker, date) DO UPDATE SET close = excluded.close
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, p := range prices {
			if _, err := time.Parse(DateLayout, p.Date); err != nil {
				return fmt.Errorf("invalid date %q for %s: %w", p.Date, ticker, err)
			}
			if !(p.Close > 0) {
				return fmt.Errorf("close for %s on %s must be positive", ticker, p.Date)
			}
			if _, err := stmt.ExecContext(ctx, ticker, p.Date, p.Close); err != nil {
				return fmt.Errorf("failed to insert price for %s: %w", p.Date, err)
			}
		}

		return recomputeReturns(ctx, tx, ticker)
	})
	if err != nil {
		return err
	}

	r.log.Debug().Str("ticker", ticker).Int("count", len(prices)).Msg("Upserted daily prices")
	return nil
}

// recomputeReturns fills pct_change from the previous stored close.
func recomputeReturns(ctx context.Context, tx *sql.Tx, ticker string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE daily_prices
		SET pct_change = (
			SELECT daily_prices.close / prev.close - 1
			FROM daily_prices AS prev
			WHERE prev.ticker = daily_prices.ticker AND prev.date < daily_prices.date
			ORDER BY prev.date DESC
			LIMIT 1
		)
		WHERE ticker = ?
	`, ticker)
	if err != nil {
		return fmt.Errorf("failed to recompute returns for %s: %w", ticker, err)
	}
	return nil
}

// Series returns up to limit most recent closes for ticker in ascending date
// order. A non-positive limit returns the full history.
func (r *PriceRepository) Series(ctx context.Context, ticker string, limit int) ([]DailyPrice, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, close, pct_change FROM (
			SELECT date, close, pct_change
			FROM daily_prices
			WHERE ticker = ?
			ORDER BY date DESC
			LIMIT ?
		) ORDER BY date ASC
	`, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		var pct sql.NullFloat64
		if err := rows.Scan(&p.Date, &p.Close, &pct); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		if pct.Valid {
			v := pct.Float64
			p.PctChange = &v
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}
	return prices, nil
}

// Closes returns the close series for ticker in ascending date order.
func (r *PriceRepository) Closes(ctx context.Context, ticker string, limit int) ([]float64, error) {
	prices, err := r.Series(ctx, ticker, limit)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(prices))
	for i, p := range prices {
		out[i] = p.Close
	}
	return out, nil
}

// Tickers lists every ticker with stored history.
func (r *PriceRepository) Tickers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT ticker FROM daily_prices ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Observations loads the long-format table for the given tickers.
func (r *PriceRepository) Observations(ctx context.Context, tickers []string) ([]Observation, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tickers)), ",")
	args := make([]interface{}, len(tickers))
	for i, t := range tickers {
		args[i] = t
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT ticker, date, close, pct_change
		FROM daily_prices
		WHERE ticker IN (`+placeholders+`)
		ORDER BY date ASC, ticker ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var obs []Observation
	for rows.Next() {
		var (
			o    Observation
			date string
			pct  sql.NullFloat64
		)
		if err := rows.Scan(&o.Ticker, &date, &o.Close, &pct); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		if o.Date, err = time.Parse(DateLayout, date); err != nil {
			return nil, fmt.Errorf("invalid stored date %q: %w", date, err)
		}
		if pct.Valid {
			v := pct.Float64
			o.Return = &v
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observations: %w", err)
	}
	return obs, nil
}

// ReturnMatrix pivots the stored history of tickers into a return matrix.
// Every requested ticker must have at least one return.
func (r *PriceRepository) ReturnMatrix(ctx context.Context, tickers []string) (*optimization.ReturnMatrix, error) {
	obs, err := r.Observations(ctx, tickers)
	if err != nil {
		return nil, err
	}
	m, _, err := Pivot(obs)
	if err != nil {
		return nil, err
	}
	if missing := missingTickers(tickers, m.Assets); len(missing) > 0 {
		return nil, fmt.Errorf("no return history for %s: %w", strings.Join(missing, ", "), optimization.ErrInsufficientData)
	}
	return m, nil
}

// LatestCloses returns the most recent close of each ticker, in the given order.
func (r *PriceRepository) LatestCloses(ctx context.Context, tickers []string) ([]float64, error) {
	out := make([]float64, len(tickers))
	for i, t := range tickers {
		err := r.db.QueryRowContext(ctx, `
			SELECT close FROM daily_prices
			WHERE ticker = ?
			ORDER BY date DESC
			LIMIT 1
		`, t).Scan(&out[i])
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no close for %s: %w", t, optimization.ErrInsufficientData)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get latest close for %s: %w", t, err)
		}
	}
	return out, nil
}

func missingTickers(requested, present []string) []string {
	have := make(map[string]bool, len(present))
	for _, p := range present {
		have[p] = true
	}
	var missing []string
	for _, t := range requested {
		if !have[t] {
			missing = append(missing, t)
		}
	}
	return missing
}
