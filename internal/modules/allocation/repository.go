// Package allocation persists selected portfolios to the ledger database.
package allocation

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/optimization"
)

// Repository handles allocation ledger operations
// Database: ledger.db (allocations, allocation_lines tables)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new allocation repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "allocation").Logger(),
	}
}

// SaveAllocations writes results and their per-asset lines in one transaction.
// Results without an ID are assigned one.
func (r *Repository) SaveAllocations(ctx context.Context, results []*optimization.AllocationResult) error {
	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		for _, a := range results {
			if a == nil {
				continue
			}
			if err := validateLines(a); err != nil {
				return err
			}
			if a.ID == "" {
				a.ID = uuid.New().String()
			}
			if a.CreatedAt.IsZero() {
				a.CreatedAt = time.Now().UTC()
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO allocations
				(id, run_id, strategy, sample_index, risk, expected_return, sharpe, notional_total, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, a.ID, a.RunID, string(a.Strategy), a.Index, a.Risk, a.Return,
				nullableFloat(a.Sharpe), a.NotionalTotal, a.CreatedAt.Format(time.RFC3339Nano))
			if err != nil {
				return fmt.Errorf("failed to insert allocation %s: %w", a.ID, err)
			}

			for i, ticker := range a.Tickers {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO allocation_lines
					(allocation_id, position, ticker, weight, quantity, price, notional)
					VALUES (?, ?, ?, ?, ?, ?, ?)
				`, a.ID, i, ticker, a.Weights[i], a.Quantities[i], a.Prices[i], a.Notionals[i])
				if err != nil {
					return fmt.Errorf("failed to insert allocation line %s/%s: %w", a.ID, ticker, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Int("count", len(results)).Msg("Saved allocations")
	return nil
}

func validateLines(a *optimization.AllocationResult) error {
	n := len(a.Tickers)
	if len(a.Weights) != n || len(a.Quantities) != n || len(a.Prices) != n || len(a.Notionals) != n {
		return fmt.Errorf("allocation %s has mismatched line lengths", a.ID)
	}
	return nil
}

// List returns the most recent allocations, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]*optimization.AllocationResult, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.query(ctx, `
		SELECT id, run_id, strategy, sample_index, risk, expected_return, sharpe, notional_total, created_at
		FROM allocations
		ORDER BY created_at DESC, strategy ASC
		LIMIT ?
	`, limit)
}

// GetByRun returns the allocations recorded for a run.
func (r *Repository) GetByRun(ctx context.Context, runID string) ([]*optimization.AllocationResult, error) {
	return r.query(ctx, `
		SELECT id, run_id, strategy, sample_index, risk, expected_return, sharpe, notional_total, created_at
		FROM allocations
		WHERE run_id = ?
		ORDER BY strategy ASC
	`, runID)
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]*optimization.AllocationResult, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var out []*optimization.AllocationResult
	for rows.Next() {
		var (
			a        optimization.AllocationResult
			strategy string
			sharpe   sql.NullFloat64
			created  string
		)
		if err := rows.Scan(&a.ID, &a.RunID, &strategy, &a.Index, &a.Risk, &a.Return, &sharpe, &a.NotionalTotal, &created); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		a.Strategy = optimization.Strategy(strategy)
		a.Sharpe = math.NaN()
		if sharpe.Valid {
			a.Sharpe = sharpe.Float64
		}
		if a.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", created, err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocations: %w", err)
	}
	rows.Close()

	for _, a := range out {
		if err := r.loadLines(ctx, a); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repository) loadLines(ctx context.Context, a *optimization.AllocationResult) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ticker, weight, quantity, price, notional
		FROM allocation_lines
		WHERE allocation_id = ?
		ORDER BY position ASC
	`, a.ID)
	if err != nil {
		return fmt.Errorf("failed to query allocation lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ticker                  string
			weight, price, notional float64
			quantity                int64
		)
		if err := rows.Scan(&ticker, &weight, &quantity, &price, &notional); err != nil {
			return fmt.Errorf("failed to scan allocation line: %w", err)
		}
		a.Tickers = append(a.Tickers, ticker)
		a.Weights = append(a.Weights, weight)
		a.Quantities = append(a.Quantities, quantity)
		a.Prices = append(a.Prices, price)
		a.Notionals = append(a.Notionals, notional)
	}
	return rows.Err()
}

// nullableFloat stores non-finite values as NULL.
func nullableFloat(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
