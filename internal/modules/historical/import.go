package historical

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ImportCSV reads rows of date,ticker,close (header required, any column
// order, case-insensitive) and upserts them per ticker.
func (r *PriceRepository) ImportCSV(ctx context.Context, src io.Reader) (*ImportSummary, error) {
	byTicker, err := parseCSV(src)
	if err != nil {
		return nil, err
	}

	tickers := make([]string, 0, len(byTicker))
	for t := range byTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	summary := &ImportSummary{Tickers: make(map[string]int, len(tickers))}
	for _, t := range tickers {
		if err := r.Upsert(ctx, t, byTicker[t]); err != nil {
			return nil, fmt.Errorf("failed to import %s: %w", t, err)
		}
		summary.Rows += len(byTicker[t])
		summary.Tickers[t] = len(byTicker[t])
	}

	r.log.Info().Int("rows", summary.Rows).Int("tickers", len(tickers)).Msg("Imported price history")
	return summary, nil
}

func parseCSV(src io.Reader) (map[string][]DailyPrice, error) {
	reader := csv.NewReader(src)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty csv")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols := map[string]int{"date": -1, "ticker": -1, "close": -1}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, ok := cols[key]; ok {
			cols[key] = i
		}
	}
	for name, idx := range cols {
		if idx < 0 {
			return nil, fmt.Errorf("csv header is missing column %q", name)
		}
	}

	out := make(map[string][]DailyPrice)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		date := strings.TrimSpace(record[cols["date"]])
		if _, err := time.Parse(DateLayout, date); err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q", line, date)
		}
		ticker := strings.TrimSpace(record[cols["ticker"]])
		if ticker == "" {
			return nil, fmt.Errorf("line %d: empty ticker", line)
		}
		closePx, err := strconv.ParseFloat(strings.TrimSpace(record[cols["close"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid close: %w", line, err)
		}

		out[ticker] = append(out[ticker], DailyPrice{Date: date, Close: closePx})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("csv has no data rows")
	}
	return out, nil
}
