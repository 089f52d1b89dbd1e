package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/modules/risk"
)

type stubSummarizer struct {
	summaries map[string]*risk.Summary
	err       error
}

func (s *stubSummarizer) Summary(ctx context.Context, ticker string) (*risk.Summary, error) {
	if s.err != nil {
		return nil, s.err
	}
	if sum, ok := s.summaries[ticker]; ok {
		return sum, nil
	}
	return nil, fmt.Errorf("%s: %w", ticker, risk.ErrTooFewPrices)
}

func newRouter(s Summarizer) *chi.Mux {
	router := chi.NewRouter()
	NewHandler(s, zerolog.Nop()).RegisterRoutes(router)
	return router
}

func TestHandleGetSummary(t *testing.T) {
	stub := &stubSummarizer{summaries: map[string]*risk.Summary{
		"AAA": {Ticker: "AAA", Observations: 10, MaxDrawdown: 0.05},
	}}

	tests := []struct {
		name           string
		summarizer     *stubSummarizer
		path           string
		expectedStatus int
	}{
		{"known ticker", stub, "/risk/AAA", http.StatusOK},
		{"not enough history", stub, "/risk/ZZZ", http.StatusUnprocessableEntity},
		{"storage failure", &stubSummarizer{err: errors.New("db down")}, "/risk/AAA", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			w := httptest.NewRecorder()
			newRouter(tt.summarizer).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var response map[string]interface{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				data := response["data"].(map[string]interface{})
				assert.Equal(t, "AAA", data["ticker"])
				assert.Equal(t, 0.05, data["max_drawdown"])
			}
		})
	}
}

func TestHandleVaR(t *testing.T) {
	router := newRouter(&stubSummarizer{})

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedMethod string
	}{
		{"parametric", `{"std":0.2,"t":1,"confidence_level":0.95}`, http.StatusOK, "parametric"},
		{"equity", `{"std":0.2,"t":1,"confidence_level":0.95,"betas":[1,2],"exposures":[100,300]}`, http.StatusOK, "equity"},
		{"invalid confidence", `{"std":0.2,"t":1,"confidence_level":1.5}`, http.StatusBadRequest, ""},
		{"mismatched exposures", `{"std":0.2,"t":1,"confidence_level":0.95,"betas":[1]}`, http.StatusBadRequest, ""},
		{"malformed", `{"std":`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/risk/var", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}
			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			data := response["data"].(map[string]interface{})
			assert.Equal(t, tt.expectedMethod, data["method"])
			v := data["var"].(map[string]interface{})
			assert.Greater(t, v["financial_var"].(float64), 0.0)
		})
	}
}
