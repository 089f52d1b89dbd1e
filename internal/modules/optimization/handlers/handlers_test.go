package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/modules/optimization"
)

type stubRunner struct {
	run    *optimization.RunResult
	err    error
	lastRq optimization.Request
}

func (s *stubRunner) Run(ctx context.Context, req optimization.Request) (*optimization.RunResult, error) {
	s.lastRq = req
	return s.run, s.err
}

func (s *stubRunner) GetRun(ctx context.Context, id string) (*optimization.RunResult, error) {
	if s.run != nil && s.run.ID == id {
		return s.run, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, optimization.ErrRunNotFound
}

func newRouter(runner Runner) *chi.Mux {
	router := chi.NewRouter()
	NewHandler(runner, zerolog.Nop()).RegisterRoutes(router, nil)
	return router
}

func TestHandleRun(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		err            error
		expectedStatus int
	}{
		{"success", `{"tickers":["AAA","BBB"],"notional":1000,"constraints":true,"risk_free":0,"seed":0}`, nil, http.StatusOK},
		{"malformed body", `{"tickers":`, nil, http.StatusBadRequest},
		{"validation error", `{}`, &optimization.ValidationError{Field: "tickers", Reason: "required"}, http.StatusBadRequest},
		{"infeasible", `{"tickers":["AAA"]}`, fmt.Errorf("max_sharpe: %w", optimization.ErrNoFeasiblePortfolio), http.StatusUnprocessableEntity},
		{"no frontier match", `{"tickers":["AAA"]}`, optimization.ErrNoFrontierMatch, http.StatusUnprocessableEntity},
		{"solver failure", `{"tickers":["AAA"]}`, &optimization.SolverError{GridIndex: 3, Err: fmt.Errorf("diverged")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &stubRunner{run: &optimization.RunResult{ID: "run-1"}, err: tt.err}
			if tt.err != nil {
				runner.run = nil
			}

			req := httptest.NewRequest("POST", "/optimization/run", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			newRouter(runner).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			if tt.expectedStatus == http.StatusOK {
				data := response["data"].(map[string]interface{})
				assert.Equal(t, "run-1", data["id"])
				assert.NotNil(t, response["metadata"])
				assert.Equal(t, []string{"AAA", "BBB"}, runner.lastRq.Tickers)
				assert.True(t, runner.lastRq.Constrained)
				require.NotNil(t, runner.lastRq.RiskFreeRate, "explicit zero rate is kept")
				require.NotNil(t, runner.lastRq.Seed, "explicit zero seed is kept")
				assert.Zero(t, *runner.lastRq.RiskFreeRate)
				assert.Zero(t, *runner.lastRq.Seed)
			} else {
				assert.NotEmpty(t, response["error"])
			}
		})
	}
}

func TestHandleGetRun(t *testing.T) {
	runner := &stubRunner{run: &optimization.RunResult{ID: "run-1"}}
	router := newRouter(runner)

	req := httptest.NewRequest("GET", "/optimization/runs/run-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/optimization/runs/other", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterRoutes_RunLimit(t *testing.T) {
	router := chi.NewRouter()
	blocked := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	NewHandler(&stubRunner{}, zerolog.Nop()).RegisterRoutes(router, blocked)

	req := httptest.NewRequest("POST", "/optimization/run", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Reads are not limited
	req = httptest.NewRequest("GET", "/optimization/runs/x", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleRun_NonFiniteSharpe(t *testing.T) {
	// A riskless asset held alone has an infinite Sharpe ratio.
	runner := &stubRunner{run: &optimization.RunResult{
		ID: "run-inf",
		MaxSharpe: &optimization.AllocationResult{
			Strategy: optimization.StrategyMaxSharpe,
			Tickers:  []string{"CASH", "EQ"},
			Weights:  []float64{1, 0},
			Sharpe:   math.Inf(1),
		},
		Frontier: []optimization.FrontierRow{{Mu: 0.01, Sharpe: math.NaN()}},
	}}

	req := httptest.NewRequest("POST", "/optimization/run", strings.NewReader(`{"tickers":["CASH","EQ"],"notional":1000}`))
	w := httptest.NewRecorder()
	newRouter(runner).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Body.Bytes())

	var response struct {
		Data struct {
			ID        string                   `json:"id"`
			MaxSharpe map[string]interface{}   `json:"max_sharpe"`
			Frontier  []map[string]interface{} `json:"frontier"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "run-inf", response.Data.ID)
	assert.Contains(t, response.Data.MaxSharpe, "sharpe")
	assert.Nil(t, response.Data.MaxSharpe["sharpe"])
	assert.Equal(t, []interface{}{"CASH", "EQ"}, response.Data.MaxSharpe["tickers"])
	require.Len(t, response.Data.Frontier, 1)
	assert.Nil(t, response.Data.Frontier[0]["sharpe"])
	assert.Equal(t, 0.01, response.Data.Frontier[0]["mu"])
}

func TestWriteJSON_EncodingFailureIsServerError(t *testing.T) {
	h := NewHandler(&stubRunner{}, zerolog.Nop())
	w := httptest.NewRecorder()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"value": math.Inf(-1)})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEmpty(t, response["error"])
}
