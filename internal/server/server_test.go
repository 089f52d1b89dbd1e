package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/historical"
	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/internal/scheduler"
	testingpkg "github.com/aristath/frontier/internal/testing"
)

type stubRunner struct {
	runs int
}

func (s *stubRunner) Run(context.Context, optimization.Request) (*optimization.RunResult, error) {
	s.runs++
	return &optimization.RunResult{ID: "run-1"}, nil
}

func (s *stubRunner) GetRun(context.Context, string) (*optimization.RunResult, error) {
	return nil, optimization.ErrRunNotFound
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := New(Config{Log: zerolog.Nop(), DevMode: true})

	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestServer_SystemStatus(t *testing.T) {
	history, cleanup := testingpkg.NewTestDB(t, "history")
	defer cleanup()

	jobs := func() []scheduler.JobStatus {
		return []scheduler.JobStatus{{Name: "daily_maintenance", Schedule: "0 0 2 * * *", Runs: 3}}
	}
	s := New(Config{Log: zerolog.Nop(), DevMode: true, Workers: 4, Databases: []*database.DB{history}, Jobs: jobs})
	s.systemHandlers.stats = func() (float64, float64) { return 12.5, 40 }

	rec := do(t, s.Handler(), http.MethodGet, "/api/system/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 4, resp.Workers)
	assert.Equal(t, 12.5, resp.CPUPercent)
	assert.Equal(t, 40.0, resp.RAMPercent)
	require.Len(t, resp.Databases, 1)
	assert.Equal(t, "history", resp.Databases[0].Name)
	assert.Positive(t, resp.Databases[0].PageSize)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "daily_maintenance", resp.Jobs[0].Name)
	assert.Equal(t, int64(3), resp.Jobs[0].Runs)
}

func TestServer_SystemStatusDegraded(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	cleanup()

	s := New(Config{Log: zerolog.Nop(), DevMode: true, Databases: []*database.DB{db}})
	s.systemHandlers.stats = func() (float64, float64) { return 0, 0 }

	rec := do(t, s.Handler(), http.MethodGet, "/api/system/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Contains(t, resp.Errors, "ledger")
	assert.Empty(t, resp.Databases)
}

func TestServer_MountsConfiguredModules(t *testing.T) {
	history, cleanup := testingpkg.NewTestDB(t, "history")
	defer cleanup()
	testingpkg.SeedPriceFixtures(t, history)

	s := New(Config{
		Log:       zerolog.Nop(),
		DevMode:   true,
		Optimizer: &stubRunner{},
		Prices:    historical.NewPriceRepository(history.Conn(), zerolog.Nop()),
	})

	rec := do(t, s.Handler(), http.MethodGet, "/api/history/AAA", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s.Handler(), http.MethodGet, "/api/optimization/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Unconfigured modules are not routed.
	rec = do(t, s.Handler(), http.MethodGet, "/api/allocations", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, s.Handler(), http.MethodGet, "/api/risk/AAA", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RunRateLimit(t *testing.T) {
	runner := &stubRunner{}
	s := New(Config{
		Log:       zerolog.Nop(),
		DevMode:   true,
		Optimizer: runner,
		RunRate:   0.001,
		RunBurst:  1,
	})

	body := `{"tickers":["AAA"],"notional":1000}`
	rec := do(t, s.Handler(), http.MethodPost, "/api/optimization/run", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s.Handler(), http.MethodPost, "/api/optimization/run", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 1, runner.runs)

	// Reads are not throttled.
	for i := 0; i < 3; i++ {
		rec = do(t, s.Handler(), http.MethodGet, "/api/optimization/runs/x", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	s := New(Config{Log: zerolog.Nop(), DevMode: true, Optimizer: &stubRunner{}})

	req := httptest.NewRequest(http.MethodOptions, "/api/optimization/run", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
