package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/scheduler"
)

// SystemStatusResponse represents the system status
type SystemStatusResponse struct {
	Status        string                `json:"status"` // "healthy" or "degraded"
	UptimeSeconds int64                 `json:"uptime_seconds"`
	Workers       int                   `json:"workers"`
	NumCPU        int                   `json:"num_cpu"`
	Goroutines    int                   `json:"goroutines"`
	CPUPercent    float64               `json:"cpu_percent"`
	RAMPercent    float64               `json:"ram_percent"`
	Databases     []database.Stats      `json:"databases"`
	Jobs          []scheduler.JobStatus `json:"jobs,omitempty"`
	Errors        map[string]string     `json:"errors,omitempty"`
}

// SystemHandlers serves host and database status
type SystemHandlers struct {
	databases []*database.DB
	workers   int
	jobs      func() []scheduler.JobStatus
	startedAt time.Time
	stats     func() (float64, float64)
	log       zerolog.Logger
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(databases []*database.DB, workers int, jobs func() []scheduler.JobStatus, log zerolog.Logger) *SystemHandlers {
	h := &SystemHandlers{
		databases: databases,
		workers:   workers,
		jobs:      jobs,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
	h.stats = h.getSystemStats
	return h
}

// HandleSystemStatus reports CPU, memory and database state
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.stats()

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Workers:       h.workers,
		NumCPU:        runtime.NumCPU(),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		Databases:     make([]database.Stats, 0, len(h.databases)),
	}

	for _, db := range h.databases {
		if err := db.HealthCheck(r.Context()); err != nil {
			response.Status = "degraded"
			if response.Errors == nil {
				response.Errors = make(map[string]string)
			}
			response.Errors[db.Name()] = err.Error()
			continue
		}
		stats, err := db.GetStats(r.Context())
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			continue
		}
		response.Databases = append(response.Databases, *stats)
	}

	if h.jobs != nil {
		response.Jobs = h.jobs()
	}

	writeJSON(w, http.StatusOK, response, h.log)
}

// getSystemStats returns CPU and RAM usage percentages. The CPU sample is
// kept short so the endpoint stays responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response; encoding failures answer 500
func writeJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	body, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Int("status", status).Msg("Failed to encode JSON response")
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Failed to encode response"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
