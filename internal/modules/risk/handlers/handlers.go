// Package handlers provides HTTP handlers for risk metrics operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/modules/risk"
)

// Summarizer computes per-asset risk summaries.
type Summarizer interface {
	Summary(ctx context.Context, ticker string) (*risk.Summary, error)
}

// Handler handles risk metrics HTTP requests
type Handler struct {
	service Summarizer
	log     zerolog.Logger
}

// NewHandler creates a new risk metrics handler
func NewHandler(service Summarizer, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "risk").Logger(),
	}
}

// varRequest is the body of POST /api/risk/var. When betas and exposures
// are present the equity VaR is returned.
type varRequest struct {
	Std             float64   `json:"std"`
	T               float64   `json:"t"`
	ConfidenceLevel float64   `json:"confidence_level"`
	Mu              float64   `json:"mu"`
	H               float64   `json:"h"`
	Rho             float64   `json:"rho"`
	Value           float64   `json:"value"`
	Betas           []float64 `json:"betas,omitempty"`
	Exposures       []float64 `json:"exposures,omitempty"`
}

// HandleGetSummary handles GET /api/risk/{ticker}
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	summary, err := h.service.Summary(r.Context(), ticker)
	if errors.Is(err, risk.ErrTooFewPrices) {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"error": err.Error()})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to compute risk summary")
		http.Error(w, "Failed to compute risk summary", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": summary,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleVaR handles POST /api/risk/var
func (h *Handler) HandleVaR(w http.ResponseWriter, r *http.Request) {
	var req varRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "Invalid request body"})
		return
	}

	in := risk.ParametricVaRInput{
		Std:             req.Std,
		T:               req.T,
		ConfidenceLevel: req.ConfidenceLevel,
		Mu:              req.Mu,
		H:               req.H,
		Rho:             req.Rho,
		Value:           req.Value,
	}

	method := "parametric"
	var (
		res risk.VaRResult
		err error
	)
	if len(req.Betas) > 0 || len(req.Exposures) > 0 {
		method = "equity"
		res, err = risk.EquityVaR(in, req.Betas, req.Exposures)
	} else {
		res, err = risk.ParametricVaR(in)
	}
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"method": method,
			"var":    res,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response; encoding failures answer 500
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		h.log.Error().Err(err).Int("status", status).Msg("Failed to encode JSON response")
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Failed to encode response"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
