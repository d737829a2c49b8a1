package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/esgrade/internal/domain"
	"github.com/aristath/esgrade/internal/modules/pipeline"
	"github.com/aristath/esgrade/internal/queue"
)

// evaluateRequest is the optional body for evaluate and batch endpoints.
type evaluateRequest struct {
	Horizon         string   `json:"horizon"`
	ScopeAdjustment *float64 `json:"scope_adjustment"`
	SkipForecast    bool     `json:"skip_forecast"`
}

func (req evaluateRequest) options() pipeline.Options {
	return pipeline.Options{
		Horizon:         req.Horizon,
		ScopeAdjustment: req.ScopeAdjustment,
		SkipForecast:    req.SkipForecast,
	}
}

// decodeBody fills dst from the request body. An empty body is fine: every
// field has a server-side default.
func decodeBody(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.companies.All()
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, catalog)
}

func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	company, err := s.companies.Get(companyID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if company == nil {
		s.writeError(w, http.StatusNotFound, "company not found")
		return
	}

	suppliers, err := s.companies.SuppliersFor(companyID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"company":   company,
		"suppliers": suppliers,
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	var req evaluateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := s.pipeline.EvaluateCompany(r.Context(), companyID, req.options())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLatestEvaluation(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	eval, err := s.ratings.Latest(companyID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if eval == nil {
		s.writeError(w, http.StatusNotFound, "no evaluation recorded for company")
		return
	}
	s.writeJSON(w, http.StatusOK, eval)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")
	horizon := r.URL.Query().Get("horizon")

	forecast, err := s.pipeline.Forecast(r.Context(), companyID, horizon)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, forecast)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	matches, err := s.pipeline.Recommendations(companyID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	snapshots, err := s.snapshots.For(companyID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshots)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.products.All()
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, catalog)
}

func (s *Server) handleBenchmarks(w http.ResponseWriter, r *http.Request) {
	industry := chi.URLParam(r, "industry")

	benchmarks, err := s.benchmarks.ByIndustry(industry)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, benchmarks)
}

func (s *Server) handleStartBatch(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	runID, err := s.runner.Launch(req.options())
	switch {
	case errors.Is(err, queue.ErrRunInProgress):
		s.writeError(w, http.StatusConflict, "a batch evaluation is already running")
		return
	case errors.Is(err, queue.ErrStopped):
		s.writeError(w, http.StatusServiceUnavailable, "service is shutting down")
		return
	case err != nil:
		s.respondError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"state":  string(queue.RunStateRunning),
	})
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.runner.Runs())
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	status, ok := s.runner.Status(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown run id")
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

// respondError maps domain errors onto HTTP status codes.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsNotFound(err):
		s.writeError(w, http.StatusNotFound, err.Error())
	case domain.IsValidation(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsInsufficientHistory(err):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log.Error().Err(err).Msg("Request failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error envelope.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
