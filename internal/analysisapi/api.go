// Package analysisapi exposes the analysis pipeline over HTTP. Thin
// request/response plumbing only; all business logic lives in the analysis
// package.
package analysisapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/verdict/internal/alert"
	"github.com/linnemanlabs/verdict/internal/analysis"
	"github.com/linnemanlabs/verdict/internal/classify"
	"github.com/linnemanlabs/verdict/internal/feature"
)

// AnalysisService defines the business operations the API needs.
type AnalysisService interface {
	Analyze(ctx context.Context, alertID string) (*analysis.Complete, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    AnalysisService
	store  analysis.Store
}

// New creates a new API handler.
func New(logger log.Logger, svc AnalysisService, store analysis.Store) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("analysis service is required"))
	}
	if store == nil {
		panic(xerrors.New("analysis store is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
		store:  store,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyses", a.handleAnalyze)
		r.Get("/analyses/{id}", a.handleGetAnalysis)
		r.Get("/alerts/{alertID}/analysis", a.handleGetAlertAnalysis)
	})
}

type analyzeRequest struct {
	AlertID string `json:"alert_id"`
}

func (a *API) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AlertID == "" {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("verdict.alert.id", req.AlertID))

	result, err := a.svc.Analyze(r.Context(), req.AlertID)
	if err != nil {
		a.writeAnalyzeError(w, r, req.AlertID, err)
		return
	}

	span.SetAttributes(attribute.String("verdict.analysis.verdict", result.Verdict))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(result)
}

func (a *API) writeAnalyzeError(w http.ResponseWriter, r *http.Request, alertID string, err error) {
	switch {
	case errors.Is(err, alert.ErrNotFound):
		http.Error(w, `{"error":"alert not found"}`, http.StatusNotFound)
	case errors.Is(err, feature.ErrNotFitted), errors.Is(err, classify.ErrModelUnavailable):
		a.logger.Error(r.Context(), err, "pipeline not ready", "alert_id", alertID)
		http.Error(w, `{"error":"pipeline not ready"}`, http.StatusServiceUnavailable)
	default:
		a.logger.Error(r.Context(), err, "analysis failed", "alert_id", alertID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func (a *API) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("verdict.analysis.id", id))

	result, ok, err := a.store.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get analysis", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (a *API) handleGetAlertAnalysis(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "alertID")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("verdict.alert.id", alertID))

	result, ok, err := a.store.GetByAlertID(r.Context(), alertID)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get analysis for alert", "alert_id", alertID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}
