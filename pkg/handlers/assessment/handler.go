package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/de-tools/compliance-atlas/pkg/adapters"
	"github.com/de-tools/compliance-atlas/pkg/models/api"
	svc "github.com/de-tools/compliance-atlas/pkg/services/assessment"
	assessmentstore "github.com/de-tools/compliance-atlas/pkg/store/duckdb/assessment"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/finding"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/history"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type Handler struct {
	dispatcher  *svc.Dispatcher
	assessments assessmentstore.Store
	findings    finding.Store
	history     history.Store
}

func NewHandler(
	dispatcher *svc.Dispatcher,
	assessments assessmentstore.Store,
	findings finding.Store,
	historyStore history.Store,
) *Handler {
	return &Handler{
		dispatcher:  dispatcher,
		assessments: assessments,
		findings:    findings,
		history:     historyStore,
	}
}

// StartAssessment accepts the job and returns 202 immediately; the
// assessment completes asynchronously.
func (h *Handler) StartAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	var req api.StartAssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.dispatcher.Dispatch(ctx, req.ConnectionID, req.Module)
	if err != nil {
		if errors.Is(err, svc.ErrUnknownModule) ||
			errors.Is(err, svc.ErrConnectionNotFound) ||
			errors.Is(err, svc.ErrNoSubscriptions) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error().Err(err).Msg("failed to dispatch assessment")
		writeError(w, http.StatusInternalServerError, "failed to start assessment")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	err = json.NewEncoder(w).Encode(api.StartAssessmentResponse{
		AssessmentID: a.ID,
		Status:       string(a.Status),
		TotalUnits:   a.TotalUnits,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode start response")
	}
}

func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	id := chi.URLParam(r, "assessment")

	a, err := h.assessments.Get(ctx, id)
	if err != nil {
		logger.Error().Err(err).Str("assessment_id", id).Msg("failed to load assessment")
		writeError(w, http.StatusInternalServerError, "failed to load assessment")
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "assessment not found")
		return
	}

	response := adapters.MapAssessmentDomainToApi(adapters.MapAssessmentStoreToDomain(a))

	results, err := h.assessments.ListModuleResults(ctx, id)
	if err != nil {
		logger.Error().Err(err).Str("assessment_id", id).Msg("failed to load module results")
		writeError(w, http.StatusInternalServerError, "failed to load module results")
		return
	}
	for _, result := range results {
		response.ModuleResults = append(response.ModuleResults, adapters.MapModuleResultStoreToApi(result))
	}

	writeJSON(ctx, w, response)
}

func (h *Handler) ListFindings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	id := chi.URLParam(r, "assessment")

	findings, err := h.findings.ListByAssessment(ctx, id)
	if err != nil {
		logger.Error().Err(err).Str("assessment_id", id).Msg("failed to load findings")
		writeError(w, http.StatusInternalServerError, "failed to load findings")
		return
	}

	response := make([]api.Finding, 0, len(findings))
	for _, f := range findings {
		response = append(response, adapters.MapFindingStoreToApi(f))
	}
	writeJSON(ctx, w, response)
}

func (h *Handler) ListCustomerFindings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	customerID := chi.URLParam(r, "customer")
	module := r.URL.Query().Get("module")

	if module == "" {
		writeError(w, http.StatusBadRequest, "module query parameter is required")
		return
	}

	findings, err := h.history.List(ctx, customerID, module)
	if err != nil {
		logger.Error().Err(err).Str("customer_id", customerID).Msg("failed to load customer findings")
		writeError(w, http.StatusInternalServerError, "failed to load customer findings")
		return
	}

	response := make([]api.CustomerFinding, 0, len(findings))
	for _, f := range findings {
		response = append(response, adapters.MapCustomerFindingStoreToApi(f))
	}
	writeJSON(ctx, w, response)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.Error{Error: message})
}
