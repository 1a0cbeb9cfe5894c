package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/enrichment"
	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/store"
	"github.com/sells-group/competitor-intel/internal/worker"
)

type handler struct {
	deps Deps
}

// createRunRequest is the POST /discovery/runs body: the caller resolves
// project/organization/tier lookups upstream and hands them over verbatim.
type createRunRequest struct {
	ProjectID   string   `json:"projectId"`
	OrgID       string   `json:"organizationId"`
	UserID      string   `json:"userId"`
	ProjectName string   `json:"projectName"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Regions     []string `json:"regions"`
	Industries  []string `json:"industries"`
	Tier        string   `json:"tier"`
}

type runResponse struct {
	ID           string  `json:"id"`
	ProjectID    string  `json:"projectId"`
	Status       string  `json:"status"`
	Keywords     []string `json:"keywords"`
	Regions      []string `json:"regions"`
	ResultsCount int     `json:"resultsCount"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
	CreatedAt    string  `json:"createdAt"`
	CompletedAt  *string `json:"completedAt,omitempty"`
}

func toRunResponse(r *model.DiscoveryRun) runResponse {
	resp := runResponse{
		ID:           r.ID,
		ProjectID:    r.ProjectID,
		Status:       string(r.Status),
		Keywords:     r.Keywords,
		Regions:      r.Regions,
		ResultsCount: r.ResultsCount,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt.Format(timeFormat),
	}
	if r.CompletedAt != nil {
		s := r.CompletedAt.Format(timeFormat)
		resp.CompletedAt = &s
	}
	return resp
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

// createRun validates the request, creates the run row in pending status,
// and enqueues the discovery workflow. A free-tier caller is rejected with
// 402: discovery runs are a paid feature.
func (h *handler) createRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProjectID == "" || req.OrgID == "" {
		writeError(w, http.StatusBadRequest, "projectId and organizationId are required")
		return
	}
	if model.SubscriptionTier(req.Tier) == model.TierFree {
		writeError(w, http.StatusPaymentRequired, "discovery runs require a trial or premium subscription")
		return
	}

	run, err := h.deps.Store.CreateRun(r.Context(), req.ProjectID, req.UserID, req.Keywords, req.Regions)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	dctx := model.DiscoveryContext{
		RunID:       run.ID,
		ProjectID:   req.ProjectID,
		OrgID:       req.OrgID,
		UserID:      req.UserID,
		ProjectName: req.ProjectName,
		Description: req.Description,
		Keywords:    req.Keywords,
		Regions:     req.Regions,
		Industries:  req.Industries,
		Tier:        model.SubscriptionTier(req.Tier),
	}
	if h.deps.Temporal != nil {
		if _, err := worker.EnqueueDiscoveryRun(r.Context(), h.deps.Temporal, dctx, h.deps.Worker); err != nil {
			zap.L().Error("httpapi: enqueue discovery run failed", zap.String("run_id", run.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to enqueue discovery run")
			return
		}
	}

	writeJSON(w, http.StatusCreated, toRunResponse(run))
}

func (h *handler) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := h.deps.Store.GetRun(r.Context(), runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run))
}

// listRuns returns the latest 20 runs for a project, newest first.
func (h *handler) listRuns(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "projectId is required")
		return
	}
	runs, err := h.deps.Store.ListRuns(r.Context(), projectID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if len(runs) > 20 {
		runs = runs[:20]
	}
	out := make([]runResponse, 0, len(runs))
	for i := range runs {
		out = append(out, toRunResponse(&runs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type competitorResponse struct {
	ID               string                     `json:"id"`
	OrganizationID   string                     `json:"organizationId"`
	SearchRunID      string                     `json:"searchRunId"`
	Name             string                     `json:"name"`
	Website          string                     `json:"website"`
	Description      string                     `json:"description"`
	Industry         string                     `json:"industry"`
	Country          string                     `json:"country"`
	Score            int                        `json:"score"`
	Enriched         model.EnrichedCompetitor   `json:"enriched"`
	ValidationStatus string                     `json:"validationStatus"`
	ValidatedBy      string                     `json:"validatedBy,omitempty"`
	CreatedAt        string                     `json:"createdAt"`
}

func toCompetitorResponse(c *model.Competitor) competitorResponse {
	return competitorResponse{
		ID:               c.ID,
		OrganizationID:   c.OrganizationID,
		SearchRunID:      c.SearchRunID,
		Name:             c.Name,
		Website:          c.Website,
		Description:      c.Description,
		Industry:         c.Industry,
		Country:          c.Country,
		Score:            c.Score,
		Enriched:         c.Enriched,
		ValidationStatus: string(c.ValidationStatus),
		ValidatedBy:      c.ValidatedBy,
		CreatedAt:        c.CreatedAt.Format(timeFormat),
	}
}

func (h *handler) listCompetitors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orgID := q.Get("organizationId")
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "organizationId is required")
		return
	}

	filter := store.CompetitorFilter{
		OrganizationID:   orgID,
		SearchRunID:      q.Get("searchRunId"),
		Region:           q.Get("region"),
		Country:          q.Get("country"),
		Industry:         q.Get("industry"),
		ValidationStatus: model.ValidationStatus(q.Get("validation_status")),
	}

	competitors, err := h.deps.Store.ListCompetitors(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]competitorResponse, 0, len(competitors))
	for i := range competitors {
		out = append(out, toCompetitorResponse(&competitors[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getCompetitor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "competitorID")
	c, err := h.deps.Store.FindCompetitor(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompetitorResponse(c))
}

type validateRequest struct {
	Status      string `json:"status"`
	ValidatorID string `json:"validatorId"`
}

func (h *handler) validateCompetitor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "competitorID")
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status := model.ValidationStatus(req.Status)
	if status != model.ValidationApproved && status != model.ValidationRejected {
		writeError(w, http.StatusBadRequest, "status must be approved or rejected")
		return
	}

	if err := h.deps.Store.UpdateCompetitorValidation(r.Context(), id, status, req.ValidatorID); err != nil {
		writeStoreError(w, err)
		return
	}

	c, err := h.deps.Store.FindCompetitor(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompetitorResponse(c))
}

// enrichCompetitor runs the enrichment engine synchronously with the full
// depth options: social media probing, AI analysis, and a two-level crawl.
func (h *handler) enrichCompetitor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "competitorID")
	c, err := h.deps.Store.FindCompetitor(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if c.Website == "" {
		writeError(w, http.StatusUnprocessableEntity, "competitor has no website to enrich")
		return
	}
	if h.deps.Enricher == nil {
		writeError(w, http.StatusServiceUnavailable, "enrichment is not configured")
		return
	}

	initial := &model.BasicCompetitor{
		Name:        c.Name,
		Website:     c.Website,
		Description: c.Description,
		Industry:    c.Industry,
		Country:     c.Country,
	}
	enriched, err := h.deps.Enricher.Enrich(r.Context(), c.Website, initial, enrichment.Options{
		IncludeSocialMedia: true,
		IncludeAIAnalysis:  true,
		CrawlDepth:         2,
	})
	if err != nil {
		zap.L().Error("httpapi: enrichment failed", zap.String("competitor_id", id), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, "enrichment failed: "+err.Error())
		return
	}

	if err := h.deps.Store.UpdateCompetitorEnrichment(r.Context(), id, model.CompetitorPatch{Enriched: enriched}); err != nil {
		writeStoreError(w, err)
		return
	}

	c, err = h.deps.Store.FindCompetitor(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompetitorResponse(c))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeStoreError maps a kinded domain error to the HTTP status the
// external interface promises.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case model.IsKind(err, model.KindNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case model.IsKind(err, model.KindConflict):
		writeError(w, http.StatusConflict, err.Error())
	case model.IsKind(err, model.KindValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
