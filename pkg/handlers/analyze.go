package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/auth"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/services"
)

// RefineRequest for PATCH /api/jd/analyze
type RefineRequest struct {
	AnalysisID uuid.UUID `json:"analysis_id"`
	Feedback   string    `json:"feedback"`
}

// AnalyzeHandler runs the analysis pipeline and streams its progress.
type AnalyzeHandler struct {
	analysisService services.AnalysisService
	logger          *zap.Logger
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(analysisService services.AnalysisService, logger *zap.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		analysisService: analysisService,
		logger:          logger.Named("analyze-handler"),
	}
}

// RegisterRoutes registers the analyze handler's routes on the given mux.
func (h *AnalyzeHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("POST /api/jd/analyze", authMiddleware.RequireAuth(tenantMiddleware(h.Analyze)))
	mux.HandleFunc("PATCH /api/jd/analyze", authMiddleware.RequireAuth(tenantMiddleware(h.Refine)))
}

// Analyze handles POST /api/jd/analyze
// The body is the intake form. Progress is streamed as NDJSON and the last
// line is either {type:"result"} or {type:"error"}.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	var intake models.IntakeForm
	if !decodeBody(w, r, &intake, h.logger) {
		return
	}
	if err := intake.Validate(); err != nil {
		writeServiceError(w, h.logger, "analyze intake", err)
		return
	}

	stream := newNDJSONStream(w, h.logger)
	outcome, err := h.analysisService.Analyze(r.Context(), orgID, &intake, stream.progress)
	if err != nil {
		stream.fail("analyze intake", err)
		return
	}
	stream.result(outcome)
}

// Refine handles PATCH /api/jd/analyze
// The refined result is saved as the next version and streamed like Analyze.
func (h *AnalyzeHandler) Refine(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	var req RefineRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	verr := &models.ValidationError{}
	if req.AnalysisID == uuid.Nil {
		verr.Add("analysis_id", "is required")
	}
	if strings.TrimSpace(req.Feedback) == "" {
		verr.Add("feedback", "is required")
	}
	if verr.HasErrors() {
		writeServiceError(w, h.logger, "refine analysis", verr)
		return
	}

	stream := newNDJSONStream(w, h.logger)
	saved, err := h.analysisService.Refine(r.Context(), orgID, userID, req.AnalysisID, req.Feedback, stream.progress)
	if err != nil {
		stream.fail("refine analysis", err)
		return
	}
	stream.result(saved)
}
