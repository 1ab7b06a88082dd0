package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/auth"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/render"
	"github.com/vaforge/vaforge-engine/pkg/services"
)

// DownloadRequest for POST /api/jd/download
// Either AnalysisID or Result must be set; AnalysisID wins.
type DownloadRequest struct {
	AnalysisID *uuid.UUID             `json:"analysis_id,omitempty"`
	Intake     *models.IntakeForm     `json:"intake,omitempty"`
	Result     *models.PipelineResult `json:"result,omitempty"`
}

// DownloadHandler renders analyses as PDF reports.
type DownloadHandler struct {
	savedService services.SavedAnalysisService
	now          func() time.Time
	logger       *zap.Logger
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(savedService services.SavedAnalysisService, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		savedService: savedService,
		now:          time.Now,
		logger:       logger.Named("download-handler"),
	}
}

// RegisterRoutes registers the download handler's routes on the given mux.
func (h *DownloadHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("POST /api/jd/download", authMiddleware.RequireAuth(tenantMiddleware(h.Download)))
}

// Download handles POST /api/jd/download
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	var req DownloadRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	intake, result := req.Intake, req.Result
	if req.AnalysisID != nil {
		saved, err := h.savedService.Get(r.Context(), orgID, *req.AnalysisID)
		if err != nil {
			writeServiceError(w, h.logger, "load analysis for download", err)
			return
		}
		intake, result = &saved.Intake, &saved.Result
	}
	if result == nil {
		verr := &models.ValidationError{}
		verr.Add("result", "result or analysis_id is required")
		writeServiceError(w, h.logger, "render report", verr)
		return
	}

	report := render.BuildReport(intake, result, h.now())

	// Render fully before writing so a failure can still be answered as JSON.
	var buf bytes.Buffer
	if err := render.RenderPDF(&buf, report); err != nil {
		h.logger.Error("Failed to render PDF", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "render_failed", "Failed to render report"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportFilename(report.Title)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Debug("Failed to write PDF", zap.Error(err))
	}
}

// reportFilename turns a report title into a safe ASCII file name.
func reportFilename(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	name := strings.TrimSuffix(b.String(), "-")
	if len(name) > 80 {
		name = strings.TrimSuffix(name[:80], "-")
	}
	if name == "" {
		name = "engagement-report"
	}
	return name + ".pdf"
}
