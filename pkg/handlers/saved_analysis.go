package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/auth"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/services"
)

// SavedAnalysisListResponse for GET /api/jd/saved
type SavedAnalysisListResponse struct {
	Analyses   []*models.SavedAnalysisSummary `json:"analyses"`
	Pagination models.Pagination              `json:"pagination"`
}

// SavedAnalysisHandler handles saved analyses and their version chains.
// Unfinalized analyses double as task-intelligence drafts.
type SavedAnalysisHandler struct {
	savedService services.SavedAnalysisService
	logger       *zap.Logger
}

// NewSavedAnalysisHandler creates a new saved analysis handler.
func NewSavedAnalysisHandler(savedService services.SavedAnalysisService, logger *zap.Logger) *SavedAnalysisHandler {
	return &SavedAnalysisHandler{
		savedService: savedService,
		logger:       logger.Named("saved-analysis-handler"),
	}
}

// RegisterRoutes registers the saved analysis handler's routes on the given mux.
func (h *SavedAnalysisHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/jd/saved"

	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(tenantMiddleware(h.List)))
	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(tenantMiddleware(h.Create)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(tenantMiddleware(h.Get)))
	mux.HandleFunc("DELETE "+base+"/{id}", authMiddleware.RequireAuth(tenantMiddleware(h.Delete)))
	mux.HandleFunc("POST "+base+"/{id}/finalize", authMiddleware.RequireAuth(tenantMiddleware(h.Finalize)))
	mux.HandleFunc("GET "+base+"/{id}/versions", authMiddleware.RequireAuth(tenantMiddleware(h.Versions)))
}

// List handles GET /api/jd/saved?page=&limit=&finalized=
func (h *SavedAnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	filter := models.SavedAnalysisFilter{
		Page:      queryInt(r, "page", 1),
		Limit:     queryInt(r, "limit", 0),
		Finalized: queryBool(r, "finalized"),
	}
	analyses, pagination, err := h.savedService.List(r.Context(), orgID, filter)
	if err != nil {
		writeServiceError(w, h.logger, "list saved analyses", err)
		return
	}
	if analyses == nil {
		analyses = []*models.SavedAnalysisSummary{}
	}

	response := SavedAnalysisListResponse{Analyses: analyses, Pagination: pagination}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/jd/saved
func (h *SavedAnalysisHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	var req services.SaveAnalysisRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	saved, err := h.savedService.Save(r.Context(), orgID, userID, &req)
	if err != nil {
		writeServiceError(w, h.logger, "save analysis", err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: saved}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/jd/saved/{id}
func (h *SavedAnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}

	saved, err := h.savedService.Get(r.Context(), orgID, id)
	if err != nil {
		writeServiceError(w, h.logger, "get saved analysis", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: saved}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/jd/saved/{id}
func (h *SavedAnalysisHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.savedService.Delete(r.Context(), orgID, userID, id); err != nil {
		writeServiceError(w, h.logger, "delete saved analysis", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Finalize handles POST /api/jd/saved/{id}/finalize
func (h *SavedAnalysisHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}

	saved, err := h.savedService.Finalize(r.Context(), orgID, userID, id)
	if err != nil {
		writeServiceError(w, h.logger, "finalize analysis", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: saved}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Versions handles GET /api/jd/saved/{id}/versions
func (h *SavedAnalysisHandler) Versions(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}

	versions, err := h.savedService.Versions(r.Context(), orgID, id)
	if err != nil {
		writeServiceError(w, h.logger, "list analysis versions", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: versions}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
