package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/auth"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/services"
)

// SOPHandler generates and stores Standard Operating Procedures.
type SOPHandler struct {
	sopService services.SOPService
	logger     *zap.Logger
}

// NewSOPHandler creates a new SOP handler.
func NewSOPHandler(sopService services.SOPService, logger *zap.Logger) *SOPHandler {
	return &SOPHandler{
		sopService: sopService,
		logger:     logger.Named("sop-handler"),
	}
}

// RegisterRoutes registers the SOP handler's routes on the given mux.
func (h *SOPHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/sop"

	mux.HandleFunc("POST "+base+"/generate", authMiddleware.RequireAuth(tenantMiddleware(h.Generate)))
	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(tenantMiddleware(h.List)))
	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(tenantMiddleware(h.Create)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(tenantMiddleware(h.Get)))
	mux.HandleFunc("DELETE "+base+"/{id}", authMiddleware.RequireAuth(tenantMiddleware(h.Delete)))
}

// Generate handles POST /api/sop/generate
// The draft is returned unsaved.
func (h *SOPHandler) Generate(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	var req models.SOPRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	doc, err := h.sopService.Generate(r.Context(), orgID, &req)
	if err != nil {
		writeServiceError(w, h.logger, "generate SOP", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: doc}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/sop?limit=&offset=
func (h *SOPHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	sops, err := h.sopService.List(r.Context(), orgID, queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		writeServiceError(w, h.logger, "list SOPs", err)
		return
	}
	if sops == nil {
		sops = []*models.SavedSOP{}
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: sops}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/sop
func (h *SOPHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	var req services.SaveSOPRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	sop, err := h.sopService.Save(r.Context(), orgID, userID, &req)
	if err != nil {
		writeServiceError(w, h.logger, "save SOP", err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: sop}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/sop/{id}
func (h *SOPHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}

	sop, err := h.sopService.Get(r.Context(), orgID, id)
	if err != nil {
		writeServiceError(w, h.logger, "get SOP", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: sop}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/sop/{id}
func (h *SOPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.sopService.Delete(r.Context(), orgID, userID, id); err != nil {
		writeServiceError(w, h.logger, "delete SOP", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
