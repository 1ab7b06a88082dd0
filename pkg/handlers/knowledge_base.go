package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/auth"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/services"
)

// LearningEventListResponse for GET /api/knowledge-base/events
type LearningEventListResponse struct {
	Events []*models.LearningEvent `json:"events"`
	Total  int                     `json:"total"`
}

// KnowledgeBaseHandler exposes the organization knowledge base and the
// learning events that feed it.
type KnowledgeBaseHandler struct {
	knowledgeService services.KnowledgeBaseService
	learningService  services.LearningService
	logger           *zap.Logger
}

// NewKnowledgeBaseHandler creates a new knowledge base handler.
func NewKnowledgeBaseHandler(
	knowledgeService services.KnowledgeBaseService,
	learningService services.LearningService,
	logger *zap.Logger,
) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{
		knowledgeService: knowledgeService,
		learningService:  learningService,
		logger:           logger.Named("knowledge-base-handler"),
	}
}

// RegisterRoutes registers the knowledge base handler's routes on the given mux.
func (h *KnowledgeBaseHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/knowledge-base"

	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(tenantMiddleware(h.Get)))
	mux.HandleFunc("PUT "+base, authMiddleware.RequireAuth(tenantMiddleware(h.Update)))
	mux.HandleFunc("GET "+base+"/events", authMiddleware.RequireAuth(tenantMiddleware(h.ListEvents)))
	mux.HandleFunc("POST "+base+"/events/apply", authMiddleware.RequireAuth(tenantMiddleware(h.ApplyEvents)))
	mux.HandleFunc("POST "+base+"/events/{id}/restore", authMiddleware.RequireAuth(tenantMiddleware(h.RestoreEvent)))
}

// Get handles GET /api/knowledge-base
func (h *KnowledgeBaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	kb, err := h.knowledgeService.Get(r.Context(), orgID)
	if err != nil {
		writeServiceError(w, h.logger, "get knowledge base", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: kb}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/knowledge-base
// A stale expected_version answers 409.
func (h *KnowledgeBaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	var update models.KnowledgeBaseUpdate
	if !decodeBody(w, r, &update, h.logger) {
		return
	}

	kb, err := h.knowledgeService.Update(r.Context(), orgID, userID, &update)
	if err != nil {
		writeServiceError(w, h.logger, "update knowledge base", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: kb}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListEvents handles GET /api/knowledge-base/events?applied=&category=&limit=&offset=
func (h *KnowledgeBaseHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	filter := models.LearningEventFilter{
		Applied: queryBool(r, "applied"),
		Limit:   queryInt(r, "limit", 0),
		Offset:  queryInt(r, "offset", 0),
	}
	if raw := r.URL.Query().Get("category"); raw != "" {
		category := models.InsightCategory(raw)
		if !category.IsValid() {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_category", "Unknown insight category: "+raw); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		filter.Category = category
	}

	events, total, err := h.learningService.ListEvents(r.Context(), orgID, filter)
	if err != nil {
		writeServiceError(w, h.logger, "list learning events", err)
		return
	}
	if events == nil {
		events = []*models.LearningEvent{}
	}

	response := LearningEventListResponse{Events: events, Total: total}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ApplyEvents handles POST /api/knowledge-base/events/apply
// Merges whatever pending events qualify right now.
func (h *KnowledgeBaseHandler) ApplyEvents(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.learningService.ApplyPending(r.Context(), orgID)
	if err != nil {
		writeServiceError(w, h.logger, "apply learning events", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// RestoreEvent handles POST /api/knowledge-base/events/{id}/restore
func (h *KnowledgeBaseHandler) RestoreEvent(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}
	eventID, ok := ParseResourceID(w, r, h.logger)
	if !ok {
		return
	}

	kb, err := h.learningService.RestoreEvent(r.Context(), orgID, eventID, userID)
	if err != nil {
		writeServiceError(w, h.logger, "restore learning event", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: kb}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
