package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/auth"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/services"
)

// ChatHandler answers chat messages.
type ChatHandler struct {
	chatService services.ChatService
	logger      *zap.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chatService services.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger.Named("chat-handler"),
	}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("POST /api/chat", authMiddleware.RequireAuth(tenantMiddleware(h.SendMessage)))
}

// SendMessage handles POST /api/chat
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	var req models.ChatRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	resp, err := h.chatService.SendMessage(r.Context(), orgID, userID, &req)
	if err != nil {
		writeServiceError(w, h.logger, "answer chat message", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: resp}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
