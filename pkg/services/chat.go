package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/events"
	"github.com/vaforge/vaforge-engine/pkg/llm"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/prompts"
)

const maxChatMessageChars = 8000

// ChatService answers questions with the organization's knowledge in context.
type ChatService interface {
	SendMessage(ctx context.Context, orgID uuid.UUID, userID string, req *models.ChatRequest) (*models.ChatResponse, error)
}

type chatService struct {
	llmClient llm.LLMClient
	knowledge KnowledgeBaseService
	publisher events.Publisher
	logger    *zap.Logger
}

// NewChatService creates a new ChatService.
func NewChatService(llmClient llm.LLMClient, knowledge KnowledgeBaseService, publisher events.Publisher, logger *zap.Logger) ChatService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &chatService{
		llmClient: llmClient,
		knowledge: knowledge,
		publisher: publisher,
		logger:    logger.Named("chat"),
	}
}

var _ ChatService = (*chatService)(nil)

func (s *chatService) SendMessage(ctx context.Context, orgID uuid.UUID, userID string, req *models.ChatRequest) (*models.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	verr := &models.ValidationError{}
	if message == "" {
		verr.Add("message", "is required")
	}
	if len(message) > maxChatMessageChars {
		verr.Add("message", fmt.Sprintf("must be at most %d characters", maxChatMessageChars))
	}
	if verr.HasErrors() {
		return nil, verr
	}

	knowledgeContext := ""
	if s.knowledge != nil {
		text, _, err := s.knowledge.PromptContext(ctx, orgID)
		if err != nil {
			s.logger.Warn("Failed to load knowledge base context", zap.Error(err))
		}
		knowledgeContext = text
	}

	settings := prompts.Settings(prompts.StageChatReply)
	resp, err := s.llmClient.GenerateResponse(ctx,
		prompts.BuildChatReplyPrompt(req.History, message),
		prompts.ChatReplySystemMessage(knowledgeContext),
		llm.GenerateOptions{Temperature: settings.Temperature, MaxTokens: settings.MaxTokens},
	)
	if err != nil {
		return nil, err
	}
	reply := strings.TrimSpace(resp.Content)

	if err := s.publisher.Publish(ctx, models.NewChatExchangeEvent(orgID, userID, message, reply)); err != nil {
		s.logger.Warn("Failed to publish enrichment event", zap.Error(err))
	}
	return &models.ChatResponse{Reply: reply}, nil
}
