package models

import (
	"time"

	"github.com/google/uuid"
)

// EnrichmentKind identifies what triggered knowledge base enrichment.
type EnrichmentKind string

const (
	EnrichmentAnalysisSaved EnrichmentKind = "analysis_saved"
	EnrichmentChatExchange  EnrichmentKind = "chat_exchange"
)

// EnrichmentEvent is published after a save or chat exchange and consumed by
// the enrichment worker.
type EnrichmentEvent struct {
	ID               uuid.UUID      `json:"id"`
	Kind             EnrichmentKind `json:"kind"`
	OrganizationID   uuid.UUID      `json:"organization_id"`
	TriggeredBy      string         `json:"triggered_by"`
	AnalysisID       *uuid.UUID     `json:"analysis_id,omitempty"`
	UserMessage      string         `json:"user_message,omitempty"`
	AssistantMessage string         `json:"assistant_message,omitempty"`
	OccurredAt       time.Time      `json:"occurred_at"`
}

// NewAnalysisSavedEvent builds the event published after a save.
func NewAnalysisSavedEvent(orgID uuid.UUID, userID string, analysisID uuid.UUID) EnrichmentEvent {
	return EnrichmentEvent{
		ID:             uuid.New(),
		Kind:           EnrichmentAnalysisSaved,
		OrganizationID: orgID,
		TriggeredBy:    userID,
		AnalysisID:     &analysisID,
		OccurredAt:     time.Now().UTC(),
	}
}

// NewChatExchangeEvent builds the event published after a chat reply.
func NewChatExchangeEvent(orgID uuid.UUID, userID, userMessage, assistantMessage string) EnrichmentEvent {
	return EnrichmentEvent{
		ID:               uuid.New(),
		Kind:             EnrichmentChatExchange,
		OrganizationID:   orgID,
		TriggeredBy:      userID,
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
		OccurredAt:       time.Now().UTC(),
	}
}
