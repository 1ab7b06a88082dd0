package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/apperrors"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/retry"
)

func fastRetry() *retry.Config {
	return &retry.Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func strPtr(s string) *string { return &s }

func TestKnowledgeBaseService_GetCreatesOnFirstUse(t *testing.T) {
	repo := newMockKnowledgeBaseRepo(nil)
	svc := NewKnowledgeBaseService(repo, fastRetry(), zap.NewNop())
	orgID := uuid.New()

	kb, err := svc.Get(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, orgID, kb.OrganizationID)
	assert.Equal(t, 1, kb.Version)

	again, err := svc.Get(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, kb.ID, again.ID)
}

func TestKnowledgeBaseService_GetRepositoryError(t *testing.T) {
	repo := newMockKnowledgeBaseRepo(nil)
	repo.getErr = errors.New("connection refused")
	svc := NewKnowledgeBaseService(repo, fastRetry(), zap.NewNop())

	_, err := svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKnowledgeBaseService_Update(t *testing.T) {
	repo := newMockKnowledgeBaseRepo(nil)
	orgID := uuid.New()
	repo.seed(&models.KnowledgeBase{OrganizationID: orgID, PrimaryCRM: "HubSpot", Industry: "Legal"})
	svc := NewKnowledgeBaseService(repo, fastRetry(), zap.NewNop())

	kb, err := svc.Update(context.Background(), orgID, "user-1", &models.KnowledgeBaseUpdate{
		PrimaryCRM: strPtr("  Salesforce "),
		ToolStack:  []string{"Slack", "Notion"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Salesforce", kb.PrimaryCRM)
	assert.Equal(t, "Legal", kb.Industry, "unset fields are untouched")
	assert.Equal(t, []string{"Slack", "Notion"}, kb.ToolStack)
	assert.Equal(t, "user-1", kb.LastEditedBy)
	assert.Equal(t, 2, kb.Version)
	assert.Equal(t, "Salesforce", repo.current().PrimaryCRM)
}

func TestKnowledgeBaseService_UpdateRetriesUnpinnedConflict(t *testing.T) {
	repo := newMockKnowledgeBaseRepo(nil)
	orgID := uuid.New()
	repo.seed(&models.KnowledgeBase{OrganizationID: orgID})
	repo.concurrentWrites = 1
	svc := NewKnowledgeBaseService(repo, fastRetry(), zap.NewNop())

	kb, err := svc.Update(context.Background(), orgID, "user-1", &models.KnowledgeBaseUpdate{BrandVoice: strPtr("Warm")})
	require.NoError(t, err)
	assert.Equal(t, "Warm", kb.BrandVoice)
	assert.Equal(t, 1, repo.conflicts)
}

func TestKnowledgeBaseService_UpdatePinnedVersion(t *testing.T) {
	repo := newMockKnowledgeBaseRepo(nil)
	orgID := uuid.New()
	repo.seed(&models.KnowledgeBase{OrganizationID: orgID, Version: 4})
	svc := NewKnowledgeBaseService(repo, fastRetry(), zap.NewNop())

	stale := 3
	_, err := svc.Update(context.Background(), orgID, "user-1", &models.KnowledgeBaseUpdate{
		BrandVoice:      strPtr("Formal"),
		ExpectedVersion: &stale,
	})
	assert.True(t, errors.Is(err, apperrors.ErrVersionConflict))
	assert.Equal(t, 0, repo.writes, "a stale pin never writes")

	current := 4
	kb, err := svc.Update(context.Background(), orgID, "user-1", &models.KnowledgeBaseUpdate{
		BrandVoice:      strPtr("Formal"),
		ExpectedVersion: &current,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, kb.Version)
}

func TestKnowledgeBaseService_PromptContext(t *testing.T) {
	repo := newMockKnowledgeBaseRepo(nil)
	orgID := uuid.New()
	svc := NewKnowledgeBaseService(repo, fastRetry(), zap.NewNop())

	text, version, err := svc.PromptContext(context.Background(), orgID)
	require.NoError(t, err)
	assert.Empty(t, text, "an empty knowledge base adds nothing to prompts")
	assert.Equal(t, 1, version)

	_, err = svc.Update(context.Background(), orgID, "user-1", &models.KnowledgeBaseUpdate{PrimaryCRM: strPtr("Pipedrive")})
	require.NoError(t, err)

	text, version, err = svc.PromptContext(context.Background(), orgID)
	require.NoError(t, err)
	assert.Contains(t, text, "Pipedrive")
	assert.Equal(t, 2, version)
}
