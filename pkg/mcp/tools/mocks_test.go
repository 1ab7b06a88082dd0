package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/vaforge/vaforge-engine/pkg/auth"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/services"
)

// getTextContent extracts the text of the first content item.
func getTextContent(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	if text, ok := result.Content[0].(mcp.TextContent); ok {
		return text.Text
	}
	jsonBytes, _ := json.Marshal(result.Content[0])
	var textContent struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(jsonBytes, &textContent)
	return textContent.Text
}

// mcpError represents an MCP JSON-RPC error.
type mcpError struct {
	Code    int
	Message string
}

func (e *mcpError) Error() string {
	return e.Message
}

// callToolWithError executes a tool through HandleMessage and returns
// protocol errors separately from tool results.
func callToolWithError(t *testing.T, ctx context.Context, s *server.MCPServer, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	t.Helper()

	params := map[string]any{"name": name}
	if arguments != nil {
		params["arguments"] = arguments
	}
	reqBytes, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"id":      1,
		"params":  params,
	})
	require.NoError(t, err)

	resultBytes, err := json.Marshal(s.HandleMessage(ctx, reqBytes))
	require.NoError(t, err)

	var response struct {
		Result *mcp.CallToolResult `json:"result,omitempty"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))
	if response.Error != nil {
		return nil, &mcpError{Code: response.Error.Code, Message: response.Error.Message}
	}
	return response.Result, nil
}

func callTool(t *testing.T, ctx context.Context, s *server.MCPServer, name string, arguments map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := callToolWithError(t, ctx, s, name, arguments)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func listToolNames(t *testing.T, s *server.MCPServer) []string {
	t.Helper()
	resultBytes, err := json.Marshal(s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`)))
	require.NoError(t, err)

	var response struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))

	names := make([]string, 0, len(response.Result.Tools))
	for _, tool := range response.Result.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func claimsContext(orgID uuid.UUID, userID string) context.Context {
	return auth.WithClaims(context.Background(), &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		OrganizationID:   orgID.String(),
	})
}

// mockTenantScopes records scope acquisition without a database.
type mockTenantScopes struct {
	err      error
	acquired []uuid.UUID
	released int
}

func (m *mockTenantScopes) WithTenantScope(ctx context.Context, orgID uuid.UUID) (context.Context, func(), error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	m.acquired = append(m.acquired, orgID)
	return ctx, func() { m.released++ }, nil
}

type mockKnowledgeBaseService struct {
	kb      *models.KnowledgeBase
	context string
	err     error
}

func (m *mockKnowledgeBaseService) Get(ctx context.Context, orgID uuid.UUID) (*models.KnowledgeBase, error) {
	return m.kb, m.err
}

func (m *mockKnowledgeBaseService) Update(ctx context.Context, orgID uuid.UUID, userID string, update *models.KnowledgeBaseUpdate) (*models.KnowledgeBase, error) {
	return m.kb, m.err
}

func (m *mockKnowledgeBaseService) PromptContext(ctx context.Context, orgID uuid.UUID) (string, int, error) {
	if m.err != nil {
		return "", 0, m.err
	}
	version := 0
	if m.kb != nil {
		version = m.kb.Version
	}
	return m.context, version, nil
}

type mockLearningService struct {
	events      []*models.LearningEvent
	total       int
	lastFilter  models.LearningEventFilter
	lastSource  services.EventSource
	lastInsight []models.ExtractedInsight
	duplicate   bool
	applyResult *models.ApplyResult
	applyCalls  int
	createErr   error
	applyErr    error
	listErr     error
}

func (m *mockLearningService) CreateEvents(ctx context.Context, orgID uuid.UUID, source services.EventSource, insights []models.ExtractedInsight) ([]*models.LearningEvent, error) {
	m.lastSource = source
	m.lastInsight = insights
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.duplicate {
		return nil, nil
	}
	created := make([]*models.LearningEvent, 0, len(insights))
	for _, in := range insights {
		created = append(created, &models.LearningEvent{
			ID:             uuid.New(),
			OrganizationID: orgID,
			Insight:        in.Text,
			Category:       in.Category,
			EventType:      in.EventType,
			Confidence:     in.Confidence,
			Metadata:       in.Metadata,
			SourceType:     source.Type,
			TriggeredBy:    source.TriggeredBy,
		})
	}
	return created, nil
}

func (m *mockLearningService) ApplyPending(ctx context.Context, orgID uuid.UUID) (*models.ApplyResult, error) {
	m.applyCalls++
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	if m.applyResult == nil {
		return &models.ApplyResult{}, nil
	}
	return m.applyResult, nil
}

func (m *mockLearningService) RestoreEvent(ctx context.Context, orgID uuid.UUID, eventID uuid.UUID, userID string) (*models.KnowledgeBase, error) {
	return nil, nil
}

func (m *mockLearningService) ListEvents(ctx context.Context, orgID uuid.UUID, filter models.LearningEventFilter) ([]*models.LearningEvent, int, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.events, m.total, nil
}
