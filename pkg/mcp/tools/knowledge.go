package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/jsonutil"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/services"
)

const (
	defaultEventListLimit = 20
	maxEventListLimit     = 100
	// Agent-recorded facts are trusted slightly below a manual edit.
	defaultManualConfidence = 85
)

var validCategories = []string{
	string(models.CategoryBusinessContext),
	string(models.CategoryProcessOptimization),
	string(models.CategoryCustomerMarket),
	string(models.CategoryKnowledgeGap),
	string(models.CategoryCompliance),
	string(models.CategoryToolStack),
}

// KnowledgeToolDeps contains dependencies for the knowledge base tools.
type KnowledgeToolDeps struct {
	BaseMCPToolDeps
	KnowledgeBase services.KnowledgeBaseService
	Learning      services.LearningService
}

// RegisterKnowledgeTools registers the knowledge base MCP tools.
func RegisterKnowledgeTools(s *server.MCPServer, deps *KnowledgeToolDeps) {
	registerGetKnowledgeBaseTool(s, deps)
	registerListLearningEventsTool(s, deps)
	registerRecordInsightTool(s, deps)
}

func registerGetKnowledgeBaseTool(s *server.MCPServer, deps *KnowledgeToolDeps) {
	tool := mcp.NewTool(
		"get_knowledge_base",
		mcp.WithDescription(
			"Returns what the agency knows about this client's business: name, industry, CRM, "+
				"bottleneck, brand voice, audience, tool stack, compliance needs and extracted knowledge. "+
				"Use format='text' for the same summary the analysis prompts receive.",
		),
		mcp.WithString(
			"format",
			mcp.Description("Optional - 'json' (default) for the full record or 'text' for a prompt-ready summary"),
			mcp.Enum("json", "text"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		orgID, _, tenantCtx, cleanup, err := AcquireToolAccess(ctx, deps, "get_knowledge_base")
		if err != nil {
			if result := AsToolAccessResult(err); result != nil {
				return result, nil
			}
			return nil, err
		}
		defer cleanup()

		switch format := trimString(getOptionalString(req, "format")); format {
		case "", "json":
			kb, err := deps.KnowledgeBase.Get(tenantCtx, orgID)
			if err != nil {
				return nil, fmt.Errorf("failed to load knowledge base: %w", err)
			}
			return jsonResult(kb)
		case "text":
			text, version, err := deps.KnowledgeBase.PromptContext(tenantCtx, orgID)
			if err != nil {
				return nil, fmt.Errorf("failed to load knowledge base: %w", err)
			}
			if text == "" {
				text = "No business context has been recorded yet."
			}
			return mcp.NewToolResultText(fmt.Sprintf("Knowledge base version %d\n\n%s", version, text)), nil
		default:
			return NewErrorResultWithDetails("invalid_parameters", "invalid format value", map[string]any{
				"parameter": "format",
				"expected":  []string{"json", "text"},
				"actual":    format,
			}), nil
		}
	})
}

type listLearningEventsResponse struct {
	Events []*models.LearningEvent `json:"events"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

func registerListLearningEventsTool(s *server.MCPServer, deps *KnowledgeToolDeps) {
	tool := mcp.NewTool(
		"list_learning_events",
		mcp.WithDescription(
			"Lists learning events: insights extracted from analyses, chats and manual entries, "+
				"newest first. Applied events have been merged into the knowledge base; pending ones "+
				"are waiting for enough confidence or a mappable field.",
		),
		mcp.WithBoolean(
			"applied",
			mcp.Description("Optional - true for merged events only, false for pending events only"),
		),
		mcp.WithString(
			"category",
			mcp.Description("Optional - restrict to one insight category"),
			mcp.Enum(validCategories...),
		),
		mcp.WithNumber(
			"limit",
			mcp.Description(fmt.Sprintf("Optional - page size, default %d, max %d", defaultEventListLimit, maxEventListLimit)),
		),
		mcp.WithNumber(
			"offset",
			mcp.Description("Optional - number of events to skip"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		orgID, _, tenantCtx, cleanup, err := AcquireToolAccess(ctx, deps, "list_learning_events")
		if err != nil {
			if result := AsToolAccessResult(err); result != nil {
				return result, nil
			}
			return nil, err
		}
		defer cleanup()

		filter := models.LearningEventFilter{Limit: defaultEventListLimit}
		if applied, ok := getOptionalBool(req, "applied"); ok {
			filter.Applied = &applied
		}
		if category := trimString(getOptionalString(req, "category")); category != "" {
			filter.Category = models.InsightCategory(category)
			if !filter.Category.IsValid() {
				return invalidCategoryResult(category), nil
			}
		}
		if limit, ok := getOptionalFloat(req, "limit"); ok && limit > 0 {
			filter.Limit = int(limit)
		}
		if filter.Limit > maxEventListLimit {
			filter.Limit = maxEventListLimit
		}
		if offset, ok := getOptionalFloat(req, "offset"); ok && offset > 0 {
			filter.Offset = int(offset)
		}

		events, total, err := deps.Learning.ListEvents(tenantCtx, orgID, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to list learning events: %w", err)
		}
		if events == nil {
			events = []*models.LearningEvent{}
		}
		return jsonResult(listLearningEventsResponse{
			Events: events,
			Total:  total,
			Limit:  filter.Limit,
			Offset: filter.Offset,
		})
	})
}

type recordInsightResponse struct {
	Recorded bool                  `json:"recorded"`
	Event    *models.LearningEvent `json:"event,omitempty"`
	// Reason explains why nothing was recorded.
	Reason string              `json:"reason,omitempty"`
	Apply  *models.ApplyResult `json:"apply,omitempty"`
}

func registerRecordInsightTool(s *server.MCPServer, deps *KnowledgeToolDeps) {
	tool := mcp.NewTool(
		"record_insight",
		mcp.WithDescription(
			"Records a fact about the client's business as a manual learning event and, by default, "+
				"merges pending events into the knowledge base. Near-duplicates of recent events are ignored. "+
				"Set 'field' to target a specific profile field (business_name, industry, primary_crm, "+
				"primary_bottleneck, brand_voice, target_audience, company_stage, tool) and 'value' to the bare value. "+
				"Example: text='They run all deals through HubSpot', category='business_context', field='primary_crm', value='HubSpot'",
		),
		mcp.WithString(
			"text",
			mcp.Required(),
			mcp.Description("The insight, as a full sentence"),
		),
		mcp.WithString(
			"category",
			mcp.Required(),
			mcp.Description("Insight category"),
			mcp.Enum(validCategories...),
		),
		mcp.WithString(
			"field",
			mcp.Description("Optional - knowledge base field the insight targets"),
		),
		mcp.WithString(
			"value",
			mcp.Description("Optional - bare value to store instead of the sentence"),
		),
		mcp.WithNumber(
			"confidence",
			mcp.Description(fmt.Sprintf("Optional - confidence 0-100 (or 0-1), default %d", defaultManualConfidence)),
		),
		mcp.WithBoolean(
			"apply",
			mcp.Description("Optional - merge pending events right away, default true"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		orgID, userID, tenantCtx, cleanup, err := AcquireToolAccess(ctx, deps, "record_insight")
		if err != nil {
			if result := AsToolAccessResult(err); result != nil {
				return result, nil
			}
			return nil, err
		}
		defer cleanup()

		text, err := req.RequireString("text")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		text = trimString(text)
		if text == "" {
			return NewErrorResult("invalid_parameters", "parameter 'text' cannot be empty"), nil
		}

		categoryStr, err := req.RequireString("category")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		category := models.InsightCategory(trimString(categoryStr))
		if !category.IsValid() {
			return invalidCategoryResult(string(category)), nil
		}

		confidence := defaultManualConfidence
		if raw, ok := getRawArgument(req, "confidence"); ok {
			encoded, _ := json.Marshal(raw)
			c, ok := jsonutil.FlexibleConfidence(encoded)
			if !ok {
				return NewErrorResult("invalid_parameters", "parameter 'confidence' must be a number between 0 and 100"), nil
			}
			confidence = c
		}

		insight := models.ExtractedInsight{
			Text:       text,
			Category:   category,
			EventType:  models.EventTypeManualEntry,
			Confidence: confidence,
		}
		if field := trimString(getOptionalString(req, "field")); field != "" {
			insight.Metadata = map[string]string{models.MetadataField: field}
		}
		if value := trimString(getOptionalString(req, "value")); value != "" {
			if insight.Metadata == nil {
				insight.Metadata = map[string]string{}
			}
			insight.Metadata[models.MetadataValue] = value
		}

		created, err := deps.Learning.CreateEvents(tenantCtx, orgID, services.EventSource{
			Type:        models.SourceManual,
			TriggeredBy: userID,
		}, []models.ExtractedInsight{insight})
		if err != nil {
			if result := HandleServiceError(err, "record_insight_failed"); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("failed to record insight: %w", err)
		}

		response := recordInsightResponse{}
		if len(created) == 0 {
			response.Reason = "a near-duplicate insight was recorded recently"
		} else {
			response.Recorded = true
			response.Event = created[0]
		}

		apply := true
		if v, ok := getOptionalBool(req, "apply"); ok {
			apply = v
		}
		if apply {
			result, err := deps.Learning.ApplyPending(tenantCtx, orgID)
			if err != nil {
				if errResult := HandleServiceError(err, "apply_failed"); errResult != nil {
					return errResult, nil
				}
				return nil, fmt.Errorf("failed to apply learning events: %w", err)
			}
			response.Apply = result
		}

		deps.Logger.Info("Recorded manual insight",
			zap.String("organization_id", orgID.String()),
			zap.String("category", string(category)),
			zap.Bool("recorded", response.Recorded),
			zap.Bool("applied", apply))

		return jsonResult(response)
	})
}

func invalidCategoryResult(actual string) *mcp.CallToolResult {
	return NewErrorResultWithDetails("invalid_parameters", "invalid category value", map[string]any{
		"parameter": "category",
		"expected":  validCategories,
		"actual":    actual,
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
