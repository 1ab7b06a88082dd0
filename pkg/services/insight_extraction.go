package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/jsonutil"
	"github.com/vaforge/vaforge-engine/pkg/llm"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/prompts"
)

// Confidence assigned to facts copied out of an analysis, by source reliability.
// Values the client typed into the intake form rank above what the model inferred.
const (
	ConfidenceIntakeBusinessName = 95
	ConfidenceIntakeIndustry     = 92
	ConfidenceIntakeTool         = 90
	ConfidenceIntakeCompliance   = 90
	ConfidenceBottleneck         = 90
	ConfidencePainPoint          = 85
	ConfidenceToolMentioned      = 85
	ConfidenceComplianceNote     = 85
	ConfidenceCompanyStage       = 80
	ConfidenceProcessGap         = 80
	ConfidenceInferredIndustry   = 80
	ConfidenceInferredCRM        = 80
	ConfidenceTargetAudience     = 75
	ConfidenceRedFlag            = 70
)

// Chat extraction limits.
const (
	minChatMessageChars = 20
	// defaultChatConfidence is used when the model reports no confidence at all.
	defaultChatConfidence = 60
)

var acknowledgements = map[string]bool{
	"ok": true, "okay": true, "k": true, "thanks": true, "thank you": true,
	"thanks a lot": true, "thank you so much": true, "got it": true, "great": true,
	"cool": true, "perfect": true, "sounds good": true, "sure": true, "yes": true,
	"no": true, "nope": true, "yep": true, "awesome": true, "nice": true,
	"makes sense": true, "that makes sense": true, "will do": true, "noted": true,
	"great, thanks": true, "ok thanks": true, "okay thanks": true, "perfect, thanks": true,
}

// InsightExtractionService turns analysis results and chat exchanges into insights.
type InsightExtractionService interface {
	// FromAnalysis walks a completed pipeline result. It makes no LLM call.
	FromAnalysis(intake *models.IntakeForm, result *models.PipelineResult) []models.ExtractedInsight

	// FromChat asks the LLM for durable facts in one exchange. Trivial messages
	// and unparseable model output yield no insights and no error.
	FromChat(ctx context.Context, userMessage, assistantMessage string) ([]models.ExtractedInsight, error)
}

type insightExtractionService struct {
	llmClient llm.LLMClient
	logger    *zap.Logger
}

// NewInsightExtractionService creates a new InsightExtractionService.
func NewInsightExtractionService(llmClient llm.LLMClient, logger *zap.Logger) InsightExtractionService {
	return &insightExtractionService{
		llmClient: llmClient,
		logger:    logger.Named("insight-extraction"),
	}
}

var _ InsightExtractionService = (*insightExtractionService)(nil)

func (s *insightExtractionService) FromAnalysis(intake *models.IntakeForm, result *models.PipelineResult) []models.ExtractedInsight {
	var out insightList

	if intake != nil {
		out.field(models.CategoryBusinessContext, models.EventTypeFieldValue, metaBusinessName,
			"Business name is "+intake.BusinessName, intake.BusinessName, ConfidenceIntakeBusinessName)
		out.field(models.CategoryBusinessContext, models.EventTypeFieldValue, metaIndustry,
			"Operates in "+intake.Industry, intake.Industry, ConfidenceIntakeIndustry)
		for _, tool := range intake.Tools {
			out.tool("Uses "+tool, tool, ConfidenceIntakeTool)
		}
		for _, flag := range intake.ComplianceFlags {
			out.add(models.CategoryCompliance, models.EventTypeCompliance, flag, ConfidenceIntakeCompliance)
		}
	}

	if result == nil {
		return out.items
	}

	bc := result.Discovery.BusinessContext
	out.add(models.CategoryBusinessContext, models.EventTypeBottleneck, bc.PrimaryBottleneck, ConfidenceBottleneck)
	out.field(models.CategoryBusinessContext, models.EventTypeCompanyStage, metaCompanyStage,
		"Company is at the "+bc.CompanyStage+" stage", bc.CompanyStage, ConfidenceCompanyStage)
	out.field(models.CategoryBusinessContext, models.EventTypeFieldValue, metaIndustry,
		"Operates in "+bc.Industry, bc.Industry, ConfidenceInferredIndustry)
	out.field(models.CategoryBusinessContext, models.EventTypeFieldValue, metaPrimaryCRM,
		"Uses "+bc.PrimaryCRM+" as the CRM", bc.PrimaryCRM, ConfidenceInferredCRM)
	out.field(models.CategoryCustomerMarket, models.EventTypeCustomerInsight, metaTargetAudience,
		"Serves "+bc.TargetAudience, bc.TargetAudience, ConfidenceTargetAudience)

	sop := result.Discovery.SOPInsights
	for _, p := range sop.PainPoints {
		out.add(models.CategoryProcessOptimization, models.EventTypePainPoint, p, ConfidencePainPoint)
	}
	for _, g := range sop.ProcessGaps {
		out.add(models.CategoryProcessOptimization, models.EventTypeProcessGap, g, ConfidenceProcessGap)
	}
	for _, c := range sop.ComplianceNotes {
		out.add(models.CategoryCompliance, models.EventTypeCompliance, c, ConfidenceComplianceNote)
	}
	for _, tool := range append(append([]string{}, result.Discovery.ToolStack...), sop.ToolsMentioned...) {
		out.tool("Uses "+tool, tool, ConfidenceToolMentioned)
	}
	for _, f := range result.Validation.RedFlags {
		out.add(models.CategoryKnowledgeGap, models.EventTypeKnowledgeGap, f, ConfidenceRedFlag)
	}

	return out.items
}

// insightList accumulates insights, skipping blanks and exact repeats.
type insightList struct {
	items []models.ExtractedInsight
	seen  map[string]bool
}

func (l *insightList) push(in models.ExtractedInsight) {
	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" {
		return
	}
	key := string(in.Category) + "|" + normalizeInsight(in.Text)
	if l.seen == nil {
		l.seen = make(map[string]bool)
	}
	if l.seen[key] {
		return
	}
	l.seen[key] = true
	in.Confidence = jsonutil.ClampPercent(in.Confidence)
	l.items = append(l.items, in)
}

func (l *insightList) add(category models.InsightCategory, eventType, text string, confidence int) {
	l.push(models.ExtractedInsight{Text: text, Category: category, EventType: eventType, Confidence: confidence})
}

// field records a value destined for one named knowledge base field. Blank
// values are skipped even when the sentence around them is not.
func (l *insightList) field(category models.InsightCategory, eventType, field, text, value string, confidence int) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	l.push(models.ExtractedInsight{
		Text:       text,
		Category:   category,
		EventType:  eventType,
		Confidence: confidence,
		Metadata:   map[string]string{models.MetadataField: field, models.MetadataValue: value},
	})
}

func (l *insightList) tool(text, tool string, confidence int) {
	tool = strings.TrimSpace(tool)
	if tool == "" {
		return
	}
	l.push(models.ExtractedInsight{
		Text:       text,
		Category:   models.CategoryToolStack,
		EventType:  models.EventTypeToolDetected,
		Confidence: confidence,
		Metadata:   map[string]string{models.MetadataValue: tool},
	})
}

// chatInsightItem is one model-reported fact. Confidence is raw because models
// return 85, "85%" and 0.85 interchangeably.
type chatInsightItem struct {
	Text       string          `json:"text"`
	Field      string          `json:"field"`
	Value      string          `json:"value"`
	Confidence json.RawMessage `json:"confidence"`
}

type chatInsightResponse struct {
	HasInsights         bool              `json:"has_insights"`
	Confidence          json.RawMessage   `json:"confidence"`
	BusinessContext     []chatInsightItem `json:"business_context"`
	ProcessOptimization []chatInsightItem `json:"process_optimization"`
	CustomerMarket      []chatInsightItem `json:"customer_market"`
	KnowledgeGap        []chatInsightItem `json:"knowledge_gap"`
	Compliance          []chatInsightItem `json:"compliance"`
}

// IsTrivialMessage reports whether a chat message is too short or a bare
// acknowledgement.
func IsTrivialMessage(msg string) bool {
	trimmed := strings.TrimSpace(msg)
	if utf8.RuneCountInString(trimmed) < minChatMessageChars {
		return true
	}
	normalized := strings.ToLower(strings.TrimRight(trimmed, "!.? "))
	return acknowledgements[normalized]
}

func (s *insightExtractionService) FromChat(ctx context.Context, userMessage, assistantMessage string) ([]models.ExtractedInsight, error) {
	if IsTrivialMessage(userMessage) {
		s.logger.Debug("Skipping trivial chat message", zap.Int("length", len(userMessage)))
		return nil, nil
	}

	settings := prompts.Settings(prompts.StageChatInsights)
	resp, err := s.llmClient.GenerateResponse(ctx,
		prompts.BuildChatInsightPrompt(userMessage, assistantMessage),
		prompts.ChatInsightSystemMessage(),
		llm.GenerateOptions{Temperature: settings.Temperature, MaxTokens: settings.MaxTokens, JSONMode: true},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to extract chat insights: %w", err)
	}

	parsed, err := llm.ParseJSONResponse[chatInsightResponse](resp.Content)
	if err != nil {
		s.logger.Warn("Discarding unparseable chat insight response", zap.Error(err))
		return nil, nil
	}
	if !parsed.HasInsights {
		return nil, nil
	}

	overall, ok := jsonutil.FlexibleConfidence(parsed.Confidence)
	if !ok {
		overall = defaultChatConfidence
	}

	var out insightList
	collect := func(category models.InsightCategory, eventType string, items []chatInsightItem) {
		for _, item := range items {
			conf, ok := jsonutil.FlexibleConfidence(item.Confidence)
			if !ok {
				conf = overall
			}
			out.push(chatInsight(category, eventType, item, conf))
		}
	}
	collect(models.CategoryBusinessContext, models.EventTypeFieldValue, parsed.BusinessContext)
	collect(models.CategoryProcessOptimization, models.EventTypePainPoint, parsed.ProcessOptimization)
	collect(models.CategoryCustomerMarket, models.EventTypeCustomerInsight, parsed.CustomerMarket)
	collect(models.CategoryKnowledgeGap, models.EventTypeKnowledgeGap, parsed.KnowledgeGap)
	collect(models.CategoryCompliance, models.EventTypeCompliance, parsed.Compliance)

	s.logger.Debug("Extracted chat insights", zap.Int("count", len(out.items)))
	return out.items, nil
}

func chatInsight(category models.InsightCategory, eventType string, item chatInsightItem, confidence int) models.ExtractedInsight {
	in := models.ExtractedInsight{
		Text:       item.Text,
		Category:   category,
		EventType:  eventType,
		Confidence: confidence,
	}
	field := strings.ToLower(strings.TrimSpace(item.Field))
	if field == "" {
		return in
	}

	in.Metadata = map[string]string{models.MetadataField: field}
	if v := strings.TrimSpace(item.Value); v != "" {
		in.Metadata[models.MetadataValue] = v
	}
	switch field {
	case metaTool:
		in.EventType = models.EventTypeToolDetected
	case metaCompanyStage:
		in.EventType = models.EventTypeCompanyStage
	case metaPrimaryBottleneck:
		in.EventType = models.EventTypeBottleneck
	}
	return in
}
