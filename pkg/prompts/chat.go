package prompts

import (
	"fmt"
	"strings"

	"github.com/vaforge/vaforge-engine/pkg/models"
)

// ChatInsightSystemMessage frames insight extraction from a chat exchange.
func ChatInsightSystemMessage() string {
	return `You extract durable business facts from a conversation between a VA agency user and an assistant. You only report facts stated or clearly implied by the user, never the assistant's suggestions.`
}

// BuildChatInsightPrompt creates the chat insight extraction prompt.
func BuildChatInsightPrompt(userMessage, assistantMessage string) string {
	var b strings.Builder

	b.WriteString("# Insight Extraction\n\n")
	b.WriteString("## Conversation\n\n")
	fmt.Fprintf(&b, "**User**: %s\n\n", truncate(userMessage, 4000))
	fmt.Fprintf(&b, "**Assistant**: %s\n\n", truncate(assistantMessage, 4000))

	b.WriteString("## Categories\n\n")
	b.WriteString("- `business_context`: company facts (name, industry, growth stage, bottleneck, brand voice, CRM).\n")
	b.WriteString("- `process_optimization`: pain points and process gaps.\n")
	b.WriteString("- `customer_market`: target audience and customer behaviour.\n")
	b.WriteString("- `knowledge_gap`: open questions the assistant could not answer.\n")
	b.WriteString("- `compliance`: regulatory or contractual requirements.\n\n")

	b.WriteString("## Rules\n\n")
	b.WriteString("- Set `has_insights` to false and leave all arrays empty when nothing durable was said.\n")
	b.WriteString("- Each insight carries its own `confidence` 0-100 reflecting how explicitly the user stated it.\n")
	b.WriteString("- `field` is optional; use it for business_context items: business_name, industry, primary_crm, primary_bottleneck, brand_voice, target_audience, company_stage, tool.\n")
	b.WriteString("- When `field` is set, `value` holds the bare value to store (\"Salesforce\", \"growth\"), not a sentence.\n\n")

	b.WriteString("## Output Format\n\n```json\n")
	b.WriteString(`{
  "has_insights": true,
  "confidence": 80,
  "business_context": [{"text": "Uses Salesforce as their CRM", "field": "primary_crm", "value": "Salesforce", "confidence": 92}],
  "process_optimization": [{"text": "Invoices go out a week late", "confidence": 85}],
  "customer_market": [],
  "knowledge_gap": [],
  "compliance": [{"text": "Client data must stay HIPAA compliant", "confidence": 90}]
}
`)
	b.WriteString("```\n\n")
	b.WriteString(jsonOnlyFooter)

	return b.String()
}

// ChatReplySystemMessage frames the assistant conversation. knowledgeContext
// may be empty.
func ChatReplySystemMessage(knowledgeContext string) string {
	var b strings.Builder
	b.WriteString("You are an operations advisor inside a virtual assistant agency's workspace. Help the user scope VA work, write SOPs and improve processes. Be concise and practical.")
	if knowledgeContext != "" {
		b.WriteString("\n\nWhat you know about this organization:\n")
		b.WriteString(knowledgeContext)
	}
	return b.String()
}

// BuildChatReplyPrompt renders prior turns followed by the new message.
func BuildChatReplyPrompt(history []models.ChatMessage, message string) string {
	var b strings.Builder
	const maxTurns = 10
	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}
	for _, m := range history {
		role := "User"
		if m.Role == models.ChatRoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n\n", role, truncate(m.Content, 2000))
	}
	fmt.Fprintf(&b, "User: %s\n\nAssistant:", message)
	return b.String()
}
