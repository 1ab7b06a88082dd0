package prompts

import (
	"fmt"
	"strings"

	"github.com/vaforge/vaforge-engine/pkg/models"
)

// FormatKnowledgeContext renders the knowledge base as a bullet list for
// prompts. Returns "" when nothing is known yet.
func FormatKnowledgeContext(kb *models.KnowledgeBase) string {
	if kb == nil || kb.IsEmpty() {
		return ""
	}

	var b strings.Builder
	scalar := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "- %s: %s\n", label, value)
		}
	}
	list := func(label string, values []string) {
		if len(values) > 0 {
			fmt.Fprintf(&b, "- %s: %s\n", label, strings.Join(values, "; "))
		}
	}

	scalar("Business name", kb.BusinessName)
	scalar("Industry", kb.Industry)
	scalar("Company stage", kb.LatestCompanyStage())
	scalar("Primary CRM", kb.PrimaryCRM)
	scalar("Biggest bottleneck", kb.BiggestBottleneck)
	scalar("Brand voice", kb.BrandVoice)
	scalar("Target audience", kb.TargetAudience)
	list("Tool stack", kb.ToolStack)
	list("Compliance", kb.ComplianceRequirements)
	list("Known pain points", kb.ExtractedKnowledge.PainPoints)
	list("Process gaps", kb.ExtractedKnowledge.ProcessGaps)
	list("Customer insights", kb.ExtractedKnowledge.CustomerInsights)
	list("Open questions", kb.ExtractedKnowledge.KnowledgeGaps)

	return b.String()
}
