// Package prompts builds the system and user prompts for every LLM call.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vaforge/vaforge-engine/pkg/models"
)

// AnalysisContext is everything a pipeline stage may show the model besides
// earlier stage outputs.
type AnalysisContext struct {
	Intake           *models.IntakeForm
	DocumentText     string
	WebsiteSummary   string
	KnowledgeContext string
}

const maxDocumentChars = 12000

// jsonOnlyFooter closes every structured prompt.
const jsonOnlyFooter = "Return ONLY the JSON object, no additional text.\n"

func writeIntake(b *strings.Builder, in *models.IntakeForm) {
	b.WriteString("## Client Intake\n\n")
	fmt.Fprintf(b, "- **Business name**: %s\n", in.BusinessName)
	if in.Website != "" {
		fmt.Fprintf(b, "- **Website**: %s\n", in.Website)
	}
	if in.Industry != "" {
		fmt.Fprintf(b, "- **Industry**: %s\n", in.Industry)
	}
	fmt.Fprintf(b, "- **Weekly hours requested**: %g\n", in.WeeklyHours)
	if in.BiggestChallenge != "" {
		fmt.Fprintf(b, "- **Biggest challenge**: %s\n", in.BiggestChallenge)
	}
	fmt.Fprintf(b, "- **Client-facing work**: %t\n", in.ClientFacing)
	if in.Timezone != "" {
		fmt.Fprintf(b, "- **Timezone**: %s\n", in.Timezone)
	}
	writeList(b, "Tasks", in.NonEmptyTasks())
	writeList(b, "Tools", in.Tools)
	writeList(b, "Desired outcomes", in.DesiredOutcomes)
	writeList(b, "Compliance requirements", in.ComplianceFlags)
	writeList(b, "Brand voice", in.BrandVoice)
	b.WriteString("\n")
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "- **%s**:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
}

func writeSources(b *strings.Builder, ac AnalysisContext) {
	if ac.Intake.SOPText != "" {
		b.WriteString("## Existing SOP (client provided)\n\n")
		b.WriteString(truncate(ac.Intake.SOPText, maxDocumentChars))
		b.WriteString("\n\n")
	}
	if ac.DocumentText != "" {
		b.WriteString("## Attached Documents\n\n")
		b.WriteString(truncate(ac.DocumentText, maxDocumentChars))
		b.WriteString("\n\n")
	}
	if ac.WebsiteSummary != "" {
		b.WriteString("## Website Summary\n\n")
		b.WriteString(ac.WebsiteSummary)
		b.WriteString("\n\n")
	}
	if ac.KnowledgeContext != "" {
		b.WriteString("## What We Already Know About This Client\n\n")
		b.WriteString(ac.KnowledgeContext)
		b.WriteString("\n\n")
	}
}

// writeStageOutput embeds an earlier stage's parsed output as JSON.
func writeStageOutput(b *strings.Builder, title string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintf(b, "## %s\n\n```json\n%s\n```\n\n", title, data)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "\n[truncated]"
}
