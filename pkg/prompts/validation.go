package prompts

import (
	"strings"

	"github.com/vaforge/vaforge-engine/pkg/models"
)

// ValidationSystemMessage frames Stage 5.
func ValidationSystemMessage() string {
	return `You are a quality reviewer for a virtual assistant agency. You cross-check an engagement design against the client's intake and flag inconsistencies before it reaches the client.`
}

// BuildValidationPrompt creates the Stage 5 prompt.
func BuildValidationPrompt(
	ac AnalysisContext,
	discovery *models.DiscoveryResult,
	classification *models.ClassificationResult,
	architecture *models.ArchitectureResult,
	spec *models.SpecificationResult,
) string {
	var b strings.Builder

	b.WriteString("# Engagement Validation\n\n")
	b.WriteString("Review the design below. Your findings are advisory; do not redesign anything.\n\n")

	writeIntake(&b, ac.Intake)
	writeStageOutput(&b, "Discovery Findings", discovery)
	writeStageOutput(&b, "Service Classification", classification)
	writeStageOutput(&b, "Engagement Architecture", architecture)
	writeStageOutput(&b, "Detailed Specification", spec)

	b.WriteString("## Checks\n\n")
	b.WriteString("- **Hours balance**: do the designed hours fit the requested weekly hours?\n")
	b.WriteString("- **Tool alignment**: does the design use the client's tools, and are any required tools missing?\n")
	b.WriteString("- **Outcome coverage**: is every desired outcome served by a responsibility or deliverable?\n")
	b.WriteString("- Risk `severity` is one of \"low\", \"medium\", \"high\". `consistency_score` is an integer 0-100.\n\n")

	b.WriteString("## Output Format\n\n```json\n")
	b.WriteString(`{
  "consistency_score": 82,
  "hours_balance": "Design uses 20 of 20 requested hours.",
  "tool_alignment": "Canva covered; no scheduler chosen.",
  "outcome_coverage": "All outcomes covered.",
  "risks": [
    {"description": "Approval bottleneck remains with the owner", "severity": "medium", "mitigation": "Weekly batch approval"}
  ],
  "assumptions": ["Brand templates already exist"],
  "red_flags": [],
  "recommendations": ["Adopt a scheduling tool"]
}
`)
	b.WriteString("```\n\n")
	b.WriteString(jsonOnlyFooter)

	return b.String()
}
