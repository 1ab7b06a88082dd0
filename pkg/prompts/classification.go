package prompts

import (
	"strings"

	"github.com/vaforge/vaforge-engine/pkg/models"
)

// ClassificationRules is the decision procedure the model must follow. The
// rules are evaluated in order; the first match wins.
const ClassificationRules = `1. If weekly_hours = 0, or the client describes explicitly one-time deliverables, choose "Projects on Demand".
2. If weekly_hours > 0 and all tasks are recurring and they span at most 3 skill domains, choose "Dedicated VA".
3. If one role accounts for at least 60% of the work and the remaining needs are specialist skills disjoint from that role, choose "Unicorn VA Service".
4. Otherwise choose the service whose rule is closest to matching and explain the gap in "reasoning".`

// ClassificationSystemMessage frames Stage 2.
func ClassificationSystemMessage() string {
	return `You classify virtual assistant engagements. You apply the agency's hard rules exactly and never invent a service type outside the three offered.`
}

// BuildClassificationPrompt creates the Stage 2 prompt.
func BuildClassificationPrompt(ac AnalysisContext, discovery *models.DiscoveryResult) string {
	var b strings.Builder

	b.WriteString("# Service Classification\n\n")
	b.WriteString("Choose exactly one engagement model for this client.\n\n")

	b.WriteString("## Service Types\n\n")
	b.WriteString("- **Dedicated VA**: one assistant working a fixed number of hours every week on recurring work.\n")
	b.WriteString("- **Projects on Demand**: scoped projects with finite deliverables and no ongoing weekly commitment.\n")
	b.WriteString("- **Unicorn VA Service**: one core assistant plus specialists covering disjoint skill areas.\n\n")

	b.WriteString("## Hard Rules\n\n")
	b.WriteString(ClassificationRules)
	b.WriteString("\n\n")

	writeIntake(&b, ac.Intake)
	writeStageOutput(&b, "Discovery Findings", discovery)

	b.WriteString("## Output Format\n\n")
	b.WriteString("`recommended_service` must be exactly \"Dedicated VA\", \"Projects on Demand\" or \"Unicorn VA Service\". `confidence` is an integer 0-100.\n\n")
	b.WriteString("```json\n")
	b.WriteString(`{
  "recommended_service": "Dedicated VA",
  "confidence": 85,
  "reasoning": "20 recurring weekly hours across two related marketing domains.",
  "decision_factors": {
    "weekly_hours": 20,
    "all_tasks_recurring": true,
    "one_time_deliverables": false,
    "skill_domain_count": 2,
    "dominant_role_share": 100
  },
  "alternative_service": "Unicorn VA Service"
}
`)
	b.WriteString("```\n\n")
	b.WriteString(jsonOnlyFooter)

	return b.String()
}
