package prompts

import (
	"strings"
)

// DiscoverySystemMessage frames Stage 1.
func DiscoverySystemMessage() string {
	return `You are a senior operations consultant at a virtual assistant agency. You read client intake forms and uncover the business context behind the tasks they list: growth stage, the real bottleneck, and the hidden complexity a VA will face.`
}

// BuildDiscoveryPrompt creates the Stage 1 prompt.
func BuildDiscoveryPrompt(ac AnalysisContext) string {
	var b strings.Builder

	b.WriteString("# Business Discovery\n\n")
	b.WriteString("Analyze this client's intake and supporting material. Infer the business context, group the raw tasks into workflow clusters, and surface pain points or gaps in their existing processes.\n\n")

	writeIntake(&b, ac.Intake)
	writeSources(&b, ac)

	b.WriteString("## Guidelines\n\n")
	b.WriteString("- `company_stage` must be exactly one of \"startup\", \"growth\", \"established\".\n")
	b.WriteString("- `primary_bottleneck` is the single constraint most limiting the owner's time, in one sentence.\n")
	b.WriteString("- Every intake task must appear in exactly one cluster. Mark a cluster `recurring` only if its work repeats weekly.\n")
	b.WriteString("- `skill_domain` names the discipline (e.g. marketing, bookkeeping, customer support, admin).\n")
	b.WriteString("- Only list SOP pain points and gaps that the provided material supports. Leave arrays empty otherwise.\n\n")

	b.WriteString("## Output Format\n\n")
	b.WriteString("```json\n")
	b.WriteString(`{
  "business_context": {
    "company_stage": "growth",
    "primary_bottleneck": "Owner spends 15 hours a week on inbox and scheduling",
    "hidden_complexity": "Content approvals depend on a single partner",
    "industry": "Wellness coaching",
    "target_audience": "Busy professionals aged 30-50",
    "primary_crm": "HubSpot",
    "growth_indicators": ["Hiring second coach"]
  },
  "task_clusters": [
    {
      "name": "Social media marketing",
      "tasks": ["Social media", "Content"],
      "skill_domain": "marketing",
      "recurring": true,
      "estimated_weekly_hours": 12,
      "complexity": "medium"
    }
  ],
  "sop_insights": {
    "pain_points": ["Posts are scheduled manually each morning"],
    "process_gaps": ["No approval step before publishing"],
    "compliance_notes": [],
    "tools_mentioned": ["Canva"]
  },
  "tool_stack": ["Canva", "HubSpot"]
}
`)
	b.WriteString("```\n\n")
	b.WriteString(jsonOnlyFooter)

	return b.String()
}
