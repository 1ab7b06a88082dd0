package prompts

import (
	"strings"

	"github.com/vaforge/vaforge-engine/pkg/models"
)

// ArchitectureSystemMessage frames Stage 3.
func ArchitectureSystemMessage() string {
	return `You design virtual assistant engagements. Given a chosen service model, you structure the work into roles or projects that a VA agency can staff and price.`
}

// BuildArchitecturePrompt creates the Stage 3 prompt for the classified service type.
func BuildArchitecturePrompt(ac AnalysisContext, discovery *models.DiscoveryResult, classification *models.ClassificationResult) string {
	var b strings.Builder

	b.WriteString("# Engagement Architecture\n\n")
	writeIntake(&b, ac.Intake)
	writeStageOutput(&b, "Discovery Findings", discovery)
	writeStageOutput(&b, "Service Classification", classification)

	switch classification.RecommendedService {
	case models.ServiceTypeProjectsOnDemand:
		writeProjectsArchitecture(&b)
	case models.ServiceTypeUnicornVA:
		writeUnicornArchitecture(&b)
	default:
		writeDedicatedArchitecture(&b)
	}

	b.WriteString(jsonOnlyFooter)
	return b.String()
}

func writeDedicatedArchitecture(b *strings.Builder) {
	b.WriteString("## Task\n\n")
	b.WriteString("Design a single Dedicated VA role that covers every recurring task cluster. Keep `weekly_hours` within the client's requested hours.\n\n")
	b.WriteString("## Output Format\n\n```json\n")
	b.WriteString(`{
  "dedicated_role": {
    "title": "Marketing & Content VA",
    "summary": "Owns the weekly content calendar and social channels.",
    "core_responsibilities": ["Publish 5 posts per week", "Draft newsletter"],
    "weekly_hours": 20,
    "skills": ["Copywriting", "Canva"],
    "tools": ["Canva", "Buffer"],
    "kpis": ["Posts published on schedule"]
  }
}
`)
	b.WriteString("```\n\n")
}

func writeProjectsArchitecture(b *strings.Builder) {
	b.WriteString("## Task\n\n")
	b.WriteString("Break the work into independent projects, each with concrete deliverables and an hour estimate. Do not create ongoing roles.\n\n")
	b.WriteString("## Output Format\n\n```json\n")
	b.WriteString(`{
  "projects": [
    {
      "name": "Brand kit refresh",
      "objective": "Consistent visual identity across channels",
      "deliverables": ["Logo pack", "Canva templates"],
      "estimated_hours": 15,
      "timeline": "2 weeks",
      "skills": ["Graphic design"]
    }
  ]
}
`)
	b.WriteString("```\n\n")
}

func writeUnicornArchitecture(b *strings.Builder) {
	b.WriteString("## Task\n\n")
	b.WriteString("Design one core role holding the dominant share of the work, plus support areas for the specialist needs that fall outside it. Support areas must not overlap the core role.\n\n")
	b.WriteString("## Output Format\n\n```json\n")
	b.WriteString(`{
  "core_role": {
    "title": "Executive Operations VA",
    "summary": "Runs the owner's inbox, calendar and client onboarding.",
    "core_responsibilities": ["Inbox zero daily", "Client onboarding"],
    "weekly_hours": 25,
    "skills": ["Communication"],
    "tools": ["Google Workspace"],
    "kpis": ["Response time under 4 hours"]
  },
  "support_areas": [
    {
      "name": "Bookkeeping",
      "skills": ["QuickBooks"],
      "weekly_hours": 4,
      "rationale": "Monthly reconciliation needs an accounting specialist."
    }
  ]
}
`)
	b.WriteString("```\n\n")
}
