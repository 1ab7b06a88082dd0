package prompts

import (
	"strings"

	"github.com/vaforge/vaforge-engine/pkg/models"
)

// SpecificationSystemMessage frames Stage 4.
func SpecificationSystemMessage() string {
	return `You write hiring-ready job descriptions and project specifications for a virtual assistant agency. Your writing is specific, measurable and free of filler.`
}

// BuildSpecificationPrompt creates the Stage 4 prompt. Projects on Demand gets
// project specs; the other service types get a job description. A non-empty
// refinement is the client's feedback on a previous version.
func BuildSpecificationPrompt(
	ac AnalysisContext,
	discovery *models.DiscoveryResult,
	classification *models.ClassificationResult,
	architecture *models.ArchitectureResult,
	refinement string,
) string {
	var b strings.Builder

	b.WriteString("# Detailed Specification\n\n")
	writeIntake(&b, ac.Intake)
	if len(ac.Intake.BrandVoice) > 0 {
		b.WriteString("Match the client's brand voice in summaries and communication style.\n\n")
	}
	writeStageOutput(&b, "Discovery Findings", discovery)
	writeStageOutput(&b, "Service Classification", classification)
	writeStageOutput(&b, "Engagement Architecture", architecture)

	if refinement != "" {
		b.WriteString("## Client Feedback On The Previous Version\n\n")
		b.WriteString(refinement)
		b.WriteString("\n\nApply this feedback. Keep everything the feedback does not mention.\n\n")
	}

	if classification.RecommendedService == models.ServiceTypeProjectsOnDemand {
		writeProjectSpecFormat(&b)
	} else {
		writeJobDescriptionFormat(&b)
	}

	b.WriteString(jsonOnlyFooter)
	return b.String()
}

func writeJobDescriptionFormat(b *strings.Builder) {
	b.WriteString("## Task\n\n")
	b.WriteString("Expand the architecture's role into a complete job description. Responsibilities are action statements with a frequency or target.\n\n")
	b.WriteString("## Output Format\n\n```json\n")
	b.WriteString(`{
  "job_description": {
    "title": "Marketing & Content VA",
    "summary": "Keeps Acme's social channels active and on-brand.",
    "responsibilities": ["Publish 5 Instagram posts per week using approved templates"],
    "requirements": ["2+ years managing small-business social accounts"],
    "preferred_skills": ["Short-form video editing"],
    "tools": ["Canva"],
    "kpis": ["95% of posts published on schedule"],
    "weekly_hours": 20,
    "schedule": "Weekdays, 4 hours overlapping US Eastern mornings",
    "communication_style": "Friendly, concise Slack updates",
    "onboarding_plan": ["Week 1: shadow current posting workflow"]
  }
}
`)
	b.WriteString("```\n\n")
}

func writeProjectSpecFormat(b *strings.Builder) {
	b.WriteString("## Task\n\n")
	b.WriteString("Expand every architecture project into a specification with scope, deliverables and acceptance criteria.\n\n")
	b.WriteString("## Output Format\n\n```json\n")
	b.WriteString(`{
  "project_specs": [
    {
      "name": "Brand kit refresh",
      "objective": "Consistent visual identity across channels",
      "scope": ["Logo variations", "Social templates"],
      "deliverables": ["Logo pack (SVG, PNG)", "10 Canva templates"],
      "acceptance_criteria": ["Client approves final palette"],
      "estimated_hours": 15,
      "timeline": "2 weeks",
      "required_skills": ["Graphic design"]
    }
  ]
}
`)
	b.WriteString("```\n\n")
}
