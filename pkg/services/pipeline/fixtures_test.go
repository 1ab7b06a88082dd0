package pipeline

import (
	"context"
	"strings"

	"github.com/vaforge/vaforge-engine/pkg/llm"
)

const discoveryJSON = `{
  "business_context": {
    "company_stage": "growth",
    "primary_bottleneck": "Owner spends 15 hours a week creating content",
    "hidden_complexity": "Every post needs owner approval",
    "industry": "Retail",
    "primary_crm": "HubSpot"
  },
  "task_clusters": [
    {"name": "Content marketing", "tasks": ["Social media", "Content"], "skill_domain": "marketing", "recurring": true, "estimated_weekly_hours": 20}
  ],
  "sop_insights": {"pain_points": ["Posts are scheduled by hand"], "process_gaps": [], "compliance_notes": [], "tools_mentioned": ["Canva"]},
  "tool_stack": ["Canva"]
}`

const dedicatedClassificationJSON = `{
  "recommended_service": "Dedicated VA",
  "confidence": 88,
  "reasoning": "20 recurring hours in one domain",
  "decision_factors": {"weekly_hours": 20, "all_tasks_recurring": true, "skill_domain_count": 1, "dominant_role_share": 100}
}`

const projectsClassificationJSON = `{"recommended_service": "projects_on_demand", "confidence": "0.9", "reasoning": "One-time deliverables"}`

const dedicatedArchitectureJSON = `{
  "dedicated_role": {"title": "Marketing VA", "summary": "Runs social", "core_responsibilities": ["Post daily"], "weekly_hours": 20}
}`

const projectsArchitectureJSON = `{
  "projects": [
    {"name": "Brand kit", "objective": "Visual identity", "deliverables": ["Logo pack"], "estimated_hours": 12},
    {"name": "Content calendar", "objective": "Quarter plan", "deliverables": ["Calendar"], "estimated_hours": 6}
  ]
}`

const jobDescriptionJSON = `{
  "job_description": {
    "title": "Marketing VA",
    "summary": "Keeps Acme's channels active.",
    "responsibilities": ["Publish 5 posts per week"],
    "tools": ["Canva"],
    "weekly_hours": 20
  }
}`

const projectSpecsJSON = `{
  "project_specs": [
    {"name": "Brand kit", "objective": "Visual identity", "deliverables": ["Logo pack"], "estimated_hours": 12},
    {"name": "Content calendar", "objective": "Quarter plan", "deliverables": ["Calendar"], "estimated_hours": 6}
  ]
}`

const validationJSON = `{
  "consistency_score": 90,
  "hours_balance": "Balanced",
  "risks": [{"description": "Approval bottleneck", "severity": "Medium"}],
  "assumptions": ["Templates exist"],
  "red_flags": []
}`

const unicornClassificationJSON = `{"recommended_service": "Unicorn VA", "confidence": 76, "reasoning": "One dominant operations role plus bookkeeping"}`

const unicornArchitectureJSON = `{
  "core_role": {"title": "Operations VA", "summary": "Runs the inbox and onboarding", "core_responsibilities": ["Inbox zero daily"], "weekly_hours": 25},
  "support_areas": [
    {"name": "Bookkeeping", "skills": ["QuickBooks"], "weekly_hours": 4, "rationale": "Monthly reconciliation"}
  ]
}`

const unicornSpecificationJSON = `{
  "job_description": {
    "title": "Operations VA",
    "summary": "Keeps Acme's operations moving.",
    "responsibilities": ["Clear the shared inbox daily"],
    "weekly_hours": 25
  },
  "support_areas": [
    {"name": "Bookkeeping", "weekly_hours": 4},
    {"name": "Graphic design", "weekly_hours": 3}
  ]
}`

const criticalRiskValidationJSON = `{
  "consistency_score": 140,
  "risks": [
    {"description": "Owner is the only approver", "severity": "Critical"},
    {"description": "Tool overlap", "severity": "moderate"},
    {"description": "", "severity": "high"}
  ]
}`

// stageResponses answers each stage by the heading of its prompt.
type stageResponses map[string]string

func (r stageResponses) client() *llm.MockLLMClient {
	m := llm.NewMockLLMClient()
	m.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, opts llm.GenerateOptions) (*llm.GenerateResponseResult, error) {
		for heading, body := range r {
			if strings.HasPrefix(prompt, heading) {
				return &llm.GenerateResponseResult{Content: body}, nil
			}
		}
		return &llm.GenerateResponseResult{Content: "{}"}, nil
	}
	return m
}

const (
	headingDiscovery      = "# Business Discovery"
	headingClassification = "# Service Classification"
	headingArchitecture   = "# Engagement Architecture"
	headingSpecification  = "# Detailed Specification"
	headingValidation     = "# Engagement Validation"
)

func dedicatedResponses() stageResponses {
	return stageResponses{
		headingDiscovery:      discoveryJSON,
		headingClassification: dedicatedClassificationJSON,
		headingArchitecture:   dedicatedArchitectureJSON,
		headingSpecification:  jobDescriptionJSON,
		headingValidation:     validationJSON,
	}
}

func projectResponses() stageResponses {
	return stageResponses{
		headingDiscovery:      discoveryJSON,
		headingClassification: projectsClassificationJSON,
		headingArchitecture:   projectsArchitectureJSON,
		headingSpecification:  projectSpecsJSON,
		headingValidation:     validationJSON,
	}
}

func unicornResponses() stageResponses {
	return stageResponses{
		headingDiscovery:      discoveryJSON,
		headingClassification: unicornClassificationJSON,
		headingArchitecture:   unicornArchitectureJSON,
		headingSpecification:  unicornSpecificationJSON,
		headingValidation:     validationJSON,
	}
}
