package models

import (
	"strings"
)

// DiscoveryResult is the Stage 1 output: business context, task clusters and SOP findings.
type DiscoveryResult struct {
	BusinessContext BusinessContext `json:"business_context"`
	TaskClusters    []TaskCluster   `json:"task_clusters" validate:"min=1,dive"`
	SOPInsights     SOPInsights     `json:"sop_insights"`
	ToolStack       []string        `json:"tool_stack"`
}

type BusinessContext struct {
	CompanyStage      string   `json:"company_stage" validate:"required,oneof=startup growth established"`
	PrimaryBottleneck string   `json:"primary_bottleneck" validate:"required"`
	HiddenComplexity  string   `json:"hidden_complexity"`
	Industry          string   `json:"industry"`
	TargetAudience    string   `json:"target_audience"`
	PrimaryCRM        string   `json:"primary_crm"`
	GrowthIndicators  []string `json:"growth_indicators"`
}

type TaskCluster struct {
	Name                 string   `json:"name" validate:"required"`
	Tasks                []string `json:"tasks"`
	SkillDomain          string   `json:"skill_domain"`
	Recurring            bool     `json:"recurring"`
	EstimatedWeeklyHours float64  `json:"estimated_weekly_hours" validate:"gte=0"`
	Complexity           string   `json:"complexity"`
}

type SOPInsights struct {
	PainPoints      []string `json:"pain_points"`
	ProcessGaps     []string `json:"process_gaps"`
	ComplianceNotes []string `json:"compliance_notes"`
	ToolsMentioned  []string `json:"tools_mentioned"`
}

// Normalize lowercases enumerations the model sometimes capitalizes.
func (d *DiscoveryResult) Normalize() {
	d.BusinessContext.CompanyStage = strings.ToLower(strings.TrimSpace(d.BusinessContext.CompanyStage))
}

// ClassificationResult is the Stage 2 output.
type ClassificationResult struct {
	RecommendedService ServiceType     `json:"recommended_service" validate:"required,service_type"`
	Confidence         int             `json:"confidence" validate:"min=0,max=100"`
	Reasoning          string          `json:"reasoning" validate:"required"`
	DecisionFactors    DecisionFactors `json:"decision_factors"`
	AlternativeService string          `json:"alternative_service,omitempty"`
}

// DecisionFactors are the inputs of the classification hard rules.
type DecisionFactors struct {
	WeeklyHours         float64 `json:"weekly_hours"`
	AllTasksRecurring   bool    `json:"all_tasks_recurring"`
	OneTimeDeliverables bool    `json:"one_time_deliverables"`
	SkillDomainCount    int     `json:"skill_domain_count"`
	DominantRoleShare   int     `json:"dominant_role_share"`
}

// RoleDesign describes one VA role.
type RoleDesign struct {
	Title                string   `json:"title" validate:"required"`
	Summary              string   `json:"summary"`
	CoreResponsibilities []string `json:"core_responsibilities" validate:"min=1"`
	WeeklyHours          float64  `json:"weekly_hours" validate:"gte=0"`
	Skills               []string `json:"skills"`
	Tools                []string `json:"tools"`
	KPIs                 []string `json:"kpis"`
}

// ProjectDesign describes one finite deliverable engagement.
type ProjectDesign struct {
	Name           string   `json:"name" validate:"required"`
	Objective      string   `json:"objective"`
	Deliverables   []string `json:"deliverables" validate:"min=1"`
	EstimatedHours float64  `json:"estimated_hours" validate:"gte=0"`
	Timeline       string   `json:"timeline"`
	Skills         []string `json:"skills"`
}

// SupportArea is a specialist need outside a Unicorn engagement's core role.
type SupportArea struct {
	Name        string   `json:"name" validate:"required"`
	Skills      []string `json:"skills"`
	WeeklyHours float64  `json:"weekly_hours" validate:"gte=0"`
	Rationale   string   `json:"rationale"`
}

// ArchitectureResult is the Stage 3 output. Exactly one variant is populated,
// selected by ServiceType.
type ArchitectureResult struct {
	ServiceType   ServiceType     `json:"service_type"`
	DedicatedRole *RoleDesign     `json:"dedicated_role,omitempty"`
	Projects      []ProjectDesign `json:"projects,omitempty"`
	CoreRole      *RoleDesign     `json:"core_role,omitempty"`
	SupportAreas  []SupportArea   `json:"support_areas,omitempty"`
}

// Validate checks that the variant matching ServiceType is present and well formed.
func (a *ArchitectureResult) Validate() error {
	verr := &ValidationError{}
	switch a.ServiceType {
	case ServiceTypeDedicatedVA:
		if a.DedicatedRole == nil {
			verr.Add("dedicated_role", "is required")
			break
		}
		mergeValidation(verr, "dedicated_role", ValidateStruct(a.DedicatedRole))
	case ServiceTypeProjectsOnDemand:
		if len(a.Projects) == 0 {
			verr.Add("projects", "at least one project is required")
		}
		for i := range a.Projects {
			mergeValidation(verr, "projects", ValidateStruct(&a.Projects[i]))
		}
	case ServiceTypeUnicornVA:
		if a.CoreRole == nil {
			verr.Add("core_role", "is required")
		} else {
			mergeValidation(verr, "core_role", ValidateStruct(a.CoreRole))
		}
		if len(a.SupportAreas) == 0 {
			verr.Add("support_areas", "at least one support area is required")
		}
		for i := range a.SupportAreas {
			mergeValidation(verr, "support_areas", ValidateStruct(&a.SupportAreas[i]))
		}
	default:
		verr.Add("service_type", "is not a known service type")
	}
	return verr.orNil()
}

// JobDescription is the detailed role specification for Dedicated and Unicorn engagements.
type JobDescription struct {
	Title              string   `json:"title" validate:"required"`
	Summary            string   `json:"summary" validate:"required"`
	Responsibilities   []string `json:"responsibilities" validate:"min=1"`
	Requirements       []string `json:"requirements"`
	PreferredSkills    []string `json:"preferred_skills"`
	Tools              []string `json:"tools"`
	KPIs               []string `json:"kpis"`
	WeeklyHours        float64  `json:"weekly_hours" validate:"gte=0"`
	Schedule           string   `json:"schedule"`
	CommunicationStyle string   `json:"communication_style"`
	OnboardingPlan     []string `json:"onboarding_plan"`
}

// ProjectSpec is the detailed specification of one project.
type ProjectSpec struct {
	Name               string   `json:"name" validate:"required"`
	Objective          string   `json:"objective" validate:"required"`
	Scope              []string `json:"scope"`
	Deliverables       []string `json:"deliverables" validate:"min=1"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	EstimatedHours     float64  `json:"estimated_hours" validate:"gte=0"`
	Timeline           string   `json:"timeline"`
	RequiredSkills     []string `json:"required_skills"`
}

// SpecificationResult is the Stage 4 output: a job description, or project specs
// for Projects on Demand.
type SpecificationResult struct {
	ServiceType    ServiceType     `json:"service_type"`
	JobDescription *JobDescription `json:"job_description,omitempty"`
	ProjectSpecs   []ProjectSpec   `json:"project_specs,omitempty"`
	SupportAreas   []SupportArea   `json:"support_areas,omitempty"`
}

// Validate checks the variant matching ServiceType.
func (s *SpecificationResult) Validate() error {
	verr := &ValidationError{}
	switch s.ServiceType {
	case ServiceTypeDedicatedVA, ServiceTypeUnicornVA:
		if s.JobDescription == nil {
			verr.Add("job_description", "is required")
			break
		}
		mergeValidation(verr, "job_description", ValidateStruct(s.JobDescription))
	case ServiceTypeProjectsOnDemand:
		if len(s.ProjectSpecs) == 0 {
			verr.Add("project_specs", "at least one project is required")
		}
		for i := range s.ProjectSpecs {
			mergeValidation(verr, "project_specs", ValidateStruct(&s.ProjectSpecs[i]))
		}
	default:
		verr.Add("service_type", "is not a known service type")
	}
	return verr.orNil()
}

// Risk is one advisory finding from Stage 5.
type Risk struct {
	Description string `json:"description" validate:"required"`
	Severity    string `json:"severity" validate:"oneof=low medium high"`
	Mitigation  string `json:"mitigation"`
}

// ValidationResult is the Stage 5 output. It never blocks the pipeline.
type ValidationResult struct {
	ConsistencyScore int      `json:"consistency_score" validate:"min=0,max=100"`
	HoursBalance     string   `json:"hours_balance"`
	ToolAlignment    string   `json:"tool_alignment"`
	OutcomeCoverage  string   `json:"outcome_coverage"`
	Risks            []Risk   `json:"risks" validate:"dive"`
	Assumptions      []string `json:"assumptions"`
	RedFlags         []string `json:"red_flags"`
	Recommendations  []string `json:"recommendations"`
}

// Normalize coerces risk severities into low, medium or high so an unusual
// label never fails the run. Risks without a description are dropped.
func (v *ValidationResult) Normalize() {
	risks := v.Risks[:0]
	for _, r := range v.Risks {
		r.Description = strings.TrimSpace(r.Description)
		if r.Description == "" {
			continue
		}
		r.Severity = normalizeSeverity(r.Severity)
		risks = append(risks, r)
	}
	v.Risks = risks
}

func normalizeSeverity(raw string) string {
	switch sev := strings.ToLower(strings.TrimSpace(raw)); sev {
	case "low", "medium", "high":
		return sev
	case "critical", "severe", "blocker", "very high", "urgent":
		return "high"
	case "minor", "very low", "negligible", "info":
		return "low"
	default:
		return "medium"
	}
}

// ServiceRecommendation is the headline of the executive summary.
type ServiceRecommendation struct {
	Type       ServiceType `json:"type"`
	Confidence int         `json:"confidence"`
	Reasoning  string      `json:"reasoning"`
}

type ExecutiveSummary struct {
	Overview              string                `json:"overview"`
	KeyFindings           []string              `json:"key_findings"`
	ServiceRecommendation ServiceRecommendation `json:"service_recommendation"`
}

// EngagementPackage is the client-facing result assembled from Stages 1-5.
type EngagementPackage struct {
	ExecutiveSummary ExecutiveSummary `json:"executive_summary"`
	ServiceType      ServiceType      `json:"service_type"`
	Role             *JobDescription  `json:"role,omitempty"`
	Projects         []ProjectSpec    `json:"projects,omitempty"`
	SupportAreas     []SupportArea    `json:"support_areas,omitempty"`
	TotalWeeklyHours float64          `json:"total_weekly_hours"`
	Risks            []Risk           `json:"risks"`
	Assumptions      []string         `json:"assumptions"`
	RedFlags         []string         `json:"red_flags"`
	NextSteps        []string         `json:"next_steps"`
}

// AnalysisPreview is the compact summary shown in saved-analysis lists.
type AnalysisPreview struct {
	ServiceType  ServiceType `json:"service_type"`
	RoleTitle    string      `json:"role_title,omitempty"`
	ProjectCount int         `json:"project_count"`
	Summary      string      `json:"summary,omitempty"`
}

// PipelineResult holds every stage output of one analysis run.
type PipelineResult struct {
	Discovery      DiscoveryResult      `json:"discovery"`
	Classification ClassificationResult `json:"classification"`
	Architecture   ArchitectureResult   `json:"architecture"`
	DetailedSpecs  SpecificationResult  `json:"detailed_specs"`
	Validation     ValidationResult     `json:"validation"`
	Package        EngagementPackage    `json:"package"`
	Preview        AnalysisPreview      `json:"preview"`
}

// ValidateSaved checks a client-submitted result before it is persisted: the
// package must carry the classified service type and the variant it requires.
func (r *PipelineResult) ValidateSaved() error {
	verr := &ValidationError{}
	service := r.Classification.RecommendedService
	if !service.IsValid() {
		verr.Add("result.classification.recommended_service", "is not a known service type")
		return verr
	}

	pkg := &r.Package
	if pkg.ServiceType != service {
		verr.Add("result.package.service_type", "must match the classification")
	}
	if rec := pkg.ExecutiveSummary.ServiceRecommendation.Type; rec != service {
		verr.Add("result.package.executive_summary.service_recommendation", "must match the classification")
	}
	switch service {
	case ServiceTypeProjectsOnDemand:
		if len(pkg.Projects) == 0 {
			verr.Add("result.package.projects", "at least one project is required")
		}
	default:
		if pkg.Role == nil || strings.TrimSpace(pkg.Role.Title) == "" {
			verr.Add("result.package.role", "a titled role is required")
		}
	}
	return verr.orNil()
}

// mergeValidation folds the field errors of a nested validation under prefix.
func mergeValidation(dst *ValidationError, prefix string, err error) {
	if err == nil {
		return
	}
	nested, ok := err.(*ValidationError)
	if !ok {
		dst.Add(prefix, err.Error())
		return
	}
	for _, f := range nested.Fields {
		dst.Add(prefix+"."+f.Field, f.Message)
	}
}
