package pipeline

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/vaforge/vaforge-engine/pkg/models"
)

const maxKeyFindings = 5

// Assemble merges the stage outputs into the client package and derives the
// preview. It is a pure function of its inputs.
func Assemble(
	intake *models.IntakeForm,
	discovery *models.DiscoveryResult,
	classification *models.ClassificationResult,
	spec *models.SpecificationResult,
	validation *models.ValidationResult,
) (*models.EngagementPackage, *models.AnalysisPreview) {
	service := classification.RecommendedService

	pkg := &models.EngagementPackage{
		ServiceType: service,
		ExecutiveSummary: models.ExecutiveSummary{
			Overview:    buildOverview(intake, discovery, classification, spec),
			KeyFindings: buildKeyFindings(discovery, validation),
			ServiceRecommendation: models.ServiceRecommendation{
				Type:       service,
				Confidence: classification.Confidence,
				Reasoning:  classification.Reasoning,
			},
		},
		Role:         spec.JobDescription,
		Projects:     spec.ProjectSpecs,
		SupportAreas: spec.SupportAreas,
		Risks:        validation.Risks,
		Assumptions:  validation.Assumptions,
		RedFlags:     validation.RedFlags,
		NextSteps:    nextSteps(service),
	}
	pkg.TotalWeeklyHours = weeklyHours(spec)

	return pkg, BuildPreview(pkg)
}

// BuildPreview derives the list-view summary from a package.
func BuildPreview(pkg *models.EngagementPackage) *models.AnalysisPreview {
	preview := &models.AnalysisPreview{
		ServiceType:  pkg.ServiceType,
		ProjectCount: len(pkg.Projects),
		Summary:      firstSentence(pkg.ExecutiveSummary.Overview),
	}
	if pkg.Role != nil {
		preview.RoleTitle = pkg.Role.Title
	}
	return preview
}

func buildOverview(
	intake *models.IntakeForm,
	discovery *models.DiscoveryResult,
	classification *models.ClassificationResult,
	spec *models.SpecificationResult,
) string {
	var sentences []string

	bc := discovery.BusinessContext
	sentences = append(sentences, fmt.Sprintf("%s is %s %s-stage business whose main constraint is: %s.",
		intake.BusinessName, article(bc.CompanyStage), bc.CompanyStage, strings.TrimSuffix(bc.PrimaryBottleneck, ".")))

	tasks := len(intake.NonEmptyTasks())
	clusters := len(discovery.TaskClusters)
	sentences = append(sentences, fmt.Sprintf("We grouped %d %s into %d %s.",
		tasks, pluralize(tasks, "task"), clusters, pluralize(clusters, "workflow cluster")))

	rec := fmt.Sprintf("We recommend %s %s engagement (%d%% confidence)",
		article(string(classification.RecommendedService)), classification.RecommendedService, classification.Confidence)
	switch classification.RecommendedService {
	case models.ServiceTypeProjectsOnDemand:
		n := len(spec.ProjectSpecs)
		rec += fmt.Sprintf(" delivered as %d %s", n, pluralize(n, "project"))
	case models.ServiceTypeUnicornVA:
		n := len(spec.SupportAreas)
		if spec.JobDescription != nil {
			rec += fmt.Sprintf(" built around %s %s with %d specialist %s",
				article(spec.JobDescription.Title), spec.JobDescription.Title, n, pluralize(n, "support area"))
		}
	default:
		if spec.JobDescription != nil {
			rec += fmt.Sprintf(" for %s %s at %g hours per week",
				article(spec.JobDescription.Title), spec.JobDescription.Title, spec.JobDescription.WeeklyHours)
		}
	}
	sentences = append(sentences, rec+".")

	return strings.Join(sentences, " ")
}

func buildKeyFindings(discovery *models.DiscoveryResult, validation *models.ValidationResult) []string {
	var findings []string
	bc := discovery.BusinessContext
	if bc.PrimaryBottleneck != "" {
		findings = append(findings, "Primary bottleneck: "+bc.PrimaryBottleneck)
	}
	if bc.HiddenComplexity != "" {
		findings = append(findings, "Hidden complexity: "+bc.HiddenComplexity)
	}
	for _, p := range discovery.SOPInsights.PainPoints {
		findings = append(findings, "Pain point: "+p)
	}
	if n := len(validation.RedFlags); n > 0 {
		findings = append(findings, fmt.Sprintf("%d %s raised during validation", n, pluralize(n, "red flag")))
	}
	if len(findings) > maxKeyFindings {
		findings = findings[:maxKeyFindings]
	}
	return findings
}

func weeklyHours(spec *models.SpecificationResult) float64 {
	var total float64
	if spec.JobDescription != nil {
		total += spec.JobDescription.WeeklyHours
	}
	for _, a := range spec.SupportAreas {
		total += a.WeeklyHours
	}
	return total
}

func nextSteps(service models.ServiceType) []string {
	switch service {
	case models.ServiceTypeProjectsOnDemand:
		return []string{
			"Confirm project priorities and order of delivery",
			"Approve scope and acceptance criteria for the first project",
			"Schedule a kickoff call with the assigned specialist",
		}
	case models.ServiceTypeUnicornVA:
		return []string{
			"Review the core role and support areas",
			"Confirm the weekly hour split between core and specialist work",
			"Schedule onboarding for the core VA",
		}
	}
	return []string{
		"Review and approve the job description",
		"Confirm weekly hours and working schedule",
		"Schedule onboarding with your dedicated VA",
	}
}

func pluralize(n int, word string) string {
	if n == 1 {
		return word
	}
	return inflection.Plural(word)
}

// Vowel letters with a consonant sound take "a"; a silent h takes "an".
var (
	consonantSoundPrefixes = []string{"uni", "use", "usu", "uti", "ubi", "euro", "eu", "one", "once"}
	vowelSoundPrefixes     = []string{"hour", "honest", "honor", "heir"}
)

func article(word string) string {
	w := strings.ToLower(strings.TrimSpace(word))
	if w == "" {
		return "a"
	}
	for _, p := range consonantSoundPrefixes {
		if strings.HasPrefix(w, p) {
			return "a"
		}
	}
	for _, p := range vowelSoundPrefixes {
		if strings.HasPrefix(w, p) {
			return "an"
		}
	}
	switch w[0] {
	case 'a', 'e', 'i', 'o', 'u':
		return "an"
	}
	return "a"
}

func firstSentence(s string) string {
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	return s
}
