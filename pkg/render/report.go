// Package render turns a finished analysis into the downloadable engagement report.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/vaforge/vaforge-engine/pkg/models"
)

// Report is the fixed-layout content of the PDF, independent of fonts and pages.
type Report struct {
	Title        string             `json:"title"`
	BusinessName string             `json:"business_name"`
	ServiceType  models.ServiceType `json:"service_type"`
	RoleTitle    string             `json:"role_title,omitempty"`
	ProjectCount int                `json:"project_count"`
	WeeklyHours  float64            `json:"weekly_hours"`
	GeneratedAt  time.Time          `json:"generated_at"`
	Sections     []Section          `json:"sections"`
}

// Section is one headed block of the report. Subsections render indented
// under it, e.g. one per project.
type Section struct {
	Heading     string    `json:"heading"`
	Paragraphs  []string  `json:"paragraphs,omitempty"`
	Fields      []Field   `json:"fields,omitempty"`
	Bullets     []string  `json:"bullets,omitempty"`
	Subsections []Section `json:"subsections,omitempty"`
}

// Field is a labelled value such as "Weekly hours: 20".
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// BuildReport lays out the engagement package. intake may be nil when only a
// result object was posted.
func BuildReport(intake *models.IntakeForm, result *models.PipelineResult, now time.Time) *Report {
	pkg := &result.Package
	r := &Report{
		ServiceType:  pkg.ServiceType,
		ProjectCount: len(pkg.Projects),
		WeeklyHours:  pkg.TotalWeeklyHours,
		GeneratedAt:  now.UTC(),
	}
	if pkg.Role != nil {
		r.RoleTitle = pkg.Role.Title
	}
	if intake != nil {
		r.BusinessName = strings.TrimSpace(intake.BusinessName)
	}
	r.Title = reportTitle(r)

	r.add(summarySection(pkg))
	switch {
	case pkg.Role != nil:
		r.add(roleSection(pkg.Role))
	case len(pkg.Projects) > 0:
		r.add(projectsSection(pkg.Projects))
	}
	if len(pkg.SupportAreas) > 0 {
		r.add(supportSection(pkg.SupportAreas))
	}
	r.add(risksSection(pkg.Risks))
	r.add(Section{Heading: "Assumptions", Bullets: nonEmpty(pkg.Assumptions)})
	r.add(Section{Heading: "Red Flags", Bullets: nonEmpty(pkg.RedFlags)})
	r.add(Section{Heading: "Next Steps", Bullets: nonEmpty(pkg.NextSteps)})
	return r
}

// add keeps only sections with content.
func (r *Report) add(s Section) {
	if len(s.Paragraphs) == 0 && len(s.Fields) == 0 && len(s.Bullets) == 0 && len(s.Subsections) == 0 {
		return
	}
	r.Sections = append(r.Sections, s)
}

func reportTitle(r *Report) string {
	subject := string(r.ServiceType)
	if r.RoleTitle != "" {
		subject = r.RoleTitle
	}
	if subject == "" {
		subject = "Engagement Proposal"
	}
	if r.BusinessName == "" {
		return subject
	}
	return fmt.Sprintf("%s for %s", subject, r.BusinessName)
}

func summarySection(pkg *models.EngagementPackage) Section {
	es := pkg.ExecutiveSummary
	s := Section{Heading: "Executive Summary", Bullets: nonEmpty(es.KeyFindings)}
	if es.Overview != "" {
		s.Paragraphs = append(s.Paragraphs, es.Overview)
	}
	rec := es.ServiceRecommendation
	if rec.Type != "" {
		s.Fields = append(s.Fields, Field{"Recommended service", string(rec.Type)})
		s.Fields = append(s.Fields, Field{"Confidence", fmt.Sprintf("%d%%", rec.Confidence)})
	}
	if pkg.TotalWeeklyHours > 0 {
		s.Fields = append(s.Fields, Field{"Total weekly hours", formatHours(pkg.TotalWeeklyHours)})
	}
	if rec.Reasoning != "" {
		s.Paragraphs = append(s.Paragraphs, rec.Reasoning)
	}
	return s
}

func roleSection(jd *models.JobDescription) Section {
	s := Section{Heading: "Role: " + jd.Title}
	if jd.Summary != "" {
		s.Paragraphs = []string{jd.Summary}
	}
	s.Fields = fields(
		Field{"Weekly hours", formatHours(jd.WeeklyHours)},
		Field{"Schedule", jd.Schedule},
		Field{"Communication", jd.CommunicationStyle},
		Field{"Tools", strings.Join(nonEmpty(jd.Tools), ", ")},
	)
	s.Subsections = subsections(
		Section{Heading: "Responsibilities", Bullets: nonEmpty(jd.Responsibilities)},
		Section{Heading: "Requirements", Bullets: nonEmpty(jd.Requirements)},
		Section{Heading: "Preferred Skills", Bullets: nonEmpty(jd.PreferredSkills)},
		Section{Heading: "KPIs", Bullets: nonEmpty(jd.KPIs)},
		Section{Heading: "Onboarding Plan", Bullets: nonEmpty(jd.OnboardingPlan)},
	)
	return s
}

func projectsSection(projects []models.ProjectSpec) Section {
	s := Section{Heading: "Projects"}
	for i, p := range projects {
		sub := Section{Heading: fmt.Sprintf("%d. %s", i+1, p.Name)}
		if p.Objective != "" {
			sub.Paragraphs = []string{p.Objective}
		}
		sub.Fields = fields(
			Field{"Estimated hours", formatHours(p.EstimatedHours)},
			Field{"Timeline", p.Timeline},
			Field{"Skills", strings.Join(nonEmpty(p.RequiredSkills), ", ")},
		)
		sub.Bullets = nonEmpty(append(append([]string{}, p.Deliverables...), p.AcceptanceCriteria...))
		s.Subsections = append(s.Subsections, sub)
	}
	return s
}

func supportSection(areas []models.SupportArea) Section {
	s := Section{Heading: "Specialist Support"}
	for _, a := range areas {
		sub := Section{Heading: a.Name}
		if a.Rationale != "" {
			sub.Paragraphs = []string{a.Rationale}
		}
		sub.Fields = fields(
			Field{"Weekly hours", formatHours(a.WeeklyHours)},
			Field{"Skills", strings.Join(nonEmpty(a.Skills), ", ")},
		)
		s.Subsections = append(s.Subsections, sub)
	}
	return s
}

func risksSection(risks []models.Risk) Section {
	s := Section{Heading: "Risks"}
	for _, r := range risks {
		line := fmt.Sprintf("[%s] %s", strings.ToUpper(r.Severity), r.Description)
		if r.Mitigation != "" {
			line += " Mitigation: " + r.Mitigation
		}
		s.Bullets = append(s.Bullets, line)
	}
	return s
}

func fields(fs ...Field) []Field {
	var out []Field
	for _, f := range fs {
		if strings.TrimSpace(f.Value) != "" {
			out = append(out, f)
		}
	}
	return out
}

func subsections(ss ...Section) []Section {
	var out []Section
	for _, s := range ss {
		if len(s.Bullets) > 0 || len(s.Paragraphs) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func nonEmpty(items []string) []string {
	var out []string
	for _, item := range items {
		if t := strings.TrimSpace(item); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func formatHours(h float64) string {
	if h <= 0 {
		return ""
	}
	if h == float64(int(h)) {
		return fmt.Sprintf("%d", int(h))
	}
	return fmt.Sprintf("%.1f", h)
}
