package models

import (
	"strings"

	"github.com/corazawaf/libinjection-go"
)

// AttachedDocument is a file uploaded with the intake form, base64 encoded.
type AttachedDocument struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Content  string `json:"content"`
}

// IntakeForm is the client questionnaire driving one analysis. It is not
// modified after submission.
type IntakeForm struct {
	BusinessName     string             `json:"business_name"`
	Website          string             `json:"website,omitempty"`
	Industry         string             `json:"industry,omitempty"`
	Tasks            []string           `json:"tasks"`
	WeeklyHours      float64            `json:"weekly_hours"`
	Tools            []string           `json:"tools,omitempty"`
	DesiredOutcomes  []string           `json:"desired_outcomes,omitempty"`
	BiggestChallenge string             `json:"biggest_challenge,omitempty"`
	SOPText          string             `json:"sop_text,omitempty"`
	SOPURL           string             `json:"sop_url,omitempty"`
	ComplianceFlags  []string           `json:"compliance_flags,omitempty"`
	BrandVoice       []string           `json:"brand_voice,omitempty"`
	ClientFacing     bool               `json:"client_facing"`
	Timezone         string             `json:"timezone,omitempty"`
	Documents        []AttachedDocument `json:"documents,omitempty"`
}

// Validate checks the intake before any LLM work starts. Every problem is
// reported at once.
func (f *IntakeForm) Validate() error {
	verr := &ValidationError{}

	if strings.TrimSpace(f.BusinessName) == "" {
		verr.Add("business_name", "is required")
	}
	if len(f.NonEmptyTasks()) == 0 {
		verr.Add("tasks", "at least one task is required")
	}
	if f.WeeklyHours < 0 {
		verr.Add("weekly_hours", "must not be negative")
	}
	if f.WeeklyHours > 168 {
		verr.Add("weekly_hours", "must not exceed 168")
	}

	for field, value := range f.textFields() {
		if containsMarkupInjection(value) {
			verr.Add(field, "contains disallowed markup")
		}
	}
	return verr.orNil()
}

// NonEmptyTasks returns the trimmed, non-blank task entries.
func (f *IntakeForm) NonEmptyTasks() []string {
	tasks := make([]string, 0, len(f.Tasks))
	for _, t := range f.Tasks {
		if t = strings.TrimSpace(t); t != "" {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

func (f *IntakeForm) textFields() map[string]string {
	fields := map[string]string{
		"business_name":     f.BusinessName,
		"industry":          f.Industry,
		"biggest_challenge": f.BiggestChallenge,
		"sop_text":          f.SOPText,
	}
	for _, t := range f.Tasks {
		fields["tasks"] += t + "\n"
	}
	for _, t := range f.DesiredOutcomes {
		fields["desired_outcomes"] += t + "\n"
	}
	return fields
}

// containsMarkupInjection flags script or markup payloads. Prompt text is
// echoed back into rendered HTML and PDFs, so it must stay plain.
func containsMarkupInjection(s string) bool {
	if s == "" || !strings.ContainsAny(s, "<>=\"'`") {
		return false
	}
	return libinjection.IsXSS(s)
}
