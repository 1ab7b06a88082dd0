package prompts

import (
	"strings"

	"github.com/vaforge/vaforge-engine/pkg/models"
)

// SOPSystemMessage frames SOP generation.
func SOPSystemMessage() string {
	return `You write Standard Operating Procedures that a newly hired virtual assistant can follow on day one without asking questions.`
}

// BuildSOPPrompt creates the SOP generation prompt. existingText is the
// fetched or pasted current procedure, if any.
func BuildSOPPrompt(req *models.SOPRequest, existingText, knowledgeContext string) string {
	var b strings.Builder

	b.WriteString("# SOP Generation\n\n")
	b.WriteString("## Process\n\n")
	b.WriteString("- **Name**: " + req.ProcessName + "\n")
	if req.Description != "" {
		b.WriteString("- **Description**: " + req.Description + "\n")
	}
	writeList(&b, "Tools", req.Tools)
	b.WriteString("\n")

	if existingText != "" {
		b.WriteString("## Current Procedure\n\nImprove on this; keep steps that work.\n\n")
		b.WriteString(truncate(existingText, maxDocumentChars))
		b.WriteString("\n\n")
	}
	if knowledgeContext != "" {
		b.WriteString("## Organization Context\n\n")
		b.WriteString(knowledgeContext)
		b.WriteString("\n\n")
	}

	b.WriteString("## Output Format\n\nSteps are numbered from 1 in execution order.\n\n```json\n")
	b.WriteString(`{
  "title": "Weekly Newsletter Publishing",
  "purpose": "Send a consistent newsletter every Thursday.",
  "scope": "From draft to send and post-send reporting.",
  "roles": ["Marketing VA", "Owner (approver)"],
  "tools": ["Mailchimp", "Google Docs"],
  "steps": [
    {"number": 1, "title": "Draft", "instructions": "Copy the template doc and draft by Tuesday 5pm.", "owner": "Marketing VA", "tools": ["Google Docs"]}
  ],
  "quality_checks": ["All links tested"],
  "escalation": ["Owner unreachable by Wednesday noon: send the evergreen issue"]
}
`)
	b.WriteString("```\n\n")
	b.WriteString(jsonOnlyFooter)

	return b.String()
}
