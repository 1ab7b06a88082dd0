package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntakeForm_Validate(t *testing.T) {
	tests := []struct {
		name       string
		form       IntakeForm
		wantFields []string
	}{
		{
			name: "valid",
			form: IntakeForm{BusinessName: "Acme", Tasks: []string{"Social media", "Content"}, WeeklyHours: 20, Tools: []string{"Canva"}},
		},
		{
			name:       "missing business and tasks",
			form:       IntakeForm{Tasks: []string{"  ", ""}},
			wantFields: []string{"business_name", "tasks"},
		},
		{
			name:       "negative hours",
			form:       IntakeForm{BusinessName: "Acme", Tasks: []string{"Inbox"}, WeeklyHours: -1},
			wantFields: []string{"weekly_hours"},
		},
		{
			name:       "script in challenge",
			form:       IntakeForm{BusinessName: "Acme", Tasks: []string{"Inbox"}, BiggestChallenge: `<script>alert(1)</script>`},
			wantFields: []string{"biggest_challenge"},
		},
		{
			name: "ordinary punctuation is fine",
			form: IntakeForm{BusinessName: "Smith & Sons", Tasks: []string{"Reply to leads < 24h", "Track ROI = revenue / cost"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate()
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
			var got []string
			for _, f := range verr.Fields {
				got = append(got, f.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, got)
		})
	}
}

func TestParseServiceType(t *testing.T) {
	tests := []struct {
		input string
		want  ServiceType
	}{
		{"Dedicated VA", ServiceTypeDedicatedVA},
		{"dedicated_va", ServiceTypeDedicatedVA},
		{"Projects On-Demand", ServiceTypeProjectsOnDemand},
		{"projects", ServiceTypeProjectsOnDemand},
		{"Unicorn VA Service", ServiceTypeUnicornVA},
		{"unicorn", ServiceTypeUnicornVA},
	}
	for _, tt := range tests {
		got, err := ParseServiceType(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}

	_, err := ParseServiceType("Fractional COO")
	assert.Error(t, err)
}
