package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name  string
		input json.RawMessage
		want  string
	}{
		{"string value", json.RawMessage(`"hello"`), "hello"},
		{"integer value", json.RawMessage(`42`), "42"},
		{"float value", json.RawMessage(`3.14`), "3.14"},
		{"boolean true", json.RawMessage(`true`), "true"},
		{"null value", json.RawMessage(`null`), ""},
		{"empty", nil, ""},
		{"object falls back to raw", json.RawMessage(`{"a":1}`), `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FlexibleStringValue(tt.input))
		})
	}
}

func TestFlexibleConfidence(t *testing.T) {
	tests := []struct {
		name   string
		input  json.RawMessage
		want   int
		wantOK bool
	}{
		{"integer", json.RawMessage(`85`), 85, true},
		{"float percent", json.RawMessage(`85.6`), 86, true},
		{"string", json.RawMessage(`"90"`), 90, true},
		{"string with percent", json.RawMessage(`"72%"`), 72, true},
		{"fraction", json.RawMessage(`0.85`), 85, true},
		{"one is one percent", json.RawMessage(`1`), 1, true},
		{"above range clamps", json.RawMessage(`140`), 100, true},
		{"negative clamps", json.RawMessage(`-5`), 0, true},
		{"null", json.RawMessage(`null`), 0, false},
		{"garbage", json.RawMessage(`"high"`), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FlexibleConfidence(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
