package prompts

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// Names of the LLM calls that have their own sampling settings.
const (
	StageDiscovery      = "discovery"
	StageClassification = "classification"
	StageArchitecture   = "architecture"
	StageSpecification  = "specification"
	StageValidation     = "validation"
	StageChatInsights   = "chat_insights"
	StageChatReply      = "chat_reply"
	StageSOP            = "sop"
)

//go:embed stages.yaml
var stagesYAML []byte

// StageSettings are the sampling parameters for one LLM call.
type StageSettings struct {
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

var (
	settingsOnce sync.Once
	settings     map[string]StageSettings
	settingsErr  error
)

// ParseStageSettings decodes a stages document.
func ParseStageSettings(data []byte) (map[string]StageSettings, error) {
	out := make(map[string]StageSettings)
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse stage settings: %w", err)
	}
	for name, s := range out {
		if s.Temperature < 0 || s.Temperature > 2 {
			return nil, fmt.Errorf("stage %s: temperature %.2f out of range", name, s.Temperature)
		}
		if s.MaxTokens <= 0 {
			return nil, fmt.Errorf("stage %s: max_tokens must be positive", name)
		}
	}
	return out, nil
}

// Settings returns the embedded settings for stage. Unknown stages fall back to
// a conservative default.
func Settings(stage string) StageSettings {
	settingsOnce.Do(func() {
		settings, settingsErr = ParseStageSettings(stagesYAML)
	})
	if settingsErr == nil {
		if s, ok := settings[stage]; ok {
			return s
		}
	}
	return StageSettings{Temperature: 0.3, MaxTokens: 2500}
}
