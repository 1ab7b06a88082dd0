package jsonutil

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases where
// LLMs return numbers or booleans instead of strings. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	return string(raw)
}

// FlexibleConfidence reads a model-reported confidence and normalizes it to an
// integer percentage in [0, 100]. Accepted shapes: 85, 85.4, "85", "85%", and
// fractions such as 0.85 (treated as 85). The second return value is false when
// the value is missing or cannot be interpreted.
func FlexibleConfidence(raw json.RawMessage) (int, bool) {
	s := strings.TrimSpace(FlexibleStringValue(raw))
	if s == "" {
		return 0, false
	}
	s = strings.TrimSuffix(s, "%")

	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	if f > 0 && f <= 1 && strings.Contains(s, ".") {
		f *= 100
	}
	return ClampPercent(int(math.Round(f))), true
}

// ClampPercent bounds v to [0, 100].
func ClampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
