package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// maxJSONCandidates bounds how many opening brackets are tried before giving up.
const maxJSONCandidates = 32

// ErrNoJSON is returned when a response holds no decodable JSON value.
var ErrNoJSON = errors.New("no valid JSON found in response")

// reasoningPattern matches a leading <think>...</think> block emitted by reasoning models.
var reasoningPattern = regexp.MustCompile(`(?s)^\s*<think>.*?</think>`)

// ExtractJSON returns the first complete JSON object or array in an LLM
// response, skipping reasoning blocks, markdown fences and surrounding prose.
func ExtractJSON(response string) (string, error) {
	text := reasoningPattern.ReplaceAllString(response, "")

	tried := 0
	for i := 0; i < len(text) && tried < maxJSONCandidates; i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		tried++
		if value, ok := decodeFirstValue(text[i:]); ok {
			return value, nil
		}
	}

	return "", ErrNoJSON
}

// decodeFirstValue decodes one JSON value at the start of s and returns its
// source text. Trailing content is ignored.
func decodeFirstValue(s string) (string, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return "", false
	}
	return s[:dec.InputOffset()], true
}

// ParseJSONResponse extracts JSON from a response and unmarshals it into T.
// Unknown fields are ignored; callers validate the decoded value themselves.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("unmarshal JSON: %w", err)
	}

	return result, nil
}
