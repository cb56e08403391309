package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrNoJSONFound indicates no decodable JSON value could be located in the
// generation output.
var ErrNoJSONFound = errors.New("no JSON value found in generation output")

var thinkingBlockRe = regexp.MustCompile(`(?s)<think(?:ing)?>.*?</think(?:ing)?>`)

// ExtractJSON pulls the structured payload out of a raw generation response.
// Models wrap their output in thinking blocks, markdown fences, or prose;
// extraction tolerates all three but never repairs the JSON itself.
func ExtractJSON(raw string) (string, error) {
	cleaned := thinkingBlockRe.ReplaceAllString(raw, "")
	cleaned = strings.TrimSpace(cleaned)

	if json.Valid([]byte(cleaned)) {
		return cleaned, nil
	}

	if fenced, ok := extractFenced(cleaned); ok && json.Valid([]byte(fenced)) {
		return fenced, nil
	}

	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(cleaned, pair[0])
		end := strings.LastIndex(cleaned, pair[1])

		if start >= 0 && end > start {
			candidate := cleaned[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
	}

	return "", ErrNoJSONFound
}

func extractFenced(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}

	rest := s[start+3:]
	if newline := strings.Index(rest, "\n"); newline >= 0 {
		// Skip the language tag on the opening fence.
		rest = rest[newline+1:]
	}

	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}

	return strings.TrimSpace(rest[:end]), true
}

// DecodeInto extracts the JSON payload from raw, validates it against the
// given JSON schema, and unmarshals it into v. Every failure mode is a decode
// failure the caller must treat as a generation error.
func DecodeInto(raw, schema string, v any) error {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(payload),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("generation output does not match schema: %s", strings.Join(details, "; "))
	}

	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("failed to unmarshal generation output: %w", err)
	}

	return nil
}
