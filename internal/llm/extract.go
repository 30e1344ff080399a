package llm

import (
	"fmt"
	"strings"

	"github.com/discharge-coordinator/internal/jsonx"
)

// ExtractJSON locates and parses the JSON object embedded in raw backend
// output. Backends sometimes wrap JSON in markdown fencing; a recognized
// fence prefix/suffix is stripped first, then the substring from the first
// '{' to the last '}' is parsed. Returns ErrMalformedResponse when no brace
// pair exists or the substring is not valid JSON.
func ExtractJSON(raw string) (map[string]interface{}, error) {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	var out map[string]interface{}
	if err := jsonx.UnmarshalFromString(s[start:end+1], &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return out, nil
}

// StringField reads a string-valued key from an extracted object, returning
// fallback when the key is absent or not a string.
func StringField(obj map[string]interface{}, key, fallback string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return fallback
}

// StringSlice reads a []string-valued key, tolerating the []interface{}
// shape produced by JSON decoding. Non-string elements are skipped.
func StringSlice(obj map[string]interface{}, key string) []string {
	raw, ok := obj[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// NumberField reads a numeric key as float64, returning fallback when the
// key is absent or not numeric. Sonic decodes integers as int64 when
// UseInt64 is set, so both shapes are accepted.
func NumberField(obj map[string]interface{}, key string, fallback float64) float64 {
	switch v := obj[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return fallback
}
