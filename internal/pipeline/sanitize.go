package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"

	"rfpdesk/internal"
)

// Models routinely wrap valid JSON in markdown fences or prose, so a
// naive parse of the whole completion fails even when a valid object is
// embedded. The recovery order matters: fence interior first, then the
// whole text, then the outermost brace slice.
var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// SanitizeModelJSON recovers a JSON object payload from an arbitrary
// model completion, or fails with MalformedResponseError carrying the
// original text.
func SanitizeModelJSON(raw string) (json.RawMessage, error) {
	text := strings.TrimSpace(raw)

	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	if payload, ok := tryParseObject(text); ok {
		return payload, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if payload, ok := tryParseObject(text[start : end+1]); ok {
			return payload, nil
		}
	}

	return nil, &internal.MalformedResponseError{Raw: raw}
}

// tryParseObject accepts only JSON objects; a bare scalar or array is
// never a usable payload for any extraction task.
func tryParseObject(s string) (json.RawMessage, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	if _, ok := v.(map[string]any); !ok {
		return nil, false
	}
	return json.RawMessage(s), true
}
