package pipeline

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfpdesk/internal"
)

func TestSanitizeModelJSONBareObject(t *testing.T) {
	payload, err := SanitizeModelJSON(`{"title": "Laptops"}`)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(payload, &doc))
	assert.Equal(t, "Laptops", doc["title"])
}

func TestSanitizeModelJSONFencedBlock(t *testing.T) {
	raw := "```json\n{\"title\": \"Laptops\", \"budget\": 5000}\n```"
	payload, err := SanitizeModelJSON(raw)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(payload, &doc))
	assert.Equal(t, "Laptops", doc["title"])
	assert.Equal(t, float64(5000), doc["budget"])
}

func TestSanitizeModelJSONFenceWithoutLanguageTag(t *testing.T) {
	raw := "```\n{\"ok\": true}\n```"
	payload, err := SanitizeModelJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, string(payload))
}

func TestSanitizeModelJSONProseWrapped(t *testing.T) {
	raw := `Sure! Here is the extracted data:
{"parsedData": {"totalPrice": 1200}}
Let me know if you need anything else.`
	payload, err := SanitizeModelJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"parsedData": {"totalPrice": 1200}}`, string(payload))
}

func TestSanitizeModelJSONNoBraces(t *testing.T) {
	_, err := SanitizeModelJSON("I could not extract any data from this email.")
	require.Error(t, err)

	var malformed *internal.MalformedResponseError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "I could not extract any data from this email.", malformed.Raw)
}

func TestSanitizeModelJSONRejectsScalarsAndArrays(t *testing.T) {
	for _, raw := range []string{`42`, `"just a string"`, `[1, 2, 3]`, `null`, ``} {
		_, err := SanitizeModelJSON(raw)
		var malformed *internal.MalformedResponseError
		require.True(t, errors.As(err, &malformed), "input %q should be malformed", raw)
	}
}

func TestSanitizeModelJSONTrailingProseAfterObject(t *testing.T) {
	raw := `{"summary": "ok", "scores": []} hope this helps`
	payload, err := SanitizeModelJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary": "ok", "scores": []}`, string(payload))
}
