package pipeline

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfpdesk/internal"
)

func TestValidatePayloadRfp(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantField string
	}{
		{"valid full", `{"title": "Chairs", "requirements": {"items": []}}`, ""},
		{"missing fields allowed", `{}`, ""},
		{"null title allowed", `{"title": null}`, ""},
		{"wrong title type", `{"title": 42}`, "title"},
		{"wrong requirements type", `{"requirements": "a lot"}`, "requirements"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(TaskStructureRfp, json.RawMessage(tt.payload))
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			var schema *internal.SchemaViolationError
			require.True(t, errors.As(err, &schema))
			assert.Equal(t, tt.wantField, schema.Field)
		})
	}
}

func TestValidatePayloadProposal(t *testing.T) {
	err := ValidatePayload(TaskParseProposal, json.RawMessage(`{"parsedData": {"totalPrice": 10}}`))
	require.NoError(t, err)

	err = ValidatePayload(TaskParseProposal, json.RawMessage(`{"totalPrice": 10}`))
	var schema *internal.SchemaViolationError
	require.True(t, errors.As(err, &schema))
	assert.Equal(t, "parsedData", schema.Field)

	err = ValidatePayload(TaskParseProposal, json.RawMessage(`{"parsedData": {"lineItems": "none"}}`))
	require.True(t, errors.As(err, &schema))
	assert.Equal(t, "parsedData.lineItems", schema.Field)
}

func TestValidatePayloadCompare(t *testing.T) {
	valid := `{"summary": "s", "recommendation": null, "scores": []}`
	require.NoError(t, ValidatePayload(TaskCompare, json.RawMessage(valid)))

	var schema *internal.SchemaViolationError

	err := ValidatePayload(TaskCompare, json.RawMessage(`{"recommendation": null, "scores": []}`))
	require.True(t, errors.As(err, &schema))
	assert.Equal(t, "summary", schema.Field)

	err = ValidatePayload(TaskCompare, json.RawMessage(`{"summary": "s", "scores": []}`))
	require.True(t, errors.As(err, &schema))
	assert.Equal(t, "recommendation", schema.Field)

	err = ValidatePayload(TaskCompare, json.RawMessage(`{"summary": "s", "recommendation": null}`))
	require.True(t, errors.As(err, &schema))
	assert.Equal(t, "scores", schema.Field)
}
