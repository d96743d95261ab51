package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfpdesk/internal"
)

const proposalCompletion = `{
	"parsedData": {
		"totalPrice": 18500,
		"currency": "EUR",
		"deliveryDays": 14,
		"paymentTerms": "50% upfront",
		"warrantyYears": 2,
		"lineItems": [
			{"item": "Desk", "unitPrice": 370, "quantity": 50}
		],
		"extraConditions": "Free shipping over 10k"
	}
}`

func TestParseProposal(t *testing.T) {
	client := &fakeClient{text: proposalCompletion}
	rfp := internal.Rfp{ID: "r1", Title: "Desks"}

	parsed, err := NewExtractor(client, "test-model").
		ParseProposal(context.Background(), rfp, "Re: RFP", "sales@acme.test", "our offer...")
	require.NoError(t, err)

	require.NotNil(t, parsed.TotalPrice)
	assert.Equal(t, 18500.0, *parsed.TotalPrice)
	require.NotNil(t, parsed.DeliveryDays)
	assert.Equal(t, 14, *parsed.DeliveryDays)
	require.Len(t, parsed.LineItems, 1)
	assert.Equal(t, "Desk", parsed.LineItems[0].Item)
	require.NotNil(t, parsed.ExtraConditions)
	assert.Equal(t, "Free shipping over 10k", *parsed.ExtraConditions)
}

func TestParseProposalFencedMatchesBare(t *testing.T) {
	rfp := internal.Rfp{ID: "r1"}
	bare := &fakeClient{text: proposalCompletion}
	fenced := &fakeClient{text: "```json\n" + proposalCompletion + "\n```"}

	fromBare, err := NewExtractor(bare, "m").ParseProposal(context.Background(), rfp, "s", "f", "b")
	require.NoError(t, err)
	fromFenced, err := NewExtractor(fenced, "m").ParseProposal(context.Background(), rfp, "s", "f", "b")
	require.NoError(t, err)

	assert.Equal(t, fromBare, fromFenced)
}

func TestParseProposalNormalizesExtraConditions(t *testing.T) {
	client := &fakeClient{text: `{
		"parsedData": {
			"totalPrice": null, "currency": null, "deliveryDays": null,
			"paymentTerms": null, "warrantyYears": null, "lineItems": [],
			"extraConditions": "line one\nline \"two\"  spaced"
		}
	}`}

	parsed, err := NewExtractor(client, "m").
		ParseProposal(context.Background(), internal.Rfp{ID: "r1"}, "s", "f", "b")
	require.NoError(t, err)

	require.NotNil(t, parsed.ExtraConditions)
	assert.Equal(t, "line one line 'two' spaced", *parsed.ExtraConditions)
}

func TestNormalizeExtraConditions(t *testing.T) {
	assert.Nil(t, normalizeExtraConditions(nil))
	assert.Nil(t, normalizeExtraConditions(internal.StringPtr("   ")))

	multi := internal.StringPtr("first line\nsecond\tline")
	assert.Equal(t, "first line second line", *normalizeExtraConditions(multi))

	quoted := internal.StringPtr(`they said "maybe"`)
	assert.Equal(t, "they said 'maybe'", *normalizeExtraConditions(quoted))

	long := internal.StringPtr(strings.Repeat("a", 300))
	assert.Len(t, *normalizeExtraConditions(long), 200)
}

func TestParseProposalMissingParsedData(t *testing.T) {
	client := &fakeClient{text: `{"totalPrice": 100}`}

	_, err := NewExtractor(client, "m").
		ParseProposal(context.Background(), internal.Rfp{ID: "r1"}, "s", "f", "b")
	var schema *internal.SchemaViolationError
	require.True(t, errors.As(err, &schema))
	assert.Equal(t, "parsedData", schema.Field)
}

func TestParseProposalTransportErrorPropagates(t *testing.T) {
	client := &fakeClient{err: &internal.TransportError{
		Kind:    internal.TransportRateLimited,
		Message: "rate limited",
	}}

	_, err := NewExtractor(client, "m").
		ParseProposal(context.Background(), internal.Rfp{ID: "r1"}, "s", "f", "b")
	var transport *internal.TransportError
	require.True(t, errors.As(err, &transport))
}
