package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfpdesk/internal"
)

func TestStructureRfp(t *testing.T) {
	client := &fakeClient{text: `{
		"title": "Office laptops",
		"budget": 50000,
		"currency": "USD",
		"deliveryDeadlineDays": 30,
		"paymentTerms": "net 30",
		"warrantyTerms": "2 years",
		"requirements": {
			"items": [
				{"name": "Laptop 15\"", "quantity": 20, "specs": {"ram": "16GB"}}
			]
		}
	}`}

	out, err := NewExtractor(client, "test-model").StructureRfp(context.Background(), "We need 20 laptops...")
	require.NoError(t, err)

	assert.Equal(t, "Office laptops", out.Title)
	require.NotNil(t, out.Budget)
	assert.Equal(t, 50000.0, *out.Budget)
	require.NotNil(t, out.DeliveryDeadlineDays)
	assert.Equal(t, 30, *out.DeliveryDeadlineDays)
	require.Len(t, out.Requirements.Items, 1)
	assert.Equal(t, 20.0, out.Requirements.Items[0].Quantity)
}

func TestStructureRfpDefaults(t *testing.T) {
	client := &fakeClient{text: `{"budget": null}`}

	out, err := NewExtractor(client, "test-model").StructureRfp(context.Background(), "vague request")
	require.NoError(t, err)

	assert.Equal(t, "Untitled RFP", out.Title)
	assert.NotNil(t, out.Requirements.Items)
	assert.Empty(t, out.Requirements.Items)
}

func TestStructureRfpEmptyInput(t *testing.T) {
	client := &fakeClient{text: `{}`}
	_, err := NewExtractor(client, "test-model").StructureRfp(context.Background(), "   ")
	require.Error(t, err)
	assert.Empty(t, client.requests)
}

func TestStructureRfpMalformedCompletionIsFatal(t *testing.T) {
	client := &fakeClient{text: "sorry, I can't help with that"}

	_, err := NewExtractor(client, "test-model").StructureRfp(context.Background(), "buy chairs")
	var malformed *internal.MalformedResponseError
	require.True(t, errors.As(err, &malformed))
}

func TestStructureRfpTransportErrorPropagates(t *testing.T) {
	client := &fakeClient{err: &internal.TransportError{
		Kind:    internal.TransportUnknownModel,
		Message: "unknown model",
	}}

	_, err := NewExtractor(client, "test-model").StructureRfp(context.Background(), "buy chairs")
	var transport *internal.TransportError
	require.True(t, errors.As(err, &transport))
	assert.Equal(t, internal.TransportUnknownModel, transport.Kind)
}
