package internal

import "fmt"

// Transport failure kinds for the text-generation backend.
const (
	TransportRateLimited  = "rate_limited"
	TransportUnknownModel = "unknown_model"
	TransportUnavailable  = "unavailable"
)

// MalformedResponseError means the sanitizer found no valid JSON payload
// in the model output. Raw keeps the original text for diagnostics.
type MalformedResponseError struct {
	Raw string
}

func (e *MalformedResponseError) Error() string {
	return "model response contains no valid JSON payload"
}

// SchemaViolationError means the payload parsed but is missing a
// required field or has one of the wrong type.
type SchemaViolationError struct {
	Field string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("model response missing or invalid field: %s", e.Field)
}

// TransportError classifies a failed call to the text-generation
// backend. Message is user-actionable and varies by Kind.
type TransportError struct {
	Kind    string
	Message string
	Err     error
}

func (e *TransportError) Error() string { return e.Message }
func (e *TransportError) Unwrap() error { return e.Err }

// CorrelationMissError means an inbound message's sender matched no
// known vendor. Non-fatal within a poll batch.
type CorrelationMissError struct {
	Sender string
}

func (e *CorrelationMissError) Error() string {
	return fmt.Sprintf("no vendor found for sender %s", e.Sender)
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}
