package pipeline

import (
	"encoding/json"

	"rfpdesk/internal"
)

// Task identifies which extraction a payload is validated against.
type Task string

const (
	TaskStructureRfp  Task = "structure_rfp"
	TaskParseProposal Task = "parse_proposal"
	TaskCompare       Task = "compare_proposals"
)

// ValidatePayload confirms the minimum required shape for a task.
// It discriminates null/number/string/object/array only; deeper typing
// happens when the payload is decoded into its target struct. Callers
// treat a SchemaViolationError exactly like a parse failure.
func ValidatePayload(task Task, payload json.RawMessage) error {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return &internal.SchemaViolationError{Field: "(root)"}
	}

	switch task {
	case TaskStructureRfp:
		if title, present := doc["title"]; present && title != nil {
			if _, ok := title.(string); !ok {
				return &internal.SchemaViolationError{Field: "title"}
			}
		}
		if req, present := doc["requirements"]; present && req != nil {
			if _, ok := req.(map[string]any); !ok {
				return &internal.SchemaViolationError{Field: "requirements"}
			}
		}

	case TaskParseProposal:
		parsed, ok := doc["parsedData"].(map[string]any)
		if !ok {
			return &internal.SchemaViolationError{Field: "parsedData"}
		}
		if items, present := parsed["lineItems"]; present && items != nil {
			if _, ok := items.([]any); !ok {
				return &internal.SchemaViolationError{Field: "parsedData.lineItems"}
			}
		}

	case TaskCompare:
		if _, ok := doc["summary"].(string); !ok {
			return &internal.SchemaViolationError{Field: "summary"}
		}
		if _, present := doc["recommendation"]; !present {
			return &internal.SchemaViolationError{Field: "recommendation"}
		}
		if _, ok := doc["scores"].([]any); !ok {
			return &internal.SchemaViolationError{Field: "scores"}
		}
	}

	return nil
}
