package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"rfpdesk/internal"
	"rfpdesk/internal/llm"
)

// maxOutputTokens bounds every extraction completion.
const maxOutputTokens = 800

// Extractor turns free text into structured records via the
// text-generation backend. One external round trip per call, no
// internal retries; failures propagate classified to the caller.
type Extractor struct {
	client llm.Client
	model  string
}

func NewExtractor(client llm.Client, model string) *Extractor {
	return &Extractor{client: client, model: model}
}

// StructuredRfp is the target shape of the structuring task.
type StructuredRfp struct {
	Title                string   `json:"title"`
	Budget               *float64 `json:"budget"`
	Currency             *string  `json:"currency"`
	DeliveryDeadlineDays *int     `json:"deliveryDeadlineDays"`
	PaymentTerms         *string  `json:"paymentTerms"`
	WarrantyTerms        *string  `json:"warrantyTerms"`
	Requirements         struct {
		Items []internal.RfpItem `json:"items"`
	} `json:"requirements"`
}

// StructureRfp converts a free-text procurement description into
// structured RFP fields. There is no fallback for this call: a
// malformed or invalid response is fatal and the caller resubmits.
func (e *Extractor) StructureRfp(ctx context.Context, text string) (*StructuredRfp, error) {
	if strings.TrimSpace(text) == "" {
		return nil, eris.New("pipeline: empty rfp description")
	}

	resp, err := e.client.CreateMessage(ctx, llm.MessageRequest{
		Model:     e.model,
		MaxTokens: maxOutputTokens,
		Messages:  []llm.Message{{Role: "user", Content: rfpPrompt(text)}},
	})
	if err != nil {
		return nil, err
	}

	payload, err := SanitizeModelJSON(resp.FirstText())
	if err != nil {
		zap.L().Error("rfp structuring returned unusable JSON",
			zap.String("model", e.model),
			zap.Int("raw_len", len(resp.FirstText())))
		return nil, err
	}
	if err := ValidatePayload(TaskStructureRfp, payload); err != nil {
		return nil, err
	}

	var out StructuredRfp
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, &internal.SchemaViolationError{Field: "(root)"}
	}
	if strings.TrimSpace(out.Title) == "" {
		out.Title = "Untitled RFP"
	}
	if out.Requirements.Items == nil {
		out.Requirements.Items = []internal.RfpItem{}
	}
	return &out, nil
}

func rfpPrompt(text string) string {
	return fmt.Sprintf(`You are an assistant that converts free-text procurement descriptions into structured RFP JSON.

Input:
%s

Return ONLY valid JSON with this EXACT shape:
{
  "title": string,
  "budget": number | null,
  "currency": string | null,
  "deliveryDeadlineDays": number | null,
  "paymentTerms": string | null,
  "warrantyTerms": string | null,
  "requirements": {
    "items": [
      { "name": string, "quantity": number, "specs": object }
    ]
  }
}
No extra keys, no comments, no explanations.`, text)
}
