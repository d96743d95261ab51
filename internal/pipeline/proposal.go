package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"rfpdesk/internal"
	"rfpdesk/internal/llm"
)

// extraConditions stays a single bounded line so the returned payload
// remains trivially parseable.
const extraConditionsMaxLen = 200

// ParseProposal extracts structured commercial terms from one vendor
// email, given the owning RFP as context. Failures are fatal for the
// call; the caller must not drop the source email, so an unprocessed
// message can be retried on the next poll.
func (e *Extractor) ParseProposal(ctx context.Context, rfp internal.Rfp, emailSubject, emailFrom, emailBody string) (*internal.ParsedData, error) {
	resp, err := e.client.CreateMessage(ctx, llm.MessageRequest{
		Model:     e.model,
		MaxTokens: maxOutputTokens,
		Messages:  []llm.Message{{Role: "user", Content: proposalPrompt(rfp, emailSubject, emailFrom, emailBody)}},
	})
	if err != nil {
		return nil, err
	}

	payload, err := SanitizeModelJSON(resp.FirstText())
	if err != nil {
		zap.L().Error("proposal extraction returned unusable JSON",
			zap.String("rfp_id", rfp.ID),
			zap.String("from", emailFrom))
		return nil, err
	}
	if err := ValidatePayload(TaskParseProposal, payload); err != nil {
		return nil, err
	}

	var out struct {
		ParsedData internal.ParsedData `json:"parsedData"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, &internal.SchemaViolationError{Field: "parsedData"}
	}

	parsed := out.ParsedData
	if parsed.LineItems == nil {
		parsed.LineItems = []internal.LineItem{}
	}
	parsed.ExtraConditions = normalizeExtraConditions(parsed.ExtraConditions)
	return &parsed, nil
}

// normalizeExtraConditions enforces the single-line bounded contract
// server-side even when the model ignores the prompt constraint.
func normalizeExtraConditions(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.Join(strings.Fields(*v), " ")
	s = strings.ReplaceAll(s, `"`, "'")
	if runes := []rune(s); len(runes) > extraConditionsMaxLen {
		s = string(runes[:extraConditionsMaxLen])
	}
	if s == "" {
		return nil
	}
	return &s
}

func proposalPrompt(rfp internal.Rfp, subject, from, body string) string {
	return fmt.Sprintf(`You are extracting structured proposal data from a vendor email replying to an RFP.

RFP (what the buyer asked for), in JSON:
%s

Vendor email:
Subject: %s
From: %s
Body:
%s

Return ONLY valid JSON with this EXACT shape:
{
  "parsedData": {
    "totalPrice": number | null,
    "currency": string | null,
    "deliveryDays": number | null,
    "paymentTerms": string | null,
    "warrantyYears": number | null,
    "lineItems": [
      {
        "item": string,
        "unitPrice": number | null,
        "quantity": number | null
      }
    ],
    "extraConditions": string | null
  }
}
The extraConditions value must be a single line of at most 200 characters and must not contain double quotes (use single quotes instead).
No extra keys, no comments, no explanations.`, rfpContextJSON(rfp), subject, from, body)
}

// rfpContextJSON renders the buyer's ask compactly for the prompt,
// without provenance or vendor noise.
func rfpContextJSON(rfp internal.Rfp) string {
	ctx := map[string]any{
		"title":                rfp.Title,
		"budget":               rfp.Budget,
		"currency":             rfp.Currency,
		"deliveryDeadlineDays": rfp.DeliveryDeadlineDays,
		"paymentTerms":         rfp.PaymentTerms,
		"warrantyTerms":        rfp.WarrantyTerms,
		"requirements":         map[string]any{"items": rfp.Items},
	}
	blob, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(blob)
}
