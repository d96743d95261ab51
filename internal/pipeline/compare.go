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

// Comparer ranks a proposal set via the text-generation backend and
// substitutes the heuristic ranker on any failure. It never returns an
// error: callers always receive a usable ComparisonResult, with
// UsingFallback reporting which path produced it.
type Comparer struct {
	client llm.Client
	model  string
}

func NewComparer(client llm.Client, model string) *Comparer {
	return &Comparer{client: client, model: model}
}

// aiComparison is the shape requested from the model; UsingFallback is
// set locally, never by the model.
type aiComparison struct {
	Summary        string                   `json:"summary"`
	Recommendation *internal.Recommendation `json:"recommendation"`
	Scores         []internal.ProposalScore `json:"scores"`
}

func (c *Comparer) Compare(ctx context.Context, rfp internal.Rfp, proposals []internal.Proposal) internal.ComparisonResult {
	if len(proposals) == 0 {
		return HeuristicCompare(rfp, proposals)
	}
	if c.client == nil {
		return HeuristicCompare(rfp, proposals)
	}

	log := zap.L().With(zap.String("rfp_id", rfp.ID), zap.Int("proposals", len(proposals)))

	resp, err := c.client.CreateMessage(ctx, llm.MessageRequest{
		Model:     c.model,
		MaxTokens: maxOutputTokens,
		Messages:  []llm.Message{{Role: "user", Content: comparePrompt(rfp, proposals)}},
	})
	if err != nil {
		log.Warn("comparison model call failed, using heuristic ranking", zap.Error(err))
		return HeuristicCompare(rfp, proposals)
	}

	text := resp.FirstText()
	if strings.TrimSpace(text) == "" {
		log.Warn("comparison model returned empty completion, using heuristic ranking")
		return HeuristicCompare(rfp, proposals)
	}

	payload, err := SanitizeModelJSON(text)
	if err != nil {
		log.Warn("comparison response had no usable JSON, using heuristic ranking")
		return HeuristicCompare(rfp, proposals)
	}
	if err := ValidatePayload(TaskCompare, payload); err != nil {
		log.Warn("comparison response failed shape check, using heuristic ranking", zap.Error(err))
		return HeuristicCompare(rfp, proposals)
	}

	var parsed aiComparison
	if err := json.Unmarshal(payload, &parsed); err != nil {
		log.Warn("comparison response failed decoding, using heuristic ranking", zap.Error(err))
		return HeuristicCompare(rfp, proposals)
	}

	result, ok := normalizeComparison(parsed, proposals)
	if !ok {
		// A single foreign proposal id invalidates the whole response,
		// not just that entry.
		log.Warn("comparison response referenced unknown proposal ids, using heuristic ranking")
		return HeuristicCompare(rfp, proposals)
	}

	return result
}

// normalizeComparison cross-references every proposal id against the
// input set and clamps scores onto the fixed 0-10 scale.
func normalizeComparison(parsed aiComparison, proposals []internal.Proposal) (internal.ComparisonResult, bool) {
	known := make(map[string]struct{}, len(proposals))
	for _, p := range proposals {
		known[p.ID] = struct{}{}
	}

	for i := range parsed.Scores {
		if _, ok := known[parsed.Scores[i].ProposalID]; !ok {
			return internal.ComparisonResult{}, false
		}
		parsed.Scores[i].PriceScore = clampScore(parsed.Scores[i].PriceScore)
		parsed.Scores[i].DeliveryScore = clampScore(parsed.Scores[i].DeliveryScore)
		parsed.Scores[i].WarrantyScore = clampScore(parsed.Scores[i].WarrantyScore)
		parsed.Scores[i].OverallScore = clampScore(parsed.Scores[i].OverallScore)
	}
	if parsed.Recommendation != nil {
		if _, ok := known[parsed.Recommendation.ProposalID]; !ok {
			return internal.ComparisonResult{}, false
		}
	}

	scores := parsed.Scores
	if scores == nil {
		scores = []internal.ProposalScore{}
	}
	return internal.ComparisonResult{
		Summary:        parsed.Summary,
		Recommendation: parsed.Recommendation,
		Scores:         scores,
		UsingFallback:  false,
	}, true
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

func comparePrompt(rfp internal.Rfp, proposals []internal.Proposal) string {
	type promptProposal struct {
		ProposalID string              `json:"proposalId"`
		VendorName string              `json:"vendorName"`
		ParsedData internal.ParsedData `json:"parsedData"`
	}
	forPrompt := make([]promptProposal, 0, len(proposals))
	for _, p := range proposals {
		forPrompt = append(forPrompt, promptProposal{
			ProposalID: p.ID,
			VendorName: vendorName(p),
			ParsedData: p.ParsedData,
		})
	}
	proposalsJSON, err := json.MarshalIndent(forPrompt, "", "  ")
	if err != nil {
		proposalsJSON = []byte("[]")
	}

	return fmt.Sprintf(`You are helping a procurement manager compare vendor proposals.

RFP (what the buyer wants):
%s

Vendor proposals:
%s

Consider:
- Lower totalPrice is better.
- Faster deliveryDays is better.
- Longer warrantyYears is better.
- Better match to requested items is better.

Return ONLY valid JSON:
{
  "summary": string,
  "recommendation": {
    "vendorName": string,
    "proposalId": string,
    "reason": string
  } | null,
  "scores": [
    {
      "proposalId": string,
      "vendorName": string,
      "priceScore": number,
      "deliveryScore": number,
      "warrantyScore": number,
      "overallScore": number,
      "highlights": string
    }
  ]
}
Every proposalId must come from the proposals above. All scores are on a 0-10 scale.
No extra keys, no prose outside JSON.`, rfpContextJSON(rfp), string(proposalsJSON))
}
