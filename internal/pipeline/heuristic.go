package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"rfpdesk/internal"
)

// Fixed scoring constants. The weights are part of the external
// contract: results are only comparable across deployments if every
// implementation reproduces them exactly.
const (
	priceWeight    = 0.5
	deliveryWeight = 0.2
	warrantyWeight = 0.3

	neutralScore = 5.0
	minScore     = 1.0
	maxScore     = 10.0
)

// HeuristicCompare scores proposals against an RFP without any
// external call. It is the safety net behind the AI comparison and is
// deterministic for a given input order.
func HeuristicCompare(rfp internal.Rfp, proposals []internal.Proposal) internal.ComparisonResult {
	if len(proposals) == 0 {
		return internal.ComparisonResult{
			Summary:       "No proposals have been received for this RFP yet.",
			Scores:        []internal.ProposalScore{},
			UsingFallback: true,
		}
	}

	prices := make([]*float64, len(proposals))
	deliveries := make([]*float64, len(proposals))
	warranties := make([]*float64, len(proposals))
	for i, p := range proposals {
		prices[i] = p.ParsedData.TotalPrice
		if p.ParsedData.DeliveryDays != nil {
			d := float64(*p.ParsedData.DeliveryDays)
			deliveries[i] = &d
		}
		warranties[i] = p.ParsedData.WarrantyYears
	}

	priceScores := scaleDimension(prices, true)
	deliveryScores := scaleDimension(deliveries, true)
	warrantyScores := scaleDimension(warranties, false)

	scores := make([]internal.ProposalScore, len(proposals))
	bestIdx := 0
	for i, p := range proposals {
		overall := round1(priceScores[i]*priceWeight +
			deliveryScores[i]*deliveryWeight +
			warrantyScores[i]*warrantyWeight)
		scores[i] = internal.ProposalScore{
			ProposalID:    p.ID,
			VendorName:    vendorName(p),
			PriceScore:    priceScores[i],
			DeliveryScore: deliveryScores[i],
			WarrantyScore: warrantyScores[i],
			OverallScore:  overall,
			Highlights:    highlight(p),
		}
		// ties break toward input order: first maximal element wins
		if overall > scores[bestIdx].OverallScore {
			bestIdx = i
		}
	}

	best := scores[bestIdx]
	recommendation := &internal.Recommendation{
		VendorName: best.VendorName,
		ProposalID: best.ProposalID,
		Reason: fmt.Sprintf("Best weighted score across price, delivery and warranty (%.1f/10).",
			best.OverallScore),
	}

	summary := fmt.Sprintf(
		"Heuristic comparison using fixed weights: price 50%%, delivery 20%%, warranty 30%%. Recommended vendor: %s (overall score %.1f/10).",
		best.VendorName, best.OverallScore)
	if rfp.Budget != nil {
		within := 0
		for _, p := range proposals {
			if p.ParsedData.TotalPrice != nil && *p.ParsedData.TotalPrice <= *rfp.Budget {
				within++
			}
		}
		summary += fmt.Sprintf(" %d proposal(s) are within the budget of %s.",
			within, formatNumber(*rfp.Budget))
	}

	return internal.ComparisonResult{
		Summary:        summary,
		Recommendation: recommendation,
		Scores:         scores,
		UsingFallback:  true,
	}
}

// scaleDimension rescales one commercial dimension into [1,10]. With
// fewer than two distinct non-null values there is nothing to rank, so
// every proposal gets the neutral midpoint. Proposals missing the
// value in an otherwise ranked dimension also score neutral.
func scaleDimension(values []*float64, lowerIsBetter bool) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = neutralScore
	}

	distinct := map[float64]struct{}{}
	haveMin, haveMax := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if v == nil {
			continue
		}
		distinct[*v] = struct{}{}
		if *v < haveMin {
			haveMin = *v
		}
		if *v > haveMax {
			haveMax = *v
		}
	}
	if len(distinct) < 2 {
		return out
	}

	span := haveMax - haveMin
	for i, v := range values {
		if v == nil {
			continue
		}
		frac := (*v - haveMin) / span
		if lowerIsBetter {
			out[i] = round1(maxScore - frac*(maxScore-minScore))
		} else {
			out[i] = round1(minScore + frac*(maxScore-minScore))
		}
	}
	return out
}

// highlight renders only the fields that are present.
func highlight(p internal.Proposal) string {
	parts := []string{}
	if p.ParsedData.TotalPrice != nil {
		parts = append(parts, "Price: "+formatNumber(*p.ParsedData.TotalPrice))
	}
	if p.ParsedData.DeliveryDays != nil {
		parts = append(parts, fmt.Sprintf("Delivery: %d days", *p.ParsedData.DeliveryDays))
	}
	if p.ParsedData.WarrantyYears != nil {
		parts = append(parts, fmt.Sprintf("Warranty: %s years", formatNumber(*p.ParsedData.WarrantyYears)))
	}
	if p.ParsedData.ExtraConditions != nil {
		parts = append(parts, *p.ParsedData.ExtraConditions)
	}
	if len(parts) == 0 {
		return "Limited data available"
	}
	return strings.Join(parts, " | ")
}

func vendorName(p internal.Proposal) string {
	if p.Vendor != nil && p.Vendor.Name != "" {
		return p.Vendor.Name
	}
	return "Unknown"
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
