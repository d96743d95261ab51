package internal

// RfpItem is a single requirement line on an RFP.
type RfpItem struct {
	Name     string         `json:"name"`
	Quantity float64        `json:"quantity"`
	Specs    map[string]any `json:"specs,omitempty"`
}

// Rfp is the structured procurement request. DescriptionRaw is the
// immutable source text the structured fields were derived from.
type Rfp struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	DescriptionRaw       string    `json:"descriptionRaw"`
	Budget               *float64  `json:"budget"`
	Currency             *string   `json:"currency"`
	DeliveryDeadlineDays *int      `json:"deliveryDeadlineDays"`
	PaymentTerms         *string   `json:"paymentTerms"`
	WarrantyTerms        *string   `json:"warrantyTerms"`
	Items                []RfpItem `json:"items"`
	VendorIDs            []string  `json:"vendorIds"`
	Vendors              []Vendor  `json:"vendors,omitempty"`
	CreatedAt            string    `json:"createdAt"`
}

type Vendor struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone,omitempty"`
	Notes     *string `json:"notes,omitempty"`
	CreatedAt string  `json:"createdAt"`
}

// LineItem is one priced position inside a vendor proposal.
type LineItem struct {
	Item      string   `json:"item"`
	UnitPrice *float64 `json:"unitPrice"`
	Quantity  *float64 `json:"quantity"`
}

// ParsedData holds the commercial terms extracted from a vendor email.
// Every field is independently nullable; a missing field never
// invalidates the proposal.
type ParsedData struct {
	TotalPrice      *float64   `json:"totalPrice"`
	Currency        *string    `json:"currency"`
	DeliveryDays    *int       `json:"deliveryDays"`
	PaymentTerms    *string    `json:"paymentTerms"`
	WarrantyYears   *float64   `json:"warrantyYears"`
	LineItems       []LineItem `json:"lineItems"`
	ExtraConditions *string    `json:"extraConditions"`
}

// Proposal is one vendor's reply to one RFP. The raw email fields are
// provenance only and are never used for re-correlation.
type Proposal struct {
	ID              string     `json:"id"`
	RfpID           string     `json:"rfpId"`
	VendorID        string     `json:"vendorId"`
	Vendor          *Vendor    `json:"vendor,omitempty"`
	RawEmailID      *string    `json:"rawEmailId,omitempty"`
	RawEmailSubject string     `json:"rawEmailSubject"`
	RawEmailFrom    string     `json:"rawEmailFrom"`
	RawEmailBody    string     `json:"rawEmailBody"`
	ParsedData      ParsedData `json:"parsedData"`
	Score           *float64   `json:"score,omitempty"`
	Explanation     *string    `json:"recommendationExplanation,omitempty"`
	CreatedAt       string     `json:"createdAt"`
}

// ProposalScore is one row of a comparison: per-dimension scores on a
// fixed 0-10 scale plus a short human-readable highlight.
type ProposalScore struct {
	ProposalID    string  `json:"proposalId"`
	VendorName    string  `json:"vendorName"`
	PriceScore    float64 `json:"priceScore"`
	DeliveryScore float64 `json:"deliveryScore"`
	WarrantyScore float64 `json:"warrantyScore"`
	OverallScore  float64 `json:"overallScore"`
	Highlights    string  `json:"highlights"`
}

type Recommendation struct {
	VendorName string `json:"vendorName"`
	ProposalID string `json:"proposalId"`
	Reason     string `json:"reason"`
}

// ComparisonResult is computed on demand and never persisted.
// UsingFallback is true when the heuristic path produced the result.
type ComparisonResult struct {
	Summary        string          `json:"summary"`
	Recommendation *Recommendation `json:"recommendation"`
	Scores         []ProposalScore `json:"scores"`
	UsingFallback  bool            `json:"usingFallback"`
}

// CorrelationToken is the literal subject marker linking vendor replies
// to their RFP. Matching is substring-based in both directions.
func CorrelationToken(rfpID string) string {
	return "[RFP-ID:" + rfpID + "]"
}

func StringPtr(v string) *string    { return &v }
func Float64Ptr(v float64) *float64 { return &v }
func IntPtr(v int) *int             { return &v }
