package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"rfpdesk/internal"
	"rfpdesk/internal/mailer"
	"rfpdesk/internal/pipeline"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeOK(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeFail(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: message})
}

// statusFor maps the error taxonomy onto HTTP statuses. Unclassified
// errors stay 500 and are logged, not leaked.
func statusFor(err error) (int, string) {
	var notFound *internal.NotFoundError
	if errors.As(err, &notFound) {
		return http.StatusNotFound, notFound.Error()
	}

	var transport *internal.TransportError
	if errors.As(err, &transport) {
		if transport.Kind == internal.TransportRateLimited {
			return http.StatusServiceUnavailable, transport.Message
		}
		return http.StatusBadGateway, transport.Message
	}

	var malformed *internal.MalformedResponseError
	if errors.As(err, &malformed) {
		return http.StatusBadGateway, malformed.Error()
	}
	var schema *internal.SchemaViolationError
	if errors.As(err, &schema) {
		return http.StatusBadGateway, schema.Error()
	}

	zap.L().Error("request failed", zap.Error(err))
	return http.StatusInternalServerError, "internal error"
}

func fail(w http.ResponseWriter, err error) {
	status, message := statusFor(err)
	writeFail(w, status, message)
}

func decode(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- vendors ---

func (s *Server) handleCreateVendor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string  `json:"name"`
		Email string  `json:"email"`
		Phone *string `json:"phone"`
		Notes *string `json:"notes"`
	}
	if err := decode(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		writeFail(w, http.StatusBadRequest, "name and email are required")
		return
	}

	vendor, err := s.db.CreateVendor(internal.Vendor{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
		Phone: req.Phone,
		Notes: req.Notes,
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			writeFail(w, http.StatusConflict, "a vendor with this email already exists")
			return
		}
		fail(w, err)
		return
	}
	writeOK(w, http.StatusCreated, vendor)
}

func (s *Server) handleListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := s.db.ListVendors()
	if err != nil {
		fail(w, err)
		return
	}
	writeOK(w, http.StatusOK, vendors)
}

// --- rfps ---

func (s *Server) handleCreateRfp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
	}
	if err := decode(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeFail(w, http.StatusBadRequest, "description is required")
		return
	}

	structured, err := s.extractor.StructureRfp(r.Context(), req.Description)
	if err != nil {
		fail(w, err)
		return
	}

	rfp, err := s.db.CreateRfp(internal.Rfp{
		Title:                structured.Title,
		DescriptionRaw:       req.Description,
		Budget:               structured.Budget,
		Currency:             structured.Currency,
		DeliveryDeadlineDays: structured.DeliveryDeadlineDays,
		PaymentTerms:         structured.PaymentTerms,
		WarrantyTerms:        structured.WarrantyTerms,
		Items:                structured.Requirements.Items,
	})
	if err != nil {
		fail(w, err)
		return
	}
	writeOK(w, http.StatusCreated, rfp)
}

func (s *Server) handleListRfps(w http.ResponseWriter, r *http.Request) {
	rfps, err := s.db.ListRfps()
	if err != nil {
		fail(w, err)
		return
	}
	writeOK(w, http.StatusOK, rfps)
}

func (s *Server) handleGetRfp(w http.ResponseWriter, r *http.Request) {
	rfp, err := s.db.RfpByID(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeOK(w, http.StatusOK, rfp)
}

func (s *Server) handleAttachVendors(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VendorIDs []string `json:"vendorIds"`
	}
	if err := decode(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rfpID := chi.URLParam(r, "id")
	for _, vendorID := range req.VendorIDs {
		if _, err := s.db.VendorByID(vendorID); err != nil {
			fail(w, err)
			return
		}
	}
	if err := s.db.AttachVendors(rfpID, req.VendorIDs); err != nil {
		fail(w, err)
		return
	}

	rfp, err := s.db.RfpByID(rfpID)
	if err != nil {
		fail(w, err)
		return
	}
	writeOK(w, http.StatusOK, rfp)
}

func (s *Server) handleSendInvitations(w http.ResponseWriter, r *http.Request) {
	if s.mailer == nil {
		writeFail(w, http.StatusInternalServerError, "SMTP is not configured")
		return
	}

	rfp, err := s.db.RfpByID(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	if len(rfp.Vendors) == 0 {
		writeFail(w, http.StatusBadRequest, "no vendors attached to this RFP")
		return
	}

	type sendStatus struct {
		VendorID string `json:"vendorId"`
		Email    string `json:"email"`
		Sent     bool   `json:"sent"`
		Error    string `json:"error,omitempty"`
	}
	subject := mailer.InvitationSubject(rfp)
	statuses := make([]sendStatus, 0, len(rfp.Vendors))
	sent := 0
	for _, vendor := range rfp.Vendors {
		status := sendStatus{VendorID: vendor.ID, Email: vendor.Email}
		if _, err := s.mailer.Send(vendor.Email, subject, mailer.InvitationBody(rfp, vendor.Name)); err != nil {
			status.Error = err.Error()
		} else {
			status.Sent = true
			sent++
		}
		statuses = append(statuses, status)
	}

	writeOK(w, http.StatusOK, map[string]any{
		"rfpId":   rfp.ID,
		"sent":    sent,
		"results": statuses,
	})
}

// --- proposals ---

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	rfpID := chi.URLParam(r, "id")
	if _, err := s.db.RfpByID(rfpID); err != nil {
		fail(w, err)
		return
	}
	proposals, err := s.db.ProposalsForRfp(rfpID)
	if err != nil {
		fail(w, err)
		return
	}
	writeOK(w, http.StatusOK, proposals)
}

// handleProposalFromEmail ingests a manually pasted vendor email. The
// sender is resolved to a vendor by id when given, otherwise by the
// from address.
func (s *Server) handleProposalFromEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VendorID string `json:"vendorId"`
		From     string `json:"from"`
		Subject  string `json:"subject"`
		Body     string `json:"body"`
	}
	if err := decode(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		writeFail(w, http.StatusBadRequest, "body is required")
		return
	}

	rfp, err := s.db.RfpByID(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}

	var vendor internal.Vendor
	switch {
	case req.VendorID != "":
		vendor, err = s.db.VendorByID(req.VendorID)
	case strings.TrimSpace(req.From) != "":
		vendor, err = s.db.VendorByEmail(strings.ToLower(strings.TrimSpace(req.From)))
	default:
		writeFail(w, http.StatusBadRequest, "vendorId or from is required")
		return
	}
	if err != nil {
		fail(w, err)
		return
	}

	parsed, err := s.extractor.ParseProposal(r.Context(), rfp, req.Subject, req.From, req.Body)
	if err != nil {
		fail(w, err)
		return
	}

	proposal, err := s.db.CreateProposal(internal.Proposal{
		RfpID:           rfp.ID,
		VendorID:        vendor.ID,
		RawEmailSubject: req.Subject,
		RawEmailFrom:    req.From,
		RawEmailBody:    req.Body,
		ParsedData:      *parsed,
	})
	if err != nil {
		fail(w, err)
		return
	}
	proposal.Vendor = &vendor
	writeOK(w, http.StatusCreated, proposal)
}

// --- comparison ---

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	rfp, err := s.db.RfpByID(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	proposals, err := s.db.ProposalsForRfp(rfp.ID)
	if err != nil {
		fail(w, err)
		return
	}

	result := s.comparer.Compare(r.Context(), rfp, proposals)
	writeOK(w, http.StatusOK, result)
}

func (s *Server) handleComparisonExport(w http.ResponseWriter, r *http.Request) {
	rfp, err := s.db.RfpByID(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}
	proposals, err := s.db.ProposalsForRfp(rfp.ID)
	if err != nil {
		fail(w, err)
		return
	}

	result := s.comparer.Compare(r.Context(), rfp, proposals)

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="comparison_`+rfp.ID+`.xlsx"`)
	if err := pipeline.WriteComparisonXLSX(rfp, result, w); err != nil {
		zap.L().Error("comparison export failed", zap.String("rfp_id", rfp.ID), zap.Error(err))
	}
}

// --- mail polling ---

func (s *Server) handlePollEmails(w http.ResponseWriter, r *http.Request) {
	if s.correlator == nil {
		writeFail(w, http.StatusInternalServerError, "mailbox polling is not configured")
		return
	}

	var req struct {
		RfpID string `json:"rfpId"`
	}
	if err := decode(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.RfpID) == "" {
		writeFail(w, http.StatusBadRequest, "rfpId is required")
		return
	}

	result, err := s.correlator.Poll(r.Context(), req.RfpID)
	if err != nil {
		fail(w, err)
		return
	}
	writeOK(w, http.StatusOK, result)
}
