package correlator

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"rfpdesk/internal"
	"rfpdesk/internal/connectors"
	"rfpdesk/internal/pipeline"
	"rfpdesk/internal/storage"
)

// Correlator matches unread mailbox replies to an RFP by the
// correlation token in the subject line and turns each matched reply
// into a stored proposal.
type Correlator struct {
	db        *storage.DB
	connector connectors.Connector
	extractor *pipeline.Extractor
	mailbox   string
}

func New(db *storage.DB, connector connectors.Connector, extractor *pipeline.Extractor, mailbox string) *Correlator {
	return &Correlator{db: db, connector: connector, extractor: extractor, mailbox: mailbox}
}

// PollResult reports one poll: how many messages matched the token,
// how many proposals were created or refreshed, and how many messages
// were skipped (unknown sender, vanished, or failed extraction).
type PollResult struct {
	Matched int `json:"matched"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Poll scans the mailbox for unread replies to one RFP. A message is
// marked read only after its proposal is durably stored; any failure
// leaves the message unread so the next poll retries it.
func (c *Correlator) Poll(ctx context.Context, rfpID string) (PollResult, error) {
	result := PollResult{}

	rfp, err := c.db.RfpByID(rfpID)
	if err != nil {
		return result, err
	}

	session, err := c.connector.Open(c.mailbox)
	if err != nil {
		return result, eris.Wrap(err, "correlator: open mailbox")
	}
	defer func() { _ = session.Close() }()

	token := internal.CorrelationToken(rfp.ID)
	ids, err := session.SearchUnread(token)
	if err != nil {
		return result, eris.Wrap(err, "correlator: search unread")
	}
	result.Matched = len(ids)

	// Once a poll starts it runs the whole matched list; cancellation
	// surfaces through individual extraction calls, not a batch abort.
	for _, id := range ids {
		msg, err := session.Fetch(id)
		if err != nil {
			zap.L().Warn("fetch failed, message left unread",
				zap.String("rfp_id", rfp.ID), zap.String("message", id), zap.Error(err))
			result.Skipped++
			continue
		}
		if msg == nil {
			result.Skipped++
			continue
		}

		created, err := c.handleMessage(ctx, rfp, msg)
		if err != nil {
			zap.L().Warn("message skipped, left unread",
				zap.String("rfp_id", rfp.ID),
				zap.String("message_id", msg.MessageID),
				zap.String("from", msg.From),
				zap.Error(err))
			result.Skipped++
			continue
		}
		if created {
			result.Created++
		}

		if err := session.MarkRead(id); err != nil {
			// The proposal is stored; the upsert on (rfp, message id)
			// keeps the inevitable re-poll idempotent.
			zap.L().Warn("mark read failed",
				zap.String("rfp_id", rfp.ID),
				zap.String("message_id", msg.MessageID),
				zap.Error(err))
		}
	}

	return result, nil
}

func (c *Correlator) handleMessage(ctx context.Context, rfp internal.Rfp, msg *connectors.Message) (bool, error) {
	vendor, err := c.db.VendorByEmail(msg.From)
	if err != nil {
		var nf *internal.NotFoundError
		if errors.As(err, &nf) {
			return false, &internal.CorrelationMissError{Sender: msg.From}
		}
		return false, err
	}

	subject, body, err := pipeline.BodyFromRaw(msg.Raw)
	if err != nil {
		subject = msg.Subject
		body = string(msg.Raw)
	}
	if subject == "" {
		subject = msg.Subject
	}

	parsed, err := c.extractor.ParseProposal(ctx, rfp, subject, msg.From, body)
	if err != nil {
		return false, err
	}

	proposal := internal.Proposal{
		RfpID:           rfp.ID,
		VendorID:        vendor.ID,
		RawEmailID:      &msg.MessageID,
		RawEmailSubject: subject,
		RawEmailFrom:    msg.From,
		RawEmailBody:    body,
		ParsedData:      *parsed,
	}
	if _, err := c.db.CreateProposal(proposal); err != nil {
		return false, eris.Wrap(err, "correlator: store proposal")
	}

	zap.L().Info("proposal recorded from email",
		zap.String("rfp_id", rfp.ID),
		zap.String("vendor", vendor.Name),
		zap.String("message_id", msg.MessageID))
	return true, nil
}
