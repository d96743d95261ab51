package imap

import (
	"crypto/tls"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"rfpdesk/internal/config"
	"rfpdesk/internal/connectors"
)

type Connector struct {
	host     string
	port     int
	secure   bool
	user     string
	password string
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("IMAP_HOST", cfg.IMAPHost); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_USER", cfg.IMAPUser); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_PASS", cfg.IMAPPassword); err != nil {
		return nil, err
	}

	return &Connector{
		host:     cfg.IMAPHost,
		port:     cfg.IMAPPort,
		secure:   cfg.IMAPSecure,
		user:     cfg.IMAPUser,
		password: cfg.IMAPPassword,
	}, nil
}

// Open dials, authenticates and selects the mailbox read-write. The
// selected session is the poll's exclusive handle on the mailbox until
// Close logs out.
func (c *Connector) Open(mailbox string) (connectors.Session, error) {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	var client *imapclient.Client
	var err error
	if c.secure {
		client, err = imapclient.DialTLS(addr, &tls.Config{ServerName: c.host})
	} else {
		client, err = imapclient.Dial(addr)
	}
	if err != nil {
		return nil, err
	}

	if err := client.Login(c.user, c.password); err != nil {
		_ = client.Logout()
		return nil, err
	}
	if _, err := client.Select(mailbox, false); err != nil {
		_ = client.Logout()
		return nil, err
	}

	return &session{client: client}, nil
}

type session struct {
	client *imapclient.Client
}

func (s *session) SearchUnread(token string) ([]string, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Header.Add("Subject", token)

	seqs, err := s.client.Search(criteria)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(seqs))
	for _, seq := range seqs {
		ids = append(ids, strconv.FormatUint(uint64(seq), 10))
	}
	return ids, nil
}

func (s *session) Fetch(id string) (*connectors.Message, error) {
	seq, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("imap: bad sequence id %q", id)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(seq))

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}
	messages := make(chan *imap.Message, 1)
	fetchDone := make(chan error, 1)
	go func() { fetchDone <- s.client.Fetch(seqset, items, messages) }()

	var out *connectors.Message
	for msg := range messages {
		if msg == nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}

		messageID := ""
		subject := ""
		from := ""
		if msg.Envelope != nil {
			messageID = msg.Envelope.MessageId
			subject = msg.Envelope.Subject
			from = senderAddress(msg.Envelope.From)
		}
		if messageID == "" {
			messageID = fmt.Sprintf("imap-%d", msg.Uid)
		}

		out = &connectors.Message{
			ID:        id,
			MessageID: messageID,
			Subject:   subject,
			From:      from,
			Raw:       raw,
		}
	}

	if err := <-fetchDone; err != nil {
		return nil, err
	}
	// nil means the message vanished between search and fetch; the
	// caller skips it without aborting the batch.
	return out, nil
}

func (s *session) MarkRead(id string) error {
	seq, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return fmt.Errorf("imap: bad sequence id %q", id)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(seq))
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	return s.client.Store(seqset, item, flags, nil)
}

func (s *session) Close() error {
	return s.client.Logout()
}

func senderAddress(addrs []*imap.Address) string {
	for _, a := range addrs {
		if a == nil {
			continue
		}
		email := strings.Trim(strings.Join([]string{a.MailboxName, a.HostName}, "@"), "@")
		if email != "" {
			return strings.ToLower(email)
		}
	}
	return ""
}
