package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"rfpdesk/internal/config"
	"rfpdesk/internal/connectors"
)

type Connector struct {
	service *gmail.Service
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		// modify scope: marking messages read removes the UNREAD label
		Scopes: []string{gmail.GmailModifyScope},
	}

	tokenSource := oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(context.Background(), option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}

	return &Connector{service: svc}, nil
}

func (c *Connector) Open(mailbox string) (connectors.Session, error) {
	return &session{service: c.service, label: mailbox}, nil
}

type session struct {
	service *gmail.Service
	label   string
}

func (s *session) SearchUnread(token string) ([]string, error) {
	query := fmt.Sprintf(`is:unread subject:"%s"`, token)
	call := s.service.Users.Messages.List("me").Q(query)
	if s.label != "" {
		call = call.LabelIds(s.label)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		if ref.Id != "" {
			ids = append(ids, ref.Id)
		}
	}
	return ids, nil
}

func (s *session) Fetch(id string) (*connectors.Message, error) {
	rawResp, err := s.service.Users.Messages.Get("me", id).Format("raw").Do()
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if rawResp.Raw == "" {
		return nil, nil
	}
	raw, err := decodeBase64URL(rawResp.Raw)
	if err != nil {
		return nil, err
	}

	metaResp, err := s.service.Users.Messages.Get("me", id).
		Format("metadata").MetadataHeaders("Subject", "From", "Message-ID").Do()
	if err != nil {
		return nil, err
	}

	headers := map[string]string{}
	if metaResp.Payload != nil {
		for _, h := range metaResp.Payload.Headers {
			headers[strings.ToLower(h.Name)] = h.Value
		}
	}

	messageID := headers["message-id"]
	if messageID == "" {
		messageID = id
	}

	return &connectors.Message{
		ID:        id,
		MessageID: messageID,
		Subject:   headers["subject"],
		From:      bareAddress(headers["from"]),
		Raw:       raw,
	}, nil
}

func (s *session) MarkRead(id string) error {
	_, err := s.service.Users.Messages.Modify("me", id, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Do()
	return err
}

func (s *session) Close() error {
	// The gmail client is stateless HTTP; nothing to release.
	return nil
}

func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "404")
}

func bareAddress(header string) string {
	if header == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(header); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(strings.TrimSpace(header))
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
