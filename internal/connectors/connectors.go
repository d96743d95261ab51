package connectors

// Message is one inbound mailbox message with its envelope and raw
// RFC822 source.
type Message struct {
	ID        string // provider-scoped sequence or message id
	MessageID string // RFC822 Message-ID when available, else ID
	Subject   string
	From      string // bare sender address, lowercased
	Raw       []byte
}

// Session is a scoped mailbox connection: opened once per poll, used
// exclusively for the search/fetch/mark loop, and closed on every exit
// path.
type Session interface {
	// SearchUnread returns ids of unread messages whose subject
	// contains token as a substring.
	SearchUnread(token string) ([]string, error)
	// Fetch returns the full message, or (nil, nil) when the message
	// disappeared between search and fetch.
	Fetch(id string) (*Message, error)
	MarkRead(id string) error
	Close() error
}

// Connector opens mailbox sessions for one provider.
type Connector interface {
	Open(mailbox string) (Session, error)
}
