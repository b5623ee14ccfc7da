package chat

import "time"

// ID identifies a chat. It is the opaque identifier assigned by the remote provider.
type ID string

// Kind is the payload kind of a message.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Direction tells whether a message was received or sent by the operator.
type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// Message is a single entry of a chat history.
type Message struct {
	ID        string
	Kind      Kind
	Direction Direction
	Text      string
	Filename  string
	LocalPath string
	Timestamp time.Time

	// Read applies to incoming messages only.
	Read bool
	// Seen applies to outgoing messages only and never reverts once set.
	Seen bool
	// ExternalID is the provider message id of a successfully sent outgoing message.
	ExternalID string
}

// Key returns the value used to match a message against a pending deletion:
// the filename for images and the body for text.
func (m Message) Key() string {
	if m.Kind == KindImage {
		return m.Filename
	}
	return m.Text
}

// IsUnread reports whether m is an incoming message the operator has not viewed.
func (m Message) IsUnread() bool {
	return m.Direction == Incoming && !m.Read
}

// Chat is a conversation thread with one remote correspondent.
type Chat struct {
	ID       ID
	Name     string
	Handle   string
	Messages []Message
}

// Unread returns the number of unread incoming messages.
func (c Chat) Unread() int {
	n := 0
	for _, m := range c.Messages {
		if m.IsUnread() {
			n++
		}
	}
	return n
}

// SeenCandidate is an outgoing, delivered, not yet seen message.
type SeenCandidate struct {
	ChatID     ID
	ExternalID string
}
