package inbound

import (
	"time"

	"github.com/matheus3301/wppcli/internal/chat"
)

// Event is one message received from the provider.
type Event struct {
	ChatID       chat.ID
	SenderName   string
	SenderHandle string
	Kind         chat.Kind
	Text         string
	// Filename and LocalPath are set for images once the payload is on disk.
	Filename  string
	LocalPath string
	Timestamp time.Time
	// Automated marks text generated by a bot; it is never auto-answered.
	Automated bool
}

// Message converts the event into an incoming chat message.
func (e Event) Message() chat.Message {
	kind := e.Kind
	if kind == "" {
		kind = chat.KindText
	}
	return chat.Message{
		Kind:      kind,
		Direction: chat.Incoming,
		Text:      e.Text,
		Filename:  e.Filename,
		LocalPath: e.LocalPath,
		Timestamp: e.Timestamp,
	}
}
