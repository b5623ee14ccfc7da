package wa

import (
	"fmt"
	"strings"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/matheus3301/wppcli/internal/chat"
	"github.com/matheus3301/wppcli/internal/inbound"
)

// ParsedMessage is a normalized live message.
type ParsedMessage struct {
	Chat        types.JID
	MsgID       string
	SenderName  string
	Sender      types.JID
	Body        string
	MessageType string
	Image       *waE2E.ImageMessage
	FromMe      bool
	Timestamp   time.Time
}

// ParseLiveMessage normalizes a live whatsmeow message event.
func ParseLiveMessage(evt *events.Message) *ParsedMessage {
	return &ParsedMessage{
		Chat:        evt.Info.Chat,
		MsgID:       evt.Info.ID,
		SenderName:  evt.Info.PushName,
		Sender:      evt.Info.Sender,
		Body:        extractTextBody(evt.Message),
		MessageType: detectMessageType(evt.Message),
		Image:       evt.Message.GetImageMessage(),
		FromMe:      evt.Info.IsFromMe,
		Timestamp:   evt.Info.Timestamp,
	}
}

// Event converts a text message to an inbound event. Images are converted by
// the event handler once the payload is on disk.
func (p *ParsedMessage) Event() inbound.Event {
	name := p.SenderName
	if name == "" {
		name = p.Sender.User
	}
	return inbound.Event{
		ChatID:       ChatID(p.Chat),
		SenderName:   name,
		SenderHandle: p.Sender.User,
		Kind:         chat.KindText,
		Text:         p.Body,
		Timestamp:    p.Timestamp,
	}
}

// ChatID maps a JID to the id the operator types: the bare phone number for
// individual chats and the full JID for everything else.
func ChatID(jid types.JID) chat.ID {
	jid = jid.ToNonAD()
	if jid.Server == types.DefaultUserServer {
		return chat.ID(jid.User)
	}
	return chat.ID(jid.String())
}

// ParseChatID is the inverse of ChatID.
func ParseChatID(id chat.ID) (types.JID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return types.EmptyJID, fmt.Errorf("empty chat id")
	}
	if strings.Contains(s, "@") {
		jid, err := types.ParseJID(s)
		if err != nil {
			return types.EmptyJID, fmt.Errorf("parse JID %q: %w", s, err)
		}
		return jid, nil
	}
	return types.NewJID(strings.TrimPrefix(s, "+"), types.DefaultUserServer), nil
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

func detectMessageType(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetContactMessage() != nil:
		return "contact"
	case msg.GetLocationMessage() != nil:
		return "location"
	default:
		return "unknown"
	}
}
