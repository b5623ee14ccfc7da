package chat

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	// ErrChatNotFound is returned when an operation references an unknown chat.
	ErrChatNotFound = errors.New("chat not found")
	// ErrMessageIndex is returned when a message index is out of range.
	ErrMessageIndex = errors.New("message index out of range")
)

// Store owns all chat and message state. Every mutator and every aggregate
// read runs under a single store-wide lock; readers get deep copies.
type Store struct {
	mu    sync.RWMutex
	chats *orderedmap.OrderedMap[ID, *Chat]
}

// NewStore creates an empty chat store.
func NewStore() *Store {
	return &Store{
		chats: orderedmap.New[ID, *Chat](),
	}
}

// UpsertChat creates the chat if it does not exist yet. Existing chats keep
// their display name; a missing handle is filled in. Reports whether the chat
// was created.
func (s *Store) UpsertChat(id ID, name, handle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.chats.Get(id); ok {
		if c.Handle == "" && handle != "" {
			c.Handle = handle
		}
		return false
	}
	if name == "" {
		name = string(id)
	}
	s.chats.Set(id, &Chat{ID: id, Name: name, Handle: handle})
	return true
}

// AppendMessage appends m to the end of the chat history.
func (s *Store) AppendMessage(id ID, m Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats.Get(id)
	if !ok {
		return Message{}, fmt.Errorf("append to %s: %w", id, ErrChatNotFound)
	}
	m = normalize(m)
	c.Messages = append(c.Messages, m)
	return m, nil
}

func normalize(m Message) Message {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	if m.Kind == "" {
		m.Kind = KindText
	}
	switch m.Direction {
	case Outgoing:
		m.Read = false
	default:
		m.Direction = Incoming
		m.Seen = false
		m.ExternalID = ""
	}
	return m
}

// GetChat returns a snapshot of the chat.
func (s *Store) GetChat(id ID) (Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats.Get(id)
	if !ok {
		return Chat{}, false
	}
	return c.clone(), true
}

// ListChats returns snapshots of all chats in insertion order.
func (s *Store) ListChats() []Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Chat, 0, s.chats.Len())
	for pair := s.chats.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.clone())
	}
	return out
}

// Len returns the number of chats.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chats.Len()
}

// MessageCount returns the length of the chat history, or 0 for an unknown chat.
func (s *Store) MessageCount(id ID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.chats.Get(id); ok {
		return len(c.Messages)
	}
	return 0
}

// Overview is a consistent read of the whole store, taken for one render.
type Overview struct {
	// Chat is the focused chat; Found reports whether it exists.
	Chat  Chat
	Found bool
	Chats []Chat
	// Unread counts unread incoming messages across Chats.
	Unread int
}

// Overview snapshots the focused chat, every chat and the unread total under
// a single lock. With markRead the focused chat is marked read first, so the
// snapshot never shows an open chat with unread messages.
func (s *Store) Overview(focus ID, markRead bool) Overview {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ov Overview
	if c, ok := s.chats.Get(focus); ok {
		if markRead {
			for i := range c.Messages {
				if c.Messages[i].IsUnread() {
					c.Messages[i].Read = true
				}
			}
		}
		ov.Chat, ov.Found = c.clone(), true
	}
	ov.Chats = make([]Chat, 0, s.chats.Len())
	for pair := s.chats.Oldest(); pair != nil; pair = pair.Next() {
		c := pair.Value.clone()
		ov.Unread += c.Unread()
		ov.Chats = append(ov.Chats, c)
	}
	return ov
}

// DeleteChat removes the chat and its history.
func (s *Store) DeleteChat(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats.Delete(id); !ok {
		return fmt.Errorf("delete %s: %w", id, ErrChatNotFound)
	}
	return nil
}

// DeleteMessage removes the message at the zero-based index and returns it.
func (s *Store) DeleteMessage(id ID, index int) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats.Get(id)
	if !ok {
		return Message{}, fmt.Errorf("delete message in %s: %w", id, ErrChatNotFound)
	}
	if index < 0 || index >= len(c.Messages) {
		return Message{}, fmt.Errorf("delete message %d of %d: %w", index+1, len(c.Messages), ErrMessageIndex)
	}
	m := c.Messages[index]
	c.Messages = append(c.Messages[:index], c.Messages[index+1:]...)
	return m, nil
}

// DeleteAllMessages empties the chat history and returns how many messages were removed.
func (s *Store) DeleteAllMessages(id ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats.Get(id)
	if !ok {
		return 0, fmt.Errorf("clear %s: %w", id, ErrChatNotFound)
	}
	n := len(c.Messages)
	c.Messages = nil
	return n, nil
}

// RemoveFirstOutgoing removes the first outgoing message of the given kind
// whose matching key equals key.
func (s *Store) RemoveFirstOutgoing(id ID, kind Kind, key string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats.Get(id)
	if !ok {
		return Message{}, false
	}
	for i, m := range c.Messages {
		if m.Direction == Outgoing && m.Kind == kind && m.Key() == key {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			return m, true
		}
	}
	return Message{}, false
}

// MarkChatRead marks every incoming message of the chat as read and returns
// how many changed.
func (s *Store) MarkChatRead(id ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats.Get(id)
	if !ok {
		return 0
	}
	n := 0
	for i := range c.Messages {
		if c.Messages[i].IsUnread() {
			c.Messages[i].Read = true
			n++
		}
	}
	return n
}

// MarkSeen flags the outgoing message with the given external id as seen.
// Reports whether the flag changed; repeated calls are no-ops.
func (s *Store) MarkSeen(id ID, externalID string) bool {
	if externalID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats.Get(id)
	if !ok {
		return false
	}
	for i := range c.Messages {
		m := &c.Messages[i]
		if m.Direction == Outgoing && m.ExternalID == externalID {
			if m.Seen {
				return false
			}
			m.Seen = true
			return true
		}
	}
	return false
}

// CountUnread returns the number of unread incoming messages in the chat.
func (s *Store) CountUnread(id ID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats.Get(id)
	if !ok {
		return 0
	}
	return c.Unread()
}

// TotalUnread counts unread incoming messages across all chats.
func (s *Store) TotalUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for pair := s.chats.Oldest(); pair != nil; pair = pair.Next() {
		n += pair.Value.Unread()
	}
	return n
}

// UnseenOutgoing lists every outgoing message that was delivered but not yet seen.
func (s *Store) UnseenOutgoing() []SeenCandidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []SeenCandidate
	for pair := s.chats.Oldest(); pair != nil; pair = pair.Next() {
		for _, m := range pair.Value.Messages {
			if m.Direction == Outgoing && !m.Seen && m.ExternalID != "" {
				out = append(out, SeenCandidate{ChatID: pair.Key, ExternalID: m.ExternalID})
			}
		}
	}
	return out
}

func (c *Chat) clone() Chat {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}
