// Package display decides what the operator is looking at and renders it.
package display

import (
	"errors"
	"fmt"

	"github.com/matheus3301/wppcli/internal/chat"
)

// ErrInvalidTransition is returned for navigation the view graph does not allow.
var ErrInvalidTransition = errors.New("invalid display transition")

// Kind tags the active view.
type Kind int

const (
	Main Kind = iota
	IdsOnly
	DeleteChatPicker
	Settings
	ChatView
	DeleteMessagePicker
)

func (k Kind) String() string {
	switch k {
	case Main:
		return "main"
	case IdsOnly:
		return "ids"
	case DeleteChatPicker:
		return "delete-chat"
	case Settings:
		return "settings"
	case ChatView:
		return "chat"
	case DeleteMessagePicker:
		return "delete-message"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// State is the active view. ChatID is set only for ChatView and
// DeleteMessagePicker.
type State struct {
	Kind   Kind
	ChatID chat.ID
}

func MainState() State { return State{Kind: Main} }
func IdsState() State { return State{Kind: IdsOnly} }
func DeleteChatState() State { return State{Kind: DeleteChatPicker} }
func SettingsState() State { return State{Kind: Settings} }
func ChatState(id chat.ID) State { return State{Kind: ChatView, ChatID: id} }
func DeleteMessagesState(id chat.ID) State { return State{Kind: DeleteMessagePicker, ChatID: id} }

func (s State) String() string {
	if s.ChatID != "" {
		return fmt.Sprintf("%s(%s)", s.Kind, s.ChatID)
	}
	return s.Kind.String()
}

// InChat reports whether s is a chat view of id.
func (s State) InChat(id chat.ID) bool {
	return s.Kind == ChatView && s.ChatID == id
}

// HasChat reports whether the view is bound to a chat.
func (s State) HasChat() bool {
	return s.Kind == ChatView || s.Kind == DeleteMessagePicker
}

// Prompt is the input hint shown under the view.
func (s State) Prompt() string {
	switch s.Kind {
	case IdsOnly:
		return "Type /back to return or /delete to delete:"
	case DeleteChatPicker:
		return "Enter the number of chat to delete or /back to return:"
	case Settings:
		return "Enter option number to change or /back to return:"
	case ChatView:
		return "Type your message or command:"
	case DeleteMessagePicker:
		return "Enter message number to delete, /all to delete all, or /back to return:"
	default:
		return "Enter chat ID to reply or command:"
	}
}

// global views are reachable from anywhere.
func global(k Kind) bool {
	switch k {
	case Main, IdsOnly, DeleteChatPicker, Settings:
		return true
	}
	return false
}

// validate checks a transition. Re-entering the current state is always
// allowed and means "re-render".
func validate(from, to State) error {
	switch {
	case from == to:
		return nil
	case global(to.Kind) && to.ChatID == "":
		return nil
	case to.Kind == ChatView && to.ChatID != "" && from.Kind == Main:
		return nil
	case to.Kind == ChatView && from.Kind == DeleteMessagePicker && from.ChatID == to.ChatID:
		return nil
	case to.Kind == DeleteMessagePicker && from.Kind == ChatView && from.ChatID == to.ChatID:
		return nil
	}
	return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
}
