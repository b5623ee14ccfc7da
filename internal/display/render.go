package display

import (
	"fmt"
	"strings"

	"github.com/matheus3301/wppcli/internal/chat"
	"github.com/matheus3301/wppcli/internal/console"
	"github.com/matheus3301/wppcli/internal/settings"
	"github.com/matheus3301/wppcli/internal/status"
)

const appTitle = "WPPCLI MESSENGER"

// frame is everything a view needs, captured before rendering so that no
// lock is held while text is laid out.
type frame struct {
	state    State
	width    int
	conn     status.State
	unread   int
	chats    []chat.Chat
	chat     chat.Chat
	settings settings.Snapshot
	pairing  string
}

func (f frame) statusLine() string {
	return fmt.Sprintf("Status: %s | Unread: %d", f.conn.Label(), f.unread)
}

func render(f frame) console.Screen {
	var scr console.Screen
	switch f.state.Kind {
	case IdsOnly:
		scr = renderIDs(f)
	case DeleteChatPicker:
		scr = renderDeleteChat(f)
	case Settings:
		scr = renderSettings(f)
	case ChatView:
		scr = renderChat(f)
	case DeleteMessagePicker:
		scr = renderDeleteMessages(f)
	default:
		scr = renderMain(f)
	}
	if scr.Prompt == "" {
		scr.Prompt = f.state.Prompt()
	}
	return scr
}

func unreadSuffix(c chat.Chat) string {
	if n := c.Unread(); n > 0 {
		return fmt.Sprintf(" (%d new)", n)
	}
	return ""
}

func idColumn(chats []chat.Chat) int {
	w := 9
	for _, c := range chats {
		if n := len(c.ID); n > w {
			w = n
		}
	}
	return w
}

func renderMain(f frame) console.Screen {
	w := boxWidth(f.width)
	scr := console.Screen{Header: box(appTitle, w,
		"Type /exit to quit, /refresh to refresh, /clear to clear",
		"Type /ids to show only chat IDs",
		"Type /delete to delete a chat",
		"Type /settings to change message settings",
		f.statusLine(),
	)}

	if f.pairing != "" && f.conn == status.AuthRequired {
		scr.Body = append(scr.Body, "Scan this code with WhatsApp > Linked devices:", "")
		scr.Body = append(scr.Body, strings.Split(strings.TrimRight(f.pairing, "\n"), "\n")...)
		scr.Body = append(scr.Body, "")
	}
	if len(f.chats) == 0 {
		scr.Body = append(scr.Body, "No active chats yet. Waiting for messages...")
		return scr
	}
	col := idColumn(f.chats)
	scr.Body = append(scr.Body, "Your active chats:", rule(60), padRight("ID", col)+" Name", rule(60))
	for _, c := range f.chats {
		scr.Body = append(scr.Body, padRight(string(c.ID), col)+" "+c.Name+unreadSuffix(c))
	}
	scr.Body = append(scr.Body, rule(60))
	return scr
}

func renderIDs(f frame) console.Screen {
	w := boxWidth(f.width)
	scr := console.Screen{Header: box("CHAT IDs", w,
		"Type /back to return to main screen",
		"Type /delete to delete a chat",
		f.statusLine(),
	)}

	if len(f.chats) == 0 {
		scr.Body = []string{"No active chats yet. Waiting for messages..."}
		return scr
	}
	scr.Body = append(scr.Body, "Chat IDs:", rule(30))
	for _, c := range f.chats {
		scr.Body = append(scr.Body, string(c.ID)+unreadSuffix(c))
	}
	scr.Body = append(scr.Body, rule(30))
	return scr
}

func renderDeleteChat(f frame) console.Screen {
	w := boxWidth(f.width)
	scr := console.Screen{Header: box("DELETE CHAT", w,
		"Type /back to return to main screen",
		f.statusLine(),
	)}

	if len(f.chats) == 0 {
		scr.Body = []string{"No active chats to delete."}
		scr.Prompt = "Type /back to return:"
		return scr
	}
	col := idColumn(f.chats)
	scr.Body = append(scr.Body, "Select chat to delete:", rule(60), "   "+padRight("ID", col)+" Name", rule(60))
	for i, c := range f.chats {
		scr.Body = append(scr.Body, fmt.Sprintf("%d. %s %s", i+1, padRight(string(c.ID), col), c.Name))
	}
	scr.Body = append(scr.Body, rule(60))
	return scr
}

func renderSettings(f frame) console.Screen {
	w := boxWidth(f.width)
	scr := console.Screen{Header: box("SETTINGS", w,
		"Type /back to return to main screen",
		"",
		"Message Timer Settings:",
		"1. Set default timer for images (seconds)",
		"2. Set default timer for messages (seconds)",
		"3. Enable/disable auto-delete after sending",
		f.statusLine(),
	)}

	autoDelete := "Disabled"
	if f.settings.AutoDelete {
		autoDelete = "Enabled"
	}
	scr.Body = []string{
		"Current Settings:",
		rule(40),
		fmt.Sprintf("Image Timer: %d seconds", int(f.settings.ImageTimer.Seconds())),
		fmt.Sprintf("Message Timer: %d seconds", int(f.settings.TextTimer.Seconds())),
		fmt.Sprintf("Auto Delete: %s", autoDelete),
		rule(40),
	}
	return scr
}

func chatHeader(c chat.Chat, title string, w int, extra ...string) []string {
	lines := []string{fmt.Sprintf("ID: %s", c.ID)}
	if c.Handle != "" {
		lines = append(lines, fmt.Sprintf("Username: @%s", c.Handle))
	}
	lines = append(lines, extra...)
	return box(title, w, lines...)
}

func seenMarker(m chat.Message) string {
	if m.Direction != chat.Outgoing {
		return ""
	}
	if m.Seen {
		return " ✓✓"
	}
	return " ✓"
}

func filename(m chat.Message) string {
	if m.Filename == "" {
		return "photo"
	}
	return m.Filename
}

func messageLines(c chat.Chat, m chat.Message, width int) []string {
	who := c.Name
	if m.Direction == chat.Outgoing {
		who = "You"
	}
	ts := m.Timestamp.Format("15:04")

	if m.Kind == chat.KindImage {
		lines := []string{fmt.Sprintf("%s %s: [Image: %s] 📸%s", ts, who, filename(m), seenMarker(m))}
		if m.Direction == chat.Incoming && m.LocalPath != "" {
			lines = append(lines, "         📁 Saved at: "+m.LocalPath)
		}
		return lines
	}
	return wrap(fmt.Sprintf("%s %s: %s%s", ts, who, m.Text, seenMarker(m)), width, "      ")
}

func renderChat(f frame) console.Screen {
	w := boxWidth(f.width)
	c := f.chat
	scr := console.Screen{Header: chatHeader(c, "CHAT WITH "+strings.ToUpper(c.Name), w,
		"Type /back to return, /refresh to refresh, /clear to clear",
		"Type /delete to delete this chat, /dmsg to delete messages",
		"Type /image to send photo, /timer to set timer for messages",
		f.statusLine(),
	)}

	if len(c.Messages) == 0 {
		scr.Body = append(scr.Body, "No messages yet.")
	}
	for _, m := range c.Messages {
		scr.Body = append(scr.Body, messageLines(c, m, f.width)...)
	}
	scr.Body = append(scr.Body, rule(60))
	return scr
}

func renderDeleteMessages(f frame) console.Screen {
	w := boxWidth(f.width)
	c := f.chat
	scr := console.Screen{Header: chatHeader(c, "DELETE MESSAGES - "+strings.ToUpper(c.Name), w,
		"Type /back to return to chat",
		"Type /all to delete all messages",
	)}

	if len(c.Messages) == 0 {
		scr.Body = []string{"No messages to delete."}
		scr.Prompt = "Type /back to return:"
		return scr
	}
	scr.Body = append(scr.Body, "Select message to delete:", rule(80), "No.  Time  Direction  Message", rule(80))
	for i, m := range c.Messages {
		direction := "Incoming"
		if m.Direction == chat.Outgoing {
			direction = "Outgoing"
		}
		text := preview(m.Text, 40)
		if m.Kind == chat.KindImage {
			text = fmt.Sprintf("[Image: %s]", filename(m))
		}
		scr.Body = append(scr.Body, fmt.Sprintf("%-4d %s %-10s %s", i+1, m.Timestamp.Format("15:04"), direction, text))
	}
	scr.Body = append(scr.Body, rule(80))
	return scr
}
