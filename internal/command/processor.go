// Package command interprets operator input against the active view.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xhit/go-str2duration/v2"
	"go.uber.org/zap"

	"github.com/matheus3301/wppcli/internal/chat"
	"github.com/matheus3301/wppcli/internal/console"
	"github.com/matheus3301/wppcli/internal/display"
	"github.com/matheus3301/wppcli/internal/expiry"
	"github.com/matheus3301/wppcli/internal/metrics"
	"github.com/matheus3301/wppcli/internal/settings"
	"github.com/matheus3301/wppcli/internal/transport"
)

// ErrQuit is returned by Handle when the operator asked to exit.
var ErrQuit = errors.New("quit requested")

const sendTimeout = 30 * time.Second

// Display is the navigation surface the processor drives.
type Display interface {
	Current() display.State
	Transition(to display.State) error
	Back() display.State
	Render()
	Suspend() (resume func())
}

// Scheduler accepts self-destruct timers for sent messages.
type Scheduler interface {
	ScheduleAfter(chatID chat.ID, m chat.Message, d time.Duration) expiry.PendingDeletion
}

// Processor is the single consumer of operator input.
type Processor struct {
	con      console.Console
	view     Display
	store    *chat.Store
	settings *settings.Settings
	sender   transport.Sender
	sched    Scheduler
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewProcessor(con console.Console, view Display, store *chat.Store, st *settings.Settings, sender transport.Sender, sched Scheduler, log *zap.Logger, m *metrics.Metrics) *Processor {
	return &Processor{
		con:      con,
		view:     view,
		store:    store,
		settings: st,
		sender:   sender,
		sched:    sched,
		log:      log,
		metrics:  m,
	}
}

// Run renders the initial view and handles lines until the operator quits,
// the input ends or ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	p.view.Render()
	for {
		line, err := p.con.ReadLine(ctx)
		if errors.Is(err, console.ErrLineTooLong) {
			p.log.Warn("input line dropped", zap.Error(err))
			p.con.Println("Input too long, ignored.")
			p.view.Render()
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := p.Handle(ctx, line); err != nil {
			if errors.Is(err, ErrQuit) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// Handle executes one line of input. Unexpected failures, panics included,
// are reported and the active view is redrawn; only ErrQuit and a closed
// input are returned.
func (p *Processor) Handle(ctx context.Context, line string) (err error) {
	resume := p.view.Suspend()
	defer resume()

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("command panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("%v", r)
		}
		if err == nil || errors.Is(err, ErrQuit) || inputClosed(err) {
			return
		}
		p.metrics.CommandFailed()
		p.log.Error("command failed", zap.String("view", p.view.Current().String()), zap.Error(err))
		p.con.Println("Error: " + err.Error())
		p.view.Render()
		err = nil
	}()

	return p.handle(ctx, strings.TrimSpace(line))
}

func inputClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (p *Processor) handle(ctx context.Context, input string) error {
	cur := p.view.Current()

	switch strings.ToLower(input) {
	case "/exit":
		p.con.Println("Goodbye!")
		return ErrQuit
	case "/refresh":
		p.view.Render()
		return nil
	case "/clear":
		p.con.Clear()
		p.view.Render()
		return nil
	case "/back":
		p.view.Back()
		return nil
	case "/ids":
		return p.view.Transition(display.IdsState())
	case "/settings":
		return p.view.Transition(display.SettingsState())
	case "/delete":
		if cur.Kind == display.ChatView {
			return p.deleteCurrentChat(ctx, cur.ChatID)
		}
		return p.view.Transition(display.DeleteChatState())
	case "/dmsg":
		if cur.Kind != display.ChatView {
			p.con.Println("You need to be in a chat to delete messages.")
			p.view.Render()
			return nil
		}
		return p.view.Transition(display.DeleteMessagesState(cur.ChatID))
	}

	switch cur.Kind {
	case display.Main:
		return p.openChat(input)
	case display.Settings:
		return p.changeSetting(ctx, input)
	case display.DeleteChatPicker:
		return p.pickChatToDelete(ctx, input)
	case display.DeleteMessagePicker:
		return p.pickMessageToDelete(ctx, cur.ChatID, input)
	case display.ChatView:
		return p.chatInput(ctx, cur.ChatID, input)
	default:
		p.view.Render()
		return nil
	}
}

func (p *Processor) openChat(input string) error {
	if input == "" {
		p.view.Render()
		return nil
	}
	id := chat.ID(input)
	if _, ok := p.store.GetChat(id); !ok {
		p.con.Println("Chat ID not found. Use /refresh to see active chats.")
		p.view.Render()
		return nil
	}
	return p.view.Transition(display.ChatState(id))
}

func (p *Processor) confirm(ctx context.Context, question string) (bool, error) {
	answer, err := p.con.Prompt(ctx, question)
	if err != nil {
		return false, err
	}
	return strings.ToLower(strings.TrimSpace(answer)) == "y", nil
}

func (p *Processor) changeSetting(ctx context.Context, input string) error {
	switch input {
	case "1", "2":
		kind, label, what := chat.KindImage, "Image", "images"
		if input == "2" {
			kind, label, what = chat.KindText, "Message", "messages"
		}
		answer, err := p.con.Prompt(ctx, fmt.Sprintf("Enter timer for %s (seconds, 0 for no timer): ", what))
		if err != nil {
			return err
		}
		d, ok := parseTimer(answer)
		if !ok {
			p.con.Println("Invalid input")
			break
		}
		d = p.settings.SetTimer(kind, d)
		p.con.Println(fmt.Sprintf("%s timer set to %d seconds", label, seconds(d)))
	case "3":
		state := "disabled"
		if p.settings.ToggleAutoDelete() {
			state = "enabled"
		}
		p.con.Println("Auto-delete " + state)
	default:
		p.con.Println("Invalid option")
	}
	p.view.Render()
	return nil
}

func (p *Processor) pickChatToDelete(ctx context.Context, input string) error {
	chats := p.store.ListChats()
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > len(chats) {
		p.con.Println("Invalid selection. Please try again.")
		p.view.Render()
		return nil
	}
	c := chats[n-1]

	ok, err := p.confirm(ctx, fmt.Sprintf("Are you sure you want to delete chat with %s? (y/N): ", c.Name))
	if err != nil {
		return err
	}
	if !ok {
		p.con.Println("Deletion cancelled.")
		p.view.Render()
		return nil
	}
	if err := p.store.DeleteChat(c.ID); err != nil && !errors.Is(err, chat.ErrChatNotFound) {
		return err
	}
	p.log.Info("chat deleted", zap.String("chat_id", string(c.ID)))
	p.con.Println(fmt.Sprintf("Chat with %s (ID: %s) has been deleted.", c.Name, c.ID))
	return p.view.Transition(display.MainState())
}

func (p *Processor) deleteCurrentChat(ctx context.Context, id chat.ID) error {
	c, ok := p.store.GetChat(id)
	if !ok {
		p.view.Render()
		return nil
	}
	yes, err := p.confirm(ctx, fmt.Sprintf("Are you sure you want to delete chat with %s? (y/N): ", c.Name))
	if err != nil {
		return err
	}
	if !yes {
		p.con.Println("Deletion cancelled.")
		p.view.Render()
		return nil
	}
	if err := p.store.DeleteChat(id); err != nil && !errors.Is(err, chat.ErrChatNotFound) {
		return err
	}
	p.log.Info("chat deleted", zap.String("chat_id", string(id)))
	p.con.Println(fmt.Sprintf("Chat with %s has been deleted.", c.Name))
	return p.view.Transition(display.MainState())
}

func (p *Processor) pickMessageToDelete(ctx context.Context, id chat.ID, input string) error {
	if strings.EqualFold(input, "/all") {
		ok, err := p.confirm(ctx, "Are you sure you want to delete ALL messages? (y/N): ")
		if err != nil {
			return err
		}
		if !ok {
			p.con.Println("Deletion cancelled.")
			p.view.Render()
			return nil
		}
		if _, err := p.store.DeleteAllMessages(id); err != nil {
			return err
		}
		p.con.Println("All messages deleted.")
		return p.view.Transition(display.ChatState(id))
	}

	n, err := strconv.Atoi(input)
	if err != nil {
		p.con.Println("Invalid command. Please enter a message number, /all, or /back")
		p.view.Render()
		return nil
	}
	if _, err := p.store.DeleteMessage(id, n-1); err != nil {
		if !errors.Is(err, chat.ErrMessageIndex) {
			return err
		}
		p.con.Println("Invalid message number.")
		p.view.Render()
		return nil
	}
	p.con.Println(fmt.Sprintf("Message %d deleted.", n))
	if p.store.MessageCount(id) == 0 {
		return p.view.Transition(display.ChatState(id))
	}
	p.view.Render()
	return nil
}

func (p *Processor) chatInput(ctx context.Context, id chat.ID, input string) error {
	if _, ok := p.store.GetChat(id); !ok {
		// deleted while open; rendering falls back to Main
		p.view.Render()
		return nil
	}
	switch strings.ToLower(input) {
	case "":
		p.view.Render()
		return nil
	case "/image":
		return p.sendImage(ctx, id)
	case "/timer":
		return p.setTimer(ctx)
	default:
		return p.sendText(ctx, id, input)
	}
}

func (p *Processor) setTimer(ctx context.Context) error {
	which, err := p.con.Prompt(ctx, "Set timer for (1) images or (2) messages: ")
	if err != nil {
		return err
	}
	answer, err := p.con.Prompt(ctx, "Enter timer in seconds (0 to disable): ")
	if err != nil {
		return err
	}
	d, ok := parseTimer(answer)
	if !ok {
		p.con.Println("Invalid input")
		p.view.Render()
		return nil
	}
	if strings.TrimSpace(which) == "1" {
		d = p.settings.SetImageTimer(d)
		p.con.Println(fmt.Sprintf("Image timer set to %d seconds", seconds(d)))
	} else {
		d = p.settings.SetTextTimer(d)
		p.con.Println(fmt.Sprintf("Message timer set to %d seconds", seconds(d)))
	}
	p.view.Render()
	return nil
}

// timerFor returns the self-destruct timer for a send. With auto-delete on
// and a default set, the default applies silently; otherwise the operator is
// asked. Unparseable answers mean no timer.
func (p *Processor) timerFor(ctx context.Context, kind chat.Kind, question string) (time.Duration, error) {
	if d, ok := p.settings.AutoTimer(kind); ok {
		return d, nil
	}
	ok, err := p.confirm(ctx, question)
	if err != nil || !ok {
		return 0, err
	}
	answer, err := p.con.Prompt(ctx, "Enter timer in seconds: ")
	if err != nil {
		return 0, err
	}
	d, valid := parseTimer(answer)
	if !valid {
		p.con.Println("Invalid input, sending without timer")
		return 0, nil
	}
	return d, nil
}

func (p *Processor) sendText(ctx context.Context, id chat.ID, text string) error {
	d, err := p.timerFor(ctx, chat.KindText, "Set timer for this message? (y/N): ")
	if err != nil {
		return err
	}

	sctx, cancel := context.WithTimeout(ctx, sendTimeout)
	extID, err := p.sender.SendText(sctx, id, text)
	cancel()
	if err != nil {
		p.metrics.SendFailed(chat.KindText)
		p.log.Warn("send failed", zap.String("chat_id", string(id)), zap.Error(err))
		p.con.Println("Error sending message")
		p.view.Render()
		return nil
	}
	p.metrics.Sent(chat.KindText)

	msg := chat.Message{Kind: chat.KindText, Direction: chat.Outgoing, Text: text, ExternalID: extID}
	p.delivered(id, msg, d, "Message sent!", "Message will be deleted in %d seconds...")
	return nil
}

func (p *Processor) sendImage(ctx context.Context, id chat.ID) error {
	answer, err := p.con.Prompt(ctx, "Enter the path to the image: ")
	if err != nil {
		return err
	}
	path := expandPath(strings.TrimSpace(answer))
	if fi, err := os.Stat(path); path == "" || err != nil || fi.IsDir() {
		p.con.Println("File not found. Please check the path.")
		p.view.Render()
		return nil
	}

	d, err := p.timerFor(ctx, chat.KindImage, "Set timer for this image? (y/N): ")
	if err != nil {
		return err
	}

	sctx, cancel := context.WithTimeout(ctx, sendTimeout)
	extID, err := p.sender.SendMedia(sctx, id, path)
	cancel()
	if err != nil {
		p.metrics.SendFailed(chat.KindImage)
		p.log.Warn("photo send failed", zap.String("chat_id", string(id)), zap.String("path", path), zap.Error(err))
		p.con.Println("Error sending photo.")
		p.view.Render()
		return nil
	}
	p.metrics.Sent(chat.KindImage)

	msg := chat.Message{
		Kind:       chat.KindImage,
		Direction:  chat.Outgoing,
		Filename:   filepath.Base(path),
		LocalPath:  path,
		ExternalID: extID,
	}
	p.delivered(id, msg, d, "Photo sent!", "Photo will be deleted in %d seconds...")
	return nil
}

// delivered records a sent message and arms its timer.
func (p *Processor) delivered(id chat.ID, msg chat.Message, d time.Duration, sent, expires string) {
	msg, err := p.store.AppendMessage(id, msg)
	if err != nil {
		p.log.Warn("sent to a chat that is gone", zap.String("chat_id", string(id)), zap.Error(err))
	}
	p.con.Println(sent)
	if err == nil && d > 0 {
		p.sched.ScheduleAfter(id, msg, d)
		p.con.Println(fmt.Sprintf(expires, seconds(d)))
	}
	p.view.Render()
}

// maxTimerSeconds is the largest whole-second timer a time.Duration can hold.
const maxTimerSeconds = math.MaxInt64 / int64(time.Second)

// parseTimer accepts whole seconds or a duration such as "1m30s". Negative
// values clamp to zero; values too large for a time.Duration are rejected.
func parseTimer(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	var d time.Duration
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > maxTimerSeconds {
			return 0, false
		}
		d = time.Duration(max(n, 0)) * time.Second
	} else if errors.Is(err, strconv.ErrRange) {
		return 0, false
	} else {
		parsed, err := str2duration.ParseDuration(s)
		if err != nil {
			return 0, false
		}
		d = parsed
	}
	if d < 0 {
		d = 0
	}
	return d, true
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}

// expandPath expands environment variables and a leading ~.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return filepath.Clean(path)
}
