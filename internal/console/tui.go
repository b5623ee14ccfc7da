package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const (
	noticeRows   = 7
	maxNotices   = 200
	flashTimeout = 4 * time.Second
	pendingOps   = 256
)

// TUI is a full-screen console: header, view body, a rolling notice log, a
// status bar and an input line. Notices stay visible across re-renders.
type TUI struct {
	app     *tview.Application
	header  *tview.TextView
	body    *tview.TextView
	notices *tview.TextView
	status  *StatusBar
	input   *tview.InputField

	lines chan string
	ops   chan func()
	width atomic.Int32

	mu          sync.Mutex
	viewPrompt  string
	noticeLines []string
	running     bool
	stopped     chan struct{}
	stopOnce    sync.Once
}

var (
	_ Console = (*TUI)(nil)
	_ Runner  = (*TUI)(nil)
)

// NewTUI builds the widgets. Nothing is drawn until Run.
func NewTUI(session string) *TUI {
	theme := DefaultTheme()
	t := &TUI{
		app:     tview.NewApplication(),
		header:  tview.NewTextView().SetWrap(false),
		body:    tview.NewTextView().SetWrap(true).SetWordWrap(true),
		notices: tview.NewTextView().SetWrap(true),
		status:  NewStatusBar(session),
		input:   tview.NewInputField().SetFieldWidth(0),
		lines:   make(chan string, 16),
		ops:     make(chan func(), pendingOps),
		stopped: make(chan struct{}),
	}
	t.width.Store(DefaultWidth)

	t.header.SetTextColor(theme.TitleColor)
	t.notices.SetBorder(true).SetTitle(" notices ").SetBorderColor(theme.BorderColor)
	t.body.SetBorder(true).SetBorderColor(theme.BorderFocusColor)
	t.input.SetLabelColor(theme.MenuKeyColor)
	t.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := t.input.GetText()
		t.input.SetText("")
		select {
		case t.lines <- text:
		default:
			t.status.SetFlash("busy, input dropped", time.Now().Add(flashTimeout))
		}
	})

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.header, 0, 2, false).
		AddItem(t.body, 0, 5, false).
		AddItem(t.notices, noticeRows, 0, false).
		AddItem(t.status, 1, 0, false).
		AddItem(t.input, 1, 0, true)

	t.app.SetRoot(root, true).EnableMouse(false)
	t.app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		w, _ := screen.Size()
		if w > 4 {
			t.width.Store(int32(w - 4))
		}
		return false
	})
	return t
}

// queue schedules fn on the UI goroutine. Updates issued before Run are
// buffered and applied once the event loop starts.
func (t *TUI) queue(fn func()) {
	select {
	case t.ops <- fn:
	case <-t.stopped:
	}
}

func (t *TUI) drain() {
	for {
		select {
		case fn := <-t.ops:
			t.app.QueueUpdateDraw(fn)
		case <-t.stopped:
			return
		}
	}
}

// Run owns the terminal until Stop is called, ctx is cancelled or the
// operator presses Ctrl-C.
func (t *TUI) Run(ctx context.Context) error {
	t.mu.Lock()
	t.running = true
	t.mu.Unlock()

	go t.drain()
	go func() {
		select {
		case <-ctx.Done():
			t.app.Stop()
		case <-t.stopped:
		}
	}()
	go t.tick()

	err := t.app.Run()
	t.stopOnce.Do(func() { close(t.stopped) })
	return err
}

func (t *TUI) tick() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.queue(t.status.Render)
		case <-t.stopped:
			return
		}
	}
}

// Stop ends the event loop.
func (t *TUI) Stop() {
	t.mu.Lock()
	running := t.running
	t.mu.Unlock()
	if running {
		t.app.Stop()
	}
	t.stopOnce.Do(func() { close(t.stopped) })
}

func (t *TUI) Width() int { return int(t.width.Load()) }

// SetConnection updates the connection label in the status bar.
func (t *TUI) SetConnection(label string) {
	t.queue(func() { t.status.SetConnection(label) })
}

func (t *TUI) Render(s Screen) {
	header := Sanitize(strings.Join(s.Header, "\n"))
	body := Sanitize(strings.Join(s.Body, "\n"))

	t.mu.Lock()
	t.viewPrompt = s.Prompt
	t.mu.Unlock()

	t.queue(func() {
		t.header.SetText(header)
		t.body.SetText(body).ScrollToEnd()
		t.input.SetLabel(s.Prompt + " ")
	})
}

func (t *TUI) appendNotices(lines []string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, l := range lines {
		t.noticeLines = append(t.noticeLines, Sanitize(l))
	}
	if over := len(t.noticeLines) - maxNotices; over > 0 {
		t.noticeLines = append(t.noticeLines[:0], t.noticeLines[over:]...)
	}
	return strings.Join(t.noticeLines, "\n")
}

func (t *TUI) Notify(lines ...string) {
	text := t.appendNotices(lines)
	t.queue(func() {
		t.notices.SetText(text).ScrollToEnd()
	})
}

func (t *TUI) Println(lines ...string) {
	if len(lines) == 0 {
		return
	}
	text := t.appendNotices(lines)
	last := lines[len(lines)-1]
	t.queue(func() {
		t.notices.SetText(text).ScrollToEnd()
		t.status.SetFlash(last, time.Now().Add(flashTimeout))
	})
}

func (t *TUI) Clear() {
	t.mu.Lock()
	t.noticeLines = nil
	t.mu.Unlock()
	t.queue(func() { t.notices.Clear() })
}

func (t *TUI) ReadLine(ctx context.Context) (string, error) {
	select {
	case line := <-t.lines:
		return line, nil
	case <-t.stopped:
		return "", io.EOF
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Prompt shows question as the input label until an answer arrives.
func (t *TUI) Prompt(ctx context.Context, question string) (string, error) {
	t.queue(func() { t.input.SetLabel(question + " ") })
	answer, err := t.ReadLine(ctx)

	t.mu.Lock()
	prompt := t.viewPrompt
	t.mu.Unlock()
	t.queue(func() { t.input.SetLabel(prompt + " ") })
	return answer, err
}

// StatusBar shows session, connection state, clock and a transient flash.
type StatusBar struct {
	*tview.TextView
	session    string
	connection string
	flash      string
	flashUntil time.Time
}

// NewStatusBar creates the bar for a session.
func NewStatusBar(session string) *StatusBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	sb := &StatusBar{TextView: tv, session: session, connection: "connecting"}
	sb.Render()
	return sb
}

// SetConnection updates the connection label.
func (sb *StatusBar) SetConnection(label string) {
	sb.connection = label
	sb.Render()
}

// SetFlash shows msg until the given time.
func (sb *StatusBar) SetFlash(msg string, until time.Time) {
	sb.flash = msg
	sb.flashUntil = until
	sb.Render()
}

// Render redraws the bar text. Must run on the UI goroutine.
func (sb *StatusBar) Render() {
	sb.Clear()
	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s", sb.session, sb.connection, time.Now().Format("15:04"))
	if sb.flash != "" && time.Now().Before(sb.flashUntil) {
		line += fmt.Sprintf(" | [yellow]%s[-]", tview.Escape(sb.flash))
	}
	_, _ = fmt.Fprint(sb, line)
}
