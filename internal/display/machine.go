package display

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wppcli/internal/chat"
	"github.com/matheus3301/wppcli/internal/console"
	"github.com/matheus3301/wppcli/internal/settings"
	"github.com/matheus3301/wppcli/internal/status"
)

const DefaultRefreshInterval = 500 * time.Millisecond

// Machine owns the active view. It is the only component that renders full
// screens; everyone else asks for a refresh.
type Machine struct {
	store    *chat.Store
	settings *settings.Settings
	conn     *status.Machine
	con      console.Console
	log      *zap.Logger
	interval time.Duration

	mu      sync.Mutex
	state   State
	pairing string

	renderMu  sync.Mutex
	dirty     atomic.Bool
	suspended atomic.Int32

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMachine creates a machine in the Main view. conn may be nil.
func NewMachine(store *chat.Store, st *settings.Settings, conn *status.Machine, con console.Console, log *zap.Logger, interval time.Duration) *Machine {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Machine{
		store:    store,
		settings: st,
		conn:     conn,
		con:      con,
		log:      log,
		interval: interval,
		state:    MainState(),
	}
}

// Current returns the active view.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition validates and switches to the given view, then renders it.
// Entering a chat view that no longer exists lands on Main.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	from := m.state
	if err := validate(from, to); err != nil {
		m.mu.Unlock()
		return err
	}
	if to.HasChat() {
		if _, ok := m.store.GetChat(to.ChatID); !ok {
			to = MainState()
		}
	}
	m.state = to
	m.mu.Unlock()

	if from != to {
		m.log.Debug("view changed", zap.Stringer("from", from), zap.Stringer("to", to))
	}
	m.Render()
	return nil
}

// Back returns to the parent view: Main for global views and chats, the
// chat itself for the message picker.
func (m *Machine) Back() State {
	cur := m.Current()
	to := MainState()
	if cur.Kind == DeleteMessagePicker {
		to = ChatState(cur.ChatID)
	}
	if err := m.Transition(to); err != nil {
		// every view may go back; reaching here is a table bug
		m.log.Error("back transition rejected", zap.Error(err))
	}
	return m.Current()
}

// Render draws the active view. A chat view whose chat disappeared falls
// back to Main. Opening a chat view marks its incoming messages read.
func (m *Machine) Render() {
	m.renderMu.Lock()
	defer m.renderMu.Unlock()
	m.dirty.Store(false)

	f := m.frame()
	m.con.Render(render(f))
}

func (m *Machine) frame() frame {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := frame{state: m.state, width: m.con.Width(), pairing: m.pairing}
	if m.conn != nil {
		f.conn = m.conn.Current()
	}
	if m.settings != nil {
		f.settings = m.settings.Snapshot()
	}

	var focus chat.ID
	if m.state.HasChat() {
		focus = m.state.ChatID
	}
	ov := m.store.Overview(focus, m.state.Kind == ChatView)
	if m.state.HasChat() {
		if !ov.Found {
			m.log.Debug("chat vanished, back to main", zap.String("chat_id", string(m.state.ChatID)))
			m.state = MainState()
			f.state = m.state
		} else {
			f.chat = ov.Chat
		}
	}
	if !f.state.HasChat() {
		f.chats = ov.Chats
	}
	f.unread = ov.Unread
	return f
}

// SetPairing sets the QR code shown on the main view while the provider
// waits for pairing. An empty string hides it.
func (m *Machine) SetPairing(art string) {
	m.mu.Lock()
	m.pairing = art
	m.mu.Unlock()
	m.RequestRefresh()
}

// RequestRefresh marks the view stale. The refresh loop redraws it on its
// next tick unless a command is holding the console.
func (m *Machine) RequestRefresh() {
	m.dirty.Store(true)
}

// Suspend stops background redraws until the returned resume func is called.
// Commands hold it while they prompt the operator.
func (m *Machine) Suspend() (resume func()) {
	m.suspended.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { m.suspended.Add(-1) })
	}
}

// Suspended reports whether a command currently holds the console.
func (m *Machine) Suspended() bool {
	return m.suspended.Load() > 0
}

// Flush redraws the view if a refresh was requested. Reports whether it drew.
func (m *Machine) Flush() bool {
	if m.Suspended() || !m.dirty.Load() {
		return false
	}
	m.Render()
	return true
}

// Start begins the refresh loop.
func (m *Machine) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.loop(ctx)
}

// Stop stops the refresh loop and waits for it to exit.
func (m *Machine) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *Machine) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Flush()
		}
	}
}
