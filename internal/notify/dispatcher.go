// Package notify drains the inbound queue into the chat store and tells the
// operator about new messages.
package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/wppcli/internal/chat"
	"github.com/matheus3301/wppcli/internal/display"
	"github.com/matheus3301/wppcli/internal/inbound"
	"github.com/matheus3301/wppcli/internal/metrics"
)

// View is the part of the display the dispatcher needs.
type View interface {
	Current() display.State
	RequestRefresh()
}

// Notifier prints asynchronous notices.
type Notifier interface {
	Notify(lines ...string)
}

// Options are the optional collaborators of a Dispatcher.
type Options struct {
	Replier *AutoReplier
	Viewer  *Viewer
	Metrics *metrics.Metrics
}

// Dispatcher applies inbound events one at a time, in arrival order.
type Dispatcher struct {
	queue *inbound.Queue
	store *chat.Store
	view  View
	out   Notifier
	log   *zap.Logger
	opts  Options

	cancel context.CancelFunc
	done   chan struct{}
}

func NewDispatcher(q *inbound.Queue, store *chat.Store, view View, out Notifier, log *zap.Logger, opts Options) *Dispatcher {
	return &Dispatcher{
		queue: q,
		store: store,
		view:  view,
		out:   out,
		log:   log,
		opts:  opts,
	}
}

// Run dispatches events until ctx is cancelled or the queue is closed and drained.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		evt, err := d.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, inbound.ErrClosed) {
				return nil
			}
			return err
		}
		d.Dispatch(ctx, evt)
	}
}

// Dispatch stores one event and notifies the operator according to the view
// that is active right now.
func (d *Dispatcher) Dispatch(ctx context.Context, evt inbound.Event) {
	log := d.log.With(zap.String("chat_id", string(evt.ChatID)))

	d.store.UpsertChat(evt.ChatID, evt.SenderName, evt.SenderHandle)
	msg, err := d.store.AppendMessage(evt.ChatID, evt.Message())
	if err != nil {
		// the chat was deleted between upsert and append
		log.Warn("dropping inbound message", zap.Error(err))
		return
	}
	d.opts.Metrics.Received(msg.Kind)
	log.Debug("message received", zap.String("kind", string(msg.Kind)))

	name := evt.SenderName
	if c, ok := d.store.GetChat(evt.ChatID); ok {
		name = c.Name
	}

	var extra []string
	if msg.Kind == chat.KindImage && msg.LocalPath != "" {
		if err := d.opts.Viewer.Open(msg.LocalPath); err != nil {
			extra = []string{
				fmt.Sprintf("📸 Image received from %s", name),
				fmt.Sprintf("📁 Image saved at: %s", msg.LocalPath),
			}
		}
	}
	d.announce(evt.ChatID, name, msg, extra...)

	if msg.Kind != chat.KindText || evt.Automated || d.opts.Replier == nil {
		return
	}
	reply, ok := d.opts.Replier.Reply(ctx, evt.ChatID, msg.Text)
	if !ok {
		return
	}
	reply, err = d.store.AppendMessage(evt.ChatID, reply)
	if err != nil {
		log.Warn("dropping auto-reply", zap.Error(err))
		return
	}
	log.Info("auto-reply sent", zap.String("external_id", reply.ExternalID))
	d.announce(evt.ChatID, "You", reply)
}

func (d *Dispatcher) announce(chatID chat.ID, name string, msg chat.Message, extra ...string) {
	lines, refresh := Notice(d.view.Current(), chatID, name, msg)
	if refresh {
		d.view.RequestRefresh()
	}
	if len(lines) > 0 {
		d.out.Notify(append(lines, extra...)...)
	}
}

// Notice formats the notification for a message arriving while st is active.
// A message for the open chat only refreshes it. Another chat gets a notice
// and leaves the view alone. Every other view gets both.
func Notice(st display.State, chatID chat.ID, name string, msg chat.Message) (lines []string, refresh bool) {
	if st.InChat(chatID) {
		return nil, true
	}

	ts := msg.Timestamp.Format("15:04:05")
	from := fmt.Sprintf("ID: %s", chatID)
	if st.Kind == display.Main || st.Kind == display.ChatView {
		from = fmt.Sprintf("%s (ID: %s)", name, chatID)
	}

	if msg.Kind == chat.KindImage {
		lines = []string{
			fmt.Sprintf("[%s] 📸 New image from %s", ts, from),
			fmt.Sprintf("→ Image saved as: %s", msg.Filename),
		}
	} else {
		lines = []string{
			fmt.Sprintf("[%s] New message from %s:", ts, from),
			fmt.Sprintf("→ %s", msg.Text),
		}
	}
	return lines, st.Kind != display.ChatView
}

// Start runs the dispatcher in the background.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error("dispatcher stopped", zap.Error(err))
		}
	}()
}

// Stop stops the dispatcher and waits for it to exit.
func (d *Dispatcher) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
}
