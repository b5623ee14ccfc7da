package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/wppcli/internal/bus"
	"github.com/matheus3301/wppcli/internal/status"
	"github.com/matheus3301/wppcli/internal/wa"
)

const relayBuffer = 64

// Pairing shows or hides the pairing code on the main view.
type Pairing interface {
	SetPairing(art string)
	RequestRefresh()
}

// Notifier prints asynchronous notices.
type Notifier interface {
	Notify(lines ...string)
}

// ConnectionLabel is implemented by surfaces with a status bar.
type ConnectionLabel interface {
	SetConnection(label string)
}

// relay forwards bus events to the terminal: notices to the console, pairing
// codes to the main view and status changes to the status bar.
type relay struct {
	bus   *bus.Bus
	view  Pairing
	out   Notifier
	label ConnectionLabel
	log   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func newRelay(b *bus.Bus, view Pairing, out Notifier, label ConnectionLabel, log *zap.Logger) *relay {
	return &relay{bus: b, view: view, out: out, label: label, log: log}
}

// Start subscribes and forwards events until Stop.
func (r *relay) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	notices, unsubNotices := r.bus.Subscribe("ui.", relayBuffer)
	conn, unsubConn := r.bus.Subscribe("conn.", relayBuffer)
	go func() {
		defer close(r.done)
		defer unsubNotices()
		defer unsubConn()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-notices:
				r.notice(evt)
			case evt := <-conn:
				r.connection(evt)
			}
		}
	}()
}

// Stop unsubscribes and waits for the forwarder to exit.
func (r *relay) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *relay) notice(evt bus.Event) {
	text, ok := evt.Payload.(string)
	if !ok || text == "" {
		return
	}
	r.out.Notify(strings.Split(text, "\n")...)
}

func (r *relay) connection(evt bus.Event) {
	switch evt.Kind {
	case bus.KindPairingCode:
		if code, ok := evt.Payload.(wa.PairingCode); ok {
			r.view.SetPairing(code.Art)
		}
	case bus.KindPairingDone:
		r.view.SetPairing("")
	case bus.KindStatusChanged:
		change, ok := evt.Payload.(status.StatusChange)
		if !ok {
			return
		}
		r.log.Info("connection status changed",
			zap.String("from", string(change.From)),
			zap.String("to", string(change.To)))
		if change.To != status.AuthRequired {
			r.view.SetPairing("")
		}
		if r.label != nil {
			r.label.SetConnection(change.To.Label())
		}
		r.view.RequestRefresh()
	}
}
