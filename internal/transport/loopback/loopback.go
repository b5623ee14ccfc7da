// Package loopback is an offline provider. Everything sent to a chat is
// echoed back into it, which makes the client usable without an account.
package loopback

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/wppcli/internal/chat"
	"github.com/matheus3301/wppcli/internal/inbound"
	"github.com/matheus3301/wppcli/internal/status"
	"github.com/matheus3301/wppcli/internal/transport"
)

const (
	EchoChatID   chat.ID = "1000"
	echoName             = "Echo Bot"
	echoHandle           = "echo"
	welcomeText          = "Welcome! Anything you send here comes straight back."
	defaultDelay         = 800 * time.Millisecond
)

// Options tune the provider. Zero values select the defaults.
type Options struct {
	EchoDelay time.Duration
	// SeenFunc decides whether a message counts as seen on each poll. The
	// default flips a coin.
	SeenFunc func() bool
	Now      func() time.Time
}

// Provider implements transport.Provider without a network.
type Provider struct {
	queue   *inbound.Queue
	machine *status.Machine
	log     *zap.Logger
	opts    Options

	mu     sync.Mutex
	sent   map[string]chat.ID
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ transport.Provider = (*Provider)(nil)

// New creates a loopback provider feeding q.
func New(q *inbound.Queue, machine *status.Machine, log *zap.Logger, opts Options) *Provider {
	if opts.EchoDelay <= 0 {
		opts.EchoDelay = defaultDelay
	}
	if opts.SeenFunc == nil {
		opts.SeenFunc = func() bool { return rand.IntN(2) == 0 }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Provider{
		queue:   q,
		machine: machine,
		log:     log,
		opts:    opts,
		sent:    make(map[string]chat.ID),
	}
}

func (p *Provider) Name() string { return "loopback" }

// Start marks the provider online and seeds the echo chat.
func (p *Provider) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.ctx != nil {
		p.mu.Unlock()
		return nil
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	if p.machine != nil {
		if err := p.machine.Walk(status.Connecting, status.Ready); err != nil {
			p.log.Warn("status transition failed", zap.Error(err))
		}
	}
	p.log.Info("loopback provider started")

	return p.queue.Push(ctx, inbound.Event{
		ChatID:       EchoChatID,
		SenderName:   echoName,
		SenderHandle: echoHandle,
		Kind:         chat.KindText,
		Text:         welcomeText,
		Automated:    true,
		Timestamp:    p.opts.Now(),
	})
}

// Stop cancels pending echoes and waits for them to finish.
func (p *Provider) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.ctx, p.cancel = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	p.log.Info("loopback provider stopped")
}

// record registers an outgoing message and returns its id together with the
// run context echoes must honour.
func (p *Provider) record(chatID chat.ID) (string, context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil {
		return "", nil, transport.ErrNotConnected
	}
	id := uuid.NewString()
	p.sent[id] = chatID
	p.wg.Add(1)
	return id, p.ctx, nil
}

// SendText records the message and echoes it back after the configured delay.
func (p *Provider) SendText(_ context.Context, chatID chat.ID, text string) (string, error) {
	id, runCtx, err := p.record(chatID)
	if err != nil {
		return "", err
	}
	go p.echo(runCtx, chatID, "Echo: "+text)
	return id, nil
}

// SendMedia checks that the file exists and acknowledges it with a text echo.
func (p *Provider) SendMedia(_ context.Context, chatID chat.ID, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("loopback send media: %w", err)
	}
	id, runCtx, err := p.record(chatID)
	if err != nil {
		return "", err
	}
	go p.echo(runCtx, chatID, "Echo: got your image "+filepath.Base(path))
	return id, nil
}

func (p *Provider) echo(ctx context.Context, chatID chat.ID, text string) {
	defer p.wg.Done()

	timer := time.NewTimer(p.opts.EchoDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return
	}

	evt := inbound.Event{
		ChatID:     chatID,
		SenderName: string(chatID),
		Kind:       chat.KindText,
		Text:       text,
		Timestamp:  p.opts.Now(),
		Automated:  true,
	}
	if chatID == EchoChatID {
		evt.SenderName, evt.SenderHandle = echoName, echoHandle
	}
	if err := p.queue.Push(ctx, evt); err != nil {
		p.log.Debug("echo dropped", zap.String("chat_id", string(chatID)), zap.Error(err))
	}
}

// DeleteRemote forgets a sent message.
func (p *Provider) DeleteRemote(_ context.Context, chatID chat.ID, externalID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil {
		return transport.ErrNotConnected
	}
	owner, ok := p.sent[externalID]
	if !ok || owner != chatID {
		return fmt.Errorf("loopback delete %s in %s: unknown message", externalID, chatID)
	}
	delete(p.sent, externalID)
	return nil
}

// PollSeenStatus answers with SeenFunc for known messages.
func (p *Provider) PollSeenStatus(_ context.Context, chatID chat.ID, externalID string) (bool, error) {
	p.mu.Lock()
	owner, ok := p.sent[externalID]
	p.mu.Unlock()
	if !ok || owner != chatID {
		return false, nil
	}
	return p.opts.SeenFunc(), nil
}
