// Package seen polls the provider for read receipts of sent messages.
package seen

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wppcli/internal/chat"
	"github.com/matheus3301/wppcli/internal/metrics"
	"github.com/matheus3301/wppcli/internal/transport"
)

const DefaultInterval = 10 * time.Second

// Refresher is notified when a poll flagged at least one message as seen.
type Refresher interface {
	RequestRefresh()
}

// Poller asks the provider about every delivered, unseen outgoing message.
// A positive answer is final: seen never reverts.
type Poller struct {
	store    *chat.Store
	checker  transport.SeenChecker
	refresh  Refresher
	log      *zap.Logger
	metrics  *metrics.Metrics
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller. interval <= 0 selects DefaultInterval.
func NewPoller(store *chat.Store, checker transport.SeenChecker, refresh Refresher, log *zap.Logger, m *metrics.Metrics, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		store:    store,
		checker:  checker,
		refresh:  refresh,
		log:      log,
		metrics:  m,
		interval: interval,
	}
}

// Poll runs one pass and returns how many messages became seen. The store
// lock is not held while the provider is queried.
func (p *Poller) Poll(ctx context.Context) int {
	changed := 0
	for _, c := range p.store.UnseenOutgoing() {
		if ctx.Err() != nil {
			break
		}
		ok, err := p.checker.PollSeenStatus(ctx, c.ChatID, c.ExternalID)
		if err != nil {
			p.log.Debug("seen check failed",
				zap.String("chat_id", string(c.ChatID)),
				zap.String("external_id", c.ExternalID),
				zap.Error(err),
			)
			continue
		}
		if ok && p.store.MarkSeen(c.ChatID, c.ExternalID) {
			p.metrics.Seen()
			changed++
		}
	}
	if changed > 0 {
		p.log.Debug("messages seen", zap.Int("count", changed))
		if p.refresh != nil {
			p.refresh.RequestRefresh()
		}
	}
	return changed
}

// Start begins polling on the configured interval.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx)
}

// Stop stops polling and waits for the loop to exit.
func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}
