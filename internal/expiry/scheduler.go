// Package expiry deletes sent messages once their self-destruct timer runs out.
package expiry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/wppcli/internal/bus"
	"github.com/matheus3301/wppcli/internal/chat"
	"github.com/matheus3301/wppcli/internal/metrics"
	"github.com/matheus3301/wppcli/internal/transport"
)

const (
	DefaultInterval     = time.Second
	remoteDeleteTimeout = 10 * time.Second
)

// PendingDeletion is a scheduled local and remote removal of a sent message.
//
// The local message is found by kind and Key (text body or image filename),
// not by identity. With two identical outgoing messages in one chat only the
// first is removed per deletion.
type PendingDeletion struct {
	ID         string
	ChatID     chat.ID
	ExternalID string
	Kind       chat.Kind
	Key        string
	Deadline   time.Time
}

// Refresher is notified when the sweep changed the chat store.
type Refresher interface {
	RequestRefresh()
}

// Options configure a Scheduler.
type Options struct {
	Interval time.Duration
	Now      func() time.Time
	Bus      *bus.Bus
	Metrics  *metrics.Metrics
}

// Scheduler holds pending deletions and sweeps them on a fixed interval.
type Scheduler struct {
	store   *chat.Store
	remote  transport.Deleter
	refresh Refresher
	log     *zap.Logger
	opts    Options

	mu      sync.Mutex
	pending []PendingDeletion

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler. Start must be called to run the sweep loop.
func NewScheduler(store *chat.Store, remote transport.Deleter, refresh Refresher, log *zap.Logger, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		store:   store,
		remote:  remote,
		refresh: refresh,
		log:     log,
		opts:    opts,
	}
}

// Schedule adds p to the pending set and returns it with its ID filled in.
func (s *Scheduler) Schedule(p PendingDeletion) PendingDeletion {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.pending = append(s.pending, p)
	s.mu.Unlock()

	s.log.Debug("deletion scheduled",
		zap.String("chat_id", string(p.ChatID)),
		zap.String("kind", string(p.Kind)),
		zap.Time("deadline", p.Deadline),
	)
	return p
}

// ScheduleAfter schedules the removal of a just-sent message after d.
func (s *Scheduler) ScheduleAfter(chatID chat.ID, m chat.Message, d time.Duration) PendingDeletion {
	return s.Schedule(PendingDeletion{
		ChatID:     chatID,
		ExternalID: m.ExternalID,
		Kind:       m.Kind,
		Key:        m.Key(),
		Deadline:   s.opts.Now().Add(d),
	})
}

// Pending returns a copy of the pending set.
func (s *Scheduler) Pending() []PendingDeletion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingDeletion, len(s.pending))
	copy(out, s.pending)
	return out
}

// takeDue removes and returns every deletion whose deadline has passed.
// Each deletion is handed out exactly once even under concurrent sweeps.
func (s *Scheduler) takeDue(now time.Time) []PendingDeletion {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []PendingDeletion
	kept := s.pending[:0]
	for _, p := range s.pending {
		if now.Before(p.Deadline) {
			kept = append(kept, p)
		} else {
			due = append(due, p)
		}
	}
	for i := len(kept); i < len(s.pending); i++ {
		s.pending[i] = PendingDeletion{}
	}
	s.pending = kept
	return due
}

// Sweep processes every deletion that is due and returns how many it consumed.
// Remote deletion is best effort; the local message is removed regardless.
func (s *Scheduler) Sweep(ctx context.Context) int {
	due := s.takeDue(s.opts.Now())
	for _, p := range due {
		s.apply(ctx, p)
	}
	if len(due) > 0 && s.refresh != nil {
		s.refresh.RequestRefresh()
	}
	return len(due)
}

func (s *Scheduler) apply(ctx context.Context, p PendingDeletion) {
	log := s.log.With(zap.String("chat_id", string(p.ChatID)), zap.String("deletion_id", p.ID))

	if p.ExternalID != "" && s.remote != nil {
		rctx, cancel := context.WithTimeout(ctx, remoteDeleteTimeout)
		err := s.remote.DeleteRemote(rctx, p.ChatID, p.ExternalID)
		cancel()
		if err != nil {
			s.opts.Metrics.RemoteDeleteFailed()
			log.Warn("remote delete failed", zap.String("external_id", p.ExternalID), zap.Error(err))
		}
	}

	if _, ok := s.store.RemoveFirstOutgoing(p.ChatID, p.Kind, p.Key); !ok {
		log.Debug("expired message already gone")
	}
	s.opts.Metrics.Expired()
	log.Info("message expired")
	if s.opts.Bus != nil {
		s.opts.Bus.Emit(bus.KindNotice, fmt.Sprintf("Message deleted from chat %s", p.ChatID))
	}
}

// Start begins sweeping on the configured interval.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the sweep loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}
