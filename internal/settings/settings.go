// Package settings holds the operator's self-destruct timer defaults.
package settings

import (
	"sync"
	"time"

	"github.com/matheus3301/wppcli/internal/chat"
)

// Snapshot is a consistent copy of the settings.
type Snapshot struct {
	ImageTimer time.Duration
	TextTimer  time.Duration
	AutoDelete bool
}

// Settings is safe for concurrent use.
type Settings struct {
	mu   sync.RWMutex
	snap Snapshot
}

// New returns settings initialised from the given values, clamped at zero.
func New(imageTimer, textTimer time.Duration, autoDelete bool) *Settings {
	return &Settings{snap: Snapshot{
		ImageTimer: clamp(imageTimer),
		TextTimer:  clamp(textTimer),
		AutoDelete: autoDelete,
	}}
}

func clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// Snapshot returns the current values.
func (s *Settings) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// SetImageTimer sets the image default and returns the stored value.
func (s *Settings) SetImageTimer(d time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.ImageTimer = clamp(d)
	return s.snap.ImageTimer
}

// SetTextTimer sets the text default and returns the stored value.
func (s *Settings) SetTextTimer(d time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.TextTimer = clamp(d)
	return s.snap.TextTimer
}

// SetTimer sets the default of the given message kind.
func (s *Settings) SetTimer(kind chat.Kind, d time.Duration) time.Duration {
	if kind == chat.KindImage {
		return s.SetImageTimer(d)
	}
	return s.SetTextTimer(d)
}

// ToggleAutoDelete flips auto-delete and returns the new value.
func (s *Settings) ToggleAutoDelete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.AutoDelete = !s.snap.AutoDelete
	return s.snap.AutoDelete
}

// TimerFor returns the default timer for a message kind.
func (s *Settings) TimerFor(kind chat.Kind) time.Duration {
	snap := s.Snapshot()
	if kind == chat.KindImage {
		return snap.ImageTimer
	}
	return snap.TextTimer
}

// AutoTimer returns the timer to apply without asking, if any. It is set only
// when auto-delete is on and the kind's default is positive.
func (s *Settings) AutoTimer(kind chat.Kind) (time.Duration, bool) {
	snap := s.Snapshot()
	d := snap.TextTimer
	if kind == chat.KindImage {
		d = snap.ImageTimer
	}
	if !snap.AutoDelete || d <= 0 {
		return 0, false
	}
	return d, true
}
