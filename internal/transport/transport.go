// Package transport defines the outbound provider contract used by the
// client core. Inbound messages arrive through an inbound.Queue handed to the
// provider at construction.
package transport

//go:generate mockgen -destination=mock/transport.go -package=mock github.com/matheus3301/wppcli/internal/transport Provider

import (
	"context"
	"errors"

	"github.com/matheus3301/wppcli/internal/chat"
)

// ErrNotConnected is returned by providers that cannot reach the remote
// service right now.
var ErrNotConnected = errors.New("transport not connected")

// Sender delivers outgoing messages and returns the provider message id.
type Sender interface {
	SendText(ctx context.Context, chatID chat.ID, text string) (string, error)
	SendMedia(ctx context.Context, chatID chat.ID, path string) (string, error)
}

// Deleter revokes a previously sent message on the remote side.
type Deleter interface {
	DeleteRemote(ctx context.Context, chatID chat.ID, externalID string) error
}

// SeenChecker asks whether the recipient has viewed a sent message. Results
// carry no correctness guarantee.
type SeenChecker interface {
	PollSeenStatus(ctx context.Context, chatID chat.ID, externalID string) (bool, error)
}

// Provider is a complete messaging backend.
type Provider interface {
	Sender
	Deleter
	SeenChecker

	// Start connects and begins pushing inbound events. It must not block
	// for the lifetime of the connection.
	Start(ctx context.Context) error
	Stop()
	Name() string
}
