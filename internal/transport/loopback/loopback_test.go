package loopback

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/matheus3301/wppcli/internal/chat"
	"github.com/matheus3301/wppcli/internal/inbound"
	"github.com/matheus3301/wppcli/internal/status"
	"github.com/matheus3301/wppcli/internal/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func popWithin(t *testing.T, q *inbound.Queue, d time.Duration) inbound.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	evt, err := q.Pop(ctx)
	require.NoError(t, err)
	return evt
}

func newStarted(t *testing.T, opts Options) (*Provider, *inbound.Queue, *status.Machine) {
	t.Helper()
	q := inbound.NewQueue(0)
	m := status.NewMachine(nil)
	p := New(q, m, zap.NewNop(), opts)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(p.Stop)
	return p, q, m
}

func TestStartSeedsEchoChat(t *testing.T) {
	_, q, m := newStarted(t, Options{})

	assert.Equal(t, status.Ready, m.Current())
	evt := popWithin(t, q, time.Second)
	assert.Equal(t, EchoChatID, evt.ChatID)
	assert.Equal(t, echoName, evt.SenderName)
	assert.Equal(t, welcomeText, evt.Text)
	assert.True(t, evt.Automated)
}

func TestSendTextEchoes(t *testing.T) {
	p, q, _ := newStarted(t, Options{EchoDelay: time.Millisecond})
	popWithin(t, q, time.Second)

	id, err := p.SendText(context.Background(), "42", "hi")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	evt := popWithin(t, q, time.Second)
	assert.Equal(t, chat.ID("42"), evt.ChatID)
	assert.Equal(t, "Echo: hi", evt.Text)
	assert.Equal(t, "42", evt.SenderName)
	assert.True(t, evt.Automated, "echoes must not trigger auto-replies")
}

func TestSendMediaRequiresFile(t *testing.T) {
	p, q, _ := newStarted(t, Options{EchoDelay: time.Millisecond})
	popWithin(t, q, time.Second)

	_, err := p.SendMedia(context.Background(), "42", filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "cat.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0600))
	_, err = p.SendMedia(context.Background(), "42", path)
	require.NoError(t, err)

	evt := popWithin(t, q, time.Second)
	assert.Equal(t, "Echo: got your image cat.jpg", evt.Text)
}

func TestDeleteAndSeen(t *testing.T) {
	seen := false
	p, _, _ := newStarted(t, Options{EchoDelay: time.Hour, SeenFunc: func() bool { return seen }})
	ctx := context.Background()

	id, err := p.SendText(ctx, "42", "hi")
	require.NoError(t, err)

	ok, err := p.PollSeenStatus(ctx, "42", id)
	require.NoError(t, err)
	assert.False(t, ok)

	seen = true
	ok, _ = p.PollSeenStatus(ctx, "42", id)
	assert.True(t, ok)
	ok, _ = p.PollSeenStatus(ctx, "43", id)
	assert.False(t, ok, "id belongs to another chat")

	require.NoError(t, p.DeleteRemote(ctx, "42", id))
	assert.Error(t, p.DeleteRemote(ctx, "42", id))
	ok, _ = p.PollSeenStatus(ctx, "42", id)
	assert.False(t, ok)
}

func TestNotStarted(t *testing.T) {
	p := New(inbound.NewQueue(0), nil, zap.NewNop(), Options{})
	_, err := p.SendText(context.Background(), "1", "x")
	assert.ErrorIs(t, err, transport.ErrNotConnected)
	assert.ErrorIs(t, p.DeleteRemote(context.Background(), "1", "x"), transport.ErrNotConnected)
	p.Stop()
}

func TestStopCancelsPendingEchoes(t *testing.T) {
	q := inbound.NewQueue(0)
	p := New(q, nil, zap.NewNop(), Options{EchoDelay: time.Hour})
	require.NoError(t, p.Start(context.Background()))
	_, err := p.SendText(context.Background(), "1", "never echoed")
	require.NoError(t, err)

	p.Stop()
	p.Stop()
	assert.Equal(t, 1, q.Len(), "only the welcome message was queued")
}
