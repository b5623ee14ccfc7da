package inbound

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/matheus3301/wppcli/internal/chat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func textEvent(chatID, text string) Event {
	return Event{ChatID: chat.ID(chatID), SenderName: "Ana", Kind: chat.KindText, Text: text}
}

func TestFIFO(t *testing.T) {
	q := NewQueue(0)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, q.Push(ctx, textEvent("7", fmt.Sprint(i))))
	}
	assert.Equal(t, 100, q.Len())

	for i := 0; i < 100; i++ {
		evt, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprint(i), evt.Text)
	}
	assert.Equal(t, 0, q.Len())
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := NewQueue(0)
	got := make(chan Event, 1)
	go func() {
		evt, err := q.Pop(context.Background())
		if err == nil {
			got <- evt
		}
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before any Push")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, q.Push(context.Background(), textEvent("1", "late")))
	select {
	case evt := <-got:
		assert.Equal(t, "late", evt.Text)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Pop")
	}
}

func TestPopHonorsContext(t *testing.T) {
	q := NewQueue(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestBoundedPushWaitsForRoom(t *testing.T) {
	q := NewQueue(1)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, textEvent("1", "a")))

	pushed := make(chan error, 1)
	go func() { pushed <- q.Push(ctx, textEvent("1", "b")) }()

	select {
	case <-pushed:
		t.Fatal("Push into a full queue should block")
	case <-time.After(50 * time.Millisecond):
	}

	evt, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", evt.Text)

	select {
	case err := <-pushed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked Push never completed")
	}
	evt, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", evt.Text)
}

func TestBoundedPushHonorsContext(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.Push(context.Background(), textEvent("1", "a")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Push(ctx, textEvent("1", "b")), context.DeadlineExceeded)
}

func TestCloseDrainsThenFails(t *testing.T) {
	q := NewQueue(0)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, textEvent("1", "kept")))
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Push(ctx, textEvent("1", "dropped")), ErrClosed)

	evt, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "kept", evt.Text)

	_, err = q.Pop(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseWakesWaiters(t *testing.T) {
	q := NewQueue(0)
	errs := make(chan error, 1)
	go func() {
		_, err := q.Pop(context.Background())
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Close did not wake Pop")
	}
}

func TestConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	q := NewQueue(4)
	ctx := context.Background()
	const producers, perProducer = 4, 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Push(ctx, textEvent(fmt.Sprint(p), fmt.Sprint(i)))
			}
		}(p)
	}

	last := map[chat.ID]int{}
	for n := 0; n < producers*perProducer; n++ {
		evt, err := q.Pop(ctx)
		require.NoError(t, err)
		var i int
		_, _ = fmt.Sscan(evt.Text, &i)
		if prev, ok := last[evt.ChatID]; ok {
			assert.Greater(t, i, prev, "chat %s reordered", evt.ChatID)
		}
		last[evt.ChatID] = i
	}
	wg.Wait()
}

func TestEventMessage(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := Event{ChatID: "9", Filename: "image_9_1.jpg", LocalPath: "/m/image_9_1.jpg", Kind: chat.KindImage, Timestamp: ts}.Message()

	assert.Equal(t, chat.Incoming, m.Direction)
	assert.Equal(t, chat.KindImage, m.Kind)
	assert.Equal(t, "image_9_1.jpg", m.Filename)
	assert.Equal(t, ts, m.Timestamp)
	assert.False(t, m.Read)

	assert.Equal(t, chat.KindText, Event{Text: "x"}.Message().Kind)
}
