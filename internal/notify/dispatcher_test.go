package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/matheus3301/wppcli/internal/chat"
	"github.com/matheus3301/wppcli/internal/display"
	"github.com/matheus3301/wppcli/internal/inbound"
	"github.com/matheus3301/wppcli/internal/transport/mock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeView struct {
	mu        sync.Mutex
	state     display.State
	refreshes int
}

func (v *fakeView) Current() display.State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *fakeView) RequestRefresh() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.refreshes++
}

func (v *fakeView) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.refreshes
}

type notices struct {
	mu    sync.Mutex
	lines [][]string
}

func (n *notices) Notify(lines ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lines = append(n.lines, lines)
}

func (n *notices) all() [][]string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]string(nil), n.lines...)
}

var at = time.Date(2024, 5, 1, 9, 5, 7, 0, time.Local)

func textEvent(id chat.ID, name, text string) inbound.Event {
	return inbound.Event{ChatID: id, SenderName: name, Kind: chat.KindText, Text: text, Timestamp: at}
}

func TestNoticePerView(t *testing.T) {
	text := chat.Message{Kind: chat.KindText, Text: "hola", Timestamp: at}
	image := chat.Message{Kind: chat.KindImage, Filename: "image_7_1.jpg", Timestamp: at}

	tests := []struct {
		name    string
		state   display.State
		msg     chat.Message
		lines   []string
		refresh bool
	}{
		{
			name:    "main names the sender",
			state:   display.MainState(),
			msg:     text,
			lines:   []string{"[09:05:07] New message from Ana (ID: 7):", "→ hola"},
			refresh: true,
		},
		{
			name:    "ids view shows only the id",
			state:   display.IdsState(),
			msg:     text,
			lines:   []string{"[09:05:07] New message from ID: 7:", "→ hola"},
			refresh: true,
		},
		{
			name:    "message picker of another chat",
			state:   display.DeleteMessagesState("8"),
			msg:     image,
			lines:   []string{"[09:05:07] 📸 New image from ID: 7", "→ Image saved as: image_7_1.jpg"},
			refresh: true,
		},
		{
			name:    "open chat refreshes silently",
			state:   display.ChatState("7"),
			msg:     text,
			refresh: true,
		},
		{
			name:  "other chat gets name and id",
			state: display.ChatState("8"),
			msg:   image,
			lines: []string{"[09:05:07] 📸 New image from Ana (ID: 7)", "→ Image saved as: image_7_1.jpg"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, refresh := Notice(tt.state, "7", "Ana", tt.msg)
			assert.Equal(t, tt.lines, lines)
			assert.Equal(t, tt.refresh, refresh)
		})
	}
}

func TestDispatchCreatesChatAndKeepsOrder(t *testing.T) {
	store := chat.NewStore()
	view := &fakeView{state: display.MainState()}
	out := &notices{}
	d := NewDispatcher(inbound.NewQueue(0), store, view, out, zap.NewNop(), Options{})

	d.Dispatch(context.Background(), textEvent("7", "Ana", "hola"))
	d.Dispatch(context.Background(), textEvent("7", "Someone", "¿estás?"))

	c, ok := store.GetChat("7")
	require.True(t, ok)
	assert.Equal(t, "Ana", c.Name)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, "hola", c.Messages[0].Text)
	assert.Equal(t, "¿estás?", c.Messages[1].Text)
	assert.Equal(t, 2, c.Unread())
	assert.Len(t, out.all(), 2)
	assert.Equal(t, 2, view.count())
}

func TestDispatchIntoOpenChatDoesNotNotify(t *testing.T) {
	store := chat.NewStore()
	view := &fakeView{state: display.ChatState("7")}
	out := &notices{}
	d := NewDispatcher(inbound.NewQueue(0), store, view, out, zap.NewNop(), Options{})

	d.Dispatch(context.Background(), textEvent("7", "Ana", "hola"))

	assert.Empty(t, out.all())
	assert.Equal(t, 1, view.count())
}

func TestImageWithoutViewerPrintsLocation(t *testing.T) {
	store := chat.NewStore()
	view := &fakeView{state: display.MainState()}
	out := &notices{}
	d := NewDispatcher(inbound.NewQueue(0), store, view, out, zap.NewNop(), Options{})

	d.Dispatch(context.Background(), inbound.Event{
		ChatID: "7", SenderName: "Ana", Kind: chat.KindImage,
		Filename: "image_7_1.jpg", LocalPath: "/media/image_7_1.jpg", Timestamp: at,
	})

	got := out.all()
	require.Len(t, got, 1)
	assert.Equal(t, []string{
		"[09:05:07] 📸 New image from Ana (ID: 7)",
		"→ Image saved as: image_7_1.jpg",
		"📸 Image received from Ana",
		"📁 Image saved at: /media/image_7_1.jpg",
	}, got[0])
}

func TestImageOpensViewer(t *testing.T) {
	store := chat.NewStore()
	out := &notices{}
	v := NewViewer("feh --scale $path", zap.NewNop())
	var launched []string
	v.start = func(name string, args ...string) error {
		launched = append([]string{name}, args...)
		return nil
	}
	d := NewDispatcher(inbound.NewQueue(0), store, &fakeView{}, out, zap.NewNop(), Options{Viewer: v})

	d.Dispatch(context.Background(), inbound.Event{ChatID: "7", Kind: chat.KindImage, Filename: "a.jpg", LocalPath: "/m/a.jpg", Timestamp: at})

	assert.Equal(t, []string{"feh", "--scale", "/m/a.jpg"}, launched)
	require.Len(t, out.all(), 1)
	assert.Len(t, out.all()[0], 2, "no fallback lines when the viewer started")
}

func TestAutoReplyRecordedAndAnnounced(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mock.NewMockProvider(ctrl)
	sender.EXPECT().SendText(gomock.Any(), chat.ID("7"), "Hello! 👋").Return("ext-1", nil)

	store := chat.NewStore()
	out := &notices{}
	replier := NewAutoReplier(sender, map[string]string{"hi": "Hello! 👋"}, zap.NewNop(), nil)
	d := NewDispatcher(inbound.NewQueue(0), store, &fakeView{state: display.MainState()}, out, zap.NewNop(), Options{Replier: replier})

	d.Dispatch(context.Background(), textEvent("7", "Ana", "Hi there"))

	c, _ := store.GetChat("7")
	require.Len(t, c.Messages, 2)
	assert.Equal(t, chat.Outgoing, c.Messages[1].Direction)
	assert.Equal(t, "ext-1", c.Messages[1].ExternalID)
	assert.False(t, c.Messages[1].Seen)

	got := out.all()
	require.Len(t, got, 2)
	assert.Equal(t, "[09:05:07] New message from Ana (ID: 7):", got[0][0])
	assert.Contains(t, got[1][0], "New message from You (ID: 7):")
}

func TestAutoReplyFailureIsNotRecorded(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mock.NewMockProvider(ctrl)
	sender.EXPECT().SendText(gomock.Any(), chat.ID("7"), gomock.Any()).Return("", errors.New("offline"))

	store := chat.NewStore()
	replier := NewAutoReplier(sender, map[string]string{"bye": "Goodbye! 👋"}, zap.NewNop(), nil)
	d := NewDispatcher(inbound.NewQueue(0), store, &fakeView{}, &notices{}, zap.NewNop(), Options{Replier: replier})

	d.Dispatch(context.Background(), textEvent("7", "Ana", "ok BYE"))

	c, _ := store.GetChat("7")
	assert.Len(t, c.Messages, 1)
}

func TestAutomatedEventsAreNotAnswered(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mock.NewMockProvider(ctrl)

	store := chat.NewStore()
	replier := NewAutoReplier(sender, map[string]string{"hi": "Hello! 👋"}, zap.NewNop(), nil)
	d := NewDispatcher(inbound.NewQueue(0), store, &fakeView{}, &notices{}, zap.NewNop(), Options{Replier: replier})

	evt := textEvent("7", "Echo Bot", "Echo: hi")
	evt.Automated = true
	d.Dispatch(context.Background(), evt)

	c, _ := store.GetChat("7")
	assert.Len(t, c.Messages, 1)
}

func TestMatchUsesSortedTriggers(t *testing.T) {
	r := NewAutoReplier(nil, map[string]string{
		"hi":     "A",
		"hello":  "B",
		"thanks": "C",
		" ":      "ignored",
	}, zap.NewNop(), nil)

	reply, ok := r.Match("HELLO, hi")
	require.True(t, ok)
	assert.Equal(t, "B", reply, "hello sorts before hi")

	reply, ok = r.Match("thanks")
	require.True(t, ok)
	assert.Equal(t, "C", reply)

	_, ok = r.Match("good morning")
	assert.False(t, ok)

	var none *AutoReplier
	_, ok = none.Match("hi")
	assert.False(t, ok)
}

func TestRunDrainsQueueInOrder(t *testing.T) {
	store := chat.NewStore()
	q := inbound.NewQueue(0)
	d := NewDispatcher(q, store, &fakeView{}, &notices{}, zap.NewNop(), Options{})

	for _, text := range []string{"1", "2", "3"} {
		require.NoError(t, q.Push(context.Background(), textEvent("7", "Ana", text)))
	}
	q.Close()

	require.NoError(t, d.Run(context.Background()))
	c, _ := store.GetChat("7")
	var got []string
	for _, m := range c.Messages {
		got = append(got, m.Text)
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
}

func TestStartStop(t *testing.T) {
	store := chat.NewStore()
	q := inbound.NewQueue(0)
	d := NewDispatcher(q, store, &fakeView{}, &notices{}, zap.NewNop(), Options{})
	d.Start(context.Background())

	require.NoError(t, q.Push(context.Background(), textEvent("9", "Bo", "hey")))
	require.Eventually(t, func() bool { return store.CountUnread("9") == 1 }, time.Second, 5*time.Millisecond)

	d.Stop()
	d.Stop()
}
