package wa

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/matheus3301/wppcli/internal/bus"
	"github.com/matheus3301/wppcli/internal/chat"
	"github.com/matheus3301/wppcli/internal/inbound"
	"github.com/matheus3301/wppcli/internal/media"
	"github.com/matheus3301/wppcli/internal/status"
)

// walkTo transitions the machine through the given states sequentially.
func walkTo(t *testing.T, m *status.Machine, states ...status.State) {
	t.Helper()
	for _, s := range states {
		if err := m.Transition(s); err != nil {
			t.Fatalf("transition to %s failed: %v", s, err)
		}
	}
}

type fakeDownloader struct {
	data []byte
	err  error
}

func (f fakeDownloader) Download(context.Context, whatsmeow.DownloadableMessage) ([]byte, error) {
	return f.data, f.err
}

type fixture struct {
	bus      *bus.Bus
	machine  *status.Machine
	queue    *inbound.Queue
	receipts *ReceiptTracker
	handler  *EventHandler
	mediaDir string
}

func newFixture(t *testing.T, dl Downloader) *fixture {
	t.Helper()
	f := &fixture{
		bus:      bus.New(),
		queue:    inbound.NewQueue(0),
		receipts: NewReceiptTracker(),
		mediaDir: t.TempDir(),
	}
	f.machine = status.NewMachine(f.bus)
	f.handler = NewEventHandler(f.queue, f.machine, f.bus, media.NewStore(f.mediaDir), f.receipts, dl, zap.NewNop())
	return f
}

func (f *fixture) pop(t *testing.T) inbound.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	evt, err := f.queue.Pop(ctx)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	return evt
}

var (
	ana = types.JID{User: "5511999", Server: types.DefaultUserServer}
	ts  = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
)

func message(from types.JID, msg *waE2E.Message) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			PushName:  "Ana",
			Timestamp: ts,
			ID:        "M1",
			MessageSource: types.MessageSource{
				Chat:   from,
				Sender: from,
			},
		},
		Message: msg,
	}
}

func TestHandleConnectedFromAuthRequired(t *testing.T) {
	f := newFixture(t, nil)
	walkTo(t, f.machine, status.AuthRequired)

	ch, unsub := f.bus.Subscribe("conn.", 10)
	defer unsub()

	f.handler.Handle(&events.Connected{})

	if f.machine.Current() != status.Ready {
		t.Errorf("state = %s, want READY", f.machine.Current())
	}

	var changes []status.StatusChange
	for len(changes) < 2 {
		select {
		case evt := <-ch:
			changes = append(changes, evt.Payload.(status.StatusChange))
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for status events")
		}
	}
	if changes[0].To != status.Connecting || changes[1].To != status.Ready {
		t.Errorf("changes = %+v", changes)
	}
}

func TestHandleConnectedFromReconnecting(t *testing.T) {
	f := newFixture(t, nil)
	walkTo(t, f.machine, status.Connecting, status.Ready, status.Reconnecting)

	f.handler.Handle(&events.Connected{})

	if f.machine.Current() != status.Ready {
		t.Errorf("state = %s, want READY (reconnect path)", f.machine.Current())
	}
}

func TestHandleDisconnected(t *testing.T) {
	f := newFixture(t, nil)
	walkTo(t, f.machine, status.Connecting, status.Ready)

	f.handler.Handle(&events.Disconnected{})

	if f.machine.Current() != status.Reconnecting {
		t.Errorf("state = %s, want RECONNECTING", f.machine.Current())
	}
}

func TestHandleLoggedOut(t *testing.T) {
	f := newFixture(t, nil)
	walkTo(t, f.machine, status.Connecting, status.Ready)

	ch, unsub := f.bus.Subscribe("ui.", 10)
	defer unsub()

	f.handler.Handle(&events.LoggedOut{})

	if f.machine.Current() != status.AuthRequired {
		t.Errorf("state = %s, want AUTH_REQUIRED", f.machine.Current())
	}
	select {
	case evt := <-ch:
		if evt.Kind != bus.KindNotice {
			t.Errorf("kind = %q, want %q", evt.Kind, bus.KindNotice)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for notice")
	}
}

func TestHandleStreamReplaced(t *testing.T) {
	f := newFixture(t, nil)
	walkTo(t, f.machine, status.Connecting, status.Ready)

	f.handler.Handle(&events.StreamReplaced{})

	if f.machine.Current() != status.Error {
		t.Errorf("state = %s, want ERROR", f.machine.Current())
	}
}

func TestHandleTextMessage(t *testing.T) {
	f := newFixture(t, nil)

	f.handler.Handle(message(ana, &waE2E.Message{Conversation: proto.String("hola")}))

	evt := f.pop(t)
	if evt.ChatID != "5511999" {
		t.Errorf("ChatID = %q", evt.ChatID)
	}
	if evt.SenderName != "Ana" {
		t.Errorf("SenderName = %q", evt.SenderName)
	}
	if evt.Kind != chat.KindText || evt.Text != "hola" {
		t.Errorf("payload = %s %q", evt.Kind, evt.Text)
	}
}

func TestHandleImageMessage(t *testing.T) {
	f := newFixture(t, fakeDownloader{data: []byte("png-bytes")})

	f.handler.Handle(message(ana, &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
		Mimetype: proto.String("image/png"),
		Caption:  proto.String("look"),
	}}))

	evt := f.pop(t)
	if evt.Kind != chat.KindImage {
		t.Fatalf("Kind = %s, want image", evt.Kind)
	}
	want := media.FileName("5511999", ts, ".png")
	if evt.Filename != want {
		t.Errorf("Filename = %q, want %q", evt.Filename, want)
	}
	if evt.Text != "look" {
		t.Errorf("Text = %q, want caption", evt.Text)
	}
	data, err := os.ReadFile(evt.LocalPath)
	if err != nil {
		t.Fatalf("read saved image: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("saved %q", data)
	}
}

func TestSkippedMessages(t *testing.T) {
	tests := []struct {
		name string
		dl   Downloader
		evt  *events.Message
	}{
		{"from me", nil, func() *events.Message {
			m := message(ana, &waE2E.Message{Conversation: proto.String("mine")})
			m.Info.IsFromMe = true
			return m
		}()},
		{"status broadcast", nil, message(types.StatusBroadcastJID, &waE2E.Message{Conversation: proto.String("story")})},
		{"empty text", nil, message(ana, &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{}})},
		{"video", nil, message(ana, &waE2E.Message{VideoMessage: &waE2E.VideoMessage{}})},
		{"image without downloader", nil, message(ana, &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}})},
		{"image download fails", fakeDownloader{err: errors.New("expired")}, message(ana, &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.dl)
			f.handler.Handle(tt.evt)
			if n := f.queue.Len(); n != 0 {
				t.Errorf("queue length = %d, want 0", n)
			}
		})
	}
}

func TestHandleReceipt(t *testing.T) {
	f := newFixture(t, nil)
	f.receipts.Track("S1")

	f.handler.Handle(&events.Receipt{MessageIDs: []types.MessageID{"S1", "OTHER"}, Type: types.ReceiptTypeDelivered})
	if f.receipts.Seen("S1") {
		t.Error("delivery receipt must not mark seen")
	}

	f.handler.Handle(&events.Receipt{MessageIDs: []types.MessageID{"S1", "OTHER"}, Type: types.ReceiptTypeRead})
	if !f.receipts.Seen("S1") {
		t.Error("read receipt should mark seen")
	}
	if f.receipts.Seen("OTHER") || f.receipts.Len() != 1 {
		t.Error("untracked ids must not be recorded")
	}
}
