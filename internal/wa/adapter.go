// Package wa is the WhatsApp transport, built on whatsmeow.
package wa

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/matheus3301/wppcli/internal/bus"
	"github.com/matheus3301/wppcli/internal/chat"
	"github.com/matheus3301/wppcli/internal/inbound"
	"github.com/matheus3301/wppcli/internal/media"
	"github.com/matheus3301/wppcli/internal/status"
	"github.com/matheus3301/wppcli/internal/transport"

	_ "github.com/mattn/go-sqlite3"
)

const imageCaption = "📸 Photo"

var _ transport.Provider = (*Adapter)(nil)

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	handler   *EventHandler
	receipts  *ReceiptTracker
	machine   *status.Machine
	bus       *bus.Bus
	logger    *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAdapter opens the device store at dbPath and prepares a client. Incoming
// messages go to q; images are saved through store.
func NewAdapter(ctx context.Context, dbPath string, q *inbound.Queue, store *media.Store, machine *status.Machine, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("WPPCLI", [3]uint32{0, 1, 0})

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		NewLogger(logger, "store"),
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, NewLogger(logger, "client"))
	receipts := NewReceiptTracker()

	a := &Adapter{
		client:    client,
		container: container,
		receipts:  receipts,
		machine:   machine,
		bus:       b,
		logger:    logger,
	}
	a.handler = NewEventHandler(q, machine, b, store, receipts, client, logger)
	a.handler.resolve = a.ResolveLID
	return a, nil
}

func (a *Adapter) Name() string { return "whatsapp" }

// IsLoggedIn returns whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// Start connects to WhatsApp. Without credentials it starts QR pairing and
// returns once the first code is requested; pairing completes in the background.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, a.cancel = context.WithCancel(ctx)
	a.handler.ctx = ctx
	a.client.AddEventHandler(a.handler.Handle)

	if !a.IsLoggedIn() {
		_ = a.machine.Transition(status.AuthRequired)
		return a.startPairing(ctx)
	}

	_ = a.machine.Transition(status.Connecting)
	a.logger.Info("connecting to WhatsApp")
	if err := a.client.Connect(); err != nil {
		_ = a.machine.Transition(status.Error)
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// Stop disconnects and waits for background goroutines.
func (a *Adapter) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
	a.wg.Wait()
}

// Logout invalidates the session and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// PhoneNumber returns the phone number from the device store, or empty string.
func (a *Adapter) PhoneNumber() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}

func (a *Adapter) target(id chat.ID) (types.JID, error) {
	if !a.client.IsConnected() {
		return types.EmptyJID, transport.ErrNotConnected
	}
	return ParseChatID(id)
}

// SendText sends a text message. Returns the server message ID.
func (a *Adapter) SendText(ctx context.Context, id chat.ID, text string) (string, error) {
	to, err := a.target(id)
	if err != nil {
		return "", err
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	a.receipts.Track(resp.ID)
	return resp.ID, nil
}

// SendMedia uploads the image at path and sends it.
func (a *Adapter) SendMedia(ctx context.Context, id chat.ID, path string) (string, error) {
	to, err := a.target(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	up, err := a.client.Upload(ctx, data, whatsmeow.MediaImage)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			Caption:       proto.String(imageCaption),
			Mimetype:      proto.String(http.DetectContentType(data)),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		},
	})
	if err != nil {
		return "", fmt.Errorf("send image: %w", err)
	}
	a.receipts.Track(resp.ID)
	return resp.ID, nil
}

// DeleteRemote revokes a message for everyone.
func (a *Adapter) DeleteRemote(ctx context.Context, id chat.ID, externalID string) error {
	to, err := a.target(id)
	if err != nil {
		return err
	}
	if _, err := a.client.SendMessage(ctx, to, a.client.BuildRevoke(to, types.EmptyJID, externalID)); err != nil {
		return fmt.Errorf("revoke %s: %w", externalID, err)
	}
	a.receipts.Forget(externalID)
	return nil
}

// PollSeenStatus answers from read receipts already received; it never
// touches the network.
func (a *Adapter) PollSeenStatus(_ context.Context, _ chat.ID, externalID string) (bool, error) {
	return a.receipts.Seen(externalID), nil
}

// ResolveLID resolves a LID JID to its phone number JID using the device store mapping.
// Returns the original JID if it's not a LID or if resolution fails.
func (a *Adapter) ResolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer && jid.Server != types.HostedLIDServer {
		return jid
	}
	if a.client == nil || a.client.Store == nil || a.client.Store.LIDs == nil {
		return jid
	}
	pn, err := a.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}
