package wa

import (
	"context"
	"errors"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/matheus3301/wppcli/internal/bus"
	"github.com/matheus3301/wppcli/internal/chat"
	"github.com/matheus3301/wppcli/internal/inbound"
	"github.com/matheus3301/wppcli/internal/media"
	"github.com/matheus3301/wppcli/internal/status"
)

// Downloader fetches and decrypts a media attachment.
type Downloader interface {
	Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error)
}

// EventHandler processes whatsmeow events: it drives the status machine,
// records read receipts and turns incoming messages into inbound events.
type EventHandler struct {
	queue    *inbound.Queue
	machine  *status.Machine
	bus      *bus.Bus
	media    *media.Store
	receipts *ReceiptTracker
	logger   *zap.Logger

	download Downloader
	resolve  func(context.Context, types.JID) types.JID
	ctx      context.Context
}

// NewEventHandler creates an event handler. download may be nil, in which
// case images are skipped.
func NewEventHandler(q *inbound.Queue, machine *status.Machine, b *bus.Bus, store *media.Store, receipts *ReceiptTracker, download Downloader, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		queue:    q,
		machine:  machine,
		bus:      b,
		media:    store,
		receipts: receipts,
		download: download,
		logger:   logger,
		ctx:      context.Background(),
	}
}

// Handle is the whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.Receipt:
		if n := h.receipts.Observe(evt.Type, evt.MessageIDs...); n > 0 {
			h.logger.Debug("messages read", zap.String("chat", evt.Chat.String()), zap.Int("count", n))
		}
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		switch h.machine.Current() {
		case status.Booting, status.AuthRequired, status.Error:
			_ = h.machine.Transition(status.Connecting)
		}
		_ = h.machine.Transition(status.Ready)
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		_ = h.machine.Transition(status.Reconnecting)
	case *events.PairSuccess:
		h.logger.Info("device paired", zap.String("jid", evt.ID.String()))
		h.bus.Emit(bus.KindPairingDone, evt.ID.String())
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		_ = h.machine.Transition(status.AuthRequired)
		h.bus.Emit(bus.KindNotice, "Logged out from WhatsApp. Restart to pair again.")
	case *events.StreamReplaced:
		h.logger.Warn("WhatsApp session opened elsewhere")
		_ = h.machine.Transition(status.Error)
		h.bus.Emit(bus.KindNotice, "This session was opened on another client.")
	}
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	p := ParseLiveMessage(evt)
	if p.FromMe || p.Chat.Server == types.BroadcastServer {
		return
	}
	if h.resolve != nil {
		p.Chat = h.resolve(h.ctx, p.Chat)
		p.Sender = h.resolve(h.ctx, p.Sender)
	}
	log := h.logger.With(zap.String("chat_id", string(ChatID(p.Chat))), zap.String("msg_id", p.MsgID))

	in := p.Event()
	switch p.MessageType {
	case "text":
		if in.Text == "" {
			return
		}
	case "image":
		if h.download == nil {
			log.Debug("image skipped, no downloader")
			return
		}
		saved, err := h.saveImage(in.ChatID, p)
		if err != nil {
			log.Warn("image download failed", zap.Error(err))
			return
		}
		in.Kind = chat.KindImage
		in.Text = p.Image.GetCaption()
		in.Filename = saved.Filename
		in.LocalPath = saved.Path
	default:
		log.Debug("unsupported message type", zap.String("type", p.MessageType))
		return
	}

	if err := h.queue.Push(h.ctx, in); err != nil && !errors.Is(err, inbound.ErrClosed) {
		log.Warn("inbound queue push failed", zap.Error(err))
	}
}

func (h *EventHandler) saveImage(id chat.ID, p *ParsedMessage) (media.Saved, error) {
	data, err := h.download.Download(h.ctx, p.Image)
	if err != nil {
		return media.Saved{}, err
	}
	return h.media.Save(id, p.Timestamp, media.ExtensionFor(p.Image.GetMimetype()), data)
}
