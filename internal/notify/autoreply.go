package notify

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wppcli/internal/chat"
	"github.com/matheus3301/wppcli/internal/metrics"
	"github.com/matheus3301/wppcli/internal/transport"
)

const replyTimeout = 10 * time.Second

// AutoReplier answers incoming text that contains a known trigger.
type AutoReplier struct {
	sender   transport.Sender
	replies  map[string]string
	triggers []string
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewAutoReplier builds a replier from trigger -> reply pairs. Triggers are
// matched case-insensitively; empty triggers are ignored.
func NewAutoReplier(sender transport.Sender, replies map[string]string, log *zap.Logger, m *metrics.Metrics) *AutoReplier {
	r := &AutoReplier{
		sender:  sender,
		replies: make(map[string]string, len(replies)),
		log:     log,
		metrics: m,
	}
	for trigger, reply := range replies {
		trigger = strings.ToLower(strings.TrimSpace(trigger))
		if trigger == "" || reply == "" {
			continue
		}
		r.replies[trigger] = reply
		r.triggers = append(r.triggers, trigger)
	}
	slices.Sort(r.triggers)
	return r
}

// Match returns the reply for the first trigger, in sorted order, contained in text.
func (r *AutoReplier) Match(text string) (string, bool) {
	if r == nil {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, t := range r.triggers {
		if strings.Contains(lower, t) {
			return r.replies[t], true
		}
	}
	return "", false
}

// Reply sends the matching reply, if any, and returns the outgoing message
// to record. ok is false when nothing matched or the send failed.
func (r *AutoReplier) Reply(ctx context.Context, chatID chat.ID, text string) (chat.Message, bool) {
	reply, ok := r.Match(text)
	if !ok {
		return chat.Message{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	extID, err := r.sender.SendText(ctx, chatID, reply)
	if err != nil {
		r.metrics.SendFailed(chat.KindText)
		r.log.Warn("auto-reply failed", zap.String("chat_id", string(chatID)), zap.Error(err))
		return chat.Message{}, false
	}
	r.metrics.AutoReplied()
	r.metrics.Sent(chat.KindText)
	return chat.Message{
		Kind:       chat.KindText,
		Direction:  chat.Outgoing,
		Text:       reply,
		ExternalID: extID,
	}, true
}
