package wa

import (
	"github.com/puzpuzpuz/xsync/v3"
	"go.mau.fi/whatsmeow/types"
)

// ReceiptTracker remembers which sent messages the recipient has read.
// Only tracked ids are recorded, so receipts for unrelated messages cost
// nothing.
type ReceiptTracker struct {
	seen *xsync.MapOf[types.MessageID, bool]
}

func NewReceiptTracker() *ReceiptTracker {
	return &ReceiptTracker{seen: xsync.NewMapOf[types.MessageID, bool]()}
}

// Track starts following a sent message.
func (t *ReceiptTracker) Track(id types.MessageID) {
	t.seen.LoadOrStore(id, false)
}

// Forget stops following a message, typically after it was revoked.
func (t *ReceiptTracker) Forget(id types.MessageID) {
	t.seen.Delete(id)
}

// Observe records a receipt. Read and played receipts mark every tracked id
// as seen; other receipt types are ignored. Returns how many flags changed.
func (t *ReceiptTracker) Observe(typ types.ReceiptType, ids ...types.MessageID) int {
	if typ != types.ReceiptTypeRead && typ != types.ReceiptTypePlayed {
		return 0
	}
	n := 0
	for _, id := range ids {
		changed := false
		t.seen.Compute(id, func(old bool, loaded bool) (bool, bool) {
			if !loaded {
				return false, true
			}
			changed = !old
			return true, false
		})
		if changed {
			n++
		}
	}
	return n
}

// Seen reports whether the message was read. Seen is sticky.
func (t *ReceiptTracker) Seen(id types.MessageID) bool {
	v, _ := t.seen.Load(id)
	return v
}

// Len returns the number of tracked messages.
func (t *ReceiptTracker) Len() int {
	return t.seen.Size()
}
