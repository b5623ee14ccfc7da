package bus

import "time"

// Event kinds published inside the client. Subscribers filter by prefix, so
// "conn." receives both status changes and pairing codes.
const (
	KindStatusChanged = "conn.status_changed"
	KindPairingCode   = "conn.pairing_code"
	KindPairingDone   = "conn.pairing_done"
	KindNotice        = "ui.notice"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
