package wa

import (
	"context"
	"fmt"

	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.uber.org/zap"

	"github.com/matheus3301/wppcli/internal/bus"
	"github.com/matheus3301/wppcli/internal/status"
)

// PairingCode is the payload of bus.KindPairingCode.
type PairingCode struct {
	Code string
	Art  string
}

// RenderQR draws code as a block of half-height characters for the terminal.
func RenderQR(code string) (string, error) {
	q, err := qrcode.New(code, qrcode.Low)
	if err != nil {
		return "", fmt.Errorf("encode QR: %w", err)
	}
	return q.ToSmallString(false), nil
}

// startPairing requests a QR channel, connects and relays codes to the bus
// until pairing succeeds, fails or times out.
func (a *Adapter) startPairing(ctx context.Context) error {
	qrChan, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("get QR channel: %w", err)
	}
	// Connect must be called after GetQRChannel.
	if err := a.client.Connect(); err != nil {
		_ = a.machine.Transition(status.Error)
		return fmt.Errorf("connect: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for item := range qrChan {
			if done := a.relayQR(item); done {
				return
			}
		}
	}()
	return nil
}

// relayQR handles one pairing step and reports whether pairing is over.
func (a *Adapter) relayQR(item whatsmeow.QRChannelItem) bool {
	switch item.Event {
	case whatsmeow.QRChannelEventCode:
		art, err := RenderQR(item.Code)
		if err != nil {
			a.logger.Warn("render QR failed", zap.Error(err))
			art = item.Code
		}
		a.bus.Emit(bus.KindPairingCode, PairingCode{Code: item.Code, Art: art})
		return false
	case whatsmeow.QRChannelSuccess.Event:
		a.logger.Info("QR pairing succeeded")
		_ = a.machine.Transition(status.Connecting)
		a.bus.Emit(bus.KindNotice, "Device linked.")
		return true
	case whatsmeow.QRChannelTimeout.Event:
		a.logger.Warn("QR pairing timed out")
		_ = a.machine.Transition(status.Error)
		a.bus.Emit(bus.KindNotice, "QR code timed out. Restart to try again.")
		return true
	default:
		if item.Error != nil {
			a.logger.Error("QR pairing failed", zap.String("event", item.Event), zap.Error(item.Error))
			_ = a.machine.Transition(status.Error)
			a.bus.Emit(bus.KindNotice, "Pairing failed: "+item.Error.Error())
			return true
		}
		return false
	}
}
