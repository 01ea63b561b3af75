package modem

import (
	"context"
	"encoding/hex"

	"i4.energy/across/loragw/at"
)

// SetADR switches adaptive data rate on or off.
//
// Exactly one response line is consumed and its content is not checked, so
// ADR reflects the requested setting rather than a confirmed modem state.
func (m *Modem) SetADR(ctx context.Context, enabled bool) error {
	ctx, cancel := m.commandContext(ctx)
	defer cancel()

	release, err := m.begin(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := m.send(at.ADRCommand(enabled)); err != nil {
		return err
	}
	if _, err := m.recv(ctx); err != nil {
		return err
	}

	m.state.Lock()
	m.adr = enabled
	m.state.Unlock()
	return nil
}

// SendPayload transmits a hex encoded payload with AT+CMSGHEX and reports
// whether the network acknowledged it.
//
// Lines are read until "+CMSGHEX: Done". An "+CMSGHEX: ACK Received" seen
// on the way marks the uplink as acknowledged; every other line is ignored.
// The number of lines is not bounded: unless ctx or Config.CommandTimeout
// sets a deadline, this waits for Done for as long as it takes.
func (m *Modem) SendPayload(ctx context.Context, payload string) (bool, error) {
	ctx, cancel := m.commandContext(ctx)
	defer cancel()

	release, err := m.begin(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	if err := m.send(at.MsgHexCommand(payload)); err != nil {
		return false, err
	}

	acked := false
	for {
		line, err := m.recv(ctx)
		if err != nil {
			return acked, err
		}
		switch at.ClassifyMsgHex(line) {
		case at.MsgHexAcked:
			acked = true
		case at.MsgHexFinished:
			return acked, nil
		}
	}
}

// SendBytes hex encodes payload and sends it with SendPayload.
func (m *Modem) SendBytes(ctx context.Context, payload []byte) (bool, error) {
	return m.SendPayload(ctx, hex.EncodeToString(payload))
}
