package modem

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"i4.energy/across/loragw/at"
)

func TestSendPayloadStopsAtDone(t *testing.T) {
	ctrl := gomock.NewController(t)

	transport := NewTestTransport()
	transport.Reply(at.CmdID, "+ID: DevAddr, 26:01:1B:31")
	transport.Reply(at.MsgHexCommand("deadbeef"), at.MsgHexAck, at.MsgHexAck, at.MsgHexDone, "+EXTRA")

	mockDialer := NewMockDialer(ctrl)
	mockDialer.EXPECT().Dial(gomock.Any()).Return(transport, nil)

	m, err := New(testCtx(t, time.Second), Config{
		Dialer:       mockDialer,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		PollInterval: time.Millisecond,
		BurstIdle:    10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error from New(): %v", err)
	}
	defer m.Close()

	acked, err := m.SendPayload(testCtx(t, time.Second), "deadbeef")
	if err != nil {
		t.Fatalf("unexpected error from SendPayload(): %v", err)
	}
	if !acked {
		t.Error("expected acknowledged uplink")
	}

	// Three lines consumed, the trailing one left untouched.
	if got, want := m.reader.BytesAvailable(), len("+EXTRA"+at.CRLF); got != want {
		t.Errorf("expected %d unread bytes, got %d", want, got)
	}
}
