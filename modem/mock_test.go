package modem_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"i4.energy/across/loragw/at"
	"i4.energy/across/loragw/modem"
)

const (
	testDevAddr = "26:01:1B:31"
	testDevEUI  = "00:11:22:33:44:55:66:77"
	testAppEUI  = "70:B3:D5:7E:D0:00:00:01"
)

// ReplySequence queues the modem side of a conversation on a TestTransport.
type ReplySequence struct {
	transport *modem.TestTransport
}

func NewReplySequence(transport *modem.TestTransport) *ReplySequence {
	return &ReplySequence{transport: transport}
}

func (b *ReplySequence) Identity(lines ...string) *ReplySequence {
	if len(lines) == 0 {
		lines = []string{
			"+ID: DevAddr, " + testDevAddr,
			"+ID: DevEui, " + testDevEUI,
			"+ID: AppEui, " + testAppEUI,
		}
	}
	b.transport.Reply(at.CmdID, lines...)
	return b
}

func (b *ReplySequence) KeyAccepted(keyType modem.KeyType, value string) *ReplySequence {
	b.transport.Reply(at.KeyCommand(string(keyType), value), "+KEY: "+string(keyType)+" "+value)
	return b
}

func (b *ReplySequence) KeyRejected(keyType modem.KeyType, value, reason string) *ReplySequence {
	b.transport.Reply(at.KeyCommand(string(keyType), value), "+KEY: ERROR("+reason+")")
	return b
}

func (b *ReplySequence) ADR(enabled bool, line string) *ReplySequence {
	b.transport.Reply(at.ADRCommand(enabled), line)
	return b
}

func (b *ReplySequence) Uplink(payload string, lines ...string) *ReplySequence {
	b.transport.Reply(at.MsgHexCommand(payload), lines...)
	return b
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestModem builds a Modem on top of transport through a mocked Dialer.
// The identity reply must already be queued.
func newTestModem(t *testing.T, transport *modem.TestTransport, configure ...func(*modem.ConfigBuilder)) *modem.Modem {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockDialer := modem.NewMockDialer(ctrl)
	mockDialer.EXPECT().Dial(gomock.Any()).Return(transport, nil)

	builder := modem.NewConfigBuilder().
		WithDialer(mockDialer).
		WithLogger(discardLogger()).
		WithPollInterval(5 * time.Millisecond).
		WithBurstIdle(20 * time.Millisecond)
	for _, fn := range configure {
		fn(builder)
	}
	config, err := builder.Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	m, err := modem.New(ctx, config)
	if err != nil {
		t.Fatalf("unexpected error from New(): %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}
