package modem

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"i4.energy/across/loragw/at"
)

// Modem represents a LoRaWAN radio modem that communicates via AT commands
// over a serial link.
//
// Every operation writes one command and blocks until the response lines
// defined for that command have been read. A one-slot busy channel ensures
// that two operations never interleave on the wire, so a Modem may be shared
// between goroutines, but they will be served one at a time. A caller
// waiting for its turn gives up when its context is done.
type Modem struct {
	// reader provides line oriented access to the transport
	reader *LineReader
	// config contains the modem configuration settings
	config Config
	logger *slog.Logger

	// busy holds a token for the whole write-then-read sequence of an
	// operation
	busy   chan struct{}
	closed atomic.Bool

	// state guards the values below so accessors never wait for an
	// operation in flight.
	state    sync.RWMutex
	identity Identity
	nwkSKey  string
	appSKey  string
	appKey   string
	adr      bool
}

// New creates a new Modem instance with the given configuration.
// It dials the transport and queries the modem identity with AT+ID.
//
// Returns an error if the transport cannot be opened or if the identity
// query fails on the transport. Identifiers the modem does not report are
// left empty and are not an error, including when the modem says nothing
// for Config.BurstIdle after AT+ID.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.Dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	m := &Modem{
		reader: NewLineReader(transport, config.PollInterval),
		busy:   make(chan struct{}, 1),
		config: config,
		logger: config.Logger.With("component", "modem"),
	}

	if err := m.queryIdentity(ctx); err != nil {
		m.logger.Error("Identity query failed", "error", err)
		m.reader.Close()
		return nil, &IdentityQueryError{Err: err}
	}

	return m, nil
}

// Close releases the transport. A read blocked in another goroutine fails
// with a TransportError. After calling Close the modem cannot be reused.
func (m *Modem) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}
	return m.reader.Close()
}

// Identity returns the identifiers read during New.
func (m *Modem) Identity() Identity {
	m.state.RLock()
	defer m.state.RUnlock()
	return m.identity
}

// ADR returns the last adaptive data rate setting sent to the modem.
func (m *Modem) ADR() bool {
	m.state.RLock()
	defer m.state.RUnlock()
	return m.adr
}

// queryIdentity sends AT+ID and reads the burst of +ID lines that follows.
func (m *Modem) queryIdentity(ctx context.Context) error {
	ctx, cancel := m.commandContext(ctx)
	defer cancel()

	release, err := m.begin(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := m.send(at.CmdID); err != nil {
		return err
	}
	lines, err := m.reader.ReadLines(ctx, m.config.BurstIdle)
	for _, line := range lines {
		m.logger.Info("RECV", "line", line)
	}
	if err != nil {
		return err
	}

	var id Identity
	applyIdentityLines(&id, lines)

	m.state.Lock()
	m.identity = id
	m.state.Unlock()

	m.logger.Info("Modem identity", "dev_addr", id.DevAddr, "dev_eui", id.DevEUI, "app_eui", id.AppEUI)
	return nil
}

// begin waits for the operation in flight to finish, or for ctx to be done.
// The returned func hands the modem to the next caller.
func (m *Modem) begin(ctx context.Context) (func(), error) {
	if m.closed.Load() {
		return nil, ErrAlreadyClosed
	}
	select {
	case m.busy <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for modem: %w", ctx.Err())
	}
	release := func() { <-m.busy }
	if m.closed.Load() {
		release()
		return nil, ErrAlreadyClosed
	}
	return release, nil
}

// commandContext applies Config.CommandTimeout if ctx has no deadline.
func (m *Modem) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok && m.config.CommandTimeout > 0 {
		return context.WithTimeout(ctx, m.config.CommandTimeout)
	}
	return context.WithCancel(ctx)
}

func (m *Modem) send(cmd string) error {
	m.logger.Info("SEND", "command", cmd)
	if _, err := m.reader.WriteLine(cmd); err != nil {
		m.logger.Error("Send to serial port failed", "command", cmd, "error", err)
		return err
	}
	return nil
}

func (m *Modem) recv(ctx context.Context) (string, error) {
	line, err := m.reader.ReadLine(ctx)
	if err != nil {
		m.logger.Error("Receive from serial port failed", "error", err)
		return "", err
	}
	m.logger.Info("RECV", "line", line)
	return line, nil
}
