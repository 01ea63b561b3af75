package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"go.bug.st/serial"
)

//go:generate go tool mockgen -destination=mock_modem.go -package=modem . Transport,Dialer

const (
	// DefaultBaudRate is the factory setting of RHF3M076 class modems.
	DefaultBaudRate = 9600
	// DefaultReadTimeout bounds a single read on the serial port.
	DefaultReadTimeout = 100 * time.Millisecond
)

// Transport represents an established, bidirectional byte stream to a LoRaWAN modem.
//
// A Transport is assumed to be already connected and ready for use. It provides
// the low-level I/O primitives required to send AT commands and receive responses.
// Typical implementations include serial ports or in-memory fakes used for
// testing.
//
// Read may return (0, nil) when a read timeout elapses without data. Closing the
// Transport must unblock a pending Read with an error.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a LoRaWAN modem.
//
// Dialer abstracts how the modem connection is created (for example, via a
// serial port or a test double) and is intended to be used during modem
// construction only. Once a Transport is obtained, the Dialer is no longer
// needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It
	// should respect cancellation provided by the context. Dial returns an error
	// if the transport cannot be established.
	Dial(ctx context.Context) (Transport, error)
}

// SerialDialer opens a LoRaWAN modem over a serial port using go.bug.st/serial.
//
// The port is configured for 8 data bits, no parity, one stop bit and no flow
// control. Zero values select DefaultBaudRate and DefaultReadTimeout.
type SerialDialer struct {
	// PortName is the platform specific device, e.g. "/dev/ttyUSB0" or "COM3".
	PortName string
	// BaudRate overrides DefaultBaudRate when non-zero. Ignored if Mode is set.
	BaudRate int
	// ReadTimeout overrides DefaultReadTimeout when non-zero.
	ReadTimeout time.Duration
	// Mode overrides the complete serial framing.
	Mode *serial.Mode
}

// Dial opens the serial port and discards any stale input the modem may
// have buffered before the connection was established.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("modem: context is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.PortName == "" {
		return nil, ErrPortNameRequired
	}

	port, err := serial.Open(d.PortName, d.mode())
	if err != nil {
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("%s: %w", d.PortName, err)}
	}

	timeout := d.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("set read timeout: %w", err)}
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("reset input buffer: %w", err)}
	}

	return port, nil
}

func (d SerialDialer) mode() *serial.Mode {
	if d.Mode != nil {
		return d.Mode
	}
	baud := d.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// IsPortUnavailable reports whether err comes from a serial port that could
// not be opened because it does not exist, is busy or access was denied.
func IsPortUnavailable(err error) bool {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return true
	}
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return false
	}
	switch portErr.Code() {
	case serial.PortNotFound, serial.PortBusy, serial.PermissionDenied:
		return true
	}
	return false
}
