package modem

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// that has not been successfully initialized.
	//
	// This can occur if the Dialer returned no Transport or if the Modem was
	// not created via New.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed, and by any operation attempted after Close.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrClosed is the cause carried by a TransportError when the line
	// reader was closed while a caller was waiting for data.
	ErrClosed = errors.New("transport closed")

	// ErrEmptyKey is returned when a key is provisioned with an empty value.
	// Nothing is written to the modem in that case.
	ErrEmptyKey = errors.New("key value is empty")

	// ErrUnknownKeyType is returned for a key type outside NWKSKEY, APPSKEY
	// and APPKEY.
	ErrUnknownKeyType = errors.New("unknown key type")

	// ErrIdentityUnset is returned when a typed identity value is requested
	// for a field the modem did not report.
	ErrIdentityUnset = errors.New("identity field not reported by modem")

	// ErrPortNameRequired is returned by SerialDialer when no port is set.
	ErrPortNameRequired = errors.New("serial port name is required")
)

// TransportError reports an open, write or read fault on the channel to
// the modem. It is always fatal for the operation that hit it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when the modem sends a line that is not valid
// UTF-8 text.
type DecodeError struct {
	Line []byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response line: invalid UTF-8 in %q", e.Line)
}

// KeyRejectedError carries the reason reported by "+KEY: ERROR(<reason>)".
// It is only returned when key rejection propagation is enabled in Config.
type KeyRejectedError struct {
	Key    KeyType
	Reason string
}

func (e *KeyRejectedError) Error() string {
	return fmt.Sprintf("%s is invalid. (%s)", e.Key, e.Reason)
}

// IdentityQueryError is returned by New when the AT+ID exchange fails on
// the transport.
type IdentityQueryError struct {
	Err error
}

func (e *IdentityQueryError) Error() string {
	return fmt.Sprintf("identity query: %v", e.Err)
}

func (e *IdentityQueryError) Unwrap() error {
	return e.Err
}
