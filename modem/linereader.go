package modem

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"i4.energy/across/loragw/at"
)

// DefaultPollInterval is how often WaitForData checks for buffered input.
const DefaultPollInterval = 100 * time.Millisecond

// LineReader presents a line oriented view of a Transport.
//
// A single goroutine pumps bytes from the transport into an internal buffer
// so that BytesAvailable never blocks. All other methods are meant to be
// driven by one caller at a time; the Modem serialises access with its own
// mutex.
type LineReader struct {
	transport    Transport
	pollInterval time.Duration

	mu     sync.Mutex
	buf    []byte
	err    error
	closed bool

	// notify is signalled (non-blocking) whenever bytes arrive.
	notify chan struct{}
	// done is closed when the pump goroutine exits.
	done chan struct{}
	// closing is closed by Close so waiters unblock even if the transport
	// does not interrupt its pending Read.
	closing   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewLineReader starts reading from t in the background. A non-positive
// pollInterval selects DefaultPollInterval.
func NewLineReader(t Transport, pollInterval time.Duration) *LineReader {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	r := &LineReader{
		transport:    t,
		pollInterval: pollInterval,
		notify:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		closing:      make(chan struct{}),
	}
	go r.pump()
	return r
}

func (r *LineReader) pump() {
	defer close(r.done)
	chunk := make([]byte, 256)
	for {
		n, err := r.transport.Read(chunk)
		if n > 0 {
			r.mu.Lock()
			r.buf = append(r.buf, chunk[:n]...)
			r.mu.Unlock()
			select {
			case r.notify <- struct{}{}:
			default:
			}
		}
		if err != nil {
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
			return
		}
	}
}

// WriteLine appends the CRLF terminator to text and writes it to the
// transport. It returns the number of bytes written.
func (r *LineReader) WriteLine(text string) (int, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return 0, &TransportError{Op: "write", Err: ErrClosed}
	}

	wire := []byte(text + at.CRLF)
	n, err := r.transport.Write(wire)
	if err != nil {
		return n, &TransportError{Op: "write", Err: err}
	}
	if n < len(wire) {
		return n, &TransportError{Op: "write", Err: fmt.Errorf("short write: %d of %d bytes", n, len(wire))}
	}
	return n, nil
}

// BytesAvailable returns how many received bytes have not been consumed yet.
func (r *LineReader) BytesAvailable() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// WaitForData polls BytesAvailable every pollInterval until it is positive.
//
// There is no built-in deadline: without a deadline on ctx this waits for as
// long as the modem stays silent. It returns early when ctx is done, or with
// a TransportError when the transport fails or the reader is closed.
func (r *LineReader) WaitForData(ctx context.Context, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = r.pollInterval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if r.BytesAvailable() > 0 {
			return nil
		}
		if err := r.failure(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for data: %w", ctx.Err())
		case <-r.closing:
		case <-r.done:
		case <-ticker.C:
		}
	}
}

// ReadLine waits for data and returns the next CRLF terminated line without
// its terminator.
func (r *LineReader) ReadLine(ctx context.Context) (string, error) {
	if err := r.WaitForData(ctx, r.pollInterval); err != nil {
		return "", err
	}

	for {
		if line, ok := r.next(false); ok {
			return decode(line)
		}
		if err := r.failure(); err != nil {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("read line: %w", ctx.Err())
		case <-r.closing:
		case <-r.done:
		case <-r.notify:
		}
	}
}

// ReadLines collects every line that arrives until the transport has been
// quiet for idle. A modem that sends nothing within idle yields no lines and
// no error. A trailing fragment without a terminator is returned as the last
// line; empty lines are dropped. If the transport fails during the burst the
// lines read so far are returned together with a TransportError.
func (r *LineReader) ReadLines(ctx context.Context, idle time.Duration) ([]string, error) {
	if idle <= 0 {
		idle = DefaultReadTimeout
	}

	timer := time.NewTimer(idle)
	defer timer.Stop()

wait:
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("read lines: %w", ctx.Err())
		case <-r.closing:
			return nil, &TransportError{Op: "read", Err: ErrClosed}
		case <-r.done:
			break wait
		case <-r.notify:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(idle)
		case <-timer.C:
			break wait
		}
	}

	var lines []string
	for {
		raw, ok := r.next(true)
		if !ok {
			break
		}
		if len(raw) == 0 {
			continue
		}
		line, err := decode(raw)
		if err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
	return lines, r.failure()
}

// Close closes the transport and unblocks any waiting reader. Calling Close
// more than once returns the result of the first call.
func (r *LineReader) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.closing)
		r.closeErr = r.transport.Close()
	})
	return r.closeErr
}

// next pops one token off the buffer using at.Splitter. With flush set a
// trailing fragment is returned as well.
func (r *LineReader) next(flush bool) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	advance, token, _ := at.Splitter(r.buf, flush)
	if advance == 0 {
		return nil, false
	}
	line := make([]byte, len(token))
	copy(line, token)
	r.buf = r.buf[advance:]
	return line, true
}

// failure reports why no more data can arrive, or nil if the transport is
// still readable.
func (r *LineReader) failure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.closed:
		return &TransportError{Op: "read", Err: ErrClosed}
	case r.err != nil:
		return &TransportError{Op: "read", Err: r.err}
	}
	return nil
}

func decode(line []byte) (string, error) {
	if !utf8.Valid(line) {
		return "", &DecodeError{Line: line}
	}
	return string(line), nil
}
