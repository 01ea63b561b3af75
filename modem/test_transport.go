package modem

import (
	"io"
	"strings"
	"sync"

	"i4.energy/across/loragw/at"
)

// TestTransport is a test helper that simulates a blocking transport using channels.
// This is needed because the LineReader pump goroutine continuously reads from the
// transport, and we need reads to block until data is available (like a real
// serial port would).
//
// Responses can be queued per command with Reply; they are delivered right after
// the matching command line is written.
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	closed   bool
	writes   []string
	replies  map[string][]string
	writeErr error

	// pending holds the part of a chunk that did not fit into the caller's
	// buffer. Only the reading goroutine touches it.
	pending []byte
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 64),
		replies:  make(map[string][]string),
	}
}

// Reply queues lines to be sent back after the next write of cmd. Each line
// gets a CRLF terminator.
func (t *TestTransport) Reply(cmd string, lines ...string) {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString(at.CRLF)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[cmd] = append(t.replies[cmd], b.String())
}

// FailWrites makes every subsequent Write return err.
func (t *TestTransport) FailWrites(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
}

// Writes returns the command lines written so far, terminators included.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.writes...)
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	if t.writeErr != nil {
		return 0, t.writeErr
	}
	t.writes = append(t.writes, string(p))

	cmd := strings.TrimSuffix(string(p), at.CRLF)
	if queue := t.replies[cmd]; len(queue) > 0 {
		t.replies[cmd] = queue[1:]
		t.readChan <- []byte(queue[0])
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	if len(t.pending) == 0 {
		data, ok := <-t.readChan
		if !ok {
			return 0, io.EOF
		}
		t.pending = data
	}
	n = copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates unsolicited output from the modem.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}
