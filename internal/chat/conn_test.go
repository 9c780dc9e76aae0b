package chat_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/omochice/linechat/internal/chat"
	"github.com/omochice/linechat/pkg/protocol"
)

// mockConn is a mock implementation of chat.Conn for testing.
type mockConn struct {
	readCh     chan []byte
	readErr    error
	errCh      chan error
	remoteAddr string

	mu       sync.Mutex
	sent     []protocol.Frame
	sendErr  error
	closed   bool
	closedCh chan struct{}
	notify   chan struct{}

	// closeDelay makes the first Close block, like a close handshake.
	closeDelay time.Duration
}

func newMockConn(addr string) *mockConn {
	return &mockConn{
		readCh:     make(chan []byte, 16),
		errCh:      make(chan error, 1),
		remoteAddr: addr,
		closedCh:   make(chan struct{}),
		notify:     make(chan struct{}, 1),
	}
}

// feed queues lines the peer will "type".
func (m *mockConn) feed(lines ...string) {
	for _, l := range lines {
		m.readCh <- []byte(l)
	}
}

// fail makes the pending or next ReadLine return err.
func (m *mockConn) fail(err error) {
	m.errCh <- err
}

func (m *mockConn) ReadLine(ctx context.Context) ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.closedCh:
		return nil, io.EOF
	case err := <-m.errCh:
		return nil, err
	case data, ok := <-m.readCh:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	}
}

func (m *mockConn) Send(_ context.Context, t protocol.FrameType, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	if m.closed {
		return io.ErrClosedPipe
	}
	m.sent = append(m.sent, protocol.Frame{Type: t, Payload: append([]byte(nil), payload...)})
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	first := !m.closed
	if first {
		m.closed = true
		close(m.closedCh)
	}
	m.mu.Unlock()
	if first && m.closeDelay > 0 {
		time.Sleep(m.closeDelay)
	}
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return m.remoteAddr
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// frames returns a copy of everything sent so far.
func (m *mockConn) frames() []protocol.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]protocol.Frame(nil), m.sent...)
}

// messages returns the plain text of every message frame sent so far.
func (m *mockConn) messages() []string {
	var out []string
	for _, f := range m.frames() {
		if f.Type == protocol.FrameMessage {
			out = append(out, ansi.Strip(string(f.Payload)))
		}
	}
	return out
}

// prompts counts the prompt frames sent so far.
func (m *mockConn) prompts() int {
	n := 0
	for _, f := range m.frames() {
		if f.Type == protocol.FramePrompt {
			n++
		}
	}
	return n
}

// waitFor blocks until cond holds for the frames sent so far.
func (m *mockConn) waitFor(t *testing.T, cond func([]protocol.Frame) bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond(m.frames()) {
			return
		}
		select {
		case <-m.notify:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out, sent so far: %q", m.messages())
		}
	}
}

// waitPrompts blocks until n prompt frames have been sent.
func (m *mockConn) waitPrompts(t *testing.T, n int) {
	t.Helper()
	m.waitFor(t, func([]protocol.Frame) bool { return m.prompts() >= n })
}

// waitMessage blocks until a message containing text has been sent.
func (m *mockConn) waitMessage(t *testing.T, text string) {
	t.Helper()
	m.waitFor(t, func([]protocol.Frame) bool {
		for _, msg := range m.messages() {
			if strings.Contains(msg, text) {
				return true
			}
		}
		return false
	})
}

var errSend = errors.New("send failed")

// Compile-time check that mockConn implements chat.Conn
var _ chat.Conn = (*mockConn)(nil)
