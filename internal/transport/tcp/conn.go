// Package tcp provides TCP transport implementation for the chat server.
package tcp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/omochice/linechat/pkg/protocol"
)

// Conn adapts net.Conn to chat.Conn interface. Inbound bytes are decoded
// as client to server frames and outbound frames carry a type byte.
type Conn struct {
	conn   net.Conn
	reader io.Reader

	mu sync.Mutex
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn, reader: bufio.NewReader(conn)}
}

// NewConnWithReader wraps a net.Conn whose first bytes were already
// buffered by reader, e.g. after peeking at them for protocol detection.
func NewConnWithReader(conn net.Conn, reader *bufio.Reader) *Conn {
	return &Conn{conn: conn, reader: reader}
}

// ReadLine implements chat.Conn.
// A deadline on ctx applies to the read.
func (c *Conn) ReadLine(ctx context.Context) ([]byte, error) {
	if d, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(d)
		defer c.conn.SetReadDeadline(time.Time{})
	}
	line, err := protocol.ReadLine(c.reader, protocol.MaxPayload)
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return nil, io.EOF
	}
	return line, err
}

// Send implements chat.Conn.
// Frames are written whole; concurrent senders are serialised.
func (c *Conn) Send(ctx context.Context, t protocol.FrameType, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := ctx.Deadline(); ok {
		if err := c.conn.SetWriteDeadline(d); err != nil {
			return err
		}
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return protocol.WriteFrame(c.conn, t, payload)
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
