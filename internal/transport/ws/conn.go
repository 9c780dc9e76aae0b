// Package ws provides WebSocket transport implementation for the chat server.
// Every WebSocket message carries exactly one frame of the chat protocol.
package ws

import (
	"context"
	"errors"
	"io"
	"net"

	"nhooyr.io/websocket"

	"github.com/omochice/linechat/pkg/protocol"
)

// Conn adapts nhooyr.io/websocket to chat.Conn interface.
type Conn struct {
	conn       *websocket.Conn
	remoteAddr string
}

// NewConnWithAddr wraps a websocket.Conn with the specified remote address.
func NewConnWithAddr(conn *websocket.Conn, addr string) *Conn {
	conn.SetReadLimit(protocol.MaxPayload + 16)
	return &Conn{conn: conn, remoteAddr: addr}
}

// ReadLine implements chat.Conn.
// Reads a binary message and decodes the line it carries.
func (c *Conn) ReadLine(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return nil, closedAsEOF(err)
		}
		if typ != websocket.MessageBinary {
			continue
		}
		return protocol.DecodeLine(data, protocol.MaxPayload)
	}
}

// Send implements chat.Conn.
// Writes the frame as one binary message.
func (c *Conn) Send(ctx context.Context, t protocol.FrameType, payload []byte) error {
	return c.conn.Write(ctx, websocket.MessageBinary, protocol.Encode(t, payload))
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	if errors.Is(err, net.ErrClosed) || websocket.CloseStatus(err) != -1 {
		return nil
	}
	return err
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// closedAsEOF reports every way a WebSocket can go away as io.EOF.
func closedAsEOF(err error) error {
	if websocket.CloseStatus(err) != -1 ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) {
		return io.EOF
	}
	return err
}
