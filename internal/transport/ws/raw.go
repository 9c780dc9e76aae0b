package ws

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/samber/oops"

	"github.com/omochice/linechat/pkg/protocol"
)

// RawConn adapts a net.Conn upgraded with gobwas/ws to chat.Conn interface.
// It serves WebSocket clients that share the raw TCP port.
type RawConn struct {
	conn   net.Conn
	reader io.Reader

	mu     sync.Mutex
	closed bool
}

// Upgrade performs the server side of the WebSocket handshake. reader must
// yield the bytes of conn, including any that were already peeked.
func Upgrade(conn net.Conn, reader io.Reader) (*RawConn, error) {
	c := &RawConn{conn: conn, reader: reader}
	if _, err := ws.Upgrade(c.rw()); err != nil {
		return nil, err
	}
	return c, nil
}

// maxMessage bounds one inbound WebSocket message: a client frame header
// plus the largest payload.
const maxMessage = protocol.MaxPayload + 16

// ReadLine implements chat.Conn.
// Control frames are answered while waiting for the next binary message.
func (c *RawConn) ReadLine(ctx context.Context) ([]byte, error) {
	if d, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(d)
		defer c.conn.SetReadDeadline(time.Time{})
	}
	data, err := c.readMessage()
	if err != nil {
		var closed wsutil.ClosedError
		switch {
		case errors.As(err, &closed),
			errors.Is(err, io.EOF),
			errors.Is(err, io.ErrUnexpectedEOF),
			errors.Is(err, net.ErrClosed):
			return nil, io.EOF
		case errors.Is(err, wsutil.ErrFrameTooLarge):
			return nil, oops.
				In("protocol").
				With("max", maxMessage).
				Wrapf(protocol.ErrFrameTooLarge, "read message")
		}
		return nil, err
	}
	return protocol.DecodeLine(data, protocol.MaxPayload)
}

// readMessage reads the next binary message, rejecting any frame or
// message longer than maxMessage before its payload is buffered.
func (c *RawConn) readMessage() ([]byte, error) {
	rw := c.rw()
	control := wsutil.ControlFrameHandler(rw, ws.StateServerSide)
	rd := wsutil.Reader{
		Source:         rw,
		State:          ws.StateServerSide,
		MaxFrameSize:   maxMessage,
		OnIntermediate: control,
	}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			if err := control(hdr, &rd); err != nil {
				return nil, err
			}
			continue
		}
		if hdr.OpCode != ws.OpBinary {
			if err := rd.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		// fragments are checked one by one, so bound the whole message too
		data, err := io.ReadAll(io.LimitReader(&rd, maxMessage+1))
		if err != nil {
			return nil, err
		}
		if len(data) > maxMessage {
			return nil, wsutil.ErrFrameTooLarge
		}
		return data, nil
	}
}

// Send implements chat.Conn.
func (c *RawConn) Send(ctx context.Context, t protocol.FrameType, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := ctx.Deadline(); ok {
		if err := c.conn.SetWriteDeadline(d); err != nil {
			return err
		}
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return wsutil.WriteServerBinary(c.conn, protocol.Encode(t, payload))
}

// Close implements chat.Conn.
// A close frame is sent before the connection is closed.
func (c *RawConn) Close() error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = wsutil.WriteServerMessage(c.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	}
	c.mu.Unlock()
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *RawConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *RawConn) rw() io.ReadWriter {
	return struct {
		io.Reader
		io.Writer
	}{c.reader, lockedWriter{c}}
}

// lockedWriter serialises control frame replies with Send.
type lockedWriter struct {
	c *RawConn
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	return w.c.conn.Write(p)
}
