package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/oops"

	"github.com/omochice/linechat/pkg/protocol"
)

// Conn is the client side of a chat connection.
type Conn interface {
	// ReadFrame returns the next server frame, or io.EOF once the server
	// closed the connection.
	ReadFrame() (protocol.Frame, error)
	// SendLine sends one line of input.
	SendLine(line []byte) error
	// CloseWrite tells the server no more lines will follow.
	CloseWrite() error
	Close() error
}

// Target is where a client connects to.
type Target struct {
	Host      string
	Port      uint16
	WebSocket bool
}

// Addr returns host:port.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(int(t.Port)))
}

// URL returns the WebSocket URL of the target.
func (t Target) URL() string {
	return "ws://" + t.Addr() + "/ws"
}

// Dial connects to t over TCP, or WebSocket when t.WebSocket is set.
func Dial(ctx context.Context, t Target) (Conn, error) {
	if t.WebSocket {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.URL(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to server: %w", err)
		}
		return NewWSConn(conn), nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", t.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return NewTCPConn(conn), nil
}

// TCPConn wraps net.Conn for TCP connections
type TCPConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

// NewTCPConn creates a new TCP connection wrapper
func NewTCPConn(conn net.Conn) *TCPConn {
	return &TCPConn{conn: conn, reader: bufio.NewReader(conn)}
}

func (tc *TCPConn) ReadFrame() (protocol.Frame, error) {
	f, err := protocol.ReadFrame(tc.reader, protocol.MaxPayload)
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return f, io.EOF
	}
	return f, err
}

func (tc *TCPConn) SendLine(line []byte) error {
	return protocol.WriteLine(tc.conn, line)
}

func (tc *TCPConn) CloseWrite() error {
	if cw, ok := tc.conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return tc.conn.Close()
}

func (tc *TCPConn) Close() error {
	return tc.conn.Close()
}

// WSConn wraps a gorilla/websocket connection. Every message carries one
// frame.
type WSConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewWSConn creates a new WebSocket connection wrapper
func NewWSConn(conn *websocket.Conn) *WSConn {
	conn.SetReadLimit(protocol.MaxPayload + 16)
	return &WSConn{conn: conn}
}

func (wc *WSConn) ReadFrame() (protocol.Frame, error) {
	for {
		typ, data, err := wc.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			switch {
			case errors.As(err, &ce), errors.Is(err, io.EOF),
				errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
				return protocol.Frame{}, io.EOF
			case errors.Is(err, websocket.ErrReadLimit):
				return protocol.Frame{}, oops.
					In("protocol").
					With("max", protocol.MaxPayload).
					Wrapf(protocol.ErrFrameTooLarge, "read message")
			}
			return protocol.Frame{}, err
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		return protocol.DecodeFrame(data, protocol.MaxPayload)
	}
}

func (wc *WSConn) SendLine(line []byte) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeLine(line))
}

// CloseWrite sends a close message; the server answers by closing its
// side.
func (wc *WSConn) CloseWrite() error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return wc.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func (wc *WSConn) Close() error {
	return wc.conn.Close()
}
