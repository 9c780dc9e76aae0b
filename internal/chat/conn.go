// Package chat provides the core chat domain logic shared by all transports:
// the name registry, broadcasts, the name handshake and slash commands.
package chat

import (
	"context"

	"github.com/omochice/linechat/pkg/protocol"
)

// Conn abstracts a framed bidirectional connection for both TCP and WebSocket.
// This interface isolates transport details from chat logic.
type Conn interface {
	// ReadLine blocks until the next client frame arrives and returns its
	// payload. Returns io.EOF when the connection is closed.
	ReadLine(ctx context.Context) ([]byte, error)

	// Send writes a single typed frame. Implementations must be safe for
	// concurrent use: broadcasts write from other sessions' goroutines.
	Send(ctx context.Context, t protocol.FrameType, payload []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address as host:port.
	RemoteAddr() string
}
