// Package server runs the chat server on a single port shared by raw TCP
// clients and WebSocket clients.
package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"github.com/omochice/linechat/internal/chat"
	"github.com/omochice/linechat/internal/transport/tcp"
	"github.com/omochice/linechat/internal/transport/ws"
)

// DefaultSniffTimeout is how long a new connection may stay silent before
// it is treated as a raw TCP client.
const DefaultSniffTimeout = 300 * time.Millisecond

// Options configures a UnifiedServer.
type Options struct {
	// Address is the shared listening address.
	Address string
	// WebSocket enables WebSocket upgrades on Address.
	WebSocket bool
	// WSAddress, when set, additionally serves WebSocket clients on a
	// dedicated HTTP listener at ws.Path.
	WSAddress    string
	SniffTimeout time.Duration
}

// UnifiedServer represents a server that handles both TCP and WebSocket
// connections and hands them all to one Hub.
type UnifiedServer struct {
	opts     Options
	hub      *chat.Hub
	log      logrus.FieldLogger
	listener net.Listener
	wsServer *ws.Server

	ready chan struct{}
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewUnifiedServer creates a new UnifiedServer instance.
func NewUnifiedServer(opts Options, hub *chat.Hub, log logrus.FieldLogger) *UnifiedServer {
	if opts.SniffTimeout <= 0 {
		opts.SniffTimeout = DefaultSniffTimeout
	}
	s := &UnifiedServer{
		opts:  opts,
		hub:   hub,
		log:   log,
		ready: make(chan struct{}),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	if opts.WSAddress != "" {
		s.wsServer = ws.New(opts.WSAddress, hub, log)
	}
	return s
}

// Start listens and serves until Stop is called or ctx is done. It returns
// an error when a listener cannot be started.
func (s *UnifiedServer) Start(ctx context.Context) error {
	defer close(s.done)

	listener, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return oops.
			In("server").
			With("address", s.opts.Address).
			Wrapf(err, "failed to start server")
	}
	s.listener = listener

	wsErr := make(chan error, 1)
	if s.wsServer != nil {
		go func() { wsErr <- s.wsServer.Start(ctx) }()
		select {
		case <-s.wsServer.Ready():
		case err := <-wsErr:
			listener.Close()
			return err
		}
	}
	close(s.ready)

	s.log.WithFields(logrus.Fields{
		"address":   listener.Addr().String(),
		"websocket": s.opts.WebSocket,
	}).Info("server started")

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.quit:
		}
	}()

	s.acceptConnections(ctx)
	return nil
}

// Ready is closed once every listener is bound.
func (s *UnifiedServer) Ready() <-chan struct{} {
	return s.ready
}

// Stop stops the server, closes all client connections and waits for
// their handlers. Stop must only be called after Start.
func (s *UnifiedServer) Stop() {
	s.once.Do(func() {
		close(s.quit)
		select {
		case <-s.ready:
			s.listener.Close()
			if s.wsServer != nil {
				s.wsServer.Stop()
			}
		default:
		}
		<-s.done
		s.hub.CloseAll()
		s.wg.Wait()
	})
}

// Addr returns the server's listening address.
func (s *UnifiedServer) Addr() string {
	select {
	case <-s.ready:
		return s.listener.Addr().String()
	default:
		return ""
	}
}

// WSAddr returns the dedicated WebSocket listening address, if any.
func (s *UnifiedServer) WSAddr() string {
	if s.wsServer == nil {
		return ""
	}
	return s.wsServer.Addr()
}

// ClientCount returns the number of connected clients.
func (s *UnifiedServer) ClientCount() int {
	return s.hub.ClientCount()
}

// acceptConnections accepts connections and determines their protocol.
func (s *UnifiedServer) acceptConnections(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.WithError(err).Warn("failed to accept connection")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// handleConnection determines whether the connection is HTTP (WebSocket)
// or raw TCP and serves it.
func (s *UnifiedServer) handleConnection(ctx context.Context, conn net.Conn) {
	log := s.log.WithField("remote", conn.RemoteAddr().String())

	proto, reader, err := detectProtocol(conn, s.opts.SniffTimeout)
	if err != nil {
		log.WithError(err).Debug("failed to peek connection")
		conn.Close()
		return
	}
	log.WithField("protocol", proto).Debug("protocol detected")

	switch {
	case proto == protocolHTTP && s.opts.WebSocket:
		wsConn, err := ws.Upgrade(conn, reader)
		if err != nil {
			log.WithError(err).Warn("failed to upgrade connection")
			conn.Close()
			return
		}
		s.hub.HandleConn(ctx, wsConn)
	case proto == protocolHTTP:
		log.Info("rejected HTTP request, WebSocket is disabled")
		conn.Close()
	default:
		s.hub.HandleConn(ctx, tcp.NewConnWithReader(conn, reader))
	}
}
