package tcp

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"github.com/omochice/linechat/internal/chat"
)

// Server handles TCP connections and delegates to Hub.
type Server struct {
	address  string
	listener net.Listener
	hub      *chat.Hub
	log      logrus.FieldLogger
	ready    chan struct{}
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// New creates a TCP server that uses the provided Hub.
func New(address string, hub *chat.Hub, log logrus.FieldLogger) *Server {
	return &Server{
		address: address,
		hub:     hub,
		log:     log.WithField("transport", "tcp"),
		ready:   make(chan struct{}),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start starts accepting TCP connections. It blocks until Stop is called or
// ctx is done and only returns an error when the address cannot be
// listened on.
func (s *Server) Start(ctx context.Context) error {
	defer close(s.done)

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return oops.
			In("transport").
			With("address", s.address).
			Wrapf(err, "failed to start TCP server")
	}
	s.listener = listener
	close(s.ready)

	select {
	case <-s.quit:
		return listener.Close()
	default:
	}

	s.log.WithField("address", listener.Addr().String()).Info("TCP server started")

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.quit:
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.WithError(err).Warn("failed to accept TCP connection")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.hub.HandleConn(ctx, NewConn(conn))
		}()
	}
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop stops the TCP server, closes every connection and waits for their
// handlers to finish. Stop must only be called after Start.
func (s *Server) Stop() {
	s.once.Do(func() {
		close(s.quit)
		select {
		case <-s.ready:
			s.listener.Close()
		default:
		}
		<-s.done
		s.hub.CloseAll()
		s.wg.Wait()
	})
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	select {
	case <-s.ready:
		return s.listener.Addr().String()
	default:
		return ""
	}
}
