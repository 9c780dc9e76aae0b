package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"

	"github.com/omochice/linechat/internal/chat"
)

// Path is where the dedicated WebSocket listener accepts upgrades.
const Path = "/ws"

// Server handles WebSocket connections on a dedicated HTTP listener and
// delegates to Hub.
type Server struct {
	address  string
	listener net.Listener
	hub      *chat.Hub
	log      logrus.FieldLogger
	server   *http.Server
	ctx      context.Context
	ready    chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// New creates a WebSocket server that uses the provided Hub.
func New(address string, hub *chat.Hub, log logrus.FieldLogger) *Server {
	return &Server{
		address: address,
		hub:     hub,
		log:     log.WithField("transport", "websocket"),
		ready:   make(chan struct{}),
	}
}

// Start starts accepting WebSocket connections. It blocks until Stop is
// called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return oops.
			In("transport").
			With("address", s.address).
			Wrapf(err, "failed to start WebSocket server")
	}
	s.listener = listener
	s.ctx = ctx

	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleWebSocket)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	close(s.ready)

	s.log.WithField("address", listener.Addr().String()).Info("WebSocket server started")

	if err := s.server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop stops the WebSocket server and waits for its handlers.
func (s *Server) Stop() {
	s.once.Do(func() {
		select {
		case <-s.ready:
		default:
			return
		}
		_ = s.server.Close()
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

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.WithError(err).Warn("failed to accept WebSocket connection")
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.hub.HandleConn(s.ctx, NewConnWithAddr(wsConn, r.RemoteAddr))
}
