package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/omochice/linechat/pkg/protocol"
)

// HubConfig holds the tunables of a Hub.
type HubConfig struct {
	MaxClients        int
	MaxNameLength     int
	HandshakeAttempts int
	// WriteTimeout bounds a single send to one peer. Zero disables it.
	WriteTimeout time.Duration
	// MessageRate is the number of lines per second a session may send.
	// Zero disables flood control.
	MessageRate  float64
	MessageBurst int
	Color        bool
}

// DefaultHubConfig returns the configuration used when nothing is set.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		MaxClients:        64,
		MaxNameLength:     32,
		HandshakeAttempts: 3,
		WriteTimeout:      5 * time.Second,
		MessageRate:       5,
		MessageBurst:      10,
		Color:             true,
	}
}

// Hub runs the lifecycle of every accepted connection and owns the state
// they share. Both TCP and WebSocket servers share a single Hub instance.
type Hub struct {
	cfg         HubConfig
	log         logrus.FieldLogger
	registry    *Registry
	broadcaster *Broadcaster
	commands    *Commands
	styles      *Styles

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewHub creates a new Hub.
func NewHub(cfg HubConfig, log logrus.FieldLogger) *Hub {
	registry := NewRegistry(cfg.MaxClients)
	styles := NewStyles(cfg.Color)
	return &Hub{
		cfg:         cfg,
		log:         log,
		registry:    registry,
		broadcaster: NewBroadcaster(registry, cfg.WriteTimeout, log),
		commands:    NewCommands(registry, styles),
		styles:      styles,
		sessions:    make(map[*Session]struct{}),
	}
}

// Registry returns the registry of named sessions.
func (h *Hub) Registry() *Registry { return h.registry }

// Commands returns the command table, for registering extra commands.
func (h *Hub) Commands() *Commands { return h.commands }

// ClientCount returns number of connected clients, named or not.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// CloseAll closes every connection the hub is handling. The handlers then
// run their normal teardown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	// a close may wait for the peer's close handshake
	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Conn.Close()
		}()
	}
	wg.Wait()
}

// HandleConn serves conn until it closes, quits or fails the handshake.
// The connection is closed when HandleConn returns.
func (h *Hub) HandleConn(ctx context.Context, conn Conn) {
	s := NewSession(conn)
	if h.cfg.MessageRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(h.cfg.MessageRate), max(h.cfg.MessageBurst, 1))
	}

	h.track(s)
	defer h.untrack(s)
	defer conn.Close()

	log := h.log.WithFields(s.Fields())
	log.Info("connected")

	hs := NewHandshake(s, h.registry, h.styles, HandshakeLimits{
		MaxNameLength: h.cfg.MaxNameLength,
		MaxAttempts:   h.cfg.HandshakeAttempts,
	}, log)
	if state, err := hs.Run(ctx); state != StateRegistered {
		h.closing(ctx, s, log.WithField("attempts", hs.Attempts()), err)
		log.Info("handshake failed")
		return
	}

	log = h.log.WithFields(s.Fields())
	log.Info("joined")
	h.broadcaster.Broadcast(ctx, nil, h.styles.Joined(s.Addr(), s.Name()))

	err := h.serve(ctx, s, log)
	h.closing(ctx, s, log, err)

	if h.registry.Remove(s) {
		h.broadcaster.Broadcast(ctx, nil, h.styles.Left(s.Name()))
	}
	log.Info("disconnected")
}

// serve is the message loop of a registered session. It returns nil when
// the session quits.
func (h *Hub) serve(ctx context.Context, s *Session, log logrus.FieldLogger) error {
	prompt := []byte(h.styles.LinePrompt(s.Name()))
	for {
		if err := s.Conn.Send(ctx, protocol.FramePrompt, prompt); err != nil {
			return err
		}
		line, err := s.Conn.ReadLine(ctx)
		if err != nil {
			return err
		}
		text := string(line)
		log.WithField("line", text).Debug("message")

		if IsCommand(text) {
			res, err := h.commands.Dispatch(ctx, s, text)
			if err != nil {
				return err
			}
			if res == CommandQuit {
				return nil
			}
			continue
		}
		if text == "" {
			continue
		}

		// only broadcasts are throttled; commands answer the sender alone
		if !s.allow() {
			log.Debug("rate limited")
			if err := reply(ctx, s, h.styles.Error("slow down")); err != nil {
				return err
			}
			continue
		}
		h.broadcaster.Broadcast(ctx, s, h.styles.Chat(s.Name(), text))
	}
}

// closing logs why a session ends. A protocol violation is answered with a
// final notice before the connection is closed.
func (h *Hub) closing(ctx context.Context, s *Session, log logrus.FieldLogger, err error) {
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return
	case protocol.IsProtocolError(err):
		log.WithError(err).Warn("protocol error")
		_ = reply(ctx, s, h.styles.Error("protocol error"))
	case errors.Is(err, ErrTooManyAttempts), errors.Is(err, ErrServerFull):
		log.WithError(err).Info("rejected")
	default:
		log.WithError(err).Warn("connection error")
	}
}

func (h *Hub) track(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) untrack(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
}
