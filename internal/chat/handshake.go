package chat

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"github.com/omochice/linechat/pkg/protocol"
)

// HandshakeState is a state of the name negotiation.
type HandshakeState int

const (
	StateAwaitName HandshakeState = iota
	StateValidating
	StateRetry
	StateRegistered
	StateFailed
)

// String returns the string representation of HandshakeState
func (s HandshakeState) String() string {
	switch s {
	case StateAwaitName:
		return "AWAIT_NAME"
	case StateValidating:
		return "VALIDATING"
	case StateRetry:
		return "RETRY"
	case StateRegistered:
		return "REGISTERED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrTooManyAttempts ends a handshake whose attempts were all rejected.
	ErrTooManyAttempts = errors.New("too many failed attempts")
	// ErrServerFull ends a handshake when the registry is at capacity.
	ErrServerFull = errors.New("server is full")
)

// HandshakeLimits bounds the name negotiation.
type HandshakeLimits struct {
	MaxNameLength int
	MaxAttempts   int
}

// Handshake drives the name negotiation of one session:
//
//	AWAIT_NAME -> VALIDATING -> RETRY -> AWAIT_NAME ...
//	                         -> REGISTERED
//	                         -> FAILED
//
// A read or write error moves straight to FAILED without further I/O.
type Handshake struct {
	session  *Session
	registry *Registry
	styles   *Styles
	limits   HandshakeLimits
	log      logrus.FieldLogger

	state    HandshakeState
	attempts int
	name     []byte
	notice   string
	fatal    error
}

// NewHandshake prepares a handshake for s.
func NewHandshake(s *Session, registry *Registry, styles *Styles, limits HandshakeLimits, log logrus.FieldLogger) *Handshake {
	return &Handshake{
		session:  s,
		registry: registry,
		styles:   styles,
		limits:   limits,
		log:      log,
		state:    StateAwaitName,
	}
}

// State returns the current state.
func (h *Handshake) State() HandshakeState { return h.state }

// Attempts returns the number of names submitted so far.
func (h *Handshake) Attempts() int { return h.attempts }

// Run steps the state machine until it reaches REGISTERED or FAILED. The
// returned error explains a FAILED outcome; io.EOF means the peer left.
func (h *Handshake) Run(ctx context.Context) (HandshakeState, error) {
	for {
		var err error
		switch h.state {
		case StateAwaitName:
			err = h.awaitName(ctx)
		case StateValidating:
			h.validate()
		case StateRetry:
			err = h.retry(ctx)
		case StateRegistered, StateFailed:
			return h.state, nil
		}
		if err != nil {
			h.state = StateFailed
			return h.state, err
		}
	}
}

func (h *Handshake) awaitName(ctx context.Context) error {
	if err := h.session.Conn.Send(ctx, protocol.FramePrompt, []byte(h.styles.NamePrompt())); err != nil {
		return fmt.Errorf("send prompt: %w", err)
	}
	line, err := h.session.Conn.ReadLine(ctx)
	if err != nil {
		return err
	}
	h.name = line
	h.state = StateValidating
	return nil
}

func (h *Handshake) validate() {
	h.attempts++
	name := string(h.name)
	log := h.log.WithField("attempt", h.attempts)

	switch {
	case name == "":
		log.Info("handshake: empty name")
		h.reject("name cannot be empty")
		return
	case utf8.RuneCountInString(name) > h.limits.MaxNameLength:
		log.WithField("name", name).Info("handshake: name too long")
		h.reject(fmt.Sprintf("name must be at most %d characters long", h.limits.MaxNameLength))
		return
	}

	switch h.registry.Add(h.session, name) {
	case AddOK:
		h.state = StateRegistered
	case AddDuplicate:
		log.WithField("name", name).Info("handshake: duplicate name")
		h.reject("name already taken, please choose another")
	case AddFull:
		log.Warn("handshake: registry full")
		h.reject("server is full, try again later")
		h.fatal = oops.In("chat").With("capacity", h.registry.Cap()).Wrap(ErrServerFull)
	}
}

func (h *Handshake) reject(msg string) {
	h.notice = h.styles.Error(msg)
	h.state = StateRetry
}

func (h *Handshake) retry(ctx context.Context) error {
	if err := h.session.Conn.Send(ctx, protocol.FrameMessage, []byte(h.notice)); err != nil {
		return fmt.Errorf("send notice: %w", err)
	}
	if h.fatal != nil {
		return h.fatal
	}
	if h.attempts < h.limits.MaxAttempts {
		h.state = StateAwaitName
		return nil
	}

	notice := h.styles.Notice("too many failed attempts, disconnecting")
	if err := h.session.Conn.Send(ctx, protocol.FrameMessage, []byte(notice)); err != nil {
		return fmt.Errorf("send notice: %w", err)
	}
	return oops.In("chat").With("attempts", h.attempts).Wrap(ErrTooManyAttempts)
}
