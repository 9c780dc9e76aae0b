package chat

import (
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Session is the server-side state of one accepted connection.
type Session struct {
	ID   string
	Conn Conn
	IP   string
	Port uint16

	mu   sync.RWMutex
	name string

	limiter *rate.Limiter
}

// NewSession wraps conn. The remote address is split into ip and port; an
// address that is not host:port is kept whole as the ip.
func NewSession(conn Conn) *Session {
	s := &Session{
		ID:   uuid.NewString(),
		Conn: conn,
	}
	addr := conn.RemoteAddr()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		s.IP = addr
		return s
	}
	s.IP = host
	if p, err := strconv.ParseUint(port, 10, 16); err == nil {
		s.Port = uint16(p)
	}
	return s
}

// Name returns the display name, or "" before the handshake completed.
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *Session) setName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// Addr returns ip:port for display.
func (s *Session) Addr() string {
	return net.JoinHostPort(s.IP, strconv.Itoa(int(s.Port)))
}

// Fields returns the log fields identifying this session.
func (s *Session) Fields() logrus.Fields {
	f := logrus.Fields{
		"session": s.ID,
		"ip":      s.IP,
		"port":    s.Port,
	}
	if name := s.Name(); name != "" {
		f["name"] = name
	}
	return f
}

// allow reports whether the session may send another chat line now. A
// session without a limiter is never throttled.
func (s *Session) allow() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}
