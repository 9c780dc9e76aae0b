// Package config loads and validates the settings of the serve and join
// commands.
package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"github.com/omochice/linechat/internal/chat"
	"github.com/omochice/linechat/internal/client"
	"github.com/omochice/linechat/internal/server"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Server holds the settings of the chat server.
type Server struct {
	Listen            string        `mapstructure:"listen"`
	WebSocket         bool          `mapstructure:"websocket"`
	WSListen          string        `mapstructure:"ws_listen"`
	SniffTimeout      time.Duration `mapstructure:"sniff_timeout"`
	MaxClients        int           `mapstructure:"max_clients"`
	MaxNameLength     int           `mapstructure:"max_name_length"`
	HandshakeAttempts int           `mapstructure:"handshake_attempts"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	MessageRate       float64       `mapstructure:"message_rate"`
	MessageBurst      int           `mapstructure:"message_burst"`
	Color             bool          `mapstructure:"color"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"`
}

// Validate checks that the server settings are usable.
func (c Server) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return invalid("listen", c.Listen, "must be host:port")
	}
	if c.WSListen != "" {
		if _, _, err := net.SplitHostPort(c.WSListen); err != nil {
			return invalid("ws_listen", c.WSListen, "must be host:port")
		}
	}
	if c.WebSocket && c.SniffTimeout <= 0 {
		return invalid("sniff_timeout", c.SniffTimeout, "must be positive")
	}
	if c.MaxClients < 1 {
		return invalid("max_clients", c.MaxClients, "must be at least 1")
	}
	if c.MaxNameLength < 1 {
		return invalid("max_name_length", c.MaxNameLength, "must be at least 1")
	}
	if c.HandshakeAttempts < 1 {
		return invalid("handshake_attempts", c.HandshakeAttempts, "must be at least 1")
	}
	if c.WriteTimeout < 0 {
		return invalid("write_timeout", c.WriteTimeout, "must not be negative")
	}
	if c.MessageRate < 0 {
		return invalid("message_rate", c.MessageRate, "must not be negative")
	}
	if c.MessageRate > 0 && c.MessageBurst < 1 {
		return invalid("message_burst", c.MessageBurst, "must be at least 1 when message_rate is set")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return invalid("log_level", c.LogLevel, "unknown level")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return invalid("log_format", c.LogFormat, "must be text or json")
	}
	return nil
}

// Hub returns the hub settings.
func (c Server) Hub() chat.HubConfig {
	return chat.HubConfig{
		MaxClients:        c.MaxClients,
		MaxNameLength:     c.MaxNameLength,
		HandshakeAttempts: c.HandshakeAttempts,
		WriteTimeout:      c.WriteTimeout,
		MessageRate:       c.MessageRate,
		MessageBurst:      c.MessageBurst,
		Color:             c.Color,
	}
}

// Unified reports whether the server needs protocol sniffing or a second
// listener, as opposed to a plain TCP accept loop.
func (c Server) Unified() bool {
	return c.WebSocket || c.WSListen != ""
}

// Options returns the settings of the unified server.
func (c Server) Options() server.Options {
	return server.Options{
		Address:      c.Listen,
		WebSocket:    c.WebSocket,
		WSAddress:    c.WSListen,
		SniffTimeout: c.SniffTimeout,
	}
}

// Join holds the settings of the chat client.
type Join struct {
	Host      string
	Port      uint16
	WebSocket bool
	NoColor   bool
}

// Validate checks the host. The port is checked by ParsePort.
func (j Join) Validate() error {
	if !ValidHost(j.Host) {
		return invalid("host", j.Host, "must be an IP address or a host name")
	}
	if j.Port == 0 {
		return invalid("port", j.Port, "must be between 1 and 65535")
	}
	return nil
}

// Target returns where the client connects to.
func (j Join) Target() client.Target {
	return client.Target{Host: j.Host, Port: j.Port, WebSocket: j.WebSocket}
}

// ParsePort parses a TCP port number in the range 1-65535.
func ParsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil || n == 0 {
		return 0, invalid("port", s, "must be between 1 and 65535")
	}
	return uint16(n), nil
}

// ValidHost reports whether host is an IP literal or a syntactically valid
// host name (RFC 1123).
func ValidHost(host string) bool {
	if host == "" {
		return false
	}
	if net.ParseIP(host) != nil {
		return true
	}
	host = strings.TrimSuffix(host, ".")
	if len(host) == 0 || len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if !validLabel(label) {
			return false
		}
	}
	return true
}

func validLabel(label string) bool {
	if len(label) == 0 || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		default:
			return false
		}
	}
	return true
}

func invalid(key string, value any, reason string) error {
	return oops.
		In("config").
		With("key", key, "value", value).
		Wrapf(ErrInvalid, "%s %s", key, reason)
}
