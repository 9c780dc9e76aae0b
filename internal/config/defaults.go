package config

import (
	"time"

	"github.com/spf13/viper"
)

// ── Default values ───────────────────────────────────────────────────

const (
	DefaultListen            = ":8080"
	DefaultWebSocket         = true
	DefaultSniffTimeout      = 300 * time.Millisecond
	DefaultMaxClients        = 64
	DefaultMaxNameLength     = 32
	DefaultHandshakeAttempts = 3
	DefaultWriteTimeout      = 5 * time.Second
	DefaultMessageRate       = 5.0
	DefaultMessageBurst      = 10
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"

	DefaultHost = "127.0.0.1"
	DefaultPort = "8080"
)

// SetServerDefaults registers the server defaults on v. Keys must be known
// to v for environment overrides to reach Unmarshal.
func SetServerDefaults(v *viper.Viper) {
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("websocket", DefaultWebSocket)
	v.SetDefault("ws_listen", "")
	v.SetDefault("sniff_timeout", DefaultSniffTimeout)
	v.SetDefault("max_clients", DefaultMaxClients)
	v.SetDefault("max_name_length", DefaultMaxNameLength)
	v.SetDefault("handshake_attempts", DefaultHandshakeAttempts)
	v.SetDefault("write_timeout", DefaultWriteTimeout)
	v.SetDefault("message_rate", DefaultMessageRate)
	v.SetDefault("message_burst", DefaultMessageBurst)
	v.SetDefault("color", true)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", DefaultLogFormat)
}

// SetJoinDefaults registers the client defaults on v.
func SetJoinDefaults(v *viper.Viper) {
	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("websocket", false)
	v.SetDefault("no_color", false)
}
