package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/linechat/internal/config"
)

func TestLoadServer_Defaults(t *testing.T) {
	c, err := config.LoadServer(config.NewServerViper())
	require.NoError(t, err)

	assert.Equal(t, config.Server{
		Listen:            ":8080",
		WebSocket:         true,
		SniffTimeout:      300 * time.Millisecond,
		MaxClients:        64,
		MaxNameLength:     32,
		HandshakeAttempts: 3,
		WriteTimeout:      5 * time.Second,
		MessageRate:       5,
		MessageBurst:      10,
		Color:             true,
		LogLevel:          "info",
		LogFormat:         "text",
	}, c)
}

func TestLoadServer_Environment(t *testing.T) {
	t.Setenv("LINECHAT_MAX_CLIENTS", "5")
	t.Setenv("LINECHAT_WRITE_TIMEOUT", "250ms")
	t.Setenv("LINECHAT_WEBSOCKET", "false")
	t.Setenv("LINECHAT_MESSAGE_RATE", "0.5")

	c, err := config.LoadServer(config.NewServerViper())
	require.NoError(t, err)
	assert.Equal(t, 5, c.MaxClients)
	assert.Equal(t, 250*time.Millisecond, c.WriteTimeout)
	assert.False(t, c.WebSocket)
	assert.Equal(t, 0.5, c.MessageRate)
}

func TestLoadServer_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linechat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"listen: 127.0.0.1:9000\nmax_name_length: 12\nlog_format: json\n"), 0o600))

	v := config.NewServerViper()
	require.NoError(t, config.ReadFile(v, path))
	c, err := config.LoadServer(v)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", c.Listen)
	assert.Equal(t, 12, c.MaxNameLength)
	assert.Equal(t, "json", c.LogFormat)
	assert.Equal(t, 64, c.MaxClients)
}

func TestReadFile(t *testing.T) {
	v := config.NewServerViper()
	assert.NoError(t, config.ReadFile(v, ""))
	assert.Error(t, config.ReadFile(v, filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestBindFlags_Precedence(t *testing.T) {
	t.Setenv("LINECHAT_MAX_CLIENTS", "5")
	t.Setenv("LINECHAT_LISTEN", ":7000")

	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.String("listen", config.DefaultListen, "")
	fs.Int("max-clients", config.DefaultMaxClients, "")
	fs.String("config", "", "")

	v := config.NewServerViper()
	require.NoError(t, config.BindFlags(v, fs))
	require.NoError(t, fs.Parse([]string{"--max-clients", "9"}))

	c, err := config.LoadServer(v)
	require.NoError(t, err)
	// an explicit flag beats the environment, an untouched one does not
	assert.Equal(t, 9, c.MaxClients)
	assert.Equal(t, ":7000", c.Listen)
}

func TestLoadServer_Invalid(t *testing.T) {
	t.Setenv("LINECHAT_LOG_LEVEL", "chatty")
	_, err := config.LoadServer(config.NewServerViper())
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestLoadJoin(t *testing.T) {
	fs := pflag.NewFlagSet("join", pflag.ContinueOnError)
	fs.String("host", config.DefaultHost, "")
	fs.String("port", config.DefaultPort, "")
	fs.Bool("websocket", false, "")
	fs.Bool("no-color", false, "")

	v := config.NewJoinViper()
	require.NoError(t, config.BindFlags(v, fs))
	require.NoError(t, fs.Parse([]string{"--host", "chat.example.com", "--port", "9000", "--no-color"}))

	j, err := config.LoadJoin(v)
	require.NoError(t, err)
	assert.Equal(t, config.Join{Host: "chat.example.com", Port: 9000, NoColor: true}, j)
}

func TestLoadJoin_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "port out of range", args: []string{"--port", "70000"}},
		{name: "port not a number", args: []string{"--port", "http"}},
		{name: "bad host", args: []string{"--host", "not a host"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := pflag.NewFlagSet("join", pflag.ContinueOnError)
			fs.String("host", config.DefaultHost, "")
			fs.String("port", config.DefaultPort, "")

			v := config.NewJoinViper()
			require.NoError(t, config.BindFlags(v, fs))
			require.NoError(t, fs.Parse(tt.args))

			_, err := config.LoadJoin(v)
			assert.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}
