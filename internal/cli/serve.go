package cli

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/omochice/linechat/internal/chat"
	"github.com/omochice/linechat/internal/config"
	"github.com/omochice/linechat/internal/logging"
	"github.com/omochice/linechat/internal/server"
	"github.com/omochice/linechat/internal/transport/tcp"
	"github.com/omochice/linechat/internal/transport/ws"
)

type chatServer interface {
	Start(ctx context.Context) error
	Stop()
	Addr() string
}

func newServeCommand(s Streams) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := config.NewServerViper()
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			if err := config.ReadFile(v, cfgFile); err != nil {
				return err
			}
			cfg, err := config.LoadServer(v)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			log, err := logging.New(cfg.LogLevel, cfg.LogFormat, s.Err)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, log)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfgFile, "config", "", "configuration file (yaml, toml or json)")
	fs.String("listen", config.DefaultListen, "address to listen on")
	fs.Bool("websocket", config.DefaultWebSocket, "also accept WebSocket clients on the listen address")
	fs.String("ws-listen", "", "additional address serving WebSocket clients at "+ws.Path)
	fs.Duration("sniff-timeout", config.DefaultSniffTimeout, "how long a silent connection is given before it is treated as raw TCP")
	fs.Int("max-clients", config.DefaultMaxClients, "maximum number of named users")
	fs.Int("max-name-length", config.DefaultMaxNameLength, "maximum display name length in characters")
	fs.Int("handshake-attempts", config.DefaultHandshakeAttempts, "name attempts before a connection is dropped")
	fs.Duration("write-timeout", config.DefaultWriteTimeout, "deadline for sending to one peer, 0 to disable")
	fs.Float64("message-rate", config.DefaultMessageRate, "lines per second a user may send, 0 to disable")
	fs.Int("message-burst", config.DefaultMessageBurst, "lines a user may send in a burst")
	fs.Bool("color", true, "style server messages with ANSI colors")
	fs.String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.String("log-format", config.DefaultLogFormat, "log format (text or json)")

	return cmd
}

func newServer(cfg config.Server, hub *chat.Hub, log logrus.FieldLogger) chatServer {
	if cfg.Unified() {
		return server.NewUnifiedServer(cfg.Options(), hub, log)
	}
	return tcp.New(cfg.Listen, hub, log)
}

// runServer blocks until ctx is done or the server fails to listen.
func runServer(ctx context.Context, cfg config.Server, log logrus.FieldLogger) error {
	hub := chat.NewHub(cfg.Hub(), log)
	srv := newServer(cfg, hub, log)

	err := srv.Start(ctx)
	srv.Stop()
	if err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
