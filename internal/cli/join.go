package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/omochice/linechat/internal/client"
	"github.com/omochice/linechat/internal/config"
	"github.com/omochice/linechat/internal/logging"
)

func newJoinCommand(s Streams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a chat server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := config.NewJoinViper()
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			j, err := config.LoadJoin(v)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			err = runJoin(cmd.Context(), j, s)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	fs := cmd.Flags()
	fs.String("host", config.DefaultHost, "server host name or IP address")
	fs.String("port", config.DefaultPort, "server port")
	fs.Bool("websocket", false, "connect over WebSocket")
	fs.Bool("no-color", false, "strip colors from server messages")

	return cmd
}

func runJoin(ctx context.Context, j config.Join, s Streams) error {
	conn, err := client.Dial(ctx, j.Target())
	if err != nil {
		return err
	}
	defer conn.Close()

	term, err := client.OpenTerminal(s.In)
	if err != nil {
		return err
	}
	defer term.Restore()

	c := client.New(conn, s.In, term.Output(s.Out), client.Options{
		Plain: j.NoColor || !isTerminal(s.Out),
		Log:   logging.Discard(),
	})
	return c.Run(ctx)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && client.IsTerminal(f)
}
