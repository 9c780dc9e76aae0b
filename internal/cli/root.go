// Package cli implements the linechat command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Streams are the standard streams a command works with.
type Streams struct {
	In  *os.File
	Out io.Writer
	Err io.Writer
}

// NewRootCommand returns the linechat command with its subcommands.
func NewRootCommand(s Streams) *cobra.Command {
	root := &cobra.Command{
		Use:   "linechat",
		Short: "Line-oriented terminal chat over TCP",
		Long: "linechat runs a chat server that broadcasts lines between everyone " +
			"connected, and a terminal client to join it.",
		// Execute prints usage itself so that it goes to stderr.
		SilenceUsage: true,
	}
	if s.In != nil {
		root.SetIn(s.In)
	}
	root.SetOut(s.Out)
	root.SetErr(s.Err)

	root.AddCommand(newServeCommand(s))
	root.AddCommand(newJoinCommand(s))
	return root
}

// Execute runs the command line with args until it finishes or ctx is
// done. Malformed arguments print the usage of the failing command on
// the error stream.
func Execute(ctx context.Context, args []string, s Streams) error {
	root := NewRootCommand(s)
	root.SetArgs(args)
	cmd, err := root.ExecuteContextC(ctx)
	if err != nil && cmd != nil && !cmd.SilenceUsage {
		fmt.Fprintln(cmd.ErrOrStderr(), cmd.UsageString())
	}
	return err
}
