package chat

import (
	"context"
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"

	"github.com/omochice/linechat/pkg/protocol"
)

// CommandResult tells the message loop what to do after a command.
type CommandResult int

const (
	CommandContinue CommandResult = iota
	CommandQuit
)

// CommandFunc handles one command issued by s. args is the rest of the line
// after the command token.
type CommandFunc func(ctx context.Context, s *Session, args string) (CommandResult, error)

// Command is one entry of the command table.
type Command struct {
	Name    string
	Help    string
	Handler CommandFunc
}

// Commands dispatches "/" lines. Replies only ever go to the issuing
// session and no command mutates the registry.
type Commands struct {
	registry *Registry
	styles   *Styles
	table    []Command
}

// NewCommands returns a dispatcher with the built-in help, users and quit
// commands.
func NewCommands(registry *Registry, styles *Styles) *Commands {
	c := &Commands{registry: registry, styles: styles}
	c.Register("help", "show this menu", c.help)
	c.Register("users", "list connected users", c.users)
	c.Register("quit", "disconnect", quit)
	return c
}

// Register adds a command, replacing an existing one with the same name.
func (c *Commands) Register(name, help string, fn CommandFunc) {
	for i := range c.table {
		if c.table[i].Name == name {
			c.table[i] = Command{Name: name, Help: help, Handler: fn}
			return
		}
	}
	c.table = append(c.table, Command{Name: name, Help: help, Handler: fn})
}

// List returns the command table in registration order.
func (c *Commands) List() []Command {
	return append([]Command(nil), c.table...)
}

// IsCommand reports whether line should be dispatched rather than broadcast.
func IsCommand(line string) bool {
	return strings.HasPrefix(line, "/")
}

// Dispatch runs the command named by line, which must start with "/". An
// empty or unknown command is answered with an error notice.
func (c *Commands) Dispatch(ctx context.Context, s *Session, line string) (CommandResult, error) {
	token, args := splitCommand(strings.TrimPrefix(line, "/"))
	if token == "" {
		return CommandContinue, reply(ctx, s, c.styles.Error("invalid command"))
	}
	for _, cmd := range c.table {
		if cmd.Name == token {
			return cmd.Handler(ctx, s, args)
		}
	}
	return CommandContinue, reply(ctx, s, c.styles.Error("unknown command"))
}

func (c *Commands) help(ctx context.Context, s *Session, _ string) (CommandResult, error) {
	for _, cmd := range c.table {
		if err := reply(ctx, s, c.styles.HelpLine(cmd.Name, cmd.Help)); err != nil {
			return CommandContinue, err
		}
	}
	return CommandContinue, nil
}

func (c *Commands) users(ctx context.Context, s *Session, _ string) (CommandResult, error) {
	peers := c.registry.Snapshot(nil)

	width := 0
	for _, p := range peers {
		width = max(width, runewidth.StringWidth(p.Name))
	}
	for _, p := range peers {
		line := c.styles.UserLine(p.Name, width, p.session.Addr())
		if err := reply(ctx, s, line); err != nil {
			return CommandContinue, err
		}
	}
	return CommandContinue, nil
}

func quit(context.Context, *Session, string) (CommandResult, error) {
	return CommandQuit, nil
}

func splitCommand(s string) (token, args string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func reply(ctx context.Context, s *Session, text string) error {
	return s.Conn.Send(ctx, protocol.FrameMessage, []byte(clip(text)))
}
