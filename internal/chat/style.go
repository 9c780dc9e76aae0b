package chat

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/omochice/linechat/pkg/protocol"
)

// Styles renders the text the server sends to clients. Output goes over the
// wire rather than to a local terminal, so the color profile is fixed
// instead of being detected.
type Styles struct {
	name    lipgloss.Style
	addr    lipgloss.Style
	errTag  lipgloss.Style
	prompt  lipgloss.Style
	command lipgloss.Style
	detail  lipgloss.Style
	user    lipgloss.Style
}

// NewStyles returns ANSI styles, or plain text when color is false.
func NewStyles(color bool) *Styles {
	r := lipgloss.NewRenderer(io.Discard)
	if color {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}

	bold := r.NewStyle().Bold(true)
	return &Styles{
		name:    bold.Foreground(lipgloss.Color("13")),
		addr:    bold.Foreground(lipgloss.Color("14")),
		errTag:  bold.Foreground(lipgloss.Color("9")),
		prompt:  bold.Foreground(lipgloss.Color("11")),
		command: bold.Foreground(lipgloss.Color("10")),
		detail:  r.NewStyle().Foreground(lipgloss.Color("6")),
		user:    bold.Foreground(lipgloss.Color("8")),
	}
}

// NamePrompt is the handshake prompt.
func (st *Styles) NamePrompt() string {
	return st.prompt.Render("enter a display name") + " "
}

// LinePrompt is the prompt shown while a registered user composes a line.
func (st *Styles) LinePrompt(name string) string {
	return st.name.Render(name) + " "
}

// Chat formats a line sent by name.
func (st *Styles) Chat(name, line string) string {
	return clip(st.name.Render(name) + " " + line + "\n")
}

// Joined announces a newly registered session.
func (st *Styles) Joined(addr, name string) string {
	return st.addr.Render(addr) + " joined as " + st.name.Render(name) + "\n"
}

// Left announces a departed session.
func (st *Styles) Left(name string) string {
	return st.name.Render(name) + " disconnected\n"
}

// Error formats a notice sent to a single session.
func (st *Styles) Error(msg string) string {
	return st.errTag.Render("error") + " " + msg + "\n"
}

// Notice formats an uncolored informational line.
func (st *Styles) Notice(msg string) string {
	return msg + "\n"
}

// HelpLine formats one /help entry.
func (st *Styles) HelpLine(name, help string) string {
	return "    " + st.command.Render(pad("/"+name, 9)) + "  " + st.detail.Render(help) + "\n"
}

// UserLine formats one /users entry, with name padded to width columns.
func (st *Styles) UserLine(name string, width int, addr string) string {
	return "    " + st.user.Render(pad(name, width)) + "  " + st.detail.Render(addr) + "\n"
}

// pad right-pads s with spaces to width display columns.
func pad(s string, width int) string {
	if w := runewidth.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// clip bounds text to what fits in one frame without splitting a UTF-8
// sequence.
func clip(text string) string {
	if len(text) <= protocol.MaxPayload {
		return text
	}
	i := protocol.MaxPayload
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return text[:i]
}
