package client

import (
	"bytes"
	"io"
	"os"

	"golang.org/x/term"
)

// Terminal puts stdin into raw mode when it is a terminal and restores it
// afterwards.
type Terminal struct {
	fd    int
	state *term.State
}

// OpenTerminal switches in to raw mode if it is a terminal. Otherwise the
// returned Terminal does nothing.
func OpenTerminal(in *os.File) (*Terminal, error) {
	t := &Terminal{fd: int(in.Fd())}
	if !term.IsTerminal(t.fd) {
		return t, nil
	}
	state, err := term.MakeRaw(t.fd)
	if err != nil {
		return nil, err
	}
	t.state = state
	return t, nil
}

// Raw reports whether raw mode is active.
func (t *Terminal) Raw() bool {
	return t.state != nil
}

// Restore leaves raw mode. It is safe to call more than once.
func (t *Terminal) Restore() error {
	if t.state == nil {
		return nil
	}
	state := t.state
	t.state = nil
	return term.Restore(t.fd, state)
}

// Output wraps w so that newlines are written as CRLF while raw mode
// disables the terminal's own translation.
func (t *Terminal) Output(w io.Writer) io.Writer {
	if !t.Raw() {
		return w
	}
	return crlfWriter{w}
}

// IsTerminal reports whether f is a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if bytes.IndexByte(p, '\n') < 0 {
		return c.w.Write(p)
	}
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
