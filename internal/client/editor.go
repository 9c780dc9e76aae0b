package client

import (
	"io"
)

// MaxLine is the longest line the editor accumulates.
const MaxLine = 1023

// Result is what feeding one byte to the Editor produced.
type Result int

const (
	None Result = iota
	Line
	EndOfInput
)

type editorState int

const (
	stateNormal editorState = iota
	stateEsc
	stateCSI
)

const (
	keyEOT       = 0x04
	keyBackspace = 0x08
	keyLF        = '\n'
	keyCR        = '\r'
	keyEsc       = 0x1b
	keyDelete    = 0x7f
)

// Editor is a minimal line editor for a terminal in raw mode. It echoes
// what it accepts and can temporarily hide the line being edited so that
// other output can be printed above it.
//
// Escape sequences (arrow keys and the like) are swallowed whole.
type Editor struct {
	out    io.Writer
	state  editorState
	buf    []byte
	prompt string
}

// NewEditor returns an Editor echoing to out.
func NewEditor(out io.Writer) *Editor {
	return &Editor{out: out, buf: make([]byte, 0, MaxLine)}
}

// Feed processes one input byte. On Line the completed line is returned
// and the buffer is cleared.
func (e *Editor) Feed(b byte) (Result, string) {
	switch e.state {
	case stateEsc:
		if b == '[' {
			e.state = stateCSI
		} else {
			e.state = stateNormal
		}
		return None, ""
	case stateCSI:
		// parameter and intermediate bytes until a final byte
		if b >= 0x40 && b <= 0x7e {
			e.state = stateNormal
		}
		return None, ""
	}

	switch {
	case b == keyEsc:
		e.state = stateEsc
	case b == keyCR || b == keyLF:
		line := string(e.buf)
		e.buf = e.buf[:0]
		e.write("\n")
		return Line, line
	case b == keyDelete || b == keyBackspace:
		if len(e.buf) > 0 {
			e.buf = e.buf[:len(e.buf)-1]
			e.write("\b \b")
		}
	case b == keyEOT:
		if len(e.buf) == 0 {
			return EndOfInput, ""
		}
	case b >= 0x20 && b <= 0x7e:
		if len(e.buf) < MaxLine {
			e.buf = append(e.buf, b)
			e.out.Write([]byte{b})
		}
	}
	return None, ""
}

// Hide erases the line being edited.
func (e *Editor) Hide() {
	e.write("\r\x1b[2K")
}

// Show redraws the prompt and the buffer.
func (e *Editor) Show() {
	e.write("\r" + e.prompt + string(e.buf))
}

// SetPrompt replaces the prompt. The screen is not touched.
func (e *Editor) SetPrompt(prompt string) {
	e.prompt = prompt
}

// Prompt returns the current prompt.
func (e *Editor) Prompt() string {
	return e.prompt
}

// Buffer returns the line typed so far.
func (e *Editor) Buffer() string {
	return string(e.buf)
}

// Reset clears the buffer and any partial escape sequence.
func (e *Editor) Reset() {
	e.buf = e.buf[:0]
	e.state = stateNormal
}

func (e *Editor) write(s string) {
	io.WriteString(e.out, s)
}
