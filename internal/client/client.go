// Package client implements the interactive chat client: a single event
// loop multiplexing server frames against keystrokes, around a line editor.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/x/ansi"
	"github.com/sirupsen/logrus"

	"github.com/omochice/linechat/pkg/protocol"
)

// Client renders server output and lets the user compose lines without the
// two corrupting each other.
type Client struct {
	conn   Conn
	in     io.Reader
	out    io.Writer
	editor *Editor
	plain  bool
	log    logrus.FieldLogger
}

// Options configures a Client.
type Options struct {
	// Plain strips ANSI sequences from server output.
	Plain bool
	Log   logrus.FieldLogger
}

// New creates a client reading keystrokes from in and writing to out.
func New(conn Conn, in io.Reader, out io.Writer, opts Options) *Client {
	log := opts.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Client{
		conn:   conn,
		in:     in,
		out:    out,
		editor: NewEditor(out),
		plain:  opts.Plain,
		log:    log,
	}
}

type frameEvent struct {
	frame protocol.Frame
	err   error
}

type keyEvent struct {
	data []byte
	err  error
}

// Run processes events until the server closes the connection, the user
// ends input or ctx is done. A closed connection is not an error.
func (c *Client) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	frames := make(chan frameEvent)
	keys := make(chan keyEvent)
	go c.pumpFrames(frames, done)
	go c.pumpKeys(keys, done)

	editing := false
	for {
		select {
		case <-ctx.Done():
			if editing {
				c.editor.Hide()
			}
			return ctx.Err()

		case ev := <-frames:
			if ev.err != nil {
				if editing {
					c.editor.Hide()
				}
				return c.closed(ev.err)
			}
			editing = c.handleFrame(ev.frame, editing)

		case ev := <-keys:
			if ev.err != nil {
				// stdin is gone, which is the same as the user ending input
				c.log.WithError(ev.err).Debug("input closed")
				return c.endInput(editing)
			}
			if !editing {
				continue
			}
			for _, b := range ev.data {
				res, line := c.editor.Feed(b)
				switch res {
				case Line:
					editing = false
					if err := c.conn.SendLine([]byte(line)); err != nil {
						return fmt.Errorf("send line: %w", err)
					}
				case EndOfInput:
					return c.endInput(editing)
				}
				if !editing {
					break
				}
			}
		}
	}
}

func (c *Client) handleFrame(f protocol.Frame, editing bool) bool {
	text := c.render(f.Payload)
	switch f.Type {
	case protocol.FrameMessage:
		if editing {
			c.editor.Hide()
			io.WriteString(c.out, text)
			c.editor.Show()
		} else {
			io.WriteString(c.out, text)
		}
	case protocol.FramePrompt:
		c.editor.SetPrompt(text)
		if !editing {
			c.editor.Reset()
		} else {
			c.editor.Hide()
		}
		c.editor.Show()
		return true
	default:
		c.log.WithField("type", f.Type).Debug("ignoring frame")
	}
	return editing
}

func (c *Client) endInput(editing bool) error {
	if editing {
		c.editor.Hide()
	}
	if err := c.conn.CloseWrite(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

func (c *Client) closed(err error) error {
	switch {
	case errors.Is(err, io.EOF):
		io.WriteString(c.out, "connection closed\n")
		return nil
	case protocol.IsProtocolError(err):
		fmt.Fprintf(c.out, "protocol error: %v\n", err)
		return err
	default:
		fmt.Fprintf(c.out, "connection error: %v\n", err)
		return err
	}
}

func (c *Client) render(payload []byte) string {
	if c.plain {
		return ansi.Strip(string(payload))
	}
	return string(payload)
}

func (c *Client) pumpFrames(events chan<- frameEvent, done <-chan struct{}) {
	for {
		f, err := c.conn.ReadFrame()
		select {
		case events <- frameEvent{frame: f, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) pumpKeys(events chan<- keyEvent, done <-chan struct{}) {
	buf := make([]byte, 256)
	for {
		n, err := c.in.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			select {
			case events <- keyEvent{data: data}:
			case <-done:
				return
			}
		}
		if err != nil {
			select {
			case events <- keyEvent{err: err}:
			case <-done:
			}
			return
		}
	}
}
