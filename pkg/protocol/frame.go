// Package protocol implements the length-prefixed frame codec shared by the
// chat server and client.
//
// Server to client frames carry a type byte:
//
//	magic (4, BE) | length (4, BE) | type (1) | payload (length)
//
// Client to server frames are always a line of input and omit it:
//
//	magic (4, BE) | length (4, BE) | payload (length)
package protocol

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/samber/oops"
)

// Magic is the fixed value every frame starts with ("CHAT").
const Magic uint32 = 0x43484154

// MaxPayload is the largest payload a peer may announce.
const MaxPayload = 4096

const headerLen = 8

// FrameType identifies the payload of a server to client frame.
type FrameType byte

const (
	FrameMessage FrameType = 'm'
	FramePrompt  FrameType = 'p'
)

// String returns the string representation of FrameType
func (t FrameType) String() string {
	switch t {
	case FrameMessage:
		return "MESSAGE"
	case FramePrompt:
		return "PROMPT"
	default:
		return "UNKNOWN"
	}
}

// Frame is one decoded server to client frame.
type Frame struct {
	Type    FrameType
	Payload []byte
}

var (
	// ErrBadMagic is returned when a frame does not start with Magic.
	ErrBadMagic = errors.New("invalid magic number")
	// ErrFrameTooLarge is returned when the announced length exceeds the limit.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrMalformed is returned by the Decode functions when a message does
	// not hold exactly one frame.
	ErrMalformed = errors.New("malformed frame")
)

// IsProtocolError reports whether err is a framing violation, as opposed to
// the stream closing or an I/O failure.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrBadMagic) ||
		errors.Is(err, ErrFrameTooLarge) ||
		errors.Is(err, ErrMalformed)
}

// Encode builds a typed server to client frame.
func Encode(t FrameType, payload []byte) []byte {
	buf := make([]byte, headerLen+1+len(payload))
	putHeader(buf, len(payload))
	buf[headerLen] = byte(t)
	copy(buf[headerLen+1:], payload)
	return buf
}

// EncodeLine builds an untyped client to server frame.
func EncodeLine(payload []byte) []byte {
	buf := make([]byte, headerLen+len(payload))
	putHeader(buf, len(payload))
	copy(buf[headerLen:], payload)
	return buf
}

// WriteFrame encodes a typed frame and writes it with a single Write call.
func WriteFrame(w io.Writer, t FrameType, payload []byte) error {
	_, err := w.Write(Encode(t, payload))
	return err
}

// WriteLine encodes an untyped frame and writes it with a single Write call.
func WriteLine(w io.Writer, payload []byte) error {
	_, err := w.Write(EncodeLine(payload))
	return err
}

// ReadFrame reads one typed frame. It returns io.EOF once the stream is
// closed, even when that happens in the middle of a frame.
func ReadFrame(r io.Reader, limit int) (Frame, error) {
	var hdr [headerLen + 1]byte
	if err := readFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	n, err := checkHeader(hdr[:headerLen], limit)
	if err != nil {
		return Frame{}, err
	}
	payload := make([]byte, n)
	if err := readFull(r, payload); err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameType(hdr[headerLen]), Payload: payload}, nil
}

// ReadLine reads one untyped frame and returns its payload.
func ReadLine(r io.Reader, limit int) ([]byte, error) {
	var hdr [headerLen]byte
	if err := readFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n, err := checkHeader(hdr[:], limit)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, n)
	if err := readFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// DecodeFrame decodes a typed frame from b, which must hold exactly one
// frame. Transports that carry one frame per message use it instead of
// ReadFrame.
func DecodeFrame(b []byte, limit int) (Frame, error) {
	if len(b) < headerLen+1 {
		return Frame{}, malformed(len(b), headerLen+1)
	}
	n, err := checkHeader(b[:headerLen], limit)
	if err != nil {
		return Frame{}, err
	}
	if want := headerLen + 1 + n; len(b) != want {
		return Frame{}, malformed(len(b), want)
	}
	return Frame{Type: FrameType(b[headerLen]), Payload: b[headerLen+1:]}, nil
}

// DecodeLine decodes an untyped frame from b, which must hold exactly one
// frame.
func DecodeLine(b []byte, limit int) ([]byte, error) {
	if len(b) < headerLen {
		return nil, malformed(len(b), headerLen)
	}
	n, err := checkHeader(b[:headerLen], limit)
	if err != nil {
		return nil, err
	}
	if want := headerLen + n; len(b) != want {
		return nil, malformed(len(b), want)
	}
	return b[headerLen:], nil
}

func malformed(got, want int) error {
	return oops.
		In("protocol").
		With("size", got, "expected", want).
		Wrapf(ErrMalformed, "decode message")
}

func putHeader(buf []byte, n int) {
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	binary.BigEndian.PutUint32(buf[4:8], uint32(n))
}

func checkHeader(hdr []byte, limit int) (int, error) {
	if limit <= 0 || limit > MaxPayload {
		limit = MaxPayload
	}
	magic := binary.BigEndian.Uint32(hdr[0:4])
	if magic != Magic {
		return 0, oops.
			In("protocol").
			With("magic", magic).
			Wrapf(ErrBadMagic, "decode header")
	}
	n := binary.BigEndian.Uint32(hdr[4:8])
	if uint64(n) > uint64(limit) {
		return 0, oops.
			In("protocol").
			With("length", n, "max", limit).
			Wrapf(ErrFrameTooLarge, "decode header")
	}
	return int(n), nil
}

// readFull folds a short read into io.EOF: a peer that vanishes mid-frame
// is a closed connection, not a protocol violation.
func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return err
}
