package server

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"os"
	"time"
)

type protocolType int

const (
	protocolTCP protocolType = iota
	protocolHTTP
)

func (p protocolType) String() string {
	if p == protocolHTTP {
		return "websocket"
	}
	return "tcp"
}

var httpMethods = [][]byte{
	[]byte("GET "),
	[]byte("POST"),
	[]byte("PUT "),
	[]byte("HEAD"),
	[]byte("OPTI"), // OPTIONS
	[]byte("PATC"), // PATCH
	[]byte("DELE"), // DELETE
	[]byte("CONN"), // CONNECT
}

// detectProtocol peeks at the first bytes to determine protocol type.
//
// Chat clients wait for the server to speak first, so a connection that
// stays silent for timeout is raw TCP. HTTP clients send their request
// line immediately.
func detectProtocol(conn net.Conn, timeout time.Duration) (protocolType, *bufio.Reader, error) {
	reader := bufio.NewReader(conn)

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return protocolTCP, reader, err
	}
	peek, err := reader.Peek(4)
	if derr := conn.SetReadDeadline(time.Time{}); derr != nil {
		return protocolTCP, reader, derr
	}
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return protocolTCP, reader, nil
		}
		return protocolTCP, reader, err
	}

	for _, m := range httpMethods {
		if bytes.HasPrefix(peek, m) {
			return protocolHTTP, reader, nil
		}
	}

	// Default to TCP for binary data
	return protocolTCP, reader, nil
}
