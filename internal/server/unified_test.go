package server_test

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/linechat/internal/chat"
	"github.com/omochice/linechat/internal/server"
	"github.com/omochice/linechat/pkg/protocol"
)

func startServer(t *testing.T, opts server.Options) *server.UnifiedServer {
	t.Helper()
	log, _ := test.NewNullLogger()
	hub := chat.NewHub(chat.DefaultHubConfig(), log)
	if opts.Address == "" {
		opts.Address = "127.0.0.1:0"
	}
	if opts.SniffTimeout == 0 {
		opts.SniffTimeout = 50 * time.Millisecond
	}
	srv := server.NewUnifiedServer(opts, hub, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(context.Background()) }()
	select {
	case <-srv.Ready():
	case err := <-errCh:
		t.Fatalf("server failed to start: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}
	t.Cleanup(srv.Stop)
	return srv
}

// peer is a test client speaking the chat protocol over either transport.
type peer interface {
	send(t *testing.T, line string)
	next(t *testing.T) protocol.Frame
}

type tcpPeer struct{ conn net.Conn }

func dialTCP(t *testing.T, addr string) *tcpPeer {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &tcpPeer{conn: conn}
}

func (p *tcpPeer) send(t *testing.T, line string) {
	t.Helper()
	require.NoError(t, protocol.WriteLine(p.conn, []byte(line)))
}

func (p *tcpPeer) next(t *testing.T) protocol.Frame {
	t.Helper()
	require.NoError(t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	f, err := protocol.ReadFrame(p.conn, 0)
	require.NoError(t, err)
	return f
}

type wsPeer struct{ conn *websocket.Conn }

func dialWS(t *testing.T, url string) *wsPeer {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &wsPeer{conn: conn}
}

func (p *wsPeer) send(t *testing.T, line string) {
	t.Helper()
	require.NoError(t, p.conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeLine([]byte(line))))
}

func (p *wsPeer) next(t *testing.T) protocol.Frame {
	t.Helper()
	require.NoError(t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	typ, data, err := p.conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, typ)
	f, err := protocol.DecodeFrame(data, 0)
	require.NoError(t, err)
	return f
}

// join completes the handshake and consumes frames up to the first line
// prompt.
func join(t *testing.T, p peer, name string) {
	t.Helper()
	f := p.next(t)
	require.Equal(t, protocol.FramePrompt, f.Type)
	p.send(t, name)
	waitFor(t, p, protocol.FramePrompt, "")
}

// waitFor reads frames until one of type typ contains text and returns its
// plain text.
func waitFor(t *testing.T, p peer, typ protocol.FrameType, text string) string {
	t.Helper()
	for {
		f := p.next(t)
		plain := ansi.Strip(string(f.Payload))
		if f.Type == typ && strings.Contains(plain, text) {
			return plain
		}
	}
}

func TestUnifiedServer_TCPClient(t *testing.T) {
	srv := startServer(t, server.Options{WebSocket: true})

	alice := dialTCP(t, srv.Addr())
	f := alice.next(t)
	assert.Equal(t, protocol.FramePrompt, f.Type)
	assert.Equal(t, "enter a display name ", ansi.Strip(string(f.Payload)))
	assert.Equal(t, 1, srv.ClientCount())
}

func TestUnifiedServer_WebSocketClient(t *testing.T) {
	srv := startServer(t, server.Options{WebSocket: true})

	bob := dialWS(t, "ws://"+srv.Addr()+"/")
	join(t, bob, "bob")
	assert.Equal(t, 1, srv.ClientCount())
}

func TestUnifiedServer_CrossProtocolBroadcast(t *testing.T) {
	srv := startServer(t, server.Options{WebSocket: true})

	alice := dialTCP(t, srv.Addr())
	join(t, alice, "alice")
	bob := dialWS(t, "ws://"+srv.Addr()+"/")
	join(t, bob, "bob")
	waitFor(t, alice, protocol.FrameMessage, "joined as bob")

	alice.send(t, "hi")
	assert.Equal(t, "alice hi\n", waitFor(t, bob, protocol.FrameMessage, "alice"))

	bob.send(t, "hello")
	assert.Equal(t, "bob hello\n", waitFor(t, alice, protocol.FrameMessage, "bob hello"))
}

func TestUnifiedServer_DedicatedWebSocketListener(t *testing.T) {
	srv := startServer(t, server.Options{WebSocket: true, WSAddress: "127.0.0.1:0"})
	require.NotEmpty(t, srv.WSAddr())

	alice := dialTCP(t, srv.Addr())
	join(t, alice, "alice")
	carol := dialWS(t, "ws://"+srv.WSAddr()+"/ws")
	join(t, carol, "carol")

	carol.send(t, "hey")
	assert.Equal(t, "carol hey\n", waitFor(t, alice, protocol.FrameMessage, "carol hey"))
}

func TestUnifiedServer_WebSocketDisabled(t *testing.T) {
	srv := startServer(t, server.Options{})

	_, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/", nil)
	assert.Error(t, err)

	alice := dialTCP(t, srv.Addr())
	join(t, alice, "alice")
}

func TestUnifiedServer_Stop(t *testing.T) {
	srv := startServer(t, server.Options{WebSocket: true})
	addr := srv.Addr()

	alice := dialTCP(t, addr)
	join(t, alice, "alice")

	srv.Stop()
	assert.Equal(t, 0, srv.ClientCount())

	_, err := net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err)
}

func TestUnifiedServer_ContextCancel(t *testing.T) {
	log, _ := test.NewNullLogger()
	hub := chat.NewHub(chat.DefaultHubConfig(), log)
	srv := server.NewUnifiedServer(server.Options{Address: "127.0.0.1:0"}, hub, log)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()
	<-srv.Ready()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	srv.Stop()
}

func TestUnifiedServer_ListenError(t *testing.T) {
	log, _ := test.NewNullLogger()
	hub := chat.NewHub(chat.DefaultHubConfig(), log)

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	srv := server.NewUnifiedServer(server.Options{Address: busy.Addr().String()}, hub, log)
	assert.Error(t, srv.Start(context.Background()))
}
