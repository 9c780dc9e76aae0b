package chat_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"

	"github.com/omochice/linechat/internal/chat"
	"github.com/omochice/linechat/pkg/protocol"
)

func TestStyles_Plain(t *testing.T) {
	st := chat.NewStyles(false)

	assert.Equal(t, "enter a display name ", st.NamePrompt())
	assert.Equal(t, "alice ", st.LinePrompt("alice"))
	assert.Equal(t, "alice hi\n", st.Chat("alice", "hi"))
	assert.Equal(t, "127.0.0.1:5000 joined as alice\n", st.Joined("127.0.0.1:5000", "alice"))
	assert.Equal(t, "alice disconnected\n", st.Left("alice"))
	assert.Equal(t, "error slow down\n", st.Error("slow down"))
	assert.Equal(t, "bye\n", st.Notice("bye"))
}

func TestStyles_ColorStripsToPlain(t *testing.T) {
	plain := chat.NewStyles(false)
	color := chat.NewStyles(true)

	got := color.Chat("alice", "hi")
	assert.Contains(t, got, "\x1b[")
	assert.Equal(t, plain.Chat("alice", "hi"), ansi.Strip(got))
	assert.Equal(t, plain.Joined("1.2.3.4:5", "bob"), ansi.Strip(color.Joined("1.2.3.4:5", "bob")))
	assert.Equal(t, plain.Error("x"), ansi.Strip(color.Error("x")))
}

func TestStyles_UserLinePadsByDisplayWidth(t *testing.T) {
	st := chat.NewStyles(false)
	assert.Equal(t, "    日本  1.2.3.4:5\n", st.UserLine("日本", 4, "1.2.3.4:5"))
	assert.Equal(t, "    ab    1.2.3.4:5\n", st.UserLine("ab", 4, "1.2.3.4:5"))
}

func TestStyles_ClipKeepsRunesWhole(t *testing.T) {
	st := chat.NewStyles(false)

	// "ab " puts every two-byte rune on an odd offset, so byte 4096 falls
	// inside one
	got := st.Chat("ab", strings.Repeat("é", 3000))
	assert.Len(t, got, protocol.MaxPayload-1)
	assert.True(t, utf8.ValidString(got))

	ascii := st.Chat("ab", strings.Repeat("x", 5000))
	assert.Len(t, ascii, protocol.MaxPayload)
}
