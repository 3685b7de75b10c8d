package server

import (
	"net/http"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const allowedOrigin = "http://localhost:8080"

func TestWebSocketLoginAndChat(t *testing.T) {
	srv, _ := startTCP(t, testConfig())
	ts := startHTTP(t, srv)

	conn, _, err := dialWS(t, ts, allowedOrigin)
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("login:alice\n")))
	expectWS(t, conn, "Привет, alice!")
	expectWS(t, conn, "Встречайте нового пользователя: alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	expectWS(t, conn, "alice: hello")
}

func TestWebSocketAndTCPShareOneChat(t *testing.T) {
	srv, addr := startTCP(t, testConfig())
	ts := startHTTP(t, srv)

	bob := loginTCP(t, addr, "bob")

	alice, _, err := dialWS(t, ts, allowedOrigin)
	require.NoError(t, err)
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("login:alice")))
	expectWS(t, alice, "Привет, alice!")
	expectWS(t, alice, "Встречайте нового пользователя: alice")
	bob.expect(t, "Встречайте нового пользователя: alice")

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("users:online")))
	expectWS(t, alice, "Сейчас онлайн:\nbob\nalice")

	bob.send(t, "hi alice")
	bob.expect(t, "bob: hi alice")
	expectWS(t, alice, "bob: hi alice")

	require.NoError(t, alice.Close())
	bob.expect(t, "alice покинул чат")
}

func TestWebSocketNameTakenClosesSocket(t *testing.T) {
	srv, addr := startTCP(t, testConfig())
	ts := startHTTP(t, srv)
	_ = loginTCP(t, addr, "alice")

	conn, _, err := dialWS(t, ts, allowedOrigin)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("login:alice")))
	expectWS(t, conn, "Логин alice занят, попробуйте другой")

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}

func TestWebSocketRejectsDisallowedOrigin(t *testing.T) {
	srv, _ := startTCP(t, testConfig())
	ts := startHTTP(t, srv)

	_, resp, err := dialWS(t, ts, "http://evil.example")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketRejectsMissingOrigin(t *testing.T) {
	srv, _ := startTCP(t, testConfig())
	ts := startHTTP(t, srv)

	_, resp, err := dialWS(t, ts, "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestFrameLines(t *testing.T) {
	tests := []struct {
		frame string
		want  []string
	}{
		{"hello", []string{"hello"}},
		{"hello\n", []string{"hello"}},
		{"hello\r\n", []string{"hello"}},
		{"hello\n\n", []string{"hello", ""}},
		{"hi\r\nbob: x", []string{"hi", "bob: x"}},
		{"", []string{""}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, frameLines(tt.frame), "frame %q", tt.frame)
	}
}

func TestWebSocketFrameCannotImpersonate(t *testing.T) {
	srv, addr := startTCP(t, testConfig())
	ts := startHTTP(t, srv)

	bob := loginTCP(t, addr, "bob")

	alice, _, err := dialWS(t, ts, allowedOrigin)
	require.NoError(t, err)
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("login:alice")))
	expectWS(t, alice, "Привет, alice!")
	expectWS(t, alice, "Встречайте нового пользователя: alice")
	bob.expect(t, "Встречайте нового пользователя: alice")

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("hi\nbob: send me your password")))
	bob.expect(t, "alice: hi")
	bob.expect(t, "alice: bob: send me your password")
	bob.expectSilence(t)
}
