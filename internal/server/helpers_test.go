package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const ioTimeout = 2 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.HTTPAddr = ""
	cfg.RateLimit.Burst = 100
	return cfg
}

// startTCP serves the line protocol on an ephemeral port.
func startTCP(t *testing.T, cfg Config) (*Server, string) {
	t.Helper()
	srv := New(cfg, discardLogger(), prometheus.NewRegistry())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = srv.ServeTCP(context.Background(), ln)
	}()
	t.Cleanup(func() {
		_ = srv.Shutdown(ln, nil, time.Second)
	})
	return srv, ln.Addr().String()
}

// lineClient is a raw TCP chat client.
type lineClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dialTCP(t *testing.T, addr string) *lineClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, ioTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &lineClient{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *lineClient) send(t *testing.T, line string) {
	t.Helper()
	require.NoError(t, c.conn.SetWriteDeadline(time.Now().Add(ioTimeout)))
	_, err := fmt.Fprintf(c.conn, "%s\n", line)
	require.NoError(t, err)
}

func (c *lineClient) expect(t *testing.T, want string) {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(ioTimeout)))
	line, err := c.reader.ReadString('\n')
	require.NoError(t, err, "waiting for %q", want)
	require.Equal(t, want, strings.TrimSuffix(line, "\n"))
}

func (c *lineClient) expectSilence(t *testing.T) {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	line, err := c.reader.ReadString('\n')
	require.Error(t, err, "unexpected line %q", line)
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	require.True(t, ne.Timeout())
}

func (c *lineClient) expectClosed(t *testing.T) {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(ioTimeout)))
	_, err := c.reader.ReadString('\n')
	require.Error(t, err)
	var ne net.Error
	if errors.As(err, &ne) {
		require.False(t, ne.Timeout(), "connection was not closed")
	}
}

// loginTCP registers name and consumes the welcome and self join lines.
func loginTCP(t *testing.T, addr, name string) *lineClient {
	t.Helper()
	c := dialTCP(t, addr)
	c.send(t, "login:"+name)
	c.expect(t, "Привет, "+name+"!")
	c.expect(t, "Встречайте нового пользователя: "+name)
	return c
}

// startHTTP serves srv's routes on an httptest server.
func startHTTP(t *testing.T, srv *Server) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialWS(t *testing.T, ts *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: ioTimeout}
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	conn, resp, err := dialer.Dial(wsURL(ts), headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func expectWS(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(ioTimeout)))
	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err, "waiting for %q", want)
	require.Equal(t, websocket.TextMessage, messageType)
	require.Equal(t, want, strings.TrimSuffix(string(data), "\n"))
}
