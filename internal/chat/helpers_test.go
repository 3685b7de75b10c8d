package chat

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const waitTimeout = time.Second

// fakeConn records every written line and can be made to stall writes.
type fakeConn struct {
	lines    chan string
	stall    chan struct{}
	mu       sync.Mutex
	closed   bool
	closedCh chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		lines:    make(chan string, 1024),
		closedCh: make(chan struct{}),
	}
}

func newStalledConn() *fakeConn {
	c := newFakeConn()
	c.stall = make(chan struct{})
	return c
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.stall != nil {
		<-c.stall
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, net.ErrClosed
	}
	for _, line := range strings.SplitAfter(string(p), "\n") {
		if line != "" {
			c.lines <- strings.TrimSuffix(line, "\n")
		}
	}
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closedCh)
	}
	return nil
}

func (c *fakeConn) release() {
	if c.stall != nil {
		close(c.stall)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	srv := NewServer(append([]Option{WithLogger(discardLogger())}, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func connect(t *testing.T, srv *Server) (*Session, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	return srv.Connect(conn, "127.0.0.1:0"), conn
}

// login connects a client, registers it and consumes its own welcome and
// join lines. Join lines delivered to peers are left for the caller.
func login(t *testing.T, srv *Server, name string) (*Session, *fakeConn) {
	t.Helper()
	sess, conn := connect(t, srv)
	require.NoError(t, sess.HandleLine(context.Background(), "login:"+name))
	expectLine(t, conn, "Привет, "+name+"!")
	expectLine(t, conn, "Встречайте нового пользователя: "+name)
	return sess, conn
}

func say(t *testing.T, sess *Session, line string) {
	t.Helper()
	require.NoError(t, sess.HandleLine(context.Background(), line))
}

func expectLine(t *testing.T, c *fakeConn, want string) {
	t.Helper()
	select {
	case got := <-c.lines:
		require.Equal(t, want, got)
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func expectNoLine(t *testing.T, c *fakeConn) {
	t.Helper()
	select {
	case got := <-c.lines:
		t.Fatalf("unexpected line %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func expectClosed(t *testing.T, c *fakeConn) {
	t.Helper()
	select {
	case <-c.closedCh:
	case <-time.After(waitTimeout):
		t.Fatal("connection was not closed")
	}
}

// waitQueued waits until sess has exactly n messages waiting in its queue.
func waitQueued(t *testing.T, sess *Session, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(sess.send) == n }, waitTimeout, time.Millisecond)
}
