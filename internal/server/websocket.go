package server

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	closeGrace = time.Second
)

// wsConn carries the line protocol over a WebSocket: every outbound message
// becomes one text frame.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	done         chan struct{}
	closeOnce    sync.Once
}

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		conn:         conn,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return 0, err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a close frame and closes the socket.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		err = c.conn.Close()
	})
	return err
}

// keepAlive pings the peer until the connection is closed. WriteControl may
// run concurrently with the session's write pump.
func (c *wsConn) keepAlive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
		}
	}
}

// setupReadConnection configures the read limit, read deadline and pong
// handler.
func (s *Server) setupReadConnection(conn *websocket.Conn, c *client) {
	conn.SetReadLimit(int64(s.cfg.MaxLineSize))
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("error setting initial read deadline", "error", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// serveWebSocket runs the read side of one WebSocket client. Each line of a
// text frame is one protocol line; other frame types are ignored.
func (s *Server) serveWebSocket(ctx context.Context, conn *websocket.Conn, addr string) {
	wc := newWSConn(conn, s.cfg.WriteTimeout)
	sess := s.chat.Connect(wc, addr)
	defer s.chat.Disconnect(sess)

	c := s.newClient(sess, transportWebSocket)
	s.setupReadConnection(conn, c)
	go wc.keepAlive(pingPeriod)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		for _, line := range frameLines(string(data)) {
			c.handleLine(ctx, line)
		}
	}
}
