package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"time"
)

// tcpConn applies a write deadline to every outbound message.
type tcpConn struct {
	net.Conn
	writeTimeout time.Duration
}

func (c *tcpConn) Write(p []byte) (int, error) {
	if c.writeTimeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}

// ServeTCP accepts line protocol clients on ln until ln is closed.
func (s *Server) ServeTCP(ctx context.Context, ln net.Listener) error {
	s.logger.Info("listening for chat clients", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Warn("temporary accept error", "error", err)
				continue
			}
			return err
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleTCPConn(ctx, conn)
		}()
	}
}

// handleTCPConn runs the read side of one TCP client. Each newline
// terminated line is one protocol message.
func (s *Server) handleTCPConn(ctx context.Context, conn net.Conn) {
	sess := s.chat.Connect(&tcpConn{Conn: conn, writeTimeout: s.cfg.WriteTimeout}, conn.RemoteAddr().String())
	defer s.chat.Disconnect(sess)

	c := s.newClient(sess, transportTCP)

	// The scanner buffer also holds the terminating newline.
	maxToken := s.cfg.MaxLineSize + 1
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(maxToken, 4096)), maxToken)
	for scanner.Scan() {
		c.handleLine(ctx, scanner.Text())
	}
	c.handleReadError(scanner.Err())
}
