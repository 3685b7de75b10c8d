package chat

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/Tyrowin/linechat/internal/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Conn is the writable side of a client connection. Only the session's write
// pump writes to it, and the pump closes it when the session ends.
type Conn interface {
	io.Writer
	Close() error
}

// Session is the server-side state of one connected client. It starts
// without a login, may claim one exactly once, and ends when its connection
// goes away.
type Session struct {
	id     string
	addr   string
	conn   Conn
	server *Server
	logger *slog.Logger
	send   chan []byte

	mu         sync.Mutex
	login      string
	registered bool
	closed     bool
}

func newSession(srv *Server, conn Conn, addr string) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		addr:   addr,
		conn:   conn,
		server: srv,
		logger: srv.logger.With("session", id, "addr", addr),
		send:   make(chan []byte, srv.queueSize),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Addr returns the remote address the session was accepted from.
func (s *Session) Addr() string { return s.addr }

// Login returns the session's login and whether it has registered.
func (s *Session) Login() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.login, s.registered
}

// Closed reports whether the session no longer accepts output.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) setLogin(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.registered {
		return ErrAlreadyRegistered
	}
	s.login = name
	s.registered = true
	return nil
}

// HandleLine runs one decoded inbound line through the protocol state
// machine. The returned error describes a rejected line (ErrBadLogin,
// ErrNameTaken, ErrSessionClosed); it never means the server is unhealthy.
func (s *Session) HandleLine(ctx context.Context, line string) error {
	if s.Closed() {
		return ErrSessionClosed
	}

	cmd := ParseCommand(line)
	ctx, span := s.server.tracer.Start(ctx, "chat."+cmd.Kind.String(),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("chat.session_id", s.id)),
	)
	defer span.End()

	var err error
	if login, ok := s.Login(); ok {
		err = s.handleRegistered(ctx, login, cmd)
	} else {
		err = s.handleConnected(ctx, cmd)
	}

	if login, ok := s.Login(); ok {
		span.SetAttributes(attribute.String("chat.login", login))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Session) handleConnected(ctx context.Context, cmd Command) error {
	if cmd.Kind != CommandLogin || cmd.Name == "" {
		s.server.metrics.Login(metrics.LoginRejected)
		s.logger.Debug("rejected line before login", "line", cmd.Text)
		if err := s.deliver(msgBadLogin); err != nil {
			s.server.evict(ctx, s, err)
		}
		return ErrBadLogin
	}
	return s.server.register(ctx, s, cmd.Name)
}

func (s *Session) handleRegistered(ctx context.Context, login string, cmd Command) error {
	if cmd.Kind == CommandOnline {
		s.server.reportOnline(ctx, s)
		return nil
	}
	s.server.publish(ctx, login, cmd.Text)
	return nil
}

// deliver queues msg without blocking.
func (s *Session) deliver(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	select {
	case s.send <- []byte(msg):
		return nil
	default:
		return ErrQueueFull
	}
}

// close stops accepting output. Queued messages are still written before
// the pump closes the connection. It reports whether this call closed the
// session.
func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.closed = true
	close(s.send)
	return true
}

func (s *Session) writePump() {
	defer func() {
		if err := s.conn.Close(); err != nil && !IsExpectedCloseError(err) {
			s.logger.Error("error closing connection", "error", err)
		}
	}()

	broken := false
	for msg := range s.send {
		if broken {
			continue
		}
		if _, err := s.conn.Write(msg); err != nil {
			broken = true
			if !IsExpectedCloseError(err) {
				s.logger.Warn("write failed", "error", err)
			}
			s.close()
		}
	}
}
