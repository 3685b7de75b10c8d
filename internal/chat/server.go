package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/Tyrowin/linechat/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultQueueSize is the number of outbound messages a session may have
// pending before it is considered unresponsive.
const DefaultQueueSize = 256

const tracerName = "github.com/Tyrowin/linechat/internal/chat"

// Server owns the shared registry and history and runs the broadcast side of
// every session.
//
// Registration, chat broadcast and departure are serialized by one mutex, so
// a newly registered user sees every chat line exactly once: either in the
// history replay or live, never both and never neither. Delivery never blocks
// under that mutex; a session whose queue is full is dropped from the
// registry instead and its departure announced.
type Server struct {
	mu        sync.Mutex
	registry  *Registry
	history   *History
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	queueSize int
	wg        sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHistorySize sets how many chat lines are kept for replay.
func WithHistorySize(n int) Option {
	return func(s *Server) {
		s.history = NewHistory(n)
	}
}

// WithQueueSize sets the per-session outbound queue length.
func WithQueueSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithTracer sets the tracer used for per-line spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// NewServer creates a Server with an empty registry and history.
func NewServer(opts ...Option) *Server {
	s := &Server{
		registry:  NewRegistry(),
		history:   NewHistory(DefaultHistorySize),
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the server's client registry.
func (s *Server) Registry() *Registry { return s.registry }

// History returns the server's chat history.
func (s *Server) History() *History { return s.history }

// Connect creates a session for a freshly accepted connection and starts its
// write pump. The session has no login until it sends a login command.
func (s *Server) Connect(conn Conn, addr string) *Session {
	sess := newSession(s, conn, addr)
	s.registry.Add(sess)
	s.metrics.ConnectionOpened()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sess.writePump()
	}()

	sess.logger.Info("client connected", "clients", s.registry.Len())
	return sess
}

// Disconnect tears down sess after its connection closed. Only the first
// call for a session has any effect. A registered session's departure is
// announced to everyone still online.
func (s *Server) Disconnect(sess *Session) {
	s.mu.Lock()
	if !s.registry.Remove(sess) {
		s.mu.Unlock()
		return
	}
	login, registered := sess.Login()
	if registered {
		s.broadcastLocked(context.Background(), metrics.KindDeparture, departureMessage(login))
	}
	s.mu.Unlock()

	sess.close()
	s.metrics.ConnectionClosed(registered)

	if registered {
		sess.logger.Info("client left", "login", login, "clients", s.registry.Len())
	} else {
		sess.logger.Info("client left without logging in", "clients", s.registry.Len())
	}
}

// Online returns the logins of the registered sessions in registration order.
func (s *Server) Online() []string {
	return s.registry.Logins(s.registry.Sessions())
}

// Shutdown closes every session and waits for their write pumps to finish
// flushing, or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	sessions := s.registry.All()
	s.logger.Info("closing client sessions", "count", len(sessions))
	for _, sess := range sessions {
		sess.close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all client sessions closed")
		return nil
	case <-ctx.Done():
		s.logger.Warn("shutdown deadline reached before all sessions closed")
		return ctx.Err()
	}
}

func (s *Server) register(ctx context.Context, sess *Session, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.Claim(sess, name); err != nil {
		if !errors.Is(err, ErrNameTaken) {
			return err
		}
		s.metrics.Login(metrics.LoginTaken)
		sess.logger.Info("login rejected, name taken", "login", name)
		if derr := sess.deliver(nameTakenMessage(name)); derr != nil {
			sess.logger.Debug("could not queue name taken notice", "error", derr)
		}
		sess.close()
		return ErrNameTaken
	}

	s.metrics.Login(metrics.LoginOK)

	if lines := s.history.Snapshot(); len(lines) > 0 {
		if err := sess.deliver(strings.Join(lines, "")); err != nil {
			s.dropLocked(ctx, sess, err, false)
			return err
		}
	}
	if err := sess.deliver(welcomeMessage(name)); err != nil {
		s.dropLocked(ctx, sess, err, false)
		return err
	}
	s.broadcastLocked(ctx, metrics.KindJoin, joinMessage(name))

	sess.logger.Info("client logged in", "login", name, "users", s.registry.RegisteredLen())
	return nil
}

func (s *Server) publish(ctx context.Context, login, content string) {
	line := FormatChat(login, content)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.broadcastLocked(ctx, metrics.KindChat, line)
	s.history.Append(line)
	s.metrics.SetHistoryLines(s.history.Len())
}

func (s *Server) reportOnline(ctx context.Context, sess *Session) {
	sessions := s.registry.Sessions()

	msg := msgNobodyOnline
	if len(sessions) > 1 {
		msg = onlineMessage(s.registry.Logins(sessions))
	}
	if err := sess.deliver(msg); err != nil {
		s.evict(ctx, sess, err)
	}
}

type failedDelivery struct {
	sess *Session
	err  error
}

// broadcastLocked queues msg for every registered session. Sessions that
// cannot take the message are dropped afterwards, which may broadcast their
// departures in turn. s.mu must be held.
func (s *Server) broadcastLocked(ctx context.Context, kind, msg string) {
	ctx, span := s.tracer.Start(ctx, "chat.broadcast",
		trace.WithAttributes(attribute.String("chat.kind", kind)),
	)
	defer span.End()

	delivered := 0
	var failed []failedDelivery
	for _, peer := range s.registry.Sessions() {
		if err := peer.deliver(msg); err != nil {
			failed = append(failed, failedDelivery{sess: peer, err: err})
			continue
		}
		delivered++
	}
	span.SetAttributes(
		attribute.Int("chat.delivered", delivered),
		attribute.Int("chat.dropped", len(failed)),
	)
	s.metrics.Broadcast(kind, delivered, len(failed))

	for _, f := range failed {
		s.dropLocked(ctx, f.sess, f.err, true)
	}
}

// evict drops sess after a failed delivery outside of s.mu.
func (s *Server) evict(ctx context.Context, sess *Session, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(ctx, sess, cause, true)
}

// dropLocked closes sess and removes it from the registry right away, so its
// login is free and it no longer shows as online even while its transport is
// still draining. The later Disconnect from the transport is then a no-op.
// s.mu must be held.
func (s *Server) dropLocked(ctx context.Context, sess *Session, cause error, announce bool) {
	sess.close()
	if !s.registry.Remove(sess) {
		return
	}
	login, registered := sess.Login()
	s.metrics.ConnectionClosed(registered)

	if errors.Is(cause, ErrSessionClosed) {
		sess.logger.Debug("dropping closed session", "login", login)
	} else {
		sess.logger.Warn("dropping session after delivery failure", "login", login, "error", cause)
	}
	if registered && announce {
		s.broadcastLocked(ctx, metrics.KindDeparture, departureMessage(login))
	}
}
