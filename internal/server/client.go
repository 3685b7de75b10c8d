// Package server manages the transport side of each chat connection: rate
// limiting inbound lines, handing them to the chat session and classifying
// read errors.
package server

import (
	"bufio"
	"context"
	"errors"
	"log/slog"

	"github.com/Tyrowin/linechat/internal/chat"
	"github.com/Tyrowin/linechat/internal/metrics"
	"github.com/gorilla/websocket"
)

// client couples a chat session with the transport that feeds it.
type client struct {
	session     *chat.Session
	transport   string
	rateLimiter *rateLimiter
	rateLimit   RateLimitConfig
	maxLineSize int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

func (s *Server) newClient(sess *chat.Session, transport string) *client {
	return &client{
		session:     sess,
		transport:   transport,
		rateLimiter: newRateLimiter(s.cfg.RateLimit),
		rateLimit:   s.cfg.RateLimit,
		maxLineSize: s.cfg.MaxLineSize,
		logger:      s.logger.With("session", sess.ID(), "addr", sess.Addr(), "transport", transport),
		metrics:     s.metrics,
	}
}

// checkRateLimit reports whether the next line may be processed.
func (c *client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.logger.Warn("rate limit exceeded; discarding line",
			"burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval)
		c.metrics.LineRateLimited(c.transport)
		return false
	}
	return true
}

// handleLine feeds one decoded line to the session.
func (c *client) handleLine(ctx context.Context, line string) {
	if !c.checkRateLimit() {
		return
	}

	err := c.session.HandleLine(ctx, line)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrBadLogin):
		c.logger.Debug("line rejected before login")
	case errors.Is(err, chat.ErrNameTaken):
		c.logger.Info("closing connection after login conflict")
	case errors.Is(err, chat.ErrSessionClosed), errors.Is(err, chat.ErrQueueFull):
		c.logger.Debug("line received after session closed", "reason", err)
	default:
		c.logger.Error("error handling line", "error", err)
	}
}

// handleReadError logs why the read loop stopped.
func (c *client) handleReadError(err error) {
	switch {
	case err == nil:
		c.logger.Debug("client closed the connection")
	case errors.Is(err, bufio.ErrTooLong), errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("line exceeded maximum size", "max_bytes", c.maxLineSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		c.logger.Debug("client disconnected", "reason", err)
	case chat.IsExpectedCloseError(err):
		c.logger.Debug("connection closed", "reason", err)
	default:
		c.logger.Warn("read error", "error", err)
		c.metrics.TransportError(c.transport)
	}
}
