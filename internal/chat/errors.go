package chat

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

var (
	// ErrBadLogin is reported when an unregistered client sends anything but
	// a valid login command.
	ErrBadLogin = errors.New("bad login")

	// ErrNameTaken is reported when the requested login is held by another
	// live session.
	ErrNameTaken = errors.New("login already taken")

	// ErrAlreadyRegistered is returned when a session tries to change its
	// login.
	ErrAlreadyRegistered = errors.New("session already registered")

	// ErrSessionClosed is returned when writing to a session that has been
	// closed.
	ErrSessionClosed = errors.New("session closed")

	// ErrQueueFull is returned when a session's outbound queue cannot accept
	// another message.
	ErrQueueFull = errors.New("send queue full")
)

// IsExpectedCloseError reports whether err is the normal result of a peer
// going away or of the server closing the connection itself.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
