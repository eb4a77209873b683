// Package transport provides interactive CLI connections to network devices.
//
// A Conn is a byte stream with a prompt-driven read primitive: Expect blocks
// until a pattern appears in the buffered output or a bounded wait elapses.
// Session logic lives in pkg/session and only depends on the interfaces here.
package transport

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Protocol selects the wire transport.
type Protocol string

const (
	SSH    Protocol = "ssh"
	Telnet Protocol = "telnet"
)

// DefaultTimeout bounds Expect calls made with a zero timeout and the
// connect phase when Target.Timeout is unset.
const DefaultTimeout = 30 * time.Second

var (
	// ErrConnect reports a TCP or handshake failure.
	ErrConnect = errors.New("connect failed")
	// ErrAuthRejected reports that the device refused the credentials.
	ErrAuthRejected = errors.New("authentication rejected")
	// ErrTimeout reports that an expected pattern never appeared.
	ErrTimeout = errors.New("pattern not detected before timeout")
	// ErrClosed reports a read or write on a connection that has ended.
	ErrClosed = errors.New("connection closed")
)

// Target describes where and how to connect.
type Target struct {
	Name     string
	Address  string
	Port     int
	Protocol Protocol
	Username string
	Password string
	Timeout  time.Duration

	// Interactive restricts SSH to the keyboard-interactive method. Used for
	// the fallback login some devices need after a password rejection.
	Interactive bool
}

// Addr returns host:port, applying the protocol's default port.
func (t Target) Addr() string {
	port := t.Port
	if port == 0 {
		port = 22
		if t.Protocol == Telnet {
			port = 23
		}
	}
	return fmt.Sprintf("%s:%d", t.Address, port)
}

func (t Target) timeout() time.Duration {
	if t.Timeout > 0 {
		return t.Timeout
	}
	return DefaultTimeout
}

// Conn is one open interactive CLI connection.
type Conn interface {
	// Send writes text as typed. Line endings are the caller's responsibility.
	Send(text string) error
	// Expect reads until re matches the buffered output and returns
	// everything up to the end of the match, consuming it. On timeout it
	// returns what was buffered so far with ErrTimeout.
	Expect(ctx context.Context, re *regexp.Regexp, timeout time.Duration) (string, error)
	// Close releases the connection. Safe to call more than once.
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, t Target) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, t Target) (Conn, error)

// Dial calls f(ctx, t).
func (f DialerFunc) Dial(ctx context.Context, t Target) (Conn, error) {
	return f(ctx, t)
}

// Multi dispatches to the SSH or Telnet dialer by Target.Protocol.
type Multi struct {
	SSH    Dialer
	Telnet Dialer
}

// NewDialer returns a Multi with the default SSH and Telnet dialers.
func NewDialer() *Multi {
	return &Multi{SSH: &SSHDialer{}, Telnet: &TelnetDialer{}}
}

// Dial opens a connection with the dialer matching t.Protocol. An empty
// protocol means SSH.
func (m *Multi) Dial(ctx context.Context, t Target) (Conn, error) {
	switch t.Protocol {
	case SSH, "":
		return m.SSH.Dial(ctx, t)
	case Telnet:
		return m.Telnet.Dial(ctx, t)
	default:
		return nil, fmt.Errorf("%w: unknown protocol %q", ErrConnect, t.Protocol)
	}
}
