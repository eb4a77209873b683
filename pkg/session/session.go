// Package session owns one authenticated CLI session to one device.
//
// A Session is opened in two explicit steps (full credentials, then an
// optional family-specific fallback), tracks the privilege level of the
// prompt, and executes one command at a time with a bounded wait for the
// prompt to return.
package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/newtron-network/netverify/pkg/inventory"
	"github.com/newtron-network/netverify/pkg/transport"
	"github.com/newtron-network/netverify/pkg/util"
	"github.com/newtron-network/netverify/pkg/vendor"
)

// DefaultCommandTimeout bounds every prompt wait unless overridden.
const DefaultCommandTimeout = 30 * time.Second

// Privilege is the privilege level of the current prompt.
type Privilege int

const (
	User Privilege = iota
	Privileged
)

func (p Privilege) String() string {
	if p == Privileged {
		return "privileged"
	}
	return "user"
}

// Config controls session establishment. The zero value is usable.
type Config struct {
	// DialTimeout bounds the transport connect and login phase.
	DialTimeout time.Duration
	// CommandTimeout is the default bound for Execute.
	CommandTimeout time.Duration
	// DisablePaging issues the family's paging-off command after login.
	DisablePaging bool
	// Escalate enters privileged mode after login.
	Escalate bool
}

func (c Config) commandTimeout() time.Duration {
	if c.CommandTimeout > 0 {
		return c.CommandTimeout
	}
	return DefaultCommandTimeout
}

// Session is one open CLI session. Commands are strictly sequential.
type Session struct {
	dev     *inventory.Device
	family  vendor.Family
	profile *vendor.Profile
	conn    transport.Conn
	cfg     Config
	log     *logrus.Entry

	mu        sync.Mutex
	privilege Privilege
	prompt    string
	cursor    int
	closed    bool

	closeOnce sync.Once
	closeErr  error
}

// Device returns the descriptor the session was opened for.
func (s *Session) Device() *inventory.Device { return s.dev }

// Family returns the resolved vendor family.
func (s *Session) Family() vendor.Family { return s.family }

// Profile returns the vendor profile of the device.
func (s *Session) Profile() *vendor.Profile { return s.profile }

// Privilege returns the privilege level of the last observed prompt.
func (s *Session) Privilege() Privilege {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.privilege
}

// Prompt returns the last observed prompt line.
func (s *Session) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

// Cursor returns the number of commands executed so far.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

var pressKeyRe = regexp.MustCompile(`(?i)press any key( to continue)?[^\n]*$`)

// Open establishes a session to dev and reads the initial prompt.
func Open(ctx context.Context, dev *inventory.Device, dialer transport.Dialer, cfg Config) (*Session, error) {
	family := vendor.ResolveFamily(dev.Vendor)
	profile := vendor.ProfileFor(family)
	log := util.WithDevice(dev.Name).WithField("family", string(family))

	target := transport.Target{
		Name:     dev.Name,
		Address:  dev.Address,
		Port:     dev.Port,
		Protocol: transport.Protocol(dev.Transport),
		Username: dev.Username,
		Password: dev.Password,
		Timeout:  cfg.DialTimeout,
	}

	conn, result, err := establish(ctx, dialer, target, profile)
	if result == NeedsFallback {
		log.Debugf("credentials rejected, retrying with blank-secret interactive login")
		target.Password = ""
		target.Interactive = true
		conn, result, err = establish(ctx, dialer, target, profile)
	}
	if result != Success {
		return nil, util.NewDeviceError(dev.Name, classify(err), "login", err)
	}

	s := &Session{
		dev:     dev,
		family:  family,
		profile: profile,
		conn:    conn,
		cfg:     cfg,
		log:     log,
	}

	if err := s.readInitialPrompt(ctx); err != nil {
		s.Close()
		return nil, err
	}
	log.Debugf("connected at %s prompt %q", s.privilege, s.prompt)

	if cfg.Escalate {
		if err := s.EnsurePrivileged(ctx); err != nil && !vendor.IsUnsupported(err) {
			s.Close()
			return nil, err
		}
	}
	if cfg.DisablePaging {
		if err := s.DisablePaging(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Run opens a session, calls fn and closes the session on every path.
func Run(ctx context.Context, dev *inventory.Device, dialer transport.Dialer, cfg Config, fn func(*Session) error) error {
	s, err := Open(ctx, dev, dialer, cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func (s *Session) readInitialPrompt(ctx context.Context) error {
	timeout := s.cfg.commandTimeout()
	waitFor := alternation(s.profile.Prompt, pressKeyRe)

	for attempt := 0; attempt < 3; attempt++ {
		out, err := s.conn.Expect(ctx, waitFor, timeout)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) && attempt == 0 {
				// Some devices only draw the prompt after a keystroke.
				if err := s.conn.Send("\n"); err != nil {
					return s.deviceError(util.KindConnect, "login", err)
				}
				continue
			}
			return s.deviceError(classify(err), "login", err)
		}
		if pressKeyRe.MatchString(lastLine(out)) {
			if err := s.conn.Send("\n"); err != nil {
				return s.deviceError(util.KindConnect, "login", err)
			}
			continue
		}
		s.setPrompt(out)
		return nil
	}
	return s.deviceError(util.KindAuth, "login", fmt.Errorf("unrecognized prompt dialect for %s", s.family))
}

func (s *Session) setPrompt(out string) {
	s.prompt = strings.TrimSpace(lastLine(out))
	if s.profile.IsUserPrompt(s.prompt) {
		s.privilege = User
	} else {
		s.privilege = Privileged
	}
}

// Close releases the transport exactly once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		n := s.cursor
		s.mu.Unlock()
		s.closeErr = s.conn.Close()
		s.log.Debugf("session closed after %d commands", n)
	})
	return s.closeErr
}

func (s *Session) deviceError(kind util.ErrorKind, op string, err error) error {
	return util.NewDeviceError(s.dev.Name, kind, op, err)
}

// classify maps transport errors onto the device failure taxonomy.
func classify(err error) util.ErrorKind {
	switch {
	case errors.Is(err, transport.ErrAuthRejected):
		return util.KindAuth
	case errors.Is(err, transport.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return util.KindTimeout
	case vendor.IsUnsupported(err):
		return util.KindUnsupported
	case errors.Is(err, util.ErrParseFailure):
		return util.KindParse
	default:
		return util.KindConnect
	}
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\r\n")
	if i := strings.LastIndexAny(s, "\r\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// alternation matches any of res.
func alternation(res ...*regexp.Regexp) *regexp.Regexp {
	parts := make([]string, 0, len(res))
	for _, re := range res {
		if re != nil {
			parts = append(parts, "(?:"+re.String()+")")
		}
	}
	return regexp.MustCompile(strings.Join(parts, "|"))
}
