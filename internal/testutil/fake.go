// Package testutil provides scripted device fakes for unit tests and,
// under the integration tag, helpers for tests that need a live Redis.
package testutil

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/newtron-network/netverify/pkg/transport"
)

// FakeDevice scripts the CLI of one device. Every dial gets a fresh
// FakeConn that starts at the user prompt when UserPrompt is set, otherwise
// at Prompt.
type FakeDevice struct {
	Banner     string
	Prompt     string // privileged prompt, e.g. "r1#"
	UserPrompt string // optional, e.g. "r1>"
	Secret     string // enable secret
	Responses  map[string]string

	// DialErr is returned by FakeDialer instead of a connection.
	DialErr error
	// Hang makes every command produce no output.
	Hang bool
	// Silent lists commands that produce no output, so waiting for the
	// prompt after them times out.
	Silent map[string]bool
	// AcceptBlankSecret accepts an interactive dial with an empty password
	// after DialErr rejected the first attempt.
	AcceptBlankSecret bool
}

// FakeConn is a scripted transport.Conn. Expect never blocks: when the
// pattern is not in the pending output it returns transport.ErrTimeout.
type FakeConn struct {
	dev *FakeDevice

	mu         sync.Mutex
	pending    strings.Builder
	privileged bool
	awaiting   bool
	sent       []string
	closed     int
}

func newFakeConn(dev *FakeDevice) *FakeConn {
	c := &FakeConn{dev: dev, privileged: dev.UserPrompt == ""}
	if dev.Banner != "" {
		c.pending.WriteString(dev.Banner + "\r\n")
	}
	c.pending.WriteString(c.prompt())
	return c
}

func (c *FakeConn) prompt() string {
	if c.privileged {
		return c.dev.Prompt
	}
	return c.dev.UserPrompt
}

// Send records text and queues the scripted reply.
func (c *FakeConn) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed > 0 {
		return transport.ErrClosed
	}
	cmd := strings.TrimRight(text, "\r\n")
	c.sent = append(c.sent, cmd)
	if c.dev.Hang {
		return nil
	}

	if c.awaiting {
		c.awaiting = false
		if cmd == c.dev.Secret {
			c.privileged = true
			c.pending.WriteString("\r\n" + c.prompt())
		} else {
			c.pending.WriteString("\r\n% Bad secrets\r\n\r\n" + c.prompt())
		}
		return nil
	}

	if cmd == "enable" && !c.privileged {
		c.pending.WriteString(cmd + "\r\nPassword: ")
		c.awaiting = true
		return nil
	}
	if cmd == "" {
		c.pending.WriteString("\r\n" + c.prompt())
		return nil
	}

	if c.dev.Silent[cmd] {
		return nil
	}
	resp, ok := c.dev.Responses[cmd]
	if !ok {
		resp = "% Invalid input detected at '^' marker."
	}
	c.pending.WriteString(cmd + "\r\n")
	if resp != "" {
		c.pending.WriteString(strings.ReplaceAll(resp, "\n", "\r\n") + "\r\n")
	}
	c.pending.WriteString(c.prompt())
	return nil
}

// Expect consumes pending output up to the end of the first match of re.
func (c *FakeConn) Expect(ctx context.Context, re *regexp.Regexp, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.pending.String()
	loc := re.FindStringIndex(data)
	if loc == nil {
		return data, fmt.Errorf("%w (%s): %q", transport.ErrTimeout, timeout, re.String())
	}
	c.pending.Reset()
	c.pending.WriteString(data[loc[1]:])
	return data[:loc[1]], nil
}

// Close counts calls.
func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

// Sent returns every line written to the connection.
func (c *FakeConn) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// Closed returns how many times Close was called.
func (c *FakeConn) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// FakeDialer hands out FakeConns by target address.
type FakeDialer struct {
	Devices map[string]*FakeDevice

	mu      sync.Mutex
	conns   []*FakeConn
	targets []transport.Target
}

// NewFakeDialer returns a dialer over devices keyed by address.
func NewFakeDialer(devices map[string]*FakeDevice) *FakeDialer {
	return &FakeDialer{Devices: devices}
}

// Dial implements transport.Dialer.
func (d *FakeDialer) Dial(ctx context.Context, t transport.Target) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets = append(d.targets, t)

	dev, ok := d.Devices[t.Address]
	if !ok {
		return nil, fmt.Errorf("%w: no route to %s", transport.ErrConnect, t.Address)
	}
	if dev.DialErr != nil && !(dev.AcceptBlankSecret && t.Interactive && t.Password == "") {
		return nil, dev.DialErr
	}
	c := newFakeConn(dev)
	d.conns = append(d.conns, c)
	return c, nil
}

// Conns returns every connection handed out, in dial order.
func (d *FakeDialer) Conns() []*FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakeConn(nil), d.conns...)
}

// Targets returns every dial target, in dial order.
func (d *FakeDialer) Targets() []transport.Target {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]transport.Target(nil), d.targets...)
}
