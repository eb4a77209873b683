package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
)

// Telnet protocol bytes (RFC 854).
const (
	iacSE   = 240
	iacSB   = 250
	iacWILL = 251
	iacWONT = 252
	iacDO   = 253
	iacDONT = 254
	iac     = 255

	optEcho = 1
	optSGA  = 3
)

var (
	telnetLoginRe  = regexp.MustCompile(`(?i)(user ?name|login)\s*:\s*$`)
	telnetPassRe   = regexp.MustCompile(`(?i)pass(word|code)?\s*:\s*$`)
	telnetAnyRe    = regexp.MustCompile(`(?i)((user ?name|login)\s*:|pass(word|code)?\s*:)\s*$`)
	telnetRejectRe = regexp.MustCompile(`(?i)(login incorrect|authentication failed|access denied|bad password|login invalid|% ?bad secrets)`)
	// telnetReadyRe matches a login, password or CLI prompt on the last,
	// unterminated line. Banner lines end in a newline and never match.
	telnetReadyRe = regexp.MustCompile(`(?i)((user ?name|login|pass(word|code)?)[ \t]*:|[>#$%\]])[ \t]*$`)
)

// TelnetDialer opens a plain Telnet session and performs the text login.
type TelnetDialer struct{}

// Dial connects, negotiates options by refusal and answers the login and
// password prompts. The CLI prompt that follows is left in the buffer.
func (d *TelnetDialer) Dial(ctx context.Context, t Target) (Conn, error) {
	addr := t.Addr()
	nd := net.Dialer{Timeout: t.timeout()}
	nc, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: telnet dial %s: %v", ErrConnect, addr, err)
	}

	tc := &telnetConn{stream: openStream(nc, nc.Close)}
	go tc.pump(&iacReader{r: nc, reply: tc.negotiate})

	if err := tc.login(ctx, t); err != nil {
		tc.Close()
		return nil, err
	}
	return tc, nil
}

type telnetConn struct {
	*stream
}

// Send translates bare newlines to CRLF.
func (c *telnetConn) Send(text string) error {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return c.stream.Send(strings.ReplaceAll(text, "\n", "\r\n"))
}

func (c *telnetConn) negotiate(cmd, opt byte) {
	var resp byte
	switch cmd {
	case iacDO:
		resp = iacWONT
		if opt == optSGA {
			resp = iacWILL
		}
	case iacWILL:
		resp = iacDONT
		if opt == optEcho || opt == optSGA {
			resp = iacDO
		}
	default:
		return
	}
	_ = c.stream.write([]byte{iac, resp, opt})
}

func (c *telnetConn) login(ctx context.Context, t Target) error {
	timeout := t.timeout()
	sentPassword := false

	for i := 0; i < 3; i++ {
		out, err := c.wait(ctx, telnetReadyRe, timeout, false)
		// A rejection only counts once credentials were sent; banners may
		// carry the same words.
		if sentPassword && telnetRejectRe.MatchString(out) {
			return fmt.Errorf("%w: %s", ErrAuthRejected, rejectLine(out))
		}
		if err != nil {
			return fmt.Errorf("%w: telnet login: %v", ErrConnect, err)
		}

		// Only a login/password prompt is consumed; a CLI prompt stays
		// buffered for the session.
		tail := lastLine(out)
		switch {
		case telnetLoginRe.MatchString(tail):
			if sentPassword {
				return fmt.Errorf("%w: login prompt repeated", ErrAuthRejected)
			}
			if _, err := c.Expect(ctx, telnetAnyRe, timeout); err != nil {
				return fmt.Errorf("%w: telnet login: %v", ErrConnect, err)
			}
			if err := c.Send(t.Username + "\n"); err != nil {
				return err
			}
		case telnetPassRe.MatchString(tail):
			if _, err := c.Expect(ctx, telnetAnyRe, timeout); err != nil {
				return fmt.Errorf("%w: telnet login: %v", ErrConnect, err)
			}
			if err := c.Send(t.Password + "\n"); err != nil {
				return err
			}
			sentPassword = true
		default:
			return nil
		}
	}
	return fmt.Errorf("%w: too many login prompts", ErrAuthRejected)
}

func rejectLine(s string) string {
	return strings.TrimSpace(telnetRejectRe.FindString(s))
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\r\n")
	if i := strings.LastIndexAny(s, "\r\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// iacReader strips Telnet commands from the byte stream and reports option
// negotiations to reply. State carries across Read calls.
type iacReader struct {
	r     io.Reader
	reply func(cmd, opt byte)
	state int
	cmd   byte
}

const (
	stData = iota
	stIAC
	stOpt
	stSB
	stSBIAC
)

func (ir *iacReader) Read(p []byte) (int, error) {
	raw := make([]byte, len(p))
	for {
		n, err := ir.r.Read(raw)
		out := 0
		for _, b := range raw[:n] {
			switch ir.state {
			case stData:
				if b == iac {
					ir.state = stIAC
					continue
				}
				p[out] = b
				out++
			case stIAC:
				switch b {
				case iac:
					p[out] = b
					out++
					ir.state = stData
				case iacDO, iacDONT, iacWILL, iacWONT:
					ir.cmd = b
					ir.state = stOpt
				case iacSB:
					ir.state = stSB
				default:
					ir.state = stData
				}
			case stOpt:
				if ir.reply != nil {
					ir.reply(ir.cmd, b)
				}
				ir.state = stData
			case stSB:
				if b == iac {
					ir.state = stSBIAC
				}
			case stSBIAC:
				if b == iacSE {
					ir.state = stData
				} else {
					ir.state = stSB
				}
			}
		}
		if out > 0 || err != nil {
			return out, err
		}
	}
}
