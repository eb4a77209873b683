package session

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/newtron-network/netverify/pkg/parser"
	"github.com/newtron-network/netverify/pkg/transport"
	"github.com/newtron-network/netverify/pkg/util"
	"github.com/newtron-network/netverify/pkg/vendor"
)

// Options tunes a single Execute call.
type Options struct {
	// Expect overrides the terminator; the family prompt by default.
	Expect *regexp.Regexp
	// Parse applies the family's parser for the command's table.
	Parse bool
	// KeepEcho preserves the command echo and trailing prompt, for
	// consumers that need the literal line-for-line text.
	KeepEcho bool
	// Timeout overrides Config.CommandTimeout.
	Timeout time.Duration
}

// Output is the result of one command.
type Output struct {
	Command    string
	Raw        string
	Structured []parser.Record
	// ParseErr is set when Parse was requested and failed; Raw is kept.
	ParseErr error
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]|\x08`)

// Execute sends one command and waits for the terminator.
func (s *Session) Execute(ctx context.Context, command string, opts Options) (*Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, s.deviceError(util.KindConnect, command, transport.ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", s.dev.Name, command, err)
	}

	expect := opts.Expect
	if expect == nil {
		expect = s.profile.Prompt
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.cfg.commandTimeout()
	}

	s.log.Debugf("exec %q", command)
	if err := s.conn.Send(command + "\n"); err != nil {
		return nil, s.deviceError(util.KindConnect, command, err)
	}
	raw, err := s.conn.Expect(ctx, expect, timeout)
	s.cursor++
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %s: %w", s.dev.Name, command, ctx.Err())
		}
		return nil, s.deviceError(classify(err), command, err)
	}

	if opts.Expect == nil {
		s.setPrompt(raw)
	}

	out := &Output{Command: command, Raw: clean(raw, command, s.profile.Prompt, opts.KeepEcho)}
	if opts.Parse {
		recs, perr := parser.Parse(s.family, command, out.Raw)
		if perr != nil {
			s.log.Debugf("parse %q: %v", command, perr)
			out.ParseErr = perr
		} else {
			out.Structured = recs
		}
	}
	return out, nil
}

// Command renders op for the device's family and executes it. Families
// without a template get an error satisfying vendor.IsUnsupported.
func (s *Session) Command(ctx context.Context, op vendor.Operation, p vendor.Params, opts Options) (*Output, error) {
	cmd, err := vendor.CommandFor(s.family, op, p)
	if vendor.IsUnsupported(err) {
		return nil, s.deviceError(util.KindUnsupported, string(op), err)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.dev.Name, err)
	}
	return s.Execute(ctx, cmd, opts)
}

// DisablePaging issues the family's paging-off command when it has one.
func (s *Session) DisablePaging(ctx context.Context) error {
	_, err := s.Command(ctx, vendor.OpPagingOff, vendor.Params{}, Options{})
	if vendor.IsUnsupported(err) {
		s.log.Debugf("no paging-off command for %s", s.family)
		return nil
	}
	return err
}

// clean normalizes line endings and strips terminal control sequences. Unless
// keepEcho is set it also drops the echoed command line and the trailing
// prompt.
func clean(raw, command string, prompt *regexp.Regexp, keepEcho bool) string {
	text := ansiRe.ReplaceAllString(raw, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "")
	if keepEcho {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) > 0 && strings.Contains(lines[0], strings.TrimSpace(command)) {
		lines = lines[1:]
	}
	if n := len(lines); n > 0 && prompt.MatchString(lines[n-1]) {
		lines = lines[:n-1]
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n ")
}
