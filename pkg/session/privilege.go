package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/newtron-network/netverify/pkg/transport"
	"github.com/newtron-network/netverify/pkg/util"
	"github.com/newtron-network/netverify/pkg/vendor"
)

// PasswordPrompt matches a password request in any of the device locales
// seen in the field.
var PasswordPrompt = regexp.MustCompile(`(?i)(password|パスワード|暗号|passwort|mot de passe|contraseña)[^\n]*$`)

// escalateAttempts is how many times escalation is tried before giving up.
const escalateAttempts = 3

// EnsurePrivileged enters privileged mode if the session sits at a user
// prompt. Devices that never answer with a privileged prompt fail with an
// AuthenticationFailure after escalateAttempts tries.
func (s *Session) EnsurePrivileged(ctx context.Context) error {
	if s.Privilege() == Privileged {
		return nil
	}

	cmd, err := vendor.CommandFor(s.family, vendor.OpEnable, vendor.Params{})
	if err != nil {
		return s.deviceError(util.KindUnsupported, "enable", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	timeout := s.cfg.commandTimeout()
	passOrPrompt := alternation(PasswordPrompt, s.profile.Prompt)

	var lastErr error
	for attempt := 1; attempt <= escalateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: enable: %w", s.dev.Name, err)
		}
		s.log.Debugf("escalation attempt %d", attempt)

		if err := s.conn.Send(cmd + "\n"); err != nil {
			return s.deviceError(util.KindConnect, "enable", err)
		}
		s.cursor++

		out, err := s.conn.Expect(ctx, passOrPrompt, timeout)
		if err != nil {
			if !errors.Is(err, transport.ErrTimeout) {
				return s.deviceError(classify(err), "enable", err)
			}
			lastErr = err
			continue
		}

		if PasswordPrompt.MatchString(lastLine(out)) {
			if err := s.conn.Send(s.dev.Secret + "\n"); err != nil {
				return s.deviceError(util.KindConnect, "enable", err)
			}
			out, err = s.conn.Expect(ctx, passOrPrompt, timeout)
			if err != nil {
				if !errors.Is(err, transport.ErrTimeout) {
					return s.deviceError(classify(err), "enable", err)
				}
				lastErr = err
				continue
			}
			if PasswordPrompt.MatchString(lastLine(out)) {
				// Secret rejected and asked again; abandon this attempt.
				_ = s.conn.Send("\n")
				_, _ = s.conn.Expect(ctx, s.profile.Prompt, timeout)
				lastErr = errors.New("secret rejected")
				continue
			}
		}

		s.setPrompt(out)
		if s.privilege == Privileged {
			s.log.Debugf("escalated at prompt %q", s.prompt)
			return nil
		}
		lastErr = fmt.Errorf("still at user prompt %q", s.prompt)
	}

	return s.deviceError(util.KindAuth, "enable",
		fmt.Errorf("escalation failed after %d attempts: %w", escalateAttempts, lastErr))
}
