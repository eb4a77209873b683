// Package snapshot captures normalized device state and diffs it against
// earlier captures.
//
// Configuration text is split into sections, tabular output is re-keyed by
// its identifying field, and everything else is kept as text. Captures are
// persisted through a Store that keeps one current snapshot per device,
// timestamped backups of earlier ones, and an optional pinned master.
package snapshot

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/newtron-network/netverify/pkg/inventory"
	"github.com/newtron-network/netverify/pkg/parser"
	"github.com/newtron-network/netverify/pkg/session"
	"github.com/newtron-network/netverify/pkg/transport"
	"github.com/newtron-network/netverify/pkg/util"
	"github.com/newtron-network/netverify/pkg/vendor"
)

// Snapshot is one capture of one device.
type Snapshot struct {
	Device     string    `json:"device"`
	Address    string    `json:"address,omitempty"`
	Family     string    `json:"family,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
	// Commands maps each command to its normalized output.
	Commands map[string]any `json:"commands"`
	// Raw keeps the literal output for the text log. It is not part of the
	// JSON document.
	Raw map[string]string `json:"-"`
	// Errors records commands that failed during capture.
	Errors map[string]string `json:"errors,omitempty"`
}

// New returns an empty snapshot for device.
func New(device string) *Snapshot {
	return &Snapshot{
		Device:     device,
		CapturedAt: time.Now(),
		Commands:   make(map[string]any),
		Raw:        make(map[string]string),
	}
}

// Add records the output of one command.
func (s *Snapshot) Add(command string, out *session.Output) {
	s.Raw[command] = out.Raw
	s.Commands[command] = Normalize(command, out)
}

// CommandNames returns the captured commands sorted.
func (s *Snapshot) CommandNames() []string {
	names := make([]string, 0, len(s.Commands))
	for c := range s.Commands {
		names = append(names, c)
	}
	sort.Strings(names)
	return names
}

// RawLog renders the raw outputs the way an operator would have seen them.
func (s *Snapshot) RawLog() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s\n", s.Device, s.CapturedAt.Format(time.RFC3339))
	names := make([]string, 0, len(s.Raw))
	for c := range s.Raw {
		names = append(names, c)
	}
	sort.Strings(names)
	for _, c := range names {
		fmt.Fprintf(&b, "\n%s\n%s\n", c, s.Raw[c])
	}
	return b.String()
}

var configCommandRe = regexp.MustCompile(`(?i)(running-config|startup-config|current-configuration|saved-configuration|show configuration|show config\b|show run\b|show full-configuration|show ip-config)`)

// IsConfigCommand reports whether command prints a full configuration.
func IsConfigCommand(command string) bool {
	return configCommandRe.MatchString(command)
}

// Normalize turns command output into its diffable form: a section map for
// configuration text, a keyed map for parsed tables, otherwise the raw text.
func Normalize(command string, out *session.Output) any {
	if IsConfigCommand(command) {
		return RestructureConfig(out.Raw)
	}
	if out.ParseErr == nil && len(out.Structured) > 0 {
		return Restructure(out.Structured)
	}
	return out.Raw
}

// Capturer runs a device's command list and builds a snapshot.
type Capturer struct {
	Dialer  transport.Dialer
	Session session.Config
}

// Capture opens a session to dev and runs its command list in order. A
// failing command is recorded in Errors and the capture continues; a
// session failure aborts it.
func (c *Capturer) Capture(ctx context.Context, dev *inventory.Device) (*Snapshot, error) {
	snap := New(dev.Name)
	snap.Address = dev.Address
	snap.Family = string(vendor.ResolveFamily(dev.Vendor))
	log := util.WithDevice(dev.Name)

	cfg := c.Session
	cfg.DisablePaging = true
	cfg.Escalate = true

	err := session.Run(ctx, dev, c.Dialer, cfg, func(s *session.Session) error {
		for _, command := range dev.Commands {
			out, err := s.Execute(ctx, command, session.Options{Parse: parser.TableFor(command) != ""})
			if err != nil {
				// The prompt is lost after a transport failure or timeout.
				if k := util.KindOf(err); k == util.KindConnect || k == util.KindTimeout || ctx.Err() != nil {
					return err
				}
				log.WithError(err).Warnf("command %q failed", command)
				if snap.Errors == nil {
					snap.Errors = make(map[string]string)
				}
				snap.Errors[command] = err.Error()
				continue
			}
			snap.Add(command, out)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debugf("captured %d commands", len(snap.Commands))
	return snap, nil
}

// CompareSaved diffs the saved configuration against the running one, so
// that additions are unsaved changes. Families without both commands return
// an unsupported error.
func CompareSaved(ctx context.Context, s *session.Session) ([]Change, error) {
	saved, err := s.Command(ctx, vendor.OpSavedConfig, vendor.Params{}, session.Options{})
	if err != nil {
		return nil, err
	}
	running, err := s.Command(ctx, vendor.OpRunningConfig, vendor.Params{}, session.Options{})
	if err != nil {
		return nil, err
	}
	const key = "config"
	return Compare(
		map[string]any{key: RestructureConfig(saved.Raw)},
		map[string]any{key: RestructureConfig(running.Raw)},
	), nil
}
