// Package diag walks a forwarding path device by device toward a destination
// and localizes the first fault.
//
// Each hop opens a session to the current device, reads the route to the
// destination, checks the egress interface, and advances to the managed
// device that owns the next-hop address. Traversal stops at the destination,
// at the first failed hop, on a revisited device, when the path leaves the
// inventory, or after MaxHops.
package diag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newtron-network/netverify/pkg/health"
	"github.com/newtron-network/netverify/pkg/inventory"
	"github.com/newtron-network/netverify/pkg/probe"
	"github.com/newtron-network/netverify/pkg/session"
	"github.com/newtron-network/netverify/pkg/transport"
	"github.com/newtron-network/netverify/pkg/util"
)

// DefaultMaxHops bounds every traversal.
const DefaultMaxHops = 15

// State is the traversal state.
type State string

const (
	StateTracing State = "TRACING"
	StateReached State = "REACHED"
	StateFailed  State = "FAILED"
	StateLoop    State = "LOOP"
)

// Status is the outcome of one hop.
type Status string

const (
	StatusOK   Status = "OK"
	StatusFail Status = "FAIL"
	StatusLoop Status = "LOOP"
)

// Reasons attached to failed hops and terminated traces.
const (
	ReasonNoRoute      = "No Route"
	ReasonErrDisabled  = health.ReasonErrDisabled
	ReasonLinkDown     = health.ReasonLinkDown
	ReasonSessionError = "Session Error"
	ReasonUnsupported  = "Unsupported"
	ReasonLoop         = "Loop"
	ReasonMaxHops      = "Max Hops"
	ReasonInterrupted  = "Interrupted"
	ReasonUnmanaged    = "Unmanaged Next Hop"
	ReasonUnreachable  = "Next Hop Unreachable"
)

// Hop is one device visited during a traversal.
type Hop struct {
	Index     int      `json:"index"`
	Device    string   `json:"device"`
	Address   string   `json:"address"`
	NextHop   string   `json:"next_hop,omitempty"`
	Interface string   `json:"interface,omitempty"`
	Status    Status   `json:"status"`
	Reason    string   `json:"reason,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	Error     string   `json:"error,omitempty"`

	// Set when the next hop is not a managed device.
	Unmanaged bool   `json:"unmanaged,omitempty"`
	Reachable bool   `json:"reachable,omitempty"`
	Virtual   string `json:"virtual,omitempty"`
}

func (h Hop) String() string {
	s := fmt.Sprintf("%2d %-16s %-4s", h.Index, h.Device, h.Status)
	if h.NextHop != "" {
		s += " -> " + h.NextHop
	}
	if h.Interface != "" {
		s += " via " + h.Interface
	}
	if h.Reason != "" {
		s += " [" + h.Reason + "]"
	}
	return s
}

// Trace is the complete, ordered result of one traversal.
type Trace struct {
	ID          string        `json:"id"`
	Source      string        `json:"source"`
	Destination string        `json:"destination"`
	State       State         `json:"state"`
	Reason      string        `json:"reason,omitempty"`
	Hops        []Hop         `json:"hops"`
	Started     time.Time     `json:"started"`
	Duration    time.Duration `json:"duration"`
}

// Last returns the final hop, or nil for an empty trace.
func (t *Trace) Last() *Hop {
	if len(t.Hops) == 0 {
		return nil
	}
	return &t.Hops[len(t.Hops)-1]
}

// Config wires the engine to its collaborators.
type Config struct {
	Inventory *inventory.Inventory
	Dialer    transport.Dialer
	// Pinger probes next hops outside the inventory. Nil skips the probe.
	Pinger  probe.Pinger
	Session session.Config

	// MaxHops defaults to DefaultMaxHops.
	MaxHops int
	// PingTimeout defaults to 2s.
	PingTimeout time.Duration
	// OnHop is called with every hop as soon as it is produced.
	OnHop func(Hop)
}

// Engine runs traversals. It holds no per-trace state and is safe for
// concurrent use.
type Engine struct {
	cfg     Config
	checker *health.Checker
}

// New returns an engine over cfg.
func New(cfg Config) *Engine {
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = DefaultMaxHops
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 2 * time.Second
	}
	cfg.Session.Escalate = true
	cfg.Session.DisablePaging = true
	return &Engine{cfg: cfg, checker: health.NewChecker()}
}

// Trace walks from the device named (or addressed) by from toward dest.
// Device failures end the traversal with a terminal hop; only invalid
// arguments return an error.
func (e *Engine) Trace(ctx context.Context, from, dest string) (*Trace, error) {
	dest = util.StripMask(strings.TrimSpace(dest))
	if !util.IsValidIPv4(dest) {
		return nil, util.NewValidationError(fmt.Sprintf("destination '%s' is not an IPv4 address", dest))
	}
	if e.cfg.Inventory == nil {
		return nil, fmt.Errorf("diag: no inventory")
	}
	dev := e.cfg.Inventory.ByName(from)
	if dev == nil {
		dev = e.cfg.Inventory.ByAddress(from)
	}
	if dev == nil {
		return nil, fmt.Errorf("start device '%s': %w", from, util.ErrNotFound)
	}

	tr := &Trace{
		ID:          uuid.NewString(),
		Source:      dev.Name,
		Destination: dest,
		State:       StateTracing,
		Started:     time.Now(),
	}
	log := util.WithRun(tr.ID).WithField("destination", dest)
	log.Infof("tracing from %s", dev.Name)

	visited := make(map[string]bool)
	for len(tr.Hops) < e.cfg.MaxHops {
		if ctx.Err() != nil {
			return e.finish(tr, StateFailed, ReasonInterrupted), nil
		}
		visited[dev.Name] = true

		hop, next := e.visit(ctx, dev, dest)
		e.emit(tr, hop)

		switch {
		case hop.Status == StatusFail:
			return e.finish(tr, StateFailed, hop.Reason), nil
		case hop.NextHop == dest:
			return e.finish(tr, StateReached, ""), nil
		case next == nil:
			reason := ReasonUnmanaged
			if !hop.Reachable {
				reason = ReasonUnreachable
			}
			return e.finish(tr, StateFailed, reason), nil
		case visited[next.Name]:
			if len(tr.Hops) < e.cfg.MaxHops {
				e.emit(tr, Hop{Device: next.Name, Address: next.Address, Status: StatusLoop, Reason: ReasonLoop})
			}
			return e.finish(tr, StateLoop, ReasonLoop), nil
		}
		dev = next
	}
	return e.finish(tr, StateFailed, ReasonMaxHops), nil
}

func (e *Engine) emit(tr *Trace, hop Hop) {
	hop.Index = len(tr.Hops) + 1
	tr.Hops = append(tr.Hops, hop)
	util.WithDevice(hop.Device).Debugf("hop %s", hop)
	if e.cfg.OnHop != nil {
		e.cfg.OnHop(hop)
	}
}

func (e *Engine) finish(tr *Trace, state State, reason string) *Trace {
	tr.State = state
	tr.Reason = reason
	tr.Duration = time.Since(tr.Started)
	util.WithRun(tr.ID).Infof("trace %s after %d hops %s", state, len(tr.Hops), reason)
	return tr
}
