// Package probe provides reachability probing: ICMP ping and traceroute.
package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/newtron-network/netverify/pkg/util"
)

// ErrInterrupted reports that a probe was cancelled before it finished. It is
// distinct from a probe that ran and failed.
var ErrInterrupted = errors.New("probe interrupted")

// Pinger checks whether an address answers.
type Pinger interface {
	Ping(ctx context.Context, addr string, timeout time.Duration) (bool, error)
}

// Tracer returns the hop listing toward an address.
type Tracer interface {
	Trace(ctx context.Context, addr string) (string, error)
}

// ICMPPinger pings with pro-bing.
type ICMPPinger struct {
	// Privileged uses raw ICMP sockets instead of unprivileged UDP pings.
	Privileged bool
	// Count defaults to 2.
	Count int
	// Interval defaults to 200ms.
	Interval time.Duration
}

// Ping sends Count echo requests and reports whether any reply arrived
// within timeout.
func (p *ICMPPinger) Ping(ctx context.Context, addr string, timeout time.Duration) (bool, error) {
	pr, err := probing.NewPinger(addr)
	if err != nil {
		return false, fmt.Errorf("resolve '%s': %w", addr, err)
	}

	pr.Count = p.Count
	if pr.Count <= 0 {
		pr.Count = 2
	}
	pr.Interval = p.Interval
	if pr.Interval <= 0 {
		pr.Interval = 200 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pr.Timeout = timeout
	pr.RecordRtts = false
	pr.SetPrivileged(p.Privileged || runtime.GOOS == "windows")
	pr.SetLogger(nil)

	if err := pr.RunWithContext(ctx); err != nil {
		if ctx.Err() != nil {
			return false, fmt.Errorf("%w: ping %s: %v", ErrInterrupted, addr, ctx.Err())
		}
		return false, fmt.Errorf("pinging host '%s' (ip %s): %w", pr.Addr(), pr.IPAddr(), err)
	}
	if ctx.Err() != nil {
		return false, fmt.Errorf("%w: ping %s: %v", ErrInterrupted, addr, ctx.Err())
	}

	stats := pr.Statistics()
	util.WithField("addr", addr).Debugf("ping stats: sent %d recv %d loss %.0f%%",
		stats.PacketsSent, stats.PacketsRecv, stats.PacketLoss)
	return stats.PacketsRecv > 0, nil
}

// CommandTracer runs the platform traceroute binary.
type CommandTracer struct {
	// MaxHops defaults to 30.
	MaxHops int
	// Wait is the per-probe wait, default 2s.
	Wait time.Duration
	// Path and Args override the binary and its arguments.
	Path string
	Args func(addr string) []string
}

// Trace runs traceroute and returns its hop lines with banner lines removed.
// The child process is killed when ctx is cancelled.
func (t *CommandTracer) Trace(ctx context.Context, addr string) (string, error) {
	path, args := t.command(addr)
	cmd := exec.CommandContext(ctx, path, args...)
	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return FilterTrace(string(out)), fmt.Errorf("%w: trace %s: %v", ErrInterrupted, addr, ctx.Err())
	}
	if err != nil {
		return FilterTrace(string(out)), fmt.Errorf("trace %s: %w", addr, err)
	}
	return FilterTrace(string(out)), nil
}

func (t *CommandTracer) command(addr string) (string, []string) {
	if t.Path != "" {
		var args []string
		if t.Args != nil {
			args = t.Args(addr)
		}
		return t.Path, args
	}

	hops := t.MaxHops
	if hops <= 0 {
		hops = 30
	}
	wait := t.Wait
	if wait <= 0 {
		wait = 2 * time.Second
	}

	if runtime.GOOS == "windows" {
		return "tracert", []string{"-d", "-h", strconv.Itoa(hops), "-w", strconv.Itoa(int(wait.Milliseconds())), addr}
	}
	return "traceroute", []string{"-n", "-m", strconv.Itoa(hops), "-w", strconv.Itoa(int(wait.Seconds())), addr}
}

var traceBanners = []string{
	"traceroute to",
	"tracing route to",
	"over a maximum of",
	"trace complete",
	"経路をトレース",
	"経由するホップ数",
	"トレースを完了",
}

// FilterTrace drops banner and blank lines from traceroute output.
func FilterTrace(out string) string {
	var keep []string
	for _, line := range util.SplitLines(out) {
		lower := strings.ToLower(line)
		banner := false
		for _, b := range traceBanners {
			if strings.Contains(lower, b) {
				banner = true
				break
			}
		}
		if !banner {
			keep = append(keep, line)
		}
	}
	return strings.Join(keep, "\n")
}
