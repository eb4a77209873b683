package diag

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/newtron-network/netverify/internal/testutil"
	"github.com/newtron-network/netverify/pkg/inventory"
	"github.com/newtron-network/netverify/pkg/util"
)

const dest = "10.9.9.9"

const upIface = `GigabitEthernet0/1 is up, line protocol is up (connected)
  Full-duplex, 1000Mb/s, media type is 10/100/1000BaseTX
  Input queue: 0/75/0/0 (size/max/drops/flushes); Total output drops: 0
     0 input errors, 0 CRC, 0 frame, 0 overrun, 0 ignored`

const errDisabledIface = `GigabitEthernet0/1 is down, line protocol is down (err-disabled)
  Full-duplex, 1000Mb/s, media type is 10/100/1000BaseTX`

const connectedRoute = `Routing entry for 10.9.9.0/24
  Known via "connected", distance 0, metric 0 (connected, via interface)
  Routing Descriptor Blocks:
  * directly connected, via GigabitEthernet0/2
      Route metric is 0, traffic share count is 1`

func viaRoute(nh string) string {
	return fmt.Sprintf(`Routing entry for 10.9.9.0/24
  Known via "ospf 1", distance 110, metric 3, type intra area
  Routing Descriptor Blocks:
  * %s, from %s, 00:01:00 ago, via GigabitEthernet0/1
      Route metric is 3, traffic share count is 1`, nh, nh)
}

type router struct {
	name, addr string
	route      string
	iface      string
	extra      map[string]string
}

func lab(routers ...router) (*inventory.Inventory, *testutil.FakeDialer) {
	var devices []*inventory.Device
	fakes := make(map[string]*testutil.FakeDevice)
	for _, r := range routers {
		devices = append(devices, &inventory.Device{
			Name: r.name, Address: r.addr, Vendor: "cisco_ios", Transport: "ssh",
			Username: "admin", Password: "pw",
		})
		resp := map[string]string{
			"terminal length 0":                "",
			"show ip route " + dest:            r.route,
			"show interfaces GigabitEthernet0/1": r.iface,
			"show interfaces GigabitEthernet0/2": upIface,
		}
		for k, v := range r.extra {
			resp[k] = v
		}
		fakes[r.addr] = &testutil.FakeDevice{Prompt: r.name + "#", Responses: resp}
	}
	return inventory.New(devices), testutil.NewFakeDialer(fakes)
}

type fakePinger struct {
	ok    bool
	err   error
	calls []string
}

func (p *fakePinger) Ping(ctx context.Context, addr string, timeout time.Duration) (bool, error) {
	p.calls = append(p.calls, addr)
	return p.ok, p.err
}

func trace(t *testing.T, cfg Config, from string) *Trace {
	t.Helper()
	tr, err := New(cfg).Trace(context.Background(), from, dest)
	if err != nil {
		t.Fatalf("Trace() error = %v", err)
	}
	return tr
}

func TestTrace_ReachesDestination(t *testing.T) {
	inv, dialer := lab(
		router{name: "r1", addr: "10.0.0.1", route: viaRoute("10.0.0.2"), iface: upIface},
		router{name: "r2", addr: "10.0.0.2", route: viaRoute("10.0.0.3"), iface: upIface},
		router{name: "r3", addr: "10.0.0.3", route: connectedRoute, iface: upIface},
	)

	var streamed []Hop
	tr := trace(t, Config{Inventory: inv, Dialer: dialer, OnHop: func(h Hop) { streamed = append(streamed, h) }}, "r1")

	if tr.State != StateReached {
		t.Fatalf("State = %s (%s), want %s", tr.State, tr.Reason, StateReached)
	}
	if len(tr.Hops) > 3 {
		t.Fatalf("got %d hops, want at most 3", len(tr.Hops))
	}
	wantDevices := []string{"r1", "r2", "r3"}
	for i, h := range tr.Hops {
		if h.Device != wantDevices[i] || h.Status != StatusOK || h.Index != i+1 {
			t.Errorf("hop %d = %+v", i, h)
		}
	}
	if last := tr.Last(); last.NextHop != dest || last.Interface != "GigabitEthernet0/2" {
		t.Errorf("last hop = %+v", last)
	}
	if len(streamed) != len(tr.Hops) {
		t.Errorf("streamed %d hops, trace has %d", len(streamed), len(tr.Hops))
	}
	for _, c := range dialer.Conns() {
		if c.Closed() != 1 {
			t.Errorf("session closed %d times, want 1", c.Closed())
		}
	}
}

func TestTrace_ErrDisabledStopsAtHop(t *testing.T) {
	inv, dialer := lab(
		router{name: "r1", addr: "10.0.0.1", route: viaRoute("10.0.0.2"), iface: upIface},
		router{name: "r2", addr: "10.0.0.2", route: viaRoute("10.0.0.3"), iface: errDisabledIface},
		router{name: "r3", addr: "10.0.0.3", route: connectedRoute, iface: upIface},
	)

	tr := trace(t, Config{Inventory: inv, Dialer: dialer}, "r1")

	if tr.State != StateFailed {
		t.Fatalf("State = %s, want %s", tr.State, StateFailed)
	}
	if len(tr.Hops) != 2 {
		t.Fatalf("got %d hops, want 2", len(tr.Hops))
	}
	last := tr.Last()
	if last.Device != "r2" || last.Status != StatusFail || last.Reason != ReasonErrDisabled {
		t.Errorf("last hop = %+v", last)
	}
	if len(dialer.Targets()) != 2 {
		t.Errorf("dialed %d devices, want 2", len(dialer.Targets()))
	}
}

func TestTrace_LinkDown(t *testing.T) {
	inv, dialer := lab(
		router{name: "r1", addr: "10.0.0.1", route: viaRoute("10.0.0.2"),
			iface: "GigabitEthernet0/1 is down, line protocol is down (notconnect)"},
	)
	tr := trace(t, Config{Inventory: inv, Dialer: dialer}, "r1")
	if tr.State != StateFailed || tr.Reason != ReasonLinkDown {
		t.Errorf("State = %s (%s), want FAILED (%s)", tr.State, tr.Reason, ReasonLinkDown)
	}
}

func TestTrace_WarningsDoNotStop(t *testing.T) {
	noisy := `GigabitEthernet0/1 is up, line protocol is up (connected)
  Half-duplex, 100Mb/s
  Input queue: 0/75/0/0 (size/max/drops/flushes); Total output drops: 12
     0 input errors, 7 CRC, 0 frame, 0 overrun, 0 ignored`
	inv, dialer := lab(
		router{name: "r1", addr: "10.0.0.1", route: viaRoute("10.0.0.2"), iface: noisy},
		router{name: "r2", addr: "10.0.0.2", route: connectedRoute, iface: upIface},
	)

	tr := trace(t, Config{Inventory: inv, Dialer: dialer}, "r1")
	if tr.State != StateReached {
		t.Fatalf("State = %s (%s), want %s", tr.State, tr.Reason, StateReached)
	}
	if got := len(tr.Hops[0].Warnings); got != 3 {
		t.Errorf("hop 1 warnings = %v, want 3", tr.Hops[0].Warnings)
	}
}

func TestTrace_Loop(t *testing.T) {
	inv, dialer := lab(
		router{name: "r1", addr: "10.0.0.1", route: viaRoute("10.0.0.2"), iface: upIface},
		router{name: "r2", addr: "10.0.0.2", route: viaRoute("10.0.0.1"), iface: upIface},
	)

	tr := trace(t, Config{Inventory: inv, Dialer: dialer}, "r1")

	if tr.State != StateLoop {
		t.Fatalf("State = %s, want %s", tr.State, StateLoop)
	}
	if len(tr.Hops) > DefaultMaxHops {
		t.Fatalf("got %d hops, exceeds bound", len(tr.Hops))
	}
	last := tr.Last()
	if last.Device != "r1" || last.Status != StatusLoop {
		t.Errorf("last hop = %+v", last)
	}
}

func TestTrace_NoRoute(t *testing.T) {
	tests := []struct {
		name  string
		route string
		extra map[string]string
		want  State
	}{
		{
			name:  "not in any table",
			route: "% Network not in table",
			extra: map[string]string{"show ip route vrf * " + dest: "% Network not in table"},
			want:  StateFailed,
		},
		{
			name:  "found in vrf",
			route: "% Network not in table",
			extra: map[string]string{"show ip route vrf * " + dest: connectedRoute},
			want:  StateReached,
		},
		{
			name:  "nothing extractable",
			route: "Routing entry for 10.9.9.0/24\n  Known via \"static\"",
			want:  StateFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, dialer := lab(router{name: "r1", addr: "10.0.0.1", route: tt.route, iface: upIface, extra: tt.extra})
			tr := trace(t, Config{Inventory: inv, Dialer: dialer}, "r1")
			if tr.State != tt.want {
				t.Fatalf("State = %s (%s), want %s", tr.State, tr.Reason, tt.want)
			}
			if tt.want == StateFailed && tr.Last().Reason != ReasonNoRoute {
				t.Errorf("Reason = %q, want %q", tr.Last().Reason, ReasonNoRoute)
			}
		})
	}
}

func TestTrace_SessionErrorIsTerminalHop(t *testing.T) {
	inv, dialer := lab(
		router{name: "r1", addr: "10.0.0.1", route: viaRoute("10.0.0.2"), iface: upIface},
		router{name: "r2", addr: "10.0.0.2", route: connectedRoute, iface: upIface},
	)
	delete(dialer.Devices, "10.0.0.2")

	tr := trace(t, Config{Inventory: inv, Dialer: dialer}, "r1")

	if tr.State != StateFailed || len(tr.Hops) != 2 {
		t.Fatalf("State = %s with %d hops", tr.State, len(tr.Hops))
	}
	last := tr.Last()
	if last.Device != "r2" || last.Reason != ReasonSessionError || last.Error == "" {
		t.Errorf("last hop = %+v", last)
	}
}

func TestTrace_UnmanagedNextHop(t *testing.T) {
	arp := `Protocol  Address          Age (min)  Hardware Addr   Type   Interface
Internet  10.0.0.254              3   0000.0c07.ac01  ARPA   GigabitEthernet0/1`

	tests := []struct {
		name   string
		pinger *fakePinger
		reason string
	}{
		{"reachable", &fakePinger{ok: true}, ReasonUnmanaged},
		{"unreachable", &fakePinger{}, ReasonUnreachable},
		{"probe error", &fakePinger{err: errors.New("socket: permission denied")}, ReasonUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, dialer := lab(router{
				name: "r1", addr: "10.0.0.1", route: viaRoute("10.0.0.254"), iface: upIface,
				extra: map[string]string{"show ip arp": arp},
			})
			tr := trace(t, Config{Inventory: inv, Dialer: dialer, Pinger: tt.pinger}, "r1")

			if tr.State != StateFailed || tr.Reason != tt.reason {
				t.Fatalf("State = %s (%s), want FAILED (%s)", tr.State, tr.Reason, tt.reason)
			}
			hop := tr.Hops[0]
			if !hop.Unmanaged || hop.Virtual != "HSRP" || hop.Status != StatusOK {
				t.Errorf("hop = %+v", hop)
			}
			if len(tt.pinger.calls) != 1 || tt.pinger.calls[0] != "10.0.0.254" {
				t.Errorf("ping calls = %v", tt.pinger.calls)
			}
		})
	}
}

func TestTrace_MaxHops(t *testing.T) {
	inv, dialer := lab(
		router{name: "r1", addr: "10.0.0.1", route: viaRoute("10.0.0.2"), iface: upIface},
		router{name: "r2", addr: "10.0.0.2", route: viaRoute("10.0.0.3"), iface: upIface},
		router{name: "r3", addr: "10.0.0.3", route: connectedRoute, iface: upIface},
	)
	tr := trace(t, Config{Inventory: inv, Dialer: dialer, MaxHops: 2}, "r1")
	if tr.State != StateFailed || tr.Reason != ReasonMaxHops || len(tr.Hops) != 2 {
		t.Errorf("State = %s (%s) with %d hops", tr.State, tr.Reason, len(tr.Hops))
	}
}

func TestTrace_InvalidArguments(t *testing.T) {
	inv, dialer := lab(router{name: "r1", addr: "10.0.0.1", route: connectedRoute, iface: upIface})
	e := New(Config{Inventory: inv, Dialer: dialer})

	if _, err := e.Trace(context.Background(), "r1", "not-an-ip"); !errors.Is(err, util.ErrValidationFailed) {
		t.Errorf("bad destination: error = %v", err)
	}
	if _, err := e.Trace(context.Background(), "r9", dest); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("unknown start: error = %v", err)
	}
	if tr, err := e.Trace(context.Background(), "10.0.0.1", dest+"/32"); err != nil || tr.Source != "r1" {
		t.Errorf("start by address: trace = %+v, err = %v", tr, err)
	}
}

func TestTrace_Cancelled(t *testing.T) {
	inv, dialer := lab(router{name: "r1", addr: "10.0.0.1", route: connectedRoute, iface: upIface})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr, err := New(Config{Inventory: inv, Dialer: dialer}).Trace(ctx, "r1", dest)
	if err != nil {
		t.Fatalf("Trace() error = %v", err)
	}
	if tr.State != StateFailed || tr.Reason != ReasonInterrupted || len(tr.Hops) != 0 {
		t.Errorf("trace = %+v", tr)
	}
}

func TestVirtualProtocol(t *testing.T) {
	tests := []struct {
		mac  string
		want string
	}{
		{"0000.0c07.ac0a", "HSRP"},
		{"00:00:0C:9F:F0:01", "HSRPv2"},
		{"00-00-5e-00-01-07", "VRRP"},
		{"0007.b400.0102", "GLBP"},
		{"0011.2233.4455", ""},
		{"garbage", ""},
	}
	for _, tt := range tests {
		t.Run(tt.mac, func(t *testing.T) {
			if got := VirtualProtocol(tt.mac); got != tt.want {
				t.Errorf("VirtualProtocol(%q) = %q, want %q", tt.mac, got, tt.want)
			}
		})
	}
}
