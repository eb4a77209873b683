package diag

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/newtron-network/netverify/pkg/inventory"
	"github.com/newtron-network/netverify/pkg/probe"
	"github.com/newtron-network/netverify/pkg/session"
	"github.com/newtron-network/netverify/pkg/util"
	"github.com/newtron-network/netverify/pkg/vendor"
)

// visit runs one hop on dev. It returns the hop and the managed device
// owning the next hop, which is nil when the hop terminates the traversal or
// the next hop is outside the inventory.
func (e *Engine) visit(ctx context.Context, dev *inventory.Device, dest string) (Hop, *inventory.Device) {
	hop := Hop{Device: dev.Name, Address: dev.Address, Status: StatusOK}
	log := util.WithDevice(dev.Name).WithField("destination", dest)

	s, err := session.Open(ctx, dev, e.cfg.Dialer, e.cfg.Session)
	if err != nil {
		return fail(ctx, hop, err), nil
	}
	defer s.Close()
	p := s.Profile()

	route, err := s.Command(ctx, vendor.OpRoute, vendor.Params{Target: dest}, session.Options{})
	if err != nil {
		return fail(ctx, hop, err), nil
	}
	raw := route.Raw

	if p.IsNotInTable(raw) {
		vrf, err := s.Command(ctx, vendor.OpRouteVRF, vendor.Params{Target: dest}, session.Options{})
		switch {
		case vendor.IsUnsupported(err):
			log.Debugf("no route_vrf command for %s", s.Family())
		case err != nil:
			return fail(ctx, hop, err), nil
		default:
			raw = vrf.Raw
		}
	}

	hop.NextHop = p.ExtractNextHop(raw)
	hop.Interface = p.ExtractInterface(raw)
	if p.IsNotInTable(raw) || (hop.NextHop == "" && hop.Interface == "") {
		hop.NextHop, hop.Interface = "", ""
		hop.Status, hop.Reason = StatusFail, ReasonNoRoute
		return hop, nil
	}
	if p.IsConnected(raw) || hop.NextHop == "" {
		hop.NextHop = dest
	}

	if hop.Interface != "" {
		if failed := e.checkInterface(ctx, s, &hop, log); failed {
			return hop, nil
		}
	}

	if hop.NextHop == dest {
		return hop, nil
	}
	if next := e.cfg.Inventory.ByAddress(hop.NextHop); next != nil {
		return hop, next
	}

	hop.Unmanaged = true
	hop.Virtual = e.classifyNextHop(ctx, s, hop.NextHop, log)
	hop.Reachable = e.ping(ctx, hop.NextHop, log)
	return hop, nil
}

// checkInterface reads interface detail and fills the hop's reason or
// warnings. It reports whether the hop failed.
func (e *Engine) checkInterface(ctx context.Context, s *session.Session, hop *Hop, log *logrus.Entry) bool {
	out, err := s.Command(ctx, vendor.OpInterface, vendor.Params{Iface: hop.Interface}, session.Options{})
	if vendor.IsUnsupported(err) {
		log.Debugf("no interface command for %s", s.Family())
		return false
	}
	if err != nil {
		*hop = fail(ctx, *hop, err)
		return true
	}

	report := e.checker.Run(hop.Device, hop.Interface, out.Raw)
	if crit := report.Critical(); crit != nil {
		hop.Status, hop.Reason = StatusFail, crit.Reason
		return true
	}
	hop.Warnings = report.Warnings()
	for _, w := range hop.Warnings {
		log.Warnf("%s: %s", hop.Interface, w)
	}
	return false
}

// classifyNextHop looks the next hop up in the device's ARP table and
// returns the first-hop redundancy protocol its MAC belongs to, if any.
// Best effort: every failure is logged and yields "".
func (e *Engine) classifyNextHop(ctx context.Context, s *session.Session, addr string, log *logrus.Entry) string {
	out, err := s.Command(ctx, vendor.OpARP, vendor.Params{Target: addr}, session.Options{Parse: true})
	if err != nil {
		log.WithError(err).Debugf("arp lookup for %s skipped", addr)
		return ""
	}
	if out.ParseErr != nil {
		log.WithError(out.ParseErr).Debugf("arp output not parsed")
		return ""
	}
	for _, rec := range out.Structured {
		if rec["address"] != addr {
			continue
		}
		mac, _ := rec["mac"].(string)
		if proto := VirtualProtocol(mac); proto != "" {
			log.Infof("next hop %s is a %s virtual address", addr, proto)
			return proto
		}
		return ""
	}
	return ""
}

func (e *Engine) ping(ctx context.Context, addr string, log *logrus.Entry) bool {
	if e.cfg.Pinger == nil {
		return false
	}
	ok, err := e.cfg.Pinger.Ping(ctx, addr, e.cfg.PingTimeout)
	if err != nil {
		if errors.Is(err, probe.ErrInterrupted) {
			log.Debugf("ping %s interrupted", addr)
		} else {
			log.WithError(err).Debugf("ping %s failed", addr)
		}
		return false
	}
	return ok
}

// fail turns a session or command error into a terminal hop.
func fail(ctx context.Context, hop Hop, err error) Hop {
	hop.Status = StatusFail
	hop.Error = err.Error()
	switch {
	case ctx.Err() != nil:
		hop.Reason = ReasonInterrupted
	case util.KindOf(err) == util.KindUnsupported:
		hop.Reason = ReasonUnsupported
	default:
		hop.Reason = ReasonSessionError
	}
	util.WithDevice(hop.Device).WithError(err).Warnf("hop failed: %s", hop.Reason)
	return hop
}
