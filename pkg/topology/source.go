package topology

import (
	"context"

	"github.com/newtron-network/netverify/pkg/inventory"
	"github.com/newtron-network/netverify/pkg/parser"
	"github.com/newtron-network/netverify/pkg/session"
	"github.com/newtron-network/netverify/pkg/transport"
	"github.com/newtron-network/netverify/pkg/util"
	"github.com/newtron-network/netverify/pkg/vendor"
)

// Observation is what phase 1 learned from one device.
type Observation struct {
	Device  string
	Address string
	Source  string
	// SelfMAC is the MAC the device's own ARP table lists for its address.
	SelfMAC string
	// ARP maps address to MAC.
	ARP map[string]string
	// Ports maps MAC to the local port it was learned on.
	Ports map[string]string
	Err   error
}

// NewObservation returns an empty observation for dev.
func NewObservation(dev *inventory.Device, source string) *Observation {
	return &Observation{
		Device:  dev.Name,
		Address: dev.Address,
		Source:  source,
		ARP:     make(map[string]string),
		Ports:   make(map[string]string),
	}
}

// AddARP records one address/MAC binding. A port on the entry is used for
// correlation only when the forwarding table did not place the MAC.
func (o *Observation) AddARP(addr, mac, port string) {
	mac = util.NormalizeMAC(mac)
	if addr == "" || mac == "" {
		return
	}
	o.ARP[addr] = mac
	if addr == o.Address {
		o.SelfMAC = mac
	}
	if port != "" {
		if _, ok := o.Ports[mac]; !ok {
			o.Ports[mac] = port
		}
	}
}

// AddPort records a forwarding-table entry. It overrides a port learned from
// ARP.
func (o *Observation) AddPort(mac, port string) {
	mac = util.NormalizeMAC(mac)
	if mac == "" || port == "" {
		return
	}
	o.Ports[mac] = port
}

// Source collects ARP and forwarding tables from one device. It returns a
// partial observation alongside an error when collection stopped midway.
type Source interface {
	Name() string
	Collect(ctx context.Context, dev *inventory.Device) (*Observation, error)
}

// CLISource collects over a CLI session.
type CLISource struct {
	Dialer  transport.Dialer
	Session session.Config
}

func (c *CLISource) Name() string { return "cli" }

// Collect reads the ARP table, then the MAC table. Families without either
// command skip it.
func (c *CLISource) Collect(ctx context.Context, dev *inventory.Device) (*Observation, error) {
	obs := NewObservation(dev, c.Name())
	cfg := c.Session
	cfg.DisablePaging = true
	cfg.Escalate = true

	err := session.Run(ctx, dev, c.Dialer, cfg, func(s *session.Session) error {
		arp, err := table(ctx, s, vendor.OpARP)
		if err != nil {
			return err
		}
		for _, r := range arp {
			obs.AddARP(str(r, "address"), str(r, "mac"), str(r, "port"))
		}

		macs, err := table(ctx, s, vendor.OpMACTable)
		if err != nil {
			return err
		}
		for _, r := range macs {
			obs.AddPort(str(r, "mac"), str(r, "port"))
		}
		return nil
	})
	return obs, err
}

// table runs op with parsing. Unsupported commands and unparseable output
// yield no rows.
func table(ctx context.Context, s *session.Session, op vendor.Operation) ([]parser.Record, error) {
	log := util.WithDevice(s.Device().Name).WithField("operation", string(op))
	out, err := s.Command(ctx, op, vendor.Params{}, session.Options{Parse: true})
	if vendor.IsUnsupported(err) {
		log.Debugf("skipped: no %s command for %s", op, s.Family())
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if out.ParseErr != nil {
		log.WithError(out.ParseErr).Debugf("no rows")
		return nil, nil
	}
	return out.Structured, nil
}

func str(r parser.Record, key string) string {
	s, _ := r[key].(string)
	return s
}
