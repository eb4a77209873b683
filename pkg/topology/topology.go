// Package topology reconstructs the layer-2 adjacency graph of an inventory
// from ARP and forwarding-table data.
//
// Reconstruction runs in two phases. Phase 1 collects tables from every
// device concurrently; a device that fails is kept as a node with its error
// but never appears on an edge.
// Phase 2 starts only after every collection has finished and correlates the
// tables: device A is adjacent to device B on port P when A's forwarding
// table learned B's own MAC on P.
package topology

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/newtron-network/netverify/pkg/inventory"
	"github.com/newtron-network/netverify/pkg/session"
	"github.com/newtron-network/netverify/pkg/transport"
	"github.com/newtron-network/netverify/pkg/util"
	"github.com/newtron-network/netverify/pkg/vendor"
)

// DefaultWorkers bounds phase 1 concurrency.
const DefaultWorkers = 8

// Unseen labels the side of an edge whose port was not observed.
const Unseen = "?"

// Node is one inventory device.
type Node struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Family  string `json:"family"`
	Source  string `json:"source,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Edge is an undirected adjacency. A sorts before B; PortA is the port on A.
type Edge struct {
	A     string `json:"a"`
	B     string `json:"b"`
	PortA string `json:"port_a"`
	PortB string `json:"port_b"`
	Label string `json:"label"`
}

// Graph is the reconstructed topology. Nodes follow inventory order and edges
// are sorted by endpoint names.
type Graph struct {
	Nodes       []Node        `json:"nodes"`
	Edges       []Edge        `json:"edges"`
	CollectedAt time.Time     `json:"collected_at"`
	Duration    time.Duration `json:"duration"`
}

// Neighbors returns the names adjacent to name, sorted.
func (g *Graph) Neighbors(name string) []string {
	var out []string
	for _, e := range g.Edges {
		switch name {
		case e.A:
			out = append(out, e.B)
		case e.B:
			out = append(out, e.A)
		}
	}
	sort.Strings(out)
	return out
}

// Config wires the engine to its table sources.
type Config struct {
	Inventory *inventory.Inventory
	// CLI collects over a device session. Required.
	CLI Source
	// SNMP is used for devices that carry a community and whose family
	// has no arp or mac_table command. Nil disables it.
	SNMP Source
	// Workers defaults to DefaultWorkers.
	Workers int
}

// NewConfig returns a Config collecting over CLI sessions and SNMP v2c.
func NewConfig(inv *inventory.Inventory, dialer transport.Dialer, sc session.Config) Config {
	return Config{
		Inventory: inv,
		CLI:       &CLISource{Dialer: dialer, Session: sc},
		SNMP:      &SNMPSource{},
	}
}

// Engine reconstructs topologies.
type Engine struct {
	cfg Config
}

// New returns an engine over cfg.
func New(cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Engine{cfg: cfg}
}

// Build runs both phases over every device of the inventory.
func (e *Engine) Build(ctx context.Context) (*Graph, error) {
	if e.cfg.Inventory == nil || e.cfg.CLI == nil {
		return nil, fmt.Errorf("topology: inventory and CLI source are required")
	}
	start := time.Now()
	devices := e.cfg.Inventory.Devices

	obs := e.collect(ctx, devices)
	g := Correlate(devices, obs)
	g.CollectedAt = start
	g.Duration = time.Since(start)
	util.Infof("topology: %d nodes, %d edges in %s", len(g.Nodes), len(g.Edges), g.Duration.Round(time.Millisecond))
	return g, nil
}

// collect is phase 1. obs[i] belongs to devices[i]; every slot is filled
// before it returns.
func (e *Engine) collect(ctx context.Context, devices []*inventory.Device) []*Observation {
	obs := make([]*Observation, len(devices))
	p := pool.New().WithMaxGoroutines(e.cfg.Workers)
	for i, dev := range devices {
		i, dev := i, dev
		p.Go(func() {
			src := e.sourceFor(dev)
			o, err := src.Collect(ctx, dev)
			if o == nil {
				o = NewObservation(dev, src.Name())
			}
			if err != nil {
				o.Err = err
				util.WithError(err).WithField("device", dev.Name).Warnf("topology collection failed")
			}
			obs[i] = o
		})
	}
	p.Wait()
	return obs
}

func (e *Engine) sourceFor(dev *inventory.Device) Source {
	if e.cfg.SNMP == nil || dev.SNMPCommunity == "" {
		return e.cfg.CLI
	}
	f := vendor.ResolveFamily(dev.Vendor)
	if vendor.Supports(f, vendor.OpARP) && vendor.Supports(f, vendor.OpMACTable) {
		return e.cfg.CLI
	}
	return e.cfg.SNMP
}

// Correlate is phase 2. obs must be index-aligned with devices; nil entries
// are treated as devices that returned nothing. An observation carrying an
// error contributes no edges, even when it holds partial tables, and its
// device cannot be the far end of an edge either.
func Correlate(devices []*inventory.Device, obs []*Observation) *Graph {
	g := &Graph{Nodes: make([]Node, 0, len(devices))}
	for i, dev := range devices {
		n := Node{Name: dev.Name, Address: dev.Address, Family: string(vendor.ResolveFamily(dev.Vendor))}
		if o := at(obs, i); o != nil {
			n.Source = o.Source
			if o.Err != nil {
				n.Error = o.Err.Error()
			}
		}
		g.Nodes = append(g.Nodes, n)
	}

	owners := selfMACs(devices, obs)

	edges := make(map[[2]string]*Edge)
	for i, dev := range devices {
		o := at(obs, i)
		if o == nil || o.Err != nil {
			continue
		}
		for _, mac := range sortedKeys(o.Ports) {
			peer, ok := owners[mac]
			if !ok || peer == dev.Name {
				continue
			}
			key := pairKey(dev.Name, peer)
			edge, ok := edges[key]
			if !ok {
				edge = &Edge{A: key[0], B: key[1]}
				edges[key] = edge
			}
			port := o.Ports[mac]
			if dev.Name == edge.A && edge.PortA == "" {
				edge.PortA = port
			} else if dev.Name == edge.B && edge.PortB == "" {
				edge.PortB = port
			}
		}
	}

	keys := make([][2]string, 0, len(edges))
	for k := range edges {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	g.Edges = make([]Edge, 0, len(keys))
	for _, k := range keys {
		e := edges[k]
		e.Label = Label(e.PortA, e.PortB)
		g.Edges = append(g.Edges, *e)
	}
	return g
}

// Label renders an edge as "portA <--> portB" with Unseen for a missing side.
func Label(portA, portB string) string {
	if portA == "" {
		portA = Unseen
	}
	if portB == "" {
		portB = Unseen
	}
	return portA + " <--> " + portB
}

// selfMACs maps each device's own MAC to its name, taken from the MAC its
// own ARP table lists for its management address. Devices whose collection
// failed are left out.
func selfMACs(devices []*inventory.Device, obs []*Observation) map[string]string {
	owners := make(map[string]string)
	for i, dev := range devices {
		if o := at(obs, i); o != nil && o.Err == nil && o.SelfMAC != "" {
			owners[o.SelfMAC] = dev.Name
		}
	}
	return owners
}

func at(obs []*Observation, i int) *Observation {
	if i < len(obs) {
		return obs[i]
	}
	return nil
}

func pairKey(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
