package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netverify/pkg/audit"
	"github.com/newtron-network/netverify/pkg/cli"
	"github.com/newtron-network/netverify/pkg/inventory"
	"github.com/newtron-network/netverify/pkg/topology"
	"github.com/newtron-network/netverify/pkg/util"
)

var topologyCmd = &cobra.Command{
	Use:   "topology",
	Short: "Reconstruct the layer-2 topology of the inventory",
	Long: `Collect ARP and MAC address tables from every device, then correlate
them into adjacencies. A link is labeled "portA <--> portB"; a side whose
port was not observed shows "?".

Devices that cannot be reached still appear as nodes with their error.

Examples:
  netverify topology -i lab.yaml
  netverify topology -i lab.yaml -d sw1,sw2,sw3 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, devs, err := selectDevices()
		if err != nil {
			return err
		}
		if len(app.devices) > 0 {
			inv = inventory.New(devs)
		}

		cfg := topology.NewConfig(inv, app.dialer, sessionConfig())
		cfg.Workers = workers()
		g, err := topology.New(cfg).Build(cmd.Context())

		event := audit.NewEvent(app.user, "", audit.OpTopology).WithResult(err)
		if g != nil {
			event.WithDuration(g.Duration).WithTarget(fmt.Sprintf("%d nodes, %d edges", len(g.Nodes), len(g.Edges)))
		}
		if lerr := audit.Log(event); lerr != nil {
			util.Warnf("audit: %v", lerr)
		}
		if err != nil {
			return err
		}

		if app.jsonOutput {
			return printJSON(g)
		}
		printGraph(g)
		return nil
	},
}

func printGraph(g *topology.Graph) {
	nodes := cli.NewTable("NAME", "ADDRESS", "FAMILY", "SOURCE", "STATUS")
	failed := 0
	for _, n := range g.Nodes {
		status := cli.Green("OK")
		if n.Error != "" {
			status = cli.Red(n.Error)
			failed++
		}
		nodes.Row(n.Name, n.Address, n.Family, n.Source, status)
	}
	nodes.Flush()
	fmt.Println()

	if len(g.Edges) == 0 {
		fmt.Println("No adjacencies found")
	} else {
		edges := cli.NewTable("A", "B", "LINK")
		for _, e := range g.Edges {
			edges.Row(e.A, e.B, e.Label)
		}
		edges.Flush()
	}

	fmt.Printf("\n%d node(s), %d link(s) in %s", len(g.Nodes), len(g.Edges), g.Duration.Round(time.Millisecond))
	if failed > 0 {
		fmt.Printf(", %s", cli.Yellow(fmt.Sprintf("%d device(s) not collected", failed)))
	}
	fmt.Println()
}
