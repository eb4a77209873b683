package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netverify/pkg/cli"
	"github.com/newtron-network/netverify/pkg/vendor"
)

var vendorsCmd = &cobra.Command{
	Use:   "vendors",
	Short: "List vendor families and the operations each supports",
	Long: `List the vendor families known to the registry. With --ops, show the
operation matrix: "+" marks an operation the family has a command for.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		type family struct {
			Family     string   `json:"family"`
			Operations []string `json:"operations"`
		}
		var out []family
		for _, f := range vendor.Families() {
			fam := family{Family: string(f)}
			for _, op := range vendor.Operations() {
				if vendor.Supports(f, op) {
					fam.Operations = append(fam.Operations, string(op))
				}
			}
			out = append(out, fam)
		}
		if app.jsonOutput {
			return printJSON(out)
		}

		if !vendorsOps {
			t := cli.NewTable("FAMILY", "OPERATIONS")
			for _, f := range out {
				t.Row(f.Family, fmt.Sprintf("%d", len(f.Operations)))
			}
			t.Flush()
			return nil
		}

		headers := []string{"OPERATION"}
		for _, f := range out {
			headers = append(headers, f.Family)
		}
		t := cli.NewTable(headers...)
		for _, op := range vendor.Operations() {
			row := []string{string(op)}
			for _, f := range vendor.Families() {
				if vendor.Supports(f, op) {
					row = append(row, cli.Green("+"))
				} else {
					row = append(row, cli.Dim("-"))
				}
			}
			t.Row(row...)
		}
		t.Flush()
		return nil
	},
}

var vendorsOps bool

func init() {
	vendorsCmd.Flags().BoolVar(&vendorsOps, "ops", false, "Show the operation matrix")
}
