package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netverify/pkg/audit"
	"github.com/newtron-network/netverify/pkg/cli"
	"github.com/newtron-network/netverify/pkg/util"
)

var masterFrom string

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Pin a stored snapshot as the master baseline",
	Long: `Pin each selected device's current snapshot (or a named backup) as its
master. 'compare --against master' and 'verify --against master' diff
against it.

Examples:
  netverify master -d core-sw1
  netverify master -d core-sw1 --from 20240301_093000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, devs, err := selectDevices()
		if err != nil {
			return err
		}
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		var failed int
		for _, dev := range devs {
			event := audit.NewEvent(app.user, dev.Name, audit.OpMaster).WithTarget(masterFrom)
			snap, err := st.Load(ctx, dev.Name)
			if masterFrom != "" {
				snap, err = st.LoadBackup(ctx, dev.Name, masterFrom)
			}
			if err == nil {
				err = st.SetMaster(ctx, snap)
			}
			audit.Log(event.WithResult(err))
			if err != nil {
				failed++
				fmt.Printf("%s %s: %v\n", cli.Red("✗"), dev.Name, err)
				continue
			}
			fmt.Printf("%s %s: master set from %s\n", cli.Green("✓"), dev.Name, snap.CapturedAt.Format("2006-01-02 15:04:05"))
		}
		if failed > 0 {
			return fmt.Errorf("%d device(s) failed", failed)
		}
		return nil
	},
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List stored backups per device",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, devs, err := selectDevices()
		if err != nil {
			return err
		}
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		all := map[string][]string{}
		t := cli.NewTable("DEVICE", "BACKUPS", "LATEST", "MASTER")
		for _, dev := range devs {
			names, err := st.Backups(ctx, dev.Name)
			if err != nil {
				return err
			}
			all[dev.Name] = names
			latest := ""
			if len(names) > 0 {
				latest = names[len(names)-1]
			}
			master := cli.Dim("none")
			if m, err := st.Master(ctx, dev.Name); err == nil {
				master = m.CapturedAt.Format("2006-01-02 15:04:05")
			}
			t.Row(dev.Name, fmt.Sprint(len(names)), latest, master)
		}
		if app.jsonOutput {
			return printJSON(all)
		}
		t.Flush()
		return nil
	},
}

var keywordsCmd = &cobra.Command{
	Use:   "keywords [keyword...]",
	Short: "Show or replace the keywords searched after each capture",
	Long: `Without arguments, show each selected device's keyword list. With
arguments, replace the list of every selected device; --clear empties it.

Examples:
  netverify keywords -d core-sw1
  netverify keywords -d core-sw1 err-disabled "changed state to down"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, devs, err := selectDevices()
		if err != nil {
			return err
		}
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		clearAll, _ := cmd.Flags().GetBool("clear")
		if len(args) > 0 || clearAll {
			if len(args) > 0 && clearAll {
				return util.NewValidationError("--clear takes no keywords")
			}
			for _, dev := range devs {
				if err := st.SetKeywords(ctx, dev.Name, args); err != nil {
					return err
				}
			}
			fmt.Printf("Keywords set on %d device(s)\n", len(devs))
			return nil
		}

		all := map[string][]string{}
		t := cli.NewTable("DEVICE", "KEYWORDS")
		for _, dev := range devs {
			kws, err := st.Keywords(ctx, dev.Name)
			if err != nil {
				return err
			}
			all[dev.Name] = kws
			t.Row(dev.Name, strings.Join(kws, ", "))
		}
		if app.jsonOutput {
			return printJSON(all)
		}
		t.Flush()
		return nil
	},
}

func init() {
	masterCmd.Flags().StringVar(&masterFrom, "from", "", "Backup name to pin instead of the current snapshot")
	keywordsCmd.Flags().Bool("clear", false, "Remove all keywords")
}
