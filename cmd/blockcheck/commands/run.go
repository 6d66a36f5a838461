package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"blockcheck/internal/catalog"
	"blockcheck/internal/metrics"
	"blockcheck/internal/monitor"
	"blockcheck/internal/storage"
)

func runCmd() *cobra.Command {
	var (
		asJSON  bool
		noSave  bool
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Probe every catalog domain once and print the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := catalog.Load(cfg.CatalogPath)
			if err != nil {
				return err
			}

			var store storage.RunStore
			if !noSave {
				store, err = openStore()
				if err != nil {
					return err
				}
				defer closeStore(store)
			}

			mon := newMonitor(seed, store, newProber())
			defer mon.Stop()

			if _, err := mon.StartRun().Wait(cmd.Context()); err != nil {
				return err
			}
			snap := mon.Snapshot()

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"state":      snap.State,
					"metrics":    snap.Metrics,
					"breakdown":  metrics.ByCategory(snap.Categories),
					"categories": snap.Categories,
				})
			}
			return writeReport(out, snap, verbose)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not append the run to history")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list every domain")
	return cmd
}

func writeReport(out io.Writer, snap monitor.Snapshot, verbose bool) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for ci, cat := range metrics.ByCategory(snap.Categories) {
		fmt.Fprintf(tw, "%s\t\t%d/%d blocked\t%d%%\n",
			cat.Name, cat.Metrics.Blocked, cat.Metrics.Total, cat.Metrics.BlockedPercentage)
		for i, svc := range cat.Services {
			fmt.Fprintf(tw, "  %s\t%s\t%d/%d blocked\t\n",
				svc.Name, outcomeLabel(svc.Outcome), svc.Metrics.Blocked, svc.Metrics.Total)
			if !verbose {
				continue
			}
			for _, d := range snap.Categories[ci].Services[i].Domains {
				fmt.Fprintf(tw, "    %s\t%s\t\t\n", d.Name, d.Status)
			}
		}
	}
	m := snap.Metrics
	fmt.Fprintf(tw, "\nTotal\t\t%d/%d blocked\t%d%%\n", m.Blocked, m.Total, m.BlockedPercentage)
	fmt.Fprintf(tw, "Reachable\t\t%d\t\n", m.Reachable)
	return tw.Flush()
}
