package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore(store)

			records, err := store.HistoryN(limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			if len(records) == 0 {
				fmt.Fprintf(out, "no runs recorded in %s\n", store.Path())
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tBLOCKED\t%")
			for i := len(records) - 1; i >= 0; i-- {
				rec := records[i]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\n",
					rec.ID,
					rec.StartedAt.Local().Format(time.DateTime),
					rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond),
					rec.Metrics.Blocked, rec.Metrics.Total, rec.Metrics.BlockedPercentage)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print runs as JSON")
	return cmd
}
