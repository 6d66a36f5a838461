package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"blockcheck/internal/catalog"
)

func catalogCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate and list the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := catalog.Load(cfg.CatalogPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, cat := range seed.Categories() {
				fmt.Fprintln(out, cat.Name)
				for _, svc := range cat.Services {
					fmt.Fprintf(out, "  %s (%d)\n", svc.Name, len(svc.Domains))
					if !verbose {
						continue
					}
					for _, d := range svc.Domains {
						fmt.Fprintf(out, "    %s\n", d.Name)
					}
				}
			}
			fmt.Fprintf(out, "%d domains from %s\n", seed.Size(), catalogName(cfg.CatalogPath))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list every domain")
	return cmd
}
