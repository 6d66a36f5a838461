package commands

import (
	"log"

	"github.com/spf13/cobra"

	"blockcheck/internal/catalog"
	"blockcheck/internal/config"
	"blockcheck/internal/monitor"
	"blockcheck/internal/probe"
	"blockcheck/internal/storage"
)

var (
	configPath  string
	catalogPath string
	cfg         config.Config
)

// Execute builds the command tree and runs it.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "blockcheck",
		Short: "Check whether ad and tracking hosts are reachable from this network",
		Long: "blockcheck probes a catalog of ad, analytics and telemetry hosts. " +
			"Hosts that cannot be reached are reported as blocked, which indicates " +
			"that an ad blocker or filtering resolver is active.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if catalogPath != "" {
				loaded.CatalogPath = catalogPath
			}
			cfg = loaded
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to configuration file (YAML)")
	root.PersistentFlags().StringVar(&catalogPath, "catalog", "", "catalog file (default: built-in catalog)")

	root.AddCommand(serveCmd(), runCmd(), historyCmd(), catalogCmd())
	return root
}

func newProber() *probe.HTTPProber {
	return probe.NewHTTPProber(probe.Options{Timeout: cfg.Probe.Timeout()})
}

func newMonitor(seed *catalog.Seed, store storage.RunStore, prober probe.Prober) *monitor.Monitor {
	opts := monitor.Options{
		Concurrency: cfg.Probe.Concurrency,
		LaunchRate:  cfg.Probe.LaunchRate,
		Interval:    cfg.Interval(),
	}
	if store != nil {
		opts.Recorder = store
	}
	return monitor.New(seed, prober, opts)
}

func openStore() (storage.RunStore, error) {
	return storage.Open(cfg.Storage.Driver, cfg.DataDirectory, cfg.HistoryLimit)
}

func closeStore(store storage.RunStore) {
	if err := store.Close(); err != nil {
		log.Printf("close storage: %v", err)
	}
}
