package commands

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"blockcheck/internal/catalog"
	"blockcheck/internal/server"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reachability API and push live results over websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.ListenAddr = addr
			}

			seed, err := catalog.Load(cfg.CatalogPath)
			if err != nil {
				return err
			}
			log.Printf("loaded %d domain(s) from %s", seed.Size(), catalogName(cfg.CatalogPath))

			store, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore(store)
			log.Printf("run history kept in %s (newest %d runs)", store.Path(), cfg.HistoryLimit)

			prober := newProber()
			log.Printf("probe timeout %s, concurrency %d", prober.Timeout(), cfg.Probe.Concurrency)
			mon := newMonitor(seed, store, prober)
			mon.Start()
			defer mon.Stop()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.WatchCatalog {
				watcher := catalog.NewWatcher(cfg.CatalogPath, mon.SetSeed)
				go func() {
					if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
						log.Printf("catalog watcher stopped: %v", err)
					}
				}()
			}

			srv := server.New(cfg.ListenAddr, mon, store, cfg.HistoryLimit)
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Printf("server shutdown: %v", err)
				}
			}()

			log.Printf("blockcheck listening on %s (interval %d minutes)", cfg.ListenAddr, cfg.IntervalMinutes)
			if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "address for the web server (overrides listen_addr)")
	return cmd
}

func catalogName(path string) string {
	if path == "" {
		return "built-in catalog"
	}
	return path
}
