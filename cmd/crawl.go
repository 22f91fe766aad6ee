package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Harryguci/Car-Resource-Crawler/internal/app"
	"github.com/Harryguci/Car-Resource-Crawler/internal/config"
	"github.com/Harryguci/Car-Resource-Crawler/internal/crawler"
)

func newCrawlCmd() *cobra.Command {
	var (
		query       string
		concurrency int
		maxPages    int
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl job to completion",
		Long: `Starts a crawl job for the given search query and blocks until it
finishes. SIGINT/SIGTERM request a cooperative stop; in-flight downloads are
allowed to complete before the job reports stopped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if query == "" && len(cfg.Crawler.DefaultQueries) > 0 {
				query = cfg.Crawler.DefaultQueries[0]
			}

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("init application: %w", err)
			}
			defer a.Close()
			if metricsAddr != "" {
				a.ServeMetrics(metricsAddr)
			}

			handle, err := a.Controller.Start(query, concurrency, maxPages)
			if err != nil {
				return fmt.Errorf("start crawl: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			select {
			case <-ctx.Done():
				a.Logger.Info("stop requested, waiting for in-flight work")
				a.Controller.Stop()
				<-handle.Done()
			case <-handle.Done():
			}

			final := a.Controller.Status()
			a.Logger.Info("crawl finished",
				zap.String("status", string(final.Status)),
				zap.Int("pages_processed", final.Counters.PagesProcessed),
				zap.Int("items_found", final.Counters.ItemsFound),
				zap.Int("items_downloaded", final.Counters.ItemsDownloaded),
				zap.Int("failed_count", final.Counters.FailedCount),
				zap.String("last_error", final.LastError),
			)
			if final.Status == crawler.JobStatusFailed {
				return fmt.Errorf("crawl failed: %s", final.LastError)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search query (defaults to the first configured query)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "download worker count (0 = configured default)")
	cmd.Flags().IntVarP(&maxPages, "max-pages", "p", -1, "page cap, 0 = until provider exhaustion (-1 = configured default)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address for the Prometheus endpoint, e.g. :9090")
	return cmd
}
