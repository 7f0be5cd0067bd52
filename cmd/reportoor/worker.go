package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start a reporting consumer",
	Long: `Start a consumer that materializes launches and test items from the
broker. Requires the redis broker; the memory broker only works with the
API's embedded worker.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.Broker.Driver != "redis" {
		return fmt.Errorf("worker requires broker.driver=redis, got %q", cfg.Broker.Driver)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := openPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.close()

	worker, err := p.newWorker(cfg)
	if err != nil {
		return err
	}

	if err := worker.Start(ctx); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}

	if cfg.Worker.MetricsListen != "" {
		srv, err := startMetricsServer(cfg.Worker.MetricsListen)
		if err != nil {
			_ = worker.Stop()

			return err
		}

		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("Metrics server shutdown error")
			}
		}()
	}

	sig := waitForSignal()
	log.WithField("signal", sig).Info("Shutting down worker")
	cancel()

	if err := worker.Stop(); err != nil {
		return fmt.Errorf("stopping worker: %w", err)
	}

	return nil
}
