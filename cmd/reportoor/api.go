package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/reportoor/pkg/api"
	"github.com/ethpandaops/reportoor/pkg/consumer"
	"github.com/ethpandaops/reportoor/pkg/producer"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the reporting API server",
	Long: `Start the reporting API server. Accepted requests are published to the
broker; with server.embedded_worker the consumer runs in the same process.`,
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := openPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.close()

	var worker consumer.Worker

	if cfg.Server.EmbeddedWorker {
		worker, err = p.newWorker(cfg)
		if err != nil {
			return err
		}

		if err := worker.Start(ctx); err != nil {
			return fmt.Errorf("starting worker: %w", err)
		}
	}

	handler := producer.NewHandler(log, p.store, p.allocator, p.broker)
	srv := api.NewServer(log, cfg, p.store, handler)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}

	sig := waitForSignal()
	log.WithField("signal", sig).Info("Shutting down API server")

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stopping api server: %w", err)
	}

	// The worker drains after the API stops accepting requests.
	if worker != nil {
		if err := worker.Stop(); err != nil {
			return fmt.Errorf("stopping worker: %w", err)
		}
	}

	return nil
}
