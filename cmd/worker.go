package cmd

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"medreport/internal/container"
	"medreport/internal/jobs"
	"medreport/internal/logger"
	"medreport/internal/server"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued reports until interrupted",
	Long: `Consume the report queue (QUEUE_NAME on REDIS_URL) with WORKER_CONCURRENCY
parallel runs. Each result is published on NOTIFY_CHANNEL.

When HTTP_ADDR is set the worker also serves:
  GET /api/v1/health        liveness
  GET /api/v1/reports/:id   processed report and status
  GET /metrics              Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("worker")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(0, log)
	defer cancel()

	c, err := container.New(ctx, cfg)
	if err != nil {
		return describeError(err)
	}
	defer c.Close()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisURL:    cfg.RedisURL,
		Queue:       cfg.QueueName,
		Concurrency: cfg.WorkerConcurrency,
	}, jobs.NewHandler(c.Pipeline, c.Notifier(ctx)))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	if cfg.HTTPAddr != "" {
		srv := server.New(cfg.HTTPAddr, c.Pipeline, c.Metrics.Handler())
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	return g.Wait()
}
