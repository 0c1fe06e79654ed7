package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"medreport/internal/logger"
	"medreport/pkg/models"
)

// Processor runs one report through the pipeline.
type Processor interface {
	ProcessReport(ctx context.Context, reportID, fileURI, mimeType, reportType string) models.ProcessingResult
}

// Handler processes TypeProcessReport tasks.
type Handler struct {
	processor Processor
	notifier  Notifier
	log       zerolog.Logger
}

// NewHandler creates a task handler. A nil notifier logs results instead.
func NewHandler(processor Processor, notifier Notifier) *Handler {
	if notifier == nil {
		notifier = NewLogNotifier()
	}
	return &Handler{
		processor: processor,
		notifier:  notifier,
		log:       logger.WithComponent("worker"),
	}
}

// ProcessTask implements asynq.Handler.
//
// Malformed payloads and extraction failures are not retried, since another
// attempt would see the same input. Transient OCR failures (quota, network)
// and all other failures are returned for retry; the store upserts make a
// repeated run safe.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	start := time.Now()

	payload, err := parsePayload(task)
	if err != nil {
		h.log.Error().Err(err).Str("type", task.Type()).Msg("Dropping malformed task")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log := logger.WithReportID("worker", payload.ReportID)
	log.Info().
		Str("file_uri", payload.FileURI).
		Str("report_type", payload.ReportType).
		Msg("Processing queued report")

	result := h.processor.ProcessReport(ctx, payload.ReportID, payload.FileURI, payload.MimeType, payload.ReportType)

	if err := h.notifier.Notify(context.WithoutCancel(ctx), result); err != nil {
		log.Warn().Err(err).Msg("Failed to publish result")
	}

	log.Info().
		Bool("success", result.Success).
		Dur("duration", time.Since(start)).
		Msg("Queued report finished")

	if result.Success {
		return nil
	}
	if result.FailedStage == models.StageExtraction && !result.Retryable {
		return fmt.Errorf("%s: %w", result.Error, asynq.SkipRetry)
	}
	return errors.New(result.Error)
}

// WorkerConfig configures the asynq server.
type WorkerConfig struct {
	RedisURL    string
	Queue       string
	Concurrency int
}

// Worker consumes the report queue.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	handler *Handler
	config  WorkerConfig
	log     zerolog.Logger
}

// NewWorker creates a worker serving handler.
func NewWorker(config WorkerConfig, handler *Handler) (*Worker, error) {
	if config.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if config.Queue == "" {
		return nil, fmt.Errorf("Queue is required")
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}

	redisOpt, err := asynq.ParseRedisURI(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	log := logger.WithComponent("worker")
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: config.Concurrency,
		Queues: map[string]int{
			config.Queue: 10,
			"default":    1,
		},
		RetryDelayFunc: retryDelay,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Warn().
				Err(err).
				Str("type", task.Type()).
				Int("retry", retried).
				Int("max_retry", maxRetry).
				Msg("Task failed")
		}),
		Logger: newAsynqLogger(logger.WithComponent("asynq")),
	})

	mux := asynq.NewServeMux()
	mux.Handle(TypeProcessReport, handler)

	return &Worker{
		server:  server,
		mux:     mux,
		handler: handler,
		config:  config,
		log:     log,
	}, nil
}

// Run processes tasks until ctx is cancelled, then shuts down gracefully.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().
		Int("concurrency", w.config.Concurrency).
		Str("queue", w.config.Queue).
		Msg("Starting worker")

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	<-ctx.Done()
	w.log.Info().Msg("Stopping worker")
	w.server.Shutdown()
	w.log.Info().Msg("Worker stopped")
	return nil
}

// retryDelay backs off exponentially from 5s, capped at one minute.
func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	delay := time.Duration(5*(1<<uint(n))) * time.Second
	if delay > time.Minute || delay <= 0 {
		delay = time.Minute
	}
	return delay
}

// asynqLogger adapts zerolog to asynq.Logger.
type asynqLogger struct {
	log zerolog.Logger
}

func newAsynqLogger(log zerolog.Logger) asynq.Logger {
	return &asynqLogger{log: log}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
