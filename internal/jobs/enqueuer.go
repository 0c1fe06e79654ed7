package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"medreport/internal/logger"
)

// ErrAlreadyQueued is returned when the report has a task that is pending,
// running or waiting for a retry.
var ErrAlreadyQueued = errors.New("report is already queued")

// TaskClient is the subset of *asynq.Client the enqueuer needs.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// TaskInspector is the subset of *asynq.Inspector used to clear finished
// tasks that still hold a report's task id.
type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
	Close() error
}

// EnqueuerConfig configures scheduled runs.
type EnqueuerConfig struct {
	Queue    string
	MaxRetry int
	Timeout  time.Duration // whole run, all stages
}

// Enqueuer schedules report processing runs.
type Enqueuer struct {
	client    TaskClient
	inspector TaskInspector
	config    EnqueuerConfig
	log       zerolog.Logger
}

// NewEnqueuer connects to the Redis instance at redisURL.
func NewEnqueuer(redisURL string, config EnqueuerConfig) (*Enqueuer, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return NewEnqueuerWithClient(asynq.NewClient(redisOpt), asynq.NewInspector(redisOpt), config), nil
}

// NewEnqueuerWithClient creates an enqueuer with an explicit client (for testing).
// Without an inspector every task id conflict is reported as ErrAlreadyQueued.
func NewEnqueuerWithClient(client TaskClient, inspector TaskInspector, config EnqueuerConfig) *Enqueuer {
	return &Enqueuer{
		client:    client,
		inspector: inspector,
		config:    config,
		log:       logger.WithComponent("enqueuer"),
	}
}

// Enqueue schedules a run and returns the task id.
func (e *Enqueuer) Enqueue(ctx context.Context, payload ProcessPayload) (string, error) {
	const op = "Enqueue"

	task, err := NewProcessTask(payload, e.config.Queue, e.config.MaxRetry, e.config.Timeout)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	info, err := e.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) && e.clearFinished(payload.ReportID) {
		info, err = e.client.EnqueueContext(ctx, task)
	}
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return "", fmt.Errorf("%s: %s: %w", op, payload.ReportID, ErrAlreadyQueued)
	}
	if err != nil {
		return "", fmt.Errorf("%s: failed to enqueue task: %w", op, err)
	}

	e.log.Info().
		Str("report_id", payload.ReportID).
		Str("task_id", info.ID).
		Str("queue", info.Queue).
		Msg("Report queued for processing")
	return info.ID, nil
}

// clearFinished deletes the report's previous task when it is archived or
// completed. asynq keeps such tasks, and with them their id, until they are
// pruned. It reports whether a task was deleted.
func (e *Enqueuer) clearFinished(reportID string) bool {
	if e.inspector == nil {
		return false
	}

	queue := e.queue()
	id := taskID(reportID)
	log := e.log.With().Str("report_id", reportID).Str("task_id", id).Logger()

	info, err := e.inspector.GetTaskInfo(queue, id)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to inspect conflicting task")
		return false
	}
	if info.State != asynq.TaskStateArchived && info.State != asynq.TaskStateCompleted {
		return false
	}

	if err := e.inspector.DeleteTask(queue, id); err != nil {
		log.Warn().Err(err).Str("state", info.State.String()).Msg("Failed to delete finished task")
		return false
	}
	log.Info().Str("state", info.State.String()).Msg("Cleared finished task before re-queueing")
	return true
}

func (e *Enqueuer) queue() string {
	if e.config.Queue == "" {
		return "default"
	}
	return e.config.Queue
}

// Close releases the Redis connections.
func (e *Enqueuer) Close() error {
	err := e.client.Close()
	if e.inspector != nil {
		err = errors.Join(err, e.inspector.Close())
	}
	return err
}
