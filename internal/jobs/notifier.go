package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"medreport/internal/logger"
	"medreport/pkg/models"
)

// Notifier delivers the outcome of a background run.
type Notifier interface {
	Notify(ctx context.Context, result models.ProcessingResult) error
}

// Publisher is the subset of the go-redis client used to publish results.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes each result as JSON on a Redis channel.
type RedisNotifier struct {
	client  Publisher
	channel string
}

// NewRedisNotifier creates a notifier for an existing client.
func NewRedisNotifier(client Publisher, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, result models.ProcessingResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish result to %s: %w", n.channel, err)
	}
	return nil
}

// LogNotifier writes results to the log. Used when no Redis is configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.WithComponent("notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, result models.ProcessingResult) error {
	event := n.log.Info()
	if !result.Success {
		event = n.log.Warn().Str("error", result.Error).Str("stage", string(result.FailedStage))
	}
	event.
		Str("report_id", result.ReportID).
		Bool("success", result.Success).
		Int("images", len(result.ImageIDs)).
		Msg("Report processing finished")
	return nil
}
