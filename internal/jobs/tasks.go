// Package jobs runs report processing in the background on an asynq queue
// and publishes each outcome to a notifier.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TypeProcessReport is the task type of a report processing run.
const TypeProcessReport = "report:process"

// ProcessPayload is the JSON payload of a TypeProcessReport task.
type ProcessPayload struct {
	ReportID   string `json:"reportId"`
	UserID     string `json:"userId,omitempty"`
	FileURI    string `json:"fileUri"`
	MimeType   string `json:"mimeType,omitempty"`
	ReportType string `json:"reportType,omitempty"`
}

func (p ProcessPayload) validate() error {
	if p.ReportID == "" {
		return fmt.Errorf("reportId is required")
	}
	if p.FileURI == "" {
		return fmt.Errorf("fileUri is required")
	}
	return nil
}

// NewProcessTask builds a task for payload. The report id doubles as the
// task id so a report can be queued at most once at a time.
func NewProcessTask(payload ProcessPayload, queue string, maxRetry int, timeout time.Duration) (*asynq.Task, error) {
	if err := payload.validate(); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	opts := []asynq.Option{
		asynq.TaskID(taskID(payload.ReportID)),
		asynq.MaxRetry(maxRetry),
	}
	if queue != "" {
		opts = append(opts, asynq.Queue(queue))
	}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	return asynq.NewTask(TypeProcessReport, data, opts...), nil
}

func parsePayload(task *asynq.Task) (ProcessPayload, error) {
	var payload ProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if err := payload.validate(); err != nil {
		return payload, fmt.Errorf("invalid payload: %w", err)
	}
	return payload, nil
}

func taskID(reportID string) string {
	return "report-" + reportID
}
