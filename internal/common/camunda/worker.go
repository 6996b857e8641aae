// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"device-research/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// CommandTimeout bounds the complete, fail and throw-error commands a handler
// sends once its own work is done.
const CommandTimeout = 10 * time.Second

// CommandContext is detached from the job's processing deadline so a handler
// that used its whole budget can still report the outcome to the broker.
func CommandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), CommandTimeout)
}

type WorkerOptions struct {
	TaskType      string
	MaxJobsActive int
	Timeout       time.Duration
}

// OpenWorker starts polling for jobs of one task type. The returned worker
// must be closed on shutdown.
func (c *Client) OpenWorker(opts WorkerOptions, handler worker.JobHandler, log logger.Logger) worker.JobWorker {
	jobWorker := c.client.NewJobWorker().
		JobType(opts.TaskType).
		Handler(handler).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout).
		RequestTimeout(c.config.RequestTimeout).
		Name(fmt.Sprintf("%s-worker", opts.TaskType)).
		Open()

	log.Info("worker registered with Camunda", map[string]interface{}{
		"taskType":      opts.TaskType,
		"maxJobsActive": opts.MaxJobsActive,
		"timeout":       opts.Timeout.String(),
	})
	return jobWorker
}
