package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskFIFORecalculatePending recomputes products whose profit is pending.
	TaskFIFORecalculatePending = "fifo:recalculate-pending"
)

// FIFORecalcPayload carries scheduling metadata. RequestedAt is zero for
// scheduled runs, whose request time is when the worker picks them up.
type FIFORecalcPayload struct {
	RequestedAt time.Time `json:"requested_at"`
	Source      string    `json:"source"`
}

// NewFIFORecalcTask constructs an Asynq task for pending profit recalculation.
func NewFIFORecalcTask(source string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(FIFORecalcPayload{RequestedAt: at.UTC(), Source: source})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFIFORecalculatePending, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// NewFIFORecalcCronTask constructs the task registered with the scheduler.
func NewFIFORecalcCronTask() (*asynq.Task, error) {
	return NewFIFORecalcTask("cron", time.Time{})
}
