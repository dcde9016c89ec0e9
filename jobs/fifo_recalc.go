package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/apotek-pos/apotek/internal/fifo"
	jobmetrics "github.com/apotek-pos/apotek/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// PendingRecalculator is satisfied by fifo.Service.
type PendingRecalculator interface {
	RecalculatePending(ctx context.Context) (fifo.RecalcOutcome, error)
}

// FIFORecalcJob reprices sales that were recorded before their purchases.
type FIFORecalcJob struct {
	Service PendingRecalculator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewFIFORecalcJob wires dependencies for the recalculation handler.
func NewFIFORecalcJob(svc PendingRecalculator, logger *slog.Logger, metrics *jobmetrics.Metrics) *FIFORecalcJob {
	return &FIFORecalcJob{Service: svc, Logger: logger, Metrics: metrics, Timeout: 5 * time.Minute}
}

// Handle processes TaskFIFORecalculatePending tasks.
func (j *FIFORecalcJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("fifo recalc: handler not configured")
	}
	var payload FIFORecalcPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskFIFORecalculatePending)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	requestedAt := payload.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = time.Now().UTC()
	}
	logger := j.logger().With(slog.String("source", payload.Source), slog.Time("requested_at", requestedAt))
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	start := time.Now()
	outcome, err := j.Service.RecalculatePending(ctx)
	if err != nil {
		resultErr = err
		logger.Error("recalculate pending products", slog.Any("error", err))
		return resultErr
	}
	logger.Info("completed fifo recalculation",
		slog.Int("checked", outcome.Checked),
		slog.Int("resolved", outcome.Resolved),
		slog.Int("pending", outcome.Pending),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *FIFORecalcJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskFIFORecalculatePending))
	}
	return slog.Default().With(slog.String("job", TaskFIFORecalculatePending))
}

func (j *FIFORecalcJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
