package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/observability"
)

const statusGaugeTimeout = 10 * time.Second

// StatusCounter reports how many stored tickets sit in each status.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error)
}

// StatusGaugeJob periodically refreshes the tickets-by-status gauge.
type StatusGaugeJob struct {
	counter StatusCounter
	metrics *observability.Metrics
	logger  *zap.Logger
	cron    *cron.Cron
}

// NewStatusGaugeJob builds the job; Start schedules it.
func NewStatusGaugeJob(counter StatusCounter, metrics *observability.Metrics, logger *zap.Logger) *StatusGaugeJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusGaugeJob{
		counter: counter,
		metrics: metrics,
		logger:  logger,
		cron:    cron.New(cron.WithLocation(time.UTC)),
	}
}

// Start refreshes once and then on every tick of schedule (cron syntax or @every descriptor).
func (j *StatusGaugeJob) Start(schedule string) error {
	if _, err := j.cron.AddFunc(schedule, j.Refresh); err != nil {
		return fmt.Errorf("invalid status gauge schedule %q: %w", schedule, err)
	}
	j.Refresh()
	j.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running refresh.
func (j *StatusGaugeJob) Stop() {
	<-j.cron.Stop().Done()
}

// Refresh reads current counts into the gauge; every known status is reported.
func (j *StatusGaugeJob) Refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), statusGaugeTimeout)
	defer cancel()

	counts, err := j.counter.CountByStatus(ctx)
	if err != nil {
		j.logger.Warn("status gauge refresh failed", zap.Error(err))
		return
	}
	labels := make(map[string]int, len(domain.TicketStatuses))
	for _, status := range domain.TicketStatuses {
		labels[string(status)] = counts[status]
	}
	j.metrics.SetTicketStatusCounts(labels)
}
