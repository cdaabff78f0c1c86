package validation

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/aurelienbran/docproc/internal/logger"
)

// Scheduler runs a Sampler on a cron schedule, the way the teacher's cron
// service drives its own periodic scan.
type Scheduler struct {
	sched *gocron.Scheduler
}

// NewScheduler builds a scheduler in UTC; it does not start until Start is
// called.
func NewScheduler() *Scheduler {
	return &Scheduler{sched: gocron.NewScheduler(time.UTC)}
}

// ScheduleSampling registers a sampling run on cronExpr (e.g. every 15
// minutes), using strategy for every tick.
func (s *Scheduler) ScheduleSampling(cronExpr string, sampler *Sampler, strategy Strategy) error {
	_, err := s.sched.Cron(cronExpr).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		report, err := sampler.Run(ctx, strategy)
		if err != nil {
			logger.Error("sampling audit run failed", "error", err)
			return
		}
		logger.Info("sampling audit completed",
			"strategy", report.Strategy,
			"sample_size", report.SampleSize,
			"mean_confidence", report.MeanConfidence,
			"reprocessing_rate", report.ReprocessingRate,
		)
	})
	return err
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.sched.StartAsync()
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	s.sched.Stop()
}
