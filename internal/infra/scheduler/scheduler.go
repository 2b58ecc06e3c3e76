package scheduler

import (
	"context"
	"time"

	"club_billing_portal/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CronSpecs holds one cron expression per scheduled job.
type CronSpecs struct {
	Reminder   string // e.g. "0 9 * * *"
	Overdue    string // e.g. "0 10 * * *"
	Wishes     string // e.g. "0 8 * * *"
	Generation string // e.g. "30 0 * * *"
	Retention  string // e.g. "0 2 * * 0" (weekly)
}

// SweepScheduler drives the SweepService jobs on their cron specs. A job
// failure is logged and isolated; it never affects the other jobs or the
// next tick of the same job.
type SweepScheduler struct {
	cronEngine *cron.Cron
	sweeps     *app.SweepService
	specs      CronSpecs
	logger     *logrus.Logger
}

func NewSweepScheduler(sweeps *app.SweepService, specs CronSpecs, logger *logrus.Logger) *SweepScheduler {
	return &SweepScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)),
		sweeps:     sweeps,
		specs:      specs,
		logger:     logger,
	}
}

func (s *SweepScheduler) Start() error {
	jobs := []struct {
		name    string
		spec    string
		timeout time.Duration
		run     func(context.Context) error
	}{
		{"payment reminders", s.specs.Reminder, 5 * time.Minute, s.sweeps.ReminderSweep},
		{"overdue notices", s.specs.Overdue, 5 * time.Minute, s.sweeps.OverdueSweep},
		{"birthday and anniversary wishes", s.specs.Wishes, 5 * time.Minute, s.sweeps.WishesSweep},
		{"obligation generation", s.specs.Generation, 10 * time.Minute, s.sweeps.GenerationSweep},
		{"retention cleanup", s.specs.Retention, 10 * time.Minute, s.sweeps.RetentionSweep},
	}

	for _, job := range jobs {
		job := job
		_, err := s.cronEngine.AddFunc(job.spec, func() {
			s.logger.WithField("job", job.name).Info("Cron job triggered")
			ctx, cancel := context.WithTimeout(context.Background(), job.timeout)
			defer cancel()
			if err := job.run(ctx); err != nil {
				s.logger.WithError(err).WithField("job", job.name).Error("Cron job failed")
			}
		})
		if err != nil {
			return err
		}
	}

	s.cronEngine.Start()
	s.logger.Info("Sweep scheduler started with jobs")
	return nil
}

func (s *SweepScheduler) Stop() {
	s.logger.Info("Stopping sweep scheduler...")
	ctx := s.cronEngine.Stop() // waits for running jobs
	<-ctx.Done()
	s.logger.Info("Sweep scheduler gracefully stopped")
}
