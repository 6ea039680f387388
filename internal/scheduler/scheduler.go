package scheduler

import (
	"context"
	"time"

	"sentinel/internal/taskqueue"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler owns the process-local cron jobs: the per-minute schedule tick
// and the daily sun-times refresh. The tick is enqueued rather than run
// inline so schedule evaluation shares the worker pool with event
// processing.
type Scheduler struct {
	cron      *cron.Cron
	queue     *taskqueue.Client
	refresher *SunTimesRefresher
	logger    *zap.Logger
}

// NewScheduler creates the scheduler.
func NewScheduler(queue *taskqueue.Client, refresher *SunTimesRefresher, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		queue:     queue,
		refresher: refresher,
		logger:    logger.Named("scheduler"),
	}
}

// Start registers the jobs and starts the cron runner.
func (s *Scheduler) Start() error {
	// Scheduled automations tolerate up to one minute of tick skew; this
	// cadence is what makes that window safe.
	if _, err := s.cron.AddFunc("* * * * *", s.tick); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("15 0 * * *", s.refreshSunTimes); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started")
	return nil
}

// Stop stops the cron runner and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.queue.EnqueueScheduleTick(ctx, time.Now()); err != nil {
		s.logger.Error("schedule tick enqueue failed", zap.Error(err))
	}
}

func (s *Scheduler) refreshSunTimes() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	s.refresher.RefreshAll(ctx)
}
