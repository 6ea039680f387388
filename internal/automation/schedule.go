package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentinel/internal/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// fireWindow is how long after a schedule's instant a tick still fires it.
// The driving tick runs once per minute; a coarser cadence can silently miss
// schedules, which is accepted behavior.
const fireWindow = time.Minute

// maxSunTimesAge is how stale a location's sun-times record may be before
// solar schedules stop firing.
const maxSunTimesAge = 7 * 24 * time.Hour

// ScheduleStore lists scheduled automations and their location scope.
type ScheduleStore interface {
	ListEnabledScheduledAutomations(ctx context.Context) ([]models.Automation, error)
	GetLocationByID(ctx context.Context, orgID, locationID string) (*models.Location, error)
}

// ScheduleEvaluator fires schedule-triggered automations. Driven by an
// external per-minute tick; due automations across all organizations fan out
// concurrently.
type ScheduleEvaluator struct {
	store    ScheduleStore
	executor *Executor
	logger   *zap.Logger
}

// NewScheduleEvaluator creates the schedule evaluator.
func NewScheduleEvaluator(store ScheduleStore, executor *Executor, logger *zap.Logger) *ScheduleEvaluator {
	return &ScheduleEvaluator{store: store, executor: executor, logger: logger.Named("schedule")}
}

// Tick evaluates every enabled scheduled automation against "now". Missing
// location scope, stale sun data, or unparseable CRON expressions are all
// clean non-fires: logged, never thrown.
func (s *ScheduleEvaluator) Tick(ctx context.Context, now time.Time) {
	automations, err := s.store.ListEnabledScheduledAutomations(ctx)
	if err != nil {
		s.logger.Error("scheduled automation listing failed", zap.Error(err))
		return
	}

	var wg sync.WaitGroup
	for i := range automations {
		a := automations[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("schedule evaluation panicked",
						zap.String("automation_id", a.ID),
						zap.Any("panic", r))
				}
			}()
			s.evaluateOne(ctx, &a, now)
		}()
	}
	wg.Wait()
}

func (s *ScheduleEvaluator) evaluateOne(ctx context.Context, a *models.Automation, now time.Time) {
	cfg, err := a.ParseConfig()
	if err != nil {
		s.logger.Error("automation config unreadable",
			zap.String("automation_id", a.ID),
			zap.Error(err))
		return
	}
	if cfg.Trigger.Type != models.TriggerTypeSchedule {
		return
	}

	location := s.loadLocation(ctx, a)

	due, err := s.isDue(&cfg.Trigger, location, now)
	if err != nil {
		s.logger.Warn("schedule not evaluated this tick",
			zap.String("automation_id", a.ID),
			zap.String("automation_name", a.Name),
			zap.Error(err))
		return
	}
	if !due {
		return
	}

	s.logger.Info("scheduled automation due",
		zap.String("automation_id", a.ID),
		zap.String("automation_name", a.Name),
		zap.String("schedule_type", cfg.Trigger.ScheduleType))

	s.executor.Execute(ctx, Invocation{
		Automation:  a,
		Config:      cfg,
		Tokens:      BuildScheduleTokenContext(a, location, now),
		TriggeredAt: now,
	})
}

func (s *ScheduleEvaluator) loadLocation(ctx context.Context, a *models.Automation) *models.Location {
	if a.LocationID == nil {
		return nil
	}
	location, err := s.store.GetLocationByID(ctx, a.OrgID, *a.LocationID)
	if err != nil {
		s.logger.Warn("location lookup failed",
			zap.String("automation_id", a.ID),
			zap.String("location_id", *a.LocationID),
			zap.Error(err))
		return nil
	}
	return location
}

// isDue decides whether the schedule's instant falls inside the fire window
// ending at "now".
func (s *ScheduleEvaluator) isDue(trigger *models.TriggerConfig, location *models.Location, now time.Time) (bool, error) {
	switch trigger.ScheduleType {
	case models.ScheduleTypeFixedTime:
		return cronDue(trigger, location, now)
	case models.ScheduleTypeSunrise, models.ScheduleTypeSunset:
		return solarDue(trigger, location, now)
	}
	return false, fmt.Errorf("unknown schedule type %q", trigger.ScheduleType)
}

// cronDue fires when "now" is within one minute after the expression's
// previous occurrence in the schedule's timezone.
func cronDue(trigger *models.TriggerConfig, location *models.Location, now time.Time) (bool, error) {
	if trigger.CronExpression == "" {
		return false, fmt.Errorf("empty cron expression")
	}

	spec := fmt.Sprintf("CRON_TZ=%s %s", scheduleTimezone(trigger, location), trigger.CronExpression)
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return false, fmt.Errorf("parse cron %q: %w", trigger.CronExpression, err)
	}

	// The first occurrence after (now - window) is the previous occurrence
	// iff it is not in the future.
	occurrence := sched.Next(now.Add(-fireWindow))
	return !occurrence.After(now), nil
}

// solarDue fires when "now" is within one minute of today's sun time plus
// the configured offset, in the location's timezone. Requires a location
// with a sun-times record no older than seven days.
func solarDue(trigger *models.TriggerConfig, location *models.Location, now time.Time) (bool, error) {
	if location == nil {
		return false, fmt.Errorf("solar schedule has no location scope")
	}
	if location.SunTimesUpdatedAt == nil || now.Sub(*location.SunTimesUpdatedAt) > maxSunTimesAge {
		return false, fmt.Errorf("sun times for location %s missing or stale", location.ID)
	}

	sunTime := location.SunriseTime
	if trigger.ScheduleType == models.ScheduleTypeSunset {
		sunTime = location.SunsetTime
	}
	if sunTime == nil {
		return false, fmt.Errorf("no %s time recorded for location %s", trigger.ScheduleType, location.ID)
	}

	tz, err := time.LoadLocation(scheduleTimezone(trigger, location))
	if err != nil {
		return false, fmt.Errorf("load timezone: %w", err)
	}

	// Project the recorded sun time onto today's date in the location's
	// timezone; the record may be from an earlier day of the refresh cycle.
	recorded := sunTime.In(tz)
	local := now.In(tz)
	target := time.Date(local.Year(), local.Month(), local.Day(),
		recorded.Hour(), recorded.Minute(), recorded.Second(), 0, tz).
		Add(time.Duration(trigger.OffsetMinutes) * time.Minute)

	return !now.Before(target) && now.Sub(target) < fireWindow, nil
}

func scheduleTimezone(trigger *models.TriggerConfig, location *models.Location) string {
	if trigger.TimeZone != "" {
		return trigger.TimeZone
	}
	if location != nil && location.TimeZone != "" {
		return location.TimeZone
	}
	return "UTC"
}
