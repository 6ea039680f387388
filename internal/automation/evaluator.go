package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentinel/internal/models"
	"sentinel/internal/pipeline"
	"sentinel/internal/rules"

	"go.uber.org/zap"
)

// EvaluatorStore lists the automations to evaluate.
type EvaluatorStore interface {
	ListEnabledAutomationsByOrg(ctx context.Context, orgID string) ([]models.Automation, error)
}

// Evaluator matches incoming events against every enabled event-triggered
// automation in the organization. Automations are independent of each other:
// they are dispatched concurrently and the evaluator waits for all of them
// to settle, never short-circuiting on a failure.
type Evaluator struct {
	store    EvaluatorStore
	executor *Executor
	logger   *zap.Logger
}

// NewEvaluator creates the trigger evaluator.
func NewEvaluator(store EvaluatorStore, executor *Executor, logger *zap.Logger) *Evaluator {
	return &Evaluator{store: store, executor: executor, logger: logger.Named("evaluator")}
}

// HandleEvent evaluates and executes all matching automations for one event.
// Implements the publisher's AutomationSink.
func (e *Evaluator) HandleEvent(ctx context.Context, event *models.StandardizedEvent, ectx *pipeline.EventContext) {
	orgID := ectx.OrgID()
	if orgID == "" {
		return
	}

	automations, err := e.store.ListEnabledAutomationsByOrg(ctx, orgID)
	if err != nil {
		e.logger.Error("automation listing failed",
			zap.String("org_id", orgID),
			zap.String("event_uuid", event.EventUUID),
			zap.Error(err))
		return
	}

	facts := BuildFacts(event, ectx)

	var wg sync.WaitGroup
	for i := range automations {
		a := automations[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("automation evaluation panicked",
						zap.String("automation_id", a.ID),
						zap.String("event_uuid", event.EventUUID),
						zap.Any("panic", r))
				}
			}()
			e.evaluateOne(ctx, &a, event, ectx, facts)
		}()
	}
	wg.Wait()
}

// evaluateOne runs the two-stage check for one automation: structural rule
// match first, then the time-of-day gate. Any evaluation error is a
// non-match; an automation whose condition cannot be proven true must not
// fire.
func (e *Evaluator) evaluateOne(ctx context.Context, a *models.Automation, event *models.StandardizedEvent, ectx *pipeline.EventContext, facts rules.Facts) {
	cfg, err := a.ParseConfig()
	if err != nil {
		e.logger.Error("automation config unreadable",
			zap.String("automation_id", a.ID),
			zap.String("automation_name", a.Name),
			zap.Error(err))
		return
	}
	if cfg.Trigger.Type != models.TriggerTypeEvent {
		return
	}

	matched, err := rules.Evaluate(cfg.Trigger.Conditions, facts)
	if err != nil {
		e.logger.Error("rule evaluation failed, treating as non-match",
			zap.String("automation_id", a.ID),
			zap.String("automation_name", a.Name),
			zap.String("event_uuid", event.EventUUID),
			zap.Error(err))
		return
	}
	if !matched {
		return
	}

	if cfg.Trigger.TimeOfDayFilter != nil {
		ok, err := timeOfDayAllows(cfg.Trigger.TimeOfDayFilter, event.Timestamp, ectx.Location)
		if err != nil {
			e.logger.Error("time-of-day filter unreadable, treating as non-match",
				zap.String("automation_id", a.ID),
				zap.Error(err))
			return
		}
		if !ok {
			return
		}
	}

	eventUUID := event.EventUUID
	e.executor.Execute(ctx, Invocation{
		Automation:       a,
		Config:           cfg,
		Tokens:           BuildEventTokenContext(event, ectx),
		TriggerEventUUID: &eventUUID,
		SourceDevice:     ectx.Device,
		TriggeredAt:      event.Timestamp,
	})
}

// timeOfDayAllows checks the event instant against the filter window in the
// device location's timezone (UTC when no location is resolvable). A window
// whose start is after its end wraps midnight.
func timeOfDayAllows(filter *models.TimeOfDayFilter, at time.Time, location *models.Location) (bool, error) {
	tz := time.UTC
	if location != nil && location.TimeZone != "" {
		loc, err := time.LoadLocation(location.TimeZone)
		if err != nil {
			return false, fmt.Errorf("load timezone %q: %w", location.TimeZone, err)
		}
		tz = loc
	}

	start, err := parseMinuteOfDay(filter.Start)
	if err != nil {
		return false, err
	}
	end, err := parseMinuteOfDay(filter.End)
	if err != nil {
		return false, err
	}

	local := at.In(tz)
	minute := local.Hour()*60 + local.Minute()

	if start <= end {
		return minute >= start && minute < end, nil
	}
	// Overnight window, e.g. 22:00-06:00.
	return minute >= start || minute < end, nil
}

func parseMinuteOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
