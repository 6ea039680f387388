package automation

import (
	"context"
	"time"

	"sentinel/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerStore persists execution audit rows.
type LedgerStore interface {
	CreateExecution(ctx context.Context, e *models.AutomationExecution) error
	FinalizeExecution(ctx context.Context, executionID string, status models.ExecutionStatus, successful, failed int, durationMs int64) error
	CreateActionExecution(ctx context.Context, a *models.AutomationActionExecution) error
	CompleteActionExecution(ctx context.Context, actionExecutionID string, status models.ActionStatus, errorMessage *string) error
}

// Ledger records automation and per-action execution attempts. Ledger write
// failures are logged but never abort the execution they describe: the audit
// trail is best-effort, the actions are the point.
type Ledger struct {
	store  LedgerStore
	logger *zap.Logger
}

// NewLedger creates the execution ledger.
func NewLedger(store LedgerStore, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, logger: logger.Named("ledger")}
}

// BeginExecution writes the parent row with the declared action total before
// any action runs, so a crash mid-run still reports accurate totals.
func (l *Ledger) BeginExecution(ctx context.Context, a *models.Automation, triggerEventUUID *string, totalActions int, triggeredAt time.Time) *models.AutomationExecution {
	exec := &models.AutomationExecution{
		ID:               uuid.NewString(),
		AutomationID:     a.ID,
		OrgID:            a.OrgID,
		TriggerTimestamp: triggeredAt,
		TriggerEventUUID: triggerEventUUID,
		Status:           models.ExecutionStatusRunning,
		TotalActions:     totalActions,
	}
	if err := l.store.CreateExecution(ctx, exec); err != nil {
		l.logger.Error("execution row insert failed",
			zap.String("automation_id", a.ID),
			zap.Error(err))
	}
	return exec
}

// BeginAction writes the per-action row in running state immediately before
// dispatch.
func (l *Ledger) BeginAction(ctx context.Context, executionID string, index int, action models.ActionConfig) *models.AutomationActionExecution {
	actionExec := &models.AutomationActionExecution{
		ID:           uuid.NewString(),
		ExecutionID:  executionID,
		ActionIndex:  index,
		ActionType:   action.Type,
		ActionParams: action.Params,
		Status:       models.ActionStatusRunning,
		StartedAt:    time.Now(),
	}
	if err := l.store.CreateActionExecution(ctx, actionExec); err != nil {
		l.logger.Error("action execution row insert failed",
			zap.String("execution_id", executionID),
			zap.Int("action_index", index),
			zap.Error(err))
	}
	return actionExec
}

// CompleteAction settles the per-action row after the action resolved.
func (l *Ledger) CompleteAction(ctx context.Context, actionExec *models.AutomationActionExecution, actionErr error) {
	status := models.ActionStatusSuccess
	var message *string
	if actionErr != nil {
		status = models.ActionStatusFailure
		m := actionErr.Error()
		message = &m
	}
	if err := l.store.CompleteActionExecution(ctx, actionExec.ID, status, message); err != nil {
		l.logger.Error("action execution row update failed",
			zap.String("action_execution_id", actionExec.ID),
			zap.Error(err))
	}
}

// Finalize settles the parent row once every action has resolved.
func (l *Ledger) Finalize(ctx context.Context, exec *models.AutomationExecution, successful, failed int, startedAt time.Time) {
	status := models.ExecutionStatusSuccess
	switch {
	case failed > 0 && successful > 0:
		status = models.ExecutionStatusPartialFailure
	case failed > 0:
		status = models.ExecutionStatusFailure
	}
	durationMs := time.Since(startedAt).Milliseconds()
	if err := l.store.FinalizeExecution(ctx, exec.ID, status, successful, failed, durationMs); err != nil {
		l.logger.Error("execution finalize failed",
			zap.String("execution_id", exec.ID),
			zap.Error(err))
	}
}
