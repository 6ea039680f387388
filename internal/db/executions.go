package db

import (
	"context"
	"errors"

	"sentinel/internal/models"

	"github.com/jackc/pgx/v5"
)

// CreateExecution inserts the parent execution row in running state, with
// the declared action total, before any action dispatches.
func (d *DB) CreateExecution(ctx context.Context, e *models.AutomationExecution) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO automation_executions (id, automation_id, org_id, trigger_ts, trigger_event_uuid, status, total_actions, successful_actions, failed_actions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0)`,
		e.ID, e.AutomationID, e.OrgID, e.TriggerTimestamp, e.TriggerEventUUID, e.Status, e.TotalActions)
	return err
}

// FinalizeExecution settles the parent row once every action has resolved.
func (d *DB) FinalizeExecution(ctx context.Context, executionID string, status models.ExecutionStatus, successful, failed int, durationMs int64) error {
	_, err := d.pool.Exec(ctx,
		`UPDATE automation_executions
		 SET status = $1, successful_actions = $2, failed_actions = $3, duration_ms = $4
		 WHERE id = $5`,
		status, successful, failed, durationMs, executionID)
	return err
}

// CreateActionExecution inserts the per-action row in running state
// immediately before dispatch, so a crash mid-action is still visible.
func (d *DB) CreateActionExecution(ctx context.Context, a *models.AutomationActionExecution) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO automation_action_executions (id, execution_id, action_index, action_type, action_params, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.ExecutionID, a.ActionIndex, a.ActionType, a.ActionParams, a.Status, a.StartedAt)
	return err
}

// CompleteActionExecution settles the per-action row after dispatch.
func (d *DB) CompleteActionExecution(ctx context.Context, actionExecutionID string, status models.ActionStatus, errorMessage *string) error {
	_, err := d.pool.Exec(ctx,
		"UPDATE automation_action_executions SET status = $1, error_message = $2, completed_at = NOW() WHERE id = $3",
		status, errorMessage, actionExecutionID)
	return err
}

// ListExecutionsByOrg returns recent automation executions.
func (d *DB) ListExecutionsByOrg(ctx context.Context, orgID string, limit int) ([]models.AutomationExecution, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := d.pool.Query(ctx,
		`SELECT id, automation_id, org_id, trigger_ts, trigger_event_uuid, status, total_actions, successful_actions, failed_actions, duration_ms
		 FROM automation_executions WHERE org_id = $1 ORDER BY trigger_ts DESC LIMIT $2`,
		orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []models.AutomationExecution
	for rows.Next() {
		var e models.AutomationExecution
		if err := rows.Scan(&e.ID, &e.AutomationID, &e.OrgID, &e.TriggerTimestamp, &e.TriggerEventUUID,
			&e.Status, &e.TotalActions, &e.SuccessfulActions, &e.FailedActions, &e.DurationMs); err != nil {
			return nil, err
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

// GetExecutionByID fetches one execution within an organization, or
// (nil, nil) when it does not exist there.
func (d *DB) GetExecutionByID(ctx context.Context, orgID, executionID string) (*models.AutomationExecution, error) {
	var e models.AutomationExecution
	err := d.pool.QueryRow(ctx,
		`SELECT id, automation_id, org_id, trigger_ts, trigger_event_uuid, status, total_actions, successful_actions, failed_actions, duration_ms
		 FROM automation_executions WHERE org_id = $1 AND id = $2`,
		orgID, executionID).
		Scan(&e.ID, &e.AutomationID, &e.OrgID, &e.TriggerTimestamp, &e.TriggerEventUUID,
			&e.Status, &e.TotalActions, &e.SuccessfulActions, &e.FailedActions, &e.DurationMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListActionExecutions returns the action rows of one execution in index
// order, joined through the parent execution for org scoping.
func (d *DB) ListActionExecutions(ctx context.Context, orgID, executionID string) ([]models.AutomationActionExecution, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT a.id, a.execution_id, a.action_index, a.action_type, a.action_params, a.status, a.error_message, a.started_at, a.completed_at
		 FROM automation_action_executions a
		 JOIN automation_executions e ON e.id = a.execution_id
		 WHERE e.org_id = $1 AND a.execution_id = $2 ORDER BY a.action_index`,
		orgID, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []models.AutomationActionExecution
	for rows.Next() {
		var a models.AutomationActionExecution
		if err := rows.Scan(&a.ID, &a.ExecutionID, &a.ActionIndex, &a.ActionType, &a.ActionParams,
			&a.Status, &a.ErrorMessage, &a.StartedAt, &a.CompletedAt); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
