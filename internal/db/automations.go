package db

import (
	"context"
	"errors"

	"sentinel/internal/models"

	"github.com/jackc/pgx/v5"
)

// ListEnabledAutomationsByOrg returns every enabled automation for one
// organization.
func (d *DB) ListEnabledAutomationsByOrg(ctx context.Context, orgID string) ([]models.Automation, error) {
	return d.listAutomations(ctx,
		"SELECT id, org_id, name, enabled, location_id, config FROM automations WHERE org_id = $1 AND enabled = true",
		orgID)
}

// ListEnabledScheduledAutomations returns enabled schedule-triggered
// automations across all organizations, for the per-minute tick.
func (d *DB) ListEnabledScheduledAutomations(ctx context.Context) ([]models.Automation, error) {
	return d.listAutomations(ctx,
		"SELECT id, org_id, name, enabled, location_id, config FROM automations WHERE enabled = true AND config->'trigger'->>'type' = 'schedule'")
}

func (d *DB) listAutomations(ctx context.Context, query string, args ...interface{}) ([]models.Automation, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var automations []models.Automation
	for rows.Next() {
		var a models.Automation
		if err := rows.Scan(&a.ID, &a.OrgID, &a.Name, &a.Enabled, &a.LocationID, &a.ConfigJSON); err != nil {
			return nil, err
		}
		automations = append(automations, a)
	}
	return automations, rows.Err()
}

// GetNotificationSettings returns the organization's push notification
// service configuration, or (nil, nil) when none is set up.
func (d *DB) GetNotificationSettings(ctx context.Context, orgID string) (*models.NotificationSettings, error) {
	var s models.NotificationSettings
	err := d.pool.QueryRow(ctx,
		"SELECT org_id, enabled, api_token, default_group_key FROM notification_settings WHERE org_id = $1",
		orgID).
		Scan(&s.OrgID, &s.Enabled, &s.APIToken, &s.DefaultGroupKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
