package db

import (
	"context"
	"errors"
	"fmt"

	"sentinel/internal/models"

	"github.com/jackc/pgx/v5"
)

// GetZoneByID fetches an alarm zone within an organization.
func (d *DB) GetZoneByID(ctx context.Context, orgID, zoneID string) (*models.AlarmZone, error) {
	var z models.AlarmZone
	err := d.pool.QueryRow(ctx,
		`SELECT id, org_id, location_id, name, armed_state, trigger_behavior
		 FROM alarm_zones WHERE org_id = $1 AND id = $2`,
		orgID, zoneID).
		Scan(&z.ID, &z.OrgID, &z.LocationID, &z.Name, &z.ArmedState, &z.TriggerBehavior)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &z, nil
}

// GetTriggerOverride fetches the per-event-type override for a zone, or
// (nil, nil) when none is configured.
func (d *DB) GetTriggerOverride(ctx context.Context, zoneID, eventType string) (*models.TriggerOverride, error) {
	var o models.TriggerOverride
	err := d.pool.QueryRow(ctx,
		"SELECT zone_id, event_type, should_trigger FROM alarm_zone_overrides WHERE zone_id = $1 AND event_type = $2",
		zoneID, eventType).
		Scan(&o.ZoneID, &o.EventType, &o.ShouldTrigger)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// TransitionZone flips a zone's armed state and writes the audit log entry
// in one transaction, so every new state has a traceable cause. The update
// is guarded on the expected previous state; a concurrent transition makes
// this one a no-op error.
func (d *DB) TransitionZone(ctx context.Context, entry models.AuditLogEntry) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		"UPDATE alarm_zones SET armed_state = $1 WHERE org_id = $2 AND id = $3 AND armed_state = $4",
		entry.NewState, entry.OrgID, entry.ZoneID, entry.PreviousState)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("zone %s no longer in state %s", entry.ZoneID, entry.PreviousState)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO audit_log (org_id, zone_id, action, previous_state, new_state, reason, trigger_event_uuid, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		entry.OrgID, entry.ZoneID, entry.Action, entry.PreviousState, entry.NewState, entry.Reason, entry.TriggerEventUUID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListZonesByLocation returns every zone in one location.
func (d *DB) ListZonesByLocation(ctx context.Context, orgID, locationID string) ([]models.AlarmZone, error) {
	return d.listZones(ctx,
		`SELECT id, org_id, location_id, name, armed_state, trigger_behavior
		 FROM alarm_zones WHERE org_id = $1 AND location_id = $2`, orgID, locationID)
}

// ListZonesByOrg returns every zone in the organization.
func (d *DB) ListZonesByOrg(ctx context.Context, orgID string) ([]models.AlarmZone, error) {
	return d.listZones(ctx,
		`SELECT id, org_id, location_id, name, armed_state, trigger_behavior
		 FROM alarm_zones WHERE org_id = $1`, orgID)
}

func (d *DB) listZones(ctx context.Context, query string, args ...interface{}) ([]models.AlarmZone, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []models.AlarmZone
	for rows.Next() {
		var z models.AlarmZone
		if err := rows.Scan(&z.ID, &z.OrgID, &z.LocationID, &z.Name, &z.ArmedState, &z.TriggerBehavior); err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// ListAuditLog returns the most recent zone transitions for an organization.
func (d *DB) ListAuditLog(ctx context.Context, orgID string, limit int) ([]models.AuditLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := d.pool.Query(ctx,
		`SELECT id, org_id, zone_id, action, previous_state, new_state, reason, trigger_event_uuid, created_at
		 FROM audit_log WHERE org_id = $1 ORDER BY created_at DESC LIMIT $2`,
		orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditLogEntry
	for rows.Next() {
		var e models.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.OrgID, &e.ZoneID, &e.Action, &e.PreviousState, &e.NewState, &e.Reason, &e.TriggerEventUUID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
