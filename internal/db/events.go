package db

import (
	"context"
	"encoding/json"

	"sentinel/internal/models"
)

// InsertEvent stores a standardized event exactly once. The second insert of
// the same event UUID is deduplicated; the returned bool reports whether the
// row was actually written.
func (d *DB) InsertEvent(ctx context.Context, e *models.StandardizedEvent) (bool, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return false, err
	}
	tag, err := d.pool.Exec(ctx,
		`INSERT INTO events (event_uuid, ts, connector_id, device_id, category, type, subtype, payload, original_event)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (event_uuid) DO NOTHING`,
		e.EventUUID, e.Timestamp, e.ConnectorID, e.DeviceID, e.Category, e.Type, e.Subtype, payload, e.OriginalEvent)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetEventByUUID fetches one event, joined through its connector for org
// scoping.
func (d *DB) GetEventByUUID(ctx context.Context, orgID, eventUUID string) (*models.StandardizedEvent, error) {
	var e models.StandardizedEvent
	var payload []byte
	err := d.pool.QueryRow(ctx,
		`SELECT e.id, e.event_uuid, e.ts, e.connector_id, e.device_id, e.category, e.type, e.subtype, e.payload, e.original_event
		 FROM events e
		 JOIN connectors c ON c.id = e.connector_id
		 WHERE c.org_id = $1 AND e.event_uuid = $2`,
		orgID, eventUUID).
		Scan(&e.ID, &e.EventUUID, &e.Timestamp, &e.ConnectorID, &e.DeviceID, &e.Category, &e.Type, &e.Subtype, &payload, &e.OriginalEvent)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, err
		}
	}
	return &e, nil
}
