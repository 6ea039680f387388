package db

import (
	"context"
	"errors"
	"fmt"

	"sentinel/internal/models"

	"github.com/jackc/pgx/v5"
)

// GetDeviceByExternalID fetches the internal device record for a connector's
// external device id. Returns (nil, nil) when the device is unknown so
// callers can degrade instead of failing.
func (d *DB) GetDeviceByExternalID(ctx context.Context, connectorID, externalID string) (*models.Device, error) {
	var dev models.Device
	err := d.pool.QueryRow(ctx,
		`SELECT id, connector_id, external_id, name, type, subtype, status, battery_pct, space_id, alarm_zone_id, camera_ids
		 FROM devices WHERE connector_id = $1 AND external_id = $2`,
		connectorID, externalID).
		Scan(&dev.ID, &dev.ConnectorID, &dev.ExternalID, &dev.Name, &dev.Type, &dev.Subtype,
			&dev.Status, &dev.BatteryPct, &dev.SpaceID, &dev.AlarmZoneID, &dev.CameraIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

// GetDeviceByID fetches a device by internal id within an organization.
func (d *DB) GetDeviceByID(ctx context.Context, orgID, deviceID string) (*models.Device, error) {
	var dev models.Device
	err := d.pool.QueryRow(ctx,
		`SELECT d.id, d.connector_id, d.external_id, d.name, d.type, d.subtype, d.status, d.battery_pct, d.space_id, d.alarm_zone_id, d.camera_ids
		 FROM devices d
		 JOIN connectors c ON c.id = d.connector_id
		 WHERE c.org_id = $1 AND d.id = $2`,
		orgID, deviceID).
		Scan(&dev.ID, &dev.ConnectorID, &dev.ExternalID, &dev.Name, &dev.Type, &dev.Subtype,
			&dev.Status, &dev.BatteryPct, &dev.SpaceID, &dev.AlarmZoneID, &dev.CameraIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

// UpdateDeviceStatus writes only the fields the event payload carried.
// Last write wins; there is no optimistic concurrency check.
func (d *DB) UpdateDeviceStatus(ctx context.Context, deviceID string, status *string, batteryPct *int) error {
	switch {
	case status != nil && batteryPct != nil:
		_, err := d.pool.Exec(ctx, "UPDATE devices SET status = $1, battery_pct = $2 WHERE id = $3", *status, *batteryPct, deviceID)
		return err
	case status != nil:
		_, err := d.pool.Exec(ctx, "UPDATE devices SET status = $1 WHERE id = $2", *status, deviceID)
		return err
	case batteryPct != nil:
		_, err := d.pool.Exec(ctx, "UPDATE devices SET battery_pct = $1 WHERE id = $2", *batteryPct, deviceID)
		return err
	}
	return nil
}

// AssignDeviceToZone attaches a device to an alarm zone. A device belongs to
// at most one zone; reassignment requires an explicit detach first.
func (d *DB) AssignDeviceToZone(ctx context.Context, orgID, deviceID, zoneID string) error {
	tag, err := d.pool.Exec(ctx,
		`UPDATE devices d SET alarm_zone_id = $3
		 FROM connectors c
		 WHERE c.id = d.connector_id AND c.org_id = $1 AND d.id = $2 AND d.alarm_zone_id IS NULL`,
		orgID, deviceID, zoneID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("device %s not found or already assigned to a zone", deviceID)
	}
	return nil
}

// ListCamerasBySpace returns the camera devices associated with a space.
func (d *DB) ListCamerasBySpace(ctx context.Context, spaceID string) ([]models.Device, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, connector_id, external_id, name, type, subtype, status, battery_pct, space_id, alarm_zone_id, camera_ids
		 FROM devices WHERE space_id = $1 AND type = 'camera'`, spaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cameras []models.Device
	for rows.Next() {
		var dev models.Device
		if err := rows.Scan(&dev.ID, &dev.ConnectorID, &dev.ExternalID, &dev.Name, &dev.Type, &dev.Subtype,
			&dev.Status, &dev.BatteryPct, &dev.SpaceID, &dev.AlarmZoneID, &dev.CameraIDs); err != nil {
			return nil, err
		}
		cameras = append(cameras, dev)
	}
	return cameras, rows.Err()
}
