package db

import (
	"context"
	"errors"
	"time"

	"sentinel/internal/models"

	"github.com/jackc/pgx/v5"
)

// GetConnectorByID fetches a connector by id.
func (d *DB) GetConnectorByID(ctx context.Context, connectorID string) (*models.Connector, error) {
	var c models.Connector
	err := d.pool.QueryRow(ctx,
		"SELECT id, org_id, name, category, enabled, api_key_hash, config FROM connectors WHERE id = $1",
		connectorID).
		Scan(&c.ID, &c.OrgID, &c.Name, &c.Category, &c.Enabled, &c.APIKeyHash, &c.Config)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetSpaceByID fetches a space.
func (d *DB) GetSpaceByID(ctx context.Context, orgID, spaceID string) (*models.Space, error) {
	var s models.Space
	err := d.pool.QueryRow(ctx,
		"SELECT id, org_id, location_id, name FROM spaces WHERE org_id = $1 AND id = $2",
		orgID, spaceID).
		Scan(&s.ID, &s.OrgID, &s.LocationID, &s.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetLocationByID fetches a location.
func (d *DB) GetLocationByID(ctx context.Context, orgID, locationID string) (*models.Location, error) {
	var l models.Location
	err := d.pool.QueryRow(ctx,
		`SELECT id, org_id, name, time_zone, latitude, longitude, sunrise_time, sunset_time, sun_times_updated_at
		 FROM locations WHERE org_id = $1 AND id = $2`,
		orgID, locationID).
		Scan(&l.ID, &l.OrgID, &l.Name, &l.TimeZone, &l.Latitude, &l.Longitude, &l.SunriseTime, &l.SunsetTime, &l.SunTimesUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLocationsWithCoordinates returns every location that has coordinates,
// for the sun-times refresh job.
func (d *DB) ListLocationsWithCoordinates(ctx context.Context) ([]models.Location, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, org_id, name, time_zone, latitude, longitude, sunrise_time, sunset_time, sun_times_updated_at
		 FROM locations WHERE latitude IS NOT NULL AND longitude IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []models.Location
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.OrgID, &l.Name, &l.TimeZone, &l.Latitude, &l.Longitude,
			&l.SunriseTime, &l.SunsetTime, &l.SunTimesUpdatedAt); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// UpdateLocationSunTimes stores freshly computed sunrise/sunset instants.
func (d *DB) UpdateLocationSunTimes(ctx context.Context, locationID string, sunrise, sunset time.Time) error {
	_, err := d.pool.Exec(ctx,
		"UPDATE locations SET sunrise_time = $1, sunset_time = $2, sun_times_updated_at = NOW() WHERE id = $3",
		sunrise, sunset, locationID)
	return err
}
