package scheduler

import (
	"context"
	"time"

	"sentinel/internal/models"

	"github.com/nathan-osman/go-sunrise"
	"go.uber.org/zap"
)

// SunTimesStore is the persistence surface of the refresher.
type SunTimesStore interface {
	ListLocationsWithCoordinates(ctx context.Context) ([]models.Location, error)
	UpdateLocationSunTimes(ctx context.Context, locationID string, sunriseAt, sunsetAt time.Time) error
}

// SunTimesRefresher recomputes sunrise/sunset for every location with
// coordinates. Solar schedules refuse records older than seven days, so a
// daily run keeps them well inside that window.
type SunTimesRefresher struct {
	store  SunTimesStore
	logger *zap.Logger
}

// NewSunTimesRefresher creates the refresher.
func NewSunTimesRefresher(store SunTimesStore, logger *zap.Logger) *SunTimesRefresher {
	return &SunTimesRefresher{store: store, logger: logger.Named("suntimes")}
}

// RefreshAll updates every eligible location. Per-location failures are
// logged and skipped.
func (r *SunTimesRefresher) RefreshAll(ctx context.Context) {
	locations, err := r.store.ListLocationsWithCoordinates(ctx)
	if err != nil {
		r.logger.Error("location listing failed", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	for _, loc := range locations {
		rise, set := sunrise.SunriseSunset(*loc.Latitude, *loc.Longitude, now.Year(), now.Month(), now.Day())
		if rise.IsZero() || set.IsZero() {
			// Polar day/night: no sun event today at this latitude.
			r.logger.Warn("no sun events for location today", zap.String("location_id", loc.ID))
			continue
		}
		if err := r.store.UpdateLocationSunTimes(ctx, loc.ID, rise, set); err != nil {
			r.logger.Error("sun times update failed",
				zap.String("location_id", loc.ID),
				zap.Error(err))
			continue
		}
		r.logger.Debug("sun times refreshed",
			zap.String("location_id", loc.ID),
			zap.Time("sunrise", rise),
			zap.Time("sunset", set))
	}
}
