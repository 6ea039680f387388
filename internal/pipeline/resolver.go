package pipeline

import (
	"context"
	"fmt"

	"sentinel/internal/models"

	"go.uber.org/zap"
)

// EventContext is everything resolvable around one event, scoped to the
// connector's organization. Any field except Connector may be nil: an
// unknown device degrades the whole chain to nils rather than failing.
type EventContext struct {
	Connector *models.Connector
	Device    *models.Device
	Space     *models.Space
	Location  *models.Location
	Zone      *models.AlarmZone

	// ThumbnailDataURI is set by the thumbnail coordinator when a best shot
	// was fetched for this event, "" otherwise.
	ThumbnailDataURI string
}

// OrgID returns the owning organization.
func (c *EventContext) OrgID() string {
	if c.Connector == nil {
		return ""
	}
	return c.Connector.OrgID
}

// ResolverStore is the read-only lookup surface the resolver joins across.
type ResolverStore interface {
	GetConnectorByID(ctx context.Context, connectorID string) (*models.Connector, error)
	GetDeviceByExternalID(ctx context.Context, connectorID, externalID string) (*models.Device, error)
	GetSpaceByID(ctx context.Context, orgID, spaceID string) (*models.Space, error)
	GetLocationByID(ctx context.Context, orgID, locationID string) (*models.Location, error)
	GetZoneByID(ctx context.Context, orgID, zoneID string) (*models.AlarmZone, error)
}

// Resolver loads the device/space/location/zone context of an event. The
// publisher and the automation evaluator share one resolver so both see
// identical context for the same event.
type Resolver struct {
	store  ResolverStore
	logger *zap.Logger
}

// NewResolver creates the context resolver.
func NewResolver(store ResolverStore, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, logger: logger.Named("resolver")}
}

// Resolve builds the event context. Only a missing connector is an error;
// everything downstream of an unknown device is nil by design.
func (r *Resolver) Resolve(ctx context.Context, event *models.StandardizedEvent) (*EventContext, error) {
	connector, err := r.store.GetConnectorByID(ctx, event.ConnectorID)
	if err != nil {
		return nil, fmt.Errorf("load connector %s: %w", event.ConnectorID, err)
	}
	if connector == nil {
		return nil, fmt.Errorf("connector %s not found", event.ConnectorID)
	}

	ectx := &EventContext{Connector: connector}

	device, err := r.store.GetDeviceByExternalID(ctx, connector.ID, event.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("load device %s/%s: %w", connector.ID, event.DeviceID, err)
	}
	if device == nil {
		r.logger.Debug("unknown device, context degrades to nils",
			zap.String("connector_id", connector.ID),
			zap.String("external_device_id", event.DeviceID))
		return ectx, nil
	}
	ectx.Device = device

	if device.SpaceID != nil {
		space, err := r.store.GetSpaceByID(ctx, connector.OrgID, *device.SpaceID)
		if err != nil {
			return nil, fmt.Errorf("load space %s: %w", *device.SpaceID, err)
		}
		ectx.Space = space
		if space != nil {
			location, err := r.store.GetLocationByID(ctx, connector.OrgID, space.LocationID)
			if err != nil {
				return nil, fmt.Errorf("load location %s: %w", space.LocationID, err)
			}
			ectx.Location = location
		}
	}

	// One zone per device: the single-FK lookup is what enforces it here.
	if device.AlarmZoneID != nil {
		zone, err := r.store.GetZoneByID(ctx, connector.OrgID, *device.AlarmZoneID)
		if err != nil {
			return nil, fmt.Errorf("load zone %s: %w", *device.AlarmZoneID, err)
		}
		ectx.Zone = zone
	}

	return ectx, nil
}
