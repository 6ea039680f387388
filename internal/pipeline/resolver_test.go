package pipeline

import (
	"context"
	"errors"
	"testing"

	"sentinel/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeResolverStore struct {
	connector *models.Connector
	device    *models.Device
	space     *models.Space
	location  *models.Location
	zone      *models.AlarmZone
	failOn    string
}

func (f *fakeResolverStore) GetConnectorByID(_ context.Context, _ string) (*models.Connector, error) {
	if f.failOn == "connector" {
		return nil, errors.New("db down")
	}
	return f.connector, nil
}

func (f *fakeResolverStore) GetDeviceByExternalID(_ context.Context, _, _ string) (*models.Device, error) {
	if f.failOn == "device" {
		return nil, errors.New("db down")
	}
	return f.device, nil
}

func (f *fakeResolverStore) GetSpaceByID(_ context.Context, _, _ string) (*models.Space, error) {
	return f.space, nil
}

func (f *fakeResolverStore) GetLocationByID(_ context.Context, _, _ string) (*models.Location, error) {
	return f.location, nil
}

func (f *fakeResolverStore) GetZoneByID(_ context.Context, _, _ string) (*models.AlarmZone, error) {
	return f.zone, nil
}

func fullResolverStore() *fakeResolverStore {
	spaceID := "space-1"
	zoneID := "zone-1"
	return &fakeResolverStore{
		connector: &models.Connector{ID: "conn-1", OrgID: "org-1"},
		device: &models.Device{
			ID: "dev-1", ConnectorID: "conn-1", ExternalID: "ext-1",
			SpaceID: &spaceID, AlarmZoneID: &zoneID,
		},
		space:    &models.Space{ID: "space-1", OrgID: "org-1", LocationID: "loc-1"},
		location: &models.Location{ID: "loc-1", OrgID: "org-1"},
		zone:     &models.AlarmZone{ID: "zone-1", OrgID: "org-1"},
	}
}

func resolverEvent() *models.StandardizedEvent {
	return &models.StandardizedEvent{EventUUID: "evt-1", ConnectorID: "conn-1", DeviceID: "ext-1"}
}

func TestResolveFullChain(t *testing.T) {
	r := NewResolver(fullResolverStore(), zap.NewNop())

	ectx, err := r.Resolve(context.Background(), resolverEvent())
	require.NoError(t, err)

	assert.Equal(t, "org-1", ectx.OrgID())
	require.NotNil(t, ectx.Device)
	assert.Equal(t, "dev-1", ectx.Device.ID)
	require.NotNil(t, ectx.Space)
	require.NotNil(t, ectx.Location)
	require.NotNil(t, ectx.Zone)
	assert.Equal(t, "zone-1", ectx.Zone.ID)
	assert.Empty(t, ectx.ThumbnailDataURI)
}

func TestResolveUnknownConnectorFails(t *testing.T) {
	store := fullResolverStore()
	store.connector = nil
	r := NewResolver(store, zap.NewNop())

	_, err := r.Resolve(context.Background(), resolverEvent())
	assert.Error(t, err)
}

func TestResolveUnknownDeviceDegrades(t *testing.T) {
	store := fullResolverStore()
	store.device = nil
	r := NewResolver(store, zap.NewNop())

	ectx, err := r.Resolve(context.Background(), resolverEvent())
	require.NoError(t, err)

	assert.Equal(t, "org-1", ectx.OrgID())
	assert.Nil(t, ectx.Device)
	assert.Nil(t, ectx.Space)
	assert.Nil(t, ectx.Location)
	assert.Nil(t, ectx.Zone)
}

func TestResolveDeviceWithoutAssociations(t *testing.T) {
	store := fullResolverStore()
	store.device.SpaceID = nil
	store.device.AlarmZoneID = nil
	r := NewResolver(store, zap.NewNop())

	ectx, err := r.Resolve(context.Background(), resolverEvent())
	require.NoError(t, err)

	require.NotNil(t, ectx.Device)
	assert.Nil(t, ectx.Space)
	assert.Nil(t, ectx.Location)
	assert.Nil(t, ectx.Zone)
}

func TestResolveStoreErrors(t *testing.T) {
	for _, failOn := range []string{"connector", "device"} {
		t.Run(failOn, func(t *testing.T) {
			store := fullResolverStore()
			store.failOn = failOn
			r := NewResolver(store, zap.NewNop())

			_, err := r.Resolve(context.Background(), resolverEvent())
			assert.Error(t, err)
		})
	}
}

func TestEventContextOrgID(t *testing.T) {
	assert.Empty(t, (&EventContext{}).OrgID())
	assert.Equal(t, "org-1", (&EventContext{Connector: &models.Connector{OrgID: "org-1"}}).OrgID())
}
