package pipeline

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"sentinel/internal/models"
	"sentinel/internal/pubsub"

	"go.uber.org/zap"
)

// thumbnailEligibleTypes are the event classes where a snapshot carries
// information. Everything else (battery, connectivity) never fetches.
var thumbnailEligibleTypes = map[string]bool{
	"motion_detected":  true,
	"person_detected":  true,
	"vehicle_detected": true,
	"animal_detected":  true,
	"door_opened":      true,
	"door_forced":      true,
	"glass_break":      true,
	"access_denied":    true,
}

// ThumbnailStore is the lookup surface for the coordinator's decision.
type ThumbnailStore interface {
	ListEnabledAutomationsByOrg(ctx context.Context, orgID string) ([]models.Automation, error)
	ListCamerasBySpace(ctx context.Context, spaceID string) ([]models.Device, error)
}

// BestShotFetcher fetches a snapshot from the camera platform.
type BestShotFetcher interface {
	FetchBestShot(ctx context.Context, connectorID, cameraID string, at time.Time) ([]byte, error)
}

// SubscriberCounter reports live subscriber counts on a fan-out channel.
type SubscriberCounter interface {
	SubscriberCount(ctx context.Context, channel string) int64
}

// ThumbnailCoordinator decides per event whether a camera snapshot is worth
// paying for, and fetches it when it is. This is cost control, not
// correctness: a missing thumbnail never blocks processing.
type ThumbnailCoordinator struct {
	store   ThumbnailStore
	counter SubscriberCounter
	camera  BestShotFetcher
	logger  *zap.Logger
}

// NewThumbnailCoordinator creates the coordinator.
func NewThumbnailCoordinator(store ThumbnailStore, counter SubscriberCounter, camera BestShotFetcher, logger *zap.Logger) *ThumbnailCoordinator {
	return &ThumbnailCoordinator{store: store, counter: counter, camera: camera, logger: logger.Named("thumbnail")}
}

// Attach fetches a best shot and sets ectx.ThumbnailDataURI when the event
// is eligible and either live viewers are subscribed or an enabled
// automation statically requires a thumbnail. Fetch failures degrade to "no
// thumbnail".
func (t *ThumbnailCoordinator) Attach(ctx context.Context, event *models.StandardizedEvent, ectx *EventContext) {
	cameras := t.candidateCameras(ctx, ectx)
	if !t.isEligible(event, cameras) {
		return
	}

	orgID := ectx.OrgID()
	subscribers := t.counter.SubscriberCount(ctx, pubsub.ThumbnailChannel(orgID))
	if subscribers == 0 && !t.automationNeedsThumbnail(ctx, orgID) {
		t.logger.Debug("no thumbnail consumers, skipping fetch",
			zap.String("event_uuid", event.EventUUID))
		return
	}

	for _, cam := range cameras {
		image, err := t.camera.FetchBestShot(ctx, cam.ConnectorID, cam.ExternalID, event.Timestamp)
		if err != nil {
			t.logger.Warn("best shot fetch failed",
				zap.String("camera_id", cam.ID),
				zap.String("event_uuid", event.EventUUID),
				zap.Error(err))
			continue
		}
		ectx.ThumbnailDataURI = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
		return
	}
}

// isEligible is the topic/category predicate plus "there is a camera to
// fetch from".
func (t *ThumbnailCoordinator) isEligible(event *models.StandardizedEvent, cameras []models.Device) bool {
	return thumbnailEligibleTypes[event.Type] && len(cameras) > 0
}

// candidateCameras resolves the cameras associated with the event's space.
func (t *ThumbnailCoordinator) candidateCameras(ctx context.Context, ectx *EventContext) []models.Device {
	if ectx.Space == nil {
		return nil
	}
	cameras, err := t.store.ListCamerasBySpace(ctx, ectx.Space.ID)
	if err != nil {
		t.logger.Warn("camera lookup failed", zap.String("space_id", ectx.Space.ID), zap.Error(err))
		return nil
	}
	return cameras
}

// automationNeedsThumbnail reports whether any enabled automation's action
// params reference a thumbnail token.
func (t *ThumbnailCoordinator) automationNeedsThumbnail(ctx context.Context, orgID string) bool {
	automations, err := t.store.ListEnabledAutomationsByOrg(ctx, orgID)
	if err != nil {
		t.logger.Warn("automation inspection failed", zap.String("org_id", orgID), zap.Error(err))
		return false
	}
	for _, a := range automations {
		cfg, err := a.ParseConfig()
		if err != nil {
			continue
		}
		for _, action := range cfg.Actions {
			if strings.Contains(string(action.Params), "{{thumbnail") {
				return true
			}
		}
	}
	return false
}
