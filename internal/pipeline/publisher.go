package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sentinel/internal/models"
	"sentinel/internal/pubsub"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PublisherStore is the write surface of the event publisher.
type PublisherStore interface {
	InsertEvent(ctx context.Context, e *models.StandardizedEvent) (bool, error)
	UpdateDeviceStatus(ctx context.Context, deviceID string, status *string, batteryPct *int) error
}

// Broadcaster is the pub/sub transport the publisher fans out on.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	SubscriberCount(ctx context.Context, channel string) int64
}

// AlarmEvaluator receives the event and the device's zone for the
// ARMED→TRIGGERED decision.
type AlarmEvaluator interface {
	EvaluateEvent(ctx context.Context, zone *models.AlarmZone, event *models.StandardizedEvent) error
}

// AutomationSink receives the event with its resolved context for trigger
// evaluation.
type AutomationSink interface {
	HandleEvent(ctx context.Context, event *models.StandardizedEvent, ectx *EventContext)
}

// EventMessage is the enriched fan-out message for live viewers.
type EventMessage struct {
	EventUUID   string                 `json:"event_uuid"`
	Timestamp   time.Time              `json:"timestamp"`
	ConnectorID string                 `json:"connector_id"`
	DeviceID    string                 `json:"device_id"`
	DeviceName  string                 `json:"device_name,omitempty"`
	SpaceName   string                 `json:"space_name,omitempty"`
	LocationName string                `json:"location_name,omitempty"`
	ZoneName    string                 `json:"zone_name,omitempty"`
	ZoneState   string                 `json:"zone_state,omitempty"`
	Category    string                 `json:"category"`
	Type        string                 `json:"type"`
	Subtype     string                 `json:"subtype,omitempty"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Thumbnail   string                 `json:"thumbnail,omitempty"`
}

// Publisher is the single writer of the event row and the orchestrator of
// the per-event pipeline: persist, resolve, fan out, mutate device state,
// evaluate alarms, evaluate automations. Every stage after the insert is
// individually isolated; a stage failure is logged and the next stage still
// runs.
type Publisher struct {
	store       PublisherStore
	resolver    *Resolver
	thumbnails  *ThumbnailCoordinator
	bus         Broadcaster
	cache       *redis.Client
	alarms      AlarmEvaluator
	automations AutomationSink
	logger      *zap.Logger
}

// NewPublisher creates the event publisher.
func NewPublisher(store PublisherStore, resolver *Resolver, thumbnails *ThumbnailCoordinator,
	bus Broadcaster, cache *redis.Client, alarms AlarmEvaluator, automations AutomationSink,
	logger *zap.Logger) *Publisher {
	return &Publisher{
		store:       store,
		resolver:    resolver,
		thumbnails:  thumbnails,
		bus:         bus,
		cache:       cache,
		alarms:      alarms,
		automations: automations,
		logger:      logger.Named("publisher"),
	}
}

// Process runs the pipeline for one standardized event. Only the event-row
// insert can abort processing; the caller gets an opaque success once the
// row is durable.
func (p *Publisher) Process(ctx context.Context, event *models.StandardizedEvent) error {
	inserted, err := p.store.InsertEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", event.EventUUID, err)
	}
	if !inserted {
		p.logger.Info("duplicate event ignored", zap.String("event_uuid", event.EventUUID))
		return nil
	}

	ectx, err := p.resolver.Resolve(ctx, event)
	if err != nil {
		// Without a connector there is no org scope; nothing downstream can
		// run safely.
		p.logger.Error("context resolution failed", zap.String("event_uuid", event.EventUUID), zap.Error(err))
		return nil
	}

	p.thumbnails.Attach(ctx, event, ectx)

	if err := p.fanOut(ctx, event, ectx); err != nil {
		p.logger.Warn("fan-out failed", zap.String("event_uuid", event.EventUUID), zap.Error(err))
	}

	if err := p.updateDevice(ctx, event, ectx); err != nil {
		p.logger.Warn("device update failed", zap.String("event_uuid", event.EventUUID), zap.Error(err))
	}

	if err := p.alarms.EvaluateEvent(ctx, ectx.Zone, event); err != nil {
		p.logger.Error("alarm evaluation failed", zap.String("event_uuid", event.EventUUID), zap.Error(err))
	}

	p.automations.HandleEvent(ctx, event, ectx)
	return nil
}

// fanOut publishes the base message and, only when someone is listening,
// the thumbnail-enriched variant.
func (p *Publisher) fanOut(ctx context.Context, event *models.StandardizedEvent, ectx *EventContext) error {
	msg := buildMessage(event, ectx, false)
	orgID := ectx.OrgID()
	if err := p.bus.Publish(ctx, pubsub.EventChannel(orgID), msg); err != nil {
		return err
	}

	if p.bus.SubscriberCount(ctx, pubsub.ThumbnailChannel(orgID)) > 0 {
		thumbMsg := buildMessage(event, ectx, true)
		if err := p.bus.Publish(ctx, pubsub.ThumbnailChannel(orgID), thumbMsg); err != nil {
			return err
		}
	}
	return nil
}

// updateDevice applies payload-carried status/battery to the device record
// and refreshes the cached device state.
func (p *Publisher) updateDevice(ctx context.Context, event *models.StandardizedEvent, ectx *EventContext) error {
	if ectx.Device == nil {
		return nil
	}

	var status *string
	if s := event.DisplayState(); s != "" {
		status = &s
	}
	var battery *int
	if b, ok := event.BatteryPercentage(); ok {
		battery = &b
	}
	if status == nil && battery == nil {
		return nil
	}

	if err := p.store.UpdateDeviceStatus(ctx, ectx.Device.ID, status, battery); err != nil {
		return err
	}

	if p.cache != nil && event.Payload != nil {
		state, err := json.Marshal(event.Payload)
		if err == nil {
			p.cache.Set(ctx, fmt.Sprintf("device:%s", ectx.Device.ID), state, time.Hour)
		}
	}
	return nil
}

func buildMessage(event *models.StandardizedEvent, ectx *EventContext, withThumbnail bool) EventMessage {
	msg := EventMessage{
		EventUUID:   event.EventUUID,
		Timestamp:   event.Timestamp,
		ConnectorID: event.ConnectorID,
		DeviceID:    event.DeviceID,
		Category:    event.Category,
		Type:        event.Type,
		Subtype:     event.Subtype,
		Payload:     event.Payload,
	}
	if ectx.Device != nil {
		msg.DeviceName = ectx.Device.Name
	}
	if ectx.Space != nil {
		msg.SpaceName = ectx.Space.Name
	}
	if ectx.Location != nil {
		msg.LocationName = ectx.Location.Name
	}
	if ectx.Zone != nil {
		msg.ZoneName = ectx.Zone.Name
		msg.ZoneState = string(ectx.Zone.ArmedState)
	}
	if withThumbnail {
		msg.Thumbnail = ectx.ThumbnailDataURI
	}
	return msg
}
