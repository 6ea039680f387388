package connectors

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"sentinel/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventQueue is where the bridge hands normalized events off to.
type EventQueue interface {
	EnqueueEvent(ctx context.Context, event *models.StandardizedEvent) error
}

// bridgeEvent is the wire shape sensor-hub connectors publish over MQTT.
type bridgeEvent struct {
	EventID   string                 `json:"eventId,omitempty"`
	Timestamp *time.Time             `json:"timestamp,omitempty"`
	DeviceID  string                 `json:"deviceId"`
	Category  string                 `json:"category"`
	Type      string                 `json:"type"`
	Subtype   string                 `json:"subtype,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Bridge ingests connector events arriving over MQTT on
// connectors/<connectorID>/events and queues them for the pipeline.
type Bridge struct {
	client mqtt.Client
	queue  EventQueue
	logger *zap.Logger
}

// NewBridge creates the MQTT ingest bridge.
func NewBridge(client mqtt.Client, queue EventQueue, logger *zap.Logger) *Bridge {
	return &Bridge{client: client, queue: queue, logger: logger.Named("bridge")}
}

// Start subscribes to the connector event topic.
func (b *Bridge) Start() error {
	token := b.client.Subscribe("connectors/+/events", 1, b.onMessage)
	token.Wait()
	return token.Error()
}

// Stop disconnects the MQTT client.
func (b *Bridge) Stop() {
	b.client.Disconnect(250)
}

func (b *Bridge) onMessage(_ mqtt.Client, msg mqtt.Message) {
	connectorID := connectorIDFromTopic(msg.Topic())
	if connectorID == "" {
		b.logger.Warn("event on unexpected topic", zap.String("topic", msg.Topic()))
		return
	}

	var raw bridgeEvent
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		b.logger.Warn("unreadable connector event",
			zap.String("connector_id", connectorID),
			zap.Error(err))
		return
	}

	event := &models.StandardizedEvent{
		EventUUID:     raw.EventID,
		Timestamp:     time.Now(),
		ConnectorID:   connectorID,
		DeviceID:      raw.DeviceID,
		Category:      raw.Category,
		Type:          raw.Type,
		Subtype:       raw.Subtype,
		Payload:       raw.Payload,
		OriginalEvent: append(json.RawMessage(nil), msg.Payload()...),
	}
	if event.EventUUID == "" {
		event.EventUUID = uuid.NewString()
	}
	if raw.Timestamp != nil {
		event.Timestamp = *raw.Timestamp
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.queue.EnqueueEvent(ctx, event); err != nil {
		b.logger.Error("event enqueue failed",
			zap.String("connector_id", connectorID),
			zap.String("event_uuid", event.EventUUID),
			zap.Error(err))
	}
}

func connectorIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "connectors" || parts[2] != "events" {
		return ""
	}
	return parts[1]
}
