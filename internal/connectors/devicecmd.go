package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// DeviceCommander requests state changes on physical devices over the MQTT
// command topic.
type DeviceCommander struct {
	client mqtt.Client
	logger *zap.Logger
}

// NewDeviceCommander creates the device command driver.
func NewDeviceCommander(client mqtt.Client, logger *zap.Logger) *DeviceCommander {
	return &DeviceCommander{client: client, logger: logger.Named("devicecmd")}
}

// RequestStateChange publishes a command to devices/<externalID>/commands
// and waits for the broker to accept it.
func (d *DeviceCommander) RequestStateChange(ctx context.Context, deviceExternalID, targetState string) error {
	payload, err := json.Marshal(map[string]string{"state": targetState})
	if err != nil {
		return err
	}

	topic := fmt.Sprintf("devices/%s/commands", deviceExternalID)
	token := d.client.Publish(topic, 1, false, payload)

	deadline := 10 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		deadline = time.Until(dl)
	}
	if !token.WaitTimeout(deadline) {
		return fmt.Errorf("device command to %s timed out", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("device command to %s: %w", topic, token.Error())
	}

	d.logger.Debug("device command published",
		zap.String("topic", topic),
		zap.String("target_state", targetState))
	return nil
}
