package automation

import (
	"encoding/json"
	"testing"
	"time"

	"sentinel/internal/models"
	"sentinel/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testTokenContext() TokenContext {
	return TokenContext{
		"event": map[string]interface{}{
			"uuid":         "evt-1",
			"type":         "motion_detected",
			"displayState": "motion",
			"payload": map[string]interface{}{
				"confidence": 0.87,
				"zones":      []interface{}{"driveway"},
			},
		},
		"device": map[string]interface{}{
			"id":   "dev-1",
			"name": "Front Door Camera",
		},
		"space": map[string]interface{}{
			"id": nil,
		},
	}
}

func TestResolveString(t *testing.T) {
	logger := zap.NewNop()
	tctx := testTokenContext()

	t.Run("simple substitution", func(t *testing.T) {
		got := ResolveString("Motion at {{device.name}}", tctx, logger)
		assert.Equal(t, "Motion at Front Door Camera", got)
	})

	t.Run("multiple tokens and whitespace", func(t *testing.T) {
		got := ResolveString("{{ event.type }}:{{device.id}}", tctx, logger)
		assert.Equal(t, "motion_detected:dev-1", got)
	})

	t.Run("unresolvable path keeps the token", func(t *testing.T) {
		got := ResolveString("hello {{device.serial}}", tctx, logger)
		assert.Equal(t, "hello {{device.serial}}", got)
	})

	t.Run("nil resolves to empty string", func(t *testing.T) {
		got := ResolveString("[{{space.id}}]", tctx, logger)
		assert.Equal(t, "[]", got)
	})

	t.Run("object stringifies as JSON", func(t *testing.T) {
		got := ResolveString("{{event.payload}}", tctx, logger)
		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(got), &decoded))
		assert.Equal(t, 0.87, decoded["confidence"])
	})

	t.Run("float renders without exponent", func(t *testing.T) {
		got := ResolveString("{{event.payload.confidence}}", tctx, logger)
		assert.Equal(t, "0.87", got)
	})

	t.Run("no tokens passes through", func(t *testing.T) {
		got := ResolveString("plain text", tctx, logger)
		assert.Equal(t, "plain text", got)
	})

	t.Run("path through a scalar is unresolvable", func(t *testing.T) {
		got := ResolveString("{{event.uuid.nested}}", tctx, logger)
		assert.Equal(t, "{{event.uuid.nested}}", got)
	})
}

func TestResolveParams(t *testing.T) {
	logger := zap.NewNop()
	tctx := testTokenContext()

	t.Run("nested structures resolve element-wise", func(t *testing.T) {
		params := json.RawMessage(`{
			"url": "https://hooks.example.com/{{device.id}}",
			"method": "POST",
			"headers": [
				{"key": "X-Event-Type", "value": "{{event.type}}"}
			],
			"body": "{\"device\": \"{{device.name}}\"}",
			"timeoutSeconds": 5
		}`)

		resolved, err := ResolveParams(params, tctx, logger)
		require.NoError(t, err)
		assert.Equal(t, "https://hooks.example.com/dev-1", resolved["url"])
		assert.Equal(t, float64(5), resolved["timeoutSeconds"])

		headers, ok := resolved["headers"].([]interface{})
		require.True(t, ok)
		header, ok := headers[0].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "motion_detected", header["value"])

		assert.Equal(t, `{"device": "Front Door Camera"}`, resolved["body"])
	})

	t.Run("empty params", func(t *testing.T) {
		resolved, err := ResolveParams(nil, tctx, logger)
		require.NoError(t, err)
		assert.Empty(t, resolved)
	})

	t.Run("malformed params error", func(t *testing.T) {
		_, err := ResolveParams(json.RawMessage(`{"url":`), tctx, logger)
		assert.Error(t, err)
	})
}

func TestBuildEventTokenContext(t *testing.T) {
	status := "open"
	battery := 42
	event := &models.StandardizedEvent{
		EventUUID: "evt-9",
		Timestamp: time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
		Type:      "device_state",
		Subtype:   "entry",
		Category:  "sensor",
		Payload:   map[string]interface{}{"displayState": "open"},
	}
	ectx := &pipeline.EventContext{
		Connector: &models.Connector{ID: "conn-1", OrgID: "org-1", Name: "Hub", Category: "sensor-hub"},
		Device:    &models.Device{ID: "dev-9", Name: "Back Door", Type: "contact", Status: &status, BatteryPct: &battery},
		Space:     &models.Space{ID: "space-1", Name: "Warehouse"},
		Zone:      &models.AlarmZone{ID: "zone-1", Name: "Perimeter", ArmedState: models.ArmedStateArmed},
	}

	tctx := BuildEventTokenContext(event, ectx)
	logger := zap.NewNop()

	assert.Equal(t, "evt-9", ResolveString("{{event.uuid}}", tctx, logger))
	assert.Equal(t, "2026-03-01T12:30:00Z", ResolveString("{{event.timestamp}}", tctx, logger))
	assert.Equal(t, "open", ResolveString("{{event.displayState}}", tctx, logger))
	assert.Equal(t, "Back Door", ResolveString("{{device.name}}", tctx, logger))
	assert.Equal(t, "42", ResolveString("{{device.battery}}", tctx, logger))
	assert.Equal(t, "ARMED", ResolveString("{{zone.armedState}}", tctx, logger))

	// Domains missing from the context leave their tokens unresolved.
	assert.Equal(t, "{{location.name}}", ResolveString("{{location.name}}", tctx, logger))
	assert.Equal(t, "{{thumbnail}}", ResolveString("{{thumbnail}}", tctx, logger))
}

func TestBuildScheduleTokenContext(t *testing.T) {
	firedAt := time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	a := &models.Automation{ID: "auto-1", Name: "Morning disarm"}
	loc := &models.Location{ID: "loc-1", Name: "HQ"}

	tctx := BuildScheduleTokenContext(a, loc, firedAt)
	logger := zap.NewNop()

	assert.Equal(t, "2026-06-15T09:00:00Z", ResolveString("{{schedule.firedAt}}", tctx, logger))
	assert.Equal(t, "Morning disarm", ResolveString("{{schedule.automation}}", tctx, logger))
	assert.Equal(t, "HQ", ResolveString("{{location.name}}", tctx, logger))

	tctx = BuildScheduleTokenContext(a, nil, firedAt)
	assert.Equal(t, "{{location.name}}", ResolveString("{{location.name}}", tctx, logger))
}
