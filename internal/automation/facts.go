package automation

import (
	"sentinel/internal/models"
	"sentinel/internal/pipeline"
	"sentinel/internal/rules"
)

// BuildFacts flattens an event and its resolved context into the rule
// engine's fact map. Every known attribute is present; anything the context
// could not resolve is an explicit nil so rules can match against null
// instead of blowing up on a missing key.
func BuildFacts(event *models.StandardizedEvent, ectx *pipeline.EventContext) rules.Facts {
	facts := rules.Facts{
		"event.category":     nilIfEmpty(event.Category),
		"event.type":         nilIfEmpty(event.Type),
		"event.subtype":      nilIfEmpty(event.Subtype),
		"event.displayState": nilIfEmpty(event.DisplayState()),

		"device.id":      nil,
		"device.name":    nil,
		"device.type":    nil,
		"device.subtype": nil,
		"device.status":  nil,
		"device.battery": nil,

		"space.id":   nil,
		"space.name": nil,

		"location.id":   nil,
		"location.name": nil,

		"zone.id":         nil,
		"zone.name":       nil,
		"zone.armedState": nil,

		"connector.id":       nil,
		"connector.category": nil,
	}

	if battery, ok := event.BatteryPercentage(); ok {
		facts["device.battery"] = float64(battery)
	}

	if ectx.Connector != nil {
		facts["connector.id"] = ectx.Connector.ID
		facts["connector.category"] = ectx.Connector.Category
	}
	if ectx.Device != nil {
		facts["device.id"] = ectx.Device.ID
		facts["device.name"] = ectx.Device.Name
		facts["device.type"] = nilIfEmpty(ectx.Device.Type)
		facts["device.subtype"] = nilIfEmpty(ectx.Device.Subtype)
		if ectx.Device.Status != nil {
			facts["device.status"] = *ectx.Device.Status
		}
		if facts["device.battery"] == nil && ectx.Device.BatteryPct != nil {
			facts["device.battery"] = float64(*ectx.Device.BatteryPct)
		}
	}
	if ectx.Space != nil {
		facts["space.id"] = ectx.Space.ID
		facts["space.name"] = ectx.Space.Name
	}
	if ectx.Location != nil {
		facts["location.id"] = ectx.Location.ID
		facts["location.name"] = ectx.Location.Name
	}
	if ectx.Zone != nil {
		facts["zone.id"] = ectx.Zone.ID
		facts["zone.name"] = ectx.Zone.Name
		facts["zone.armedState"] = string(ectx.Zone.ArmedState)
	}

	// Legacy aliases kept for rules authored against the raw event shape.
	facts["type"] = facts["event.type"]
	facts["category"] = facts["event.category"]
	facts["displayState"] = facts["event.displayState"]
	facts["deviceId"] = nilIfEmpty(event.DeviceID)

	return facts
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
