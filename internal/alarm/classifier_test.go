package alarm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldTriggerAlarm(t *testing.T) {
	cases := []struct {
		name         string
		eventType    string
		subtype      string
		displayState string
		want         bool
	}{
		{"door opened", "door_opened", "", "", true},
		{"glass break", "glass_break", "", "", true},
		{"motion", "motion_detected", "", "", true},
		{"vehicle is benign", "vehicle_detected", "", "", false},
		{"animal is benign", "animal_detected", "", "", false},
		{"access denied", "access_denied", "", "", true},
		{"access granted", "access_granted", "", "", false},
		{"battery low", "battery_low", "", "", false},
		{"unknown type", "firmware_updated", "", "", false},

		// Subtype-specific entries beat the type-general entry.
		{"panic button", "button_pressed", "panic", "", true},
		{"doorbell button", "button_pressed", "doorbell", "", false},

		// Subtype with no specific entry falls back to the type entry.
		{"motion with subtype", "motion_detected", "pir", "", true},

		// device_state gates on the reported display state.
		{"entry contact open", "device_state", "entry", "open", true},
		{"entry contact closed", "device_state", "entry", "closed", false},
		{"entry lock unlocked", "device_state", "entry", "unlocked", true},
		{"entry lock locked", "device_state", "entry", "locked", false},
		{"entry no display state", "device_state", "entry", "", true},
		{"non-entry device state", "device_state", "climate", "open", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ShouldTriggerAlarm(tc.eventType, tc.subtype, tc.displayState)
			assert.Equal(t, tc.want, got)
		})
	}
}
