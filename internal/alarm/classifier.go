package alarm

// classification keys the standard trigger table by standardized event
// type/subtype. An empty subtype entry matches any subtype of that type.
type classification struct {
	Type    string
	Subtype string
}

// triggerTable is the standard classification: which event classes put an
// armed zone into TRIGGERED. Zones with custom behavior consult their
// overrides first and fall back to this table.
var triggerTable = map[classification]bool{
	{Type: "door_opened"}:                    true,
	{Type: "door_forced"}:                    true,
	{Type: "window_opened"}:                  true,
	{Type: "glass_break"}:                    true,
	{Type: "motion_detected"}:                true,
	{Type: "person_detected"}:                true,
	{Type: "vehicle_detected"}:               false,
	{Type: "animal_detected"}:                false,
	{Type: "access_denied"}:                  true,
	{Type: "access_granted"}:                 false,
	{Type: "tamper_detected"}:                true,
	{Type: "smoke_detected"}:                 true,
	{Type: "device_state", Subtype: "entry"}: true,
	{Type: "device_offline"}:                 false,
	{Type: "battery_low"}:                    false,
	{Type: "button_pressed", Subtype: "panic"}: true,
	{Type: "button_pressed"}:                   false,
}

// riskyDisplayStates gates state-change events: a contact or lock reporting
// one of these is a trigger, any other reported state is not.
var riskyDisplayStates = map[string]bool{
	"open":     true,
	"unlocked": true,
	"motion":   true,
}

// ShouldTriggerAlarm is the standard classification function: whether an
// event of this type/subtype/displayState triggers an armed zone.
func ShouldTriggerAlarm(eventType, subtype, displayState string) bool {
	trigger, ok := triggerTable[classification{Type: eventType, Subtype: subtype}]
	if !ok {
		trigger, ok = triggerTable[classification{Type: eventType}]
	}
	if !ok {
		return false
	}
	if eventType == "device_state" && displayState != "" {
		return trigger && riskyDisplayStates[displayState]
	}
	return trigger
}
