package models

import (
	"encoding/json"
	"time"
)

// ArmedState is the alarm zone state machine's state set.
type ArmedState string

const (
	ArmedStateDisarmed  ArmedState = "DISARMED"
	ArmedStateArmed     ArmedState = "ARMED"
	ArmedStateTriggered ArmedState = "TRIGGERED"
)

// TriggerBehavior selects how a zone classifies incoming events.
type TriggerBehavior string

const (
	TriggerBehaviorStandard TriggerBehavior = "standard"
	TriggerBehaviorCustom   TriggerBehavior = "custom"
)

// StandardizedEvent is the normalized, vendor-agnostic event record.
// Immutable once inserted; the original connector payload is retained
// verbatim for audit.
type StandardizedEvent struct {
	ID            int64                  `json:"id"`
	EventUUID     string                 `json:"event_uuid"`
	Timestamp     time.Time              `json:"timestamp"`
	ConnectorID   string                 `json:"connector_id"`
	DeviceID      string                 `json:"device_id"` // external id, scoped to the connector
	Category      string                 `json:"category"`
	Type          string                 `json:"type"`
	Subtype       string                 `json:"subtype"`
	Payload       map[string]interface{} `json:"payload"`
	OriginalEvent json.RawMessage        `json:"original_event"`
}

// DisplayState returns the normalized display state carried in the payload,
// or "" when absent.
func (e *StandardizedEvent) DisplayState() string {
	if e.Payload == nil {
		return ""
	}
	if s, ok := e.Payload["displayState"].(string); ok {
		return s
	}
	return ""
}

// BatteryPercentage returns the battery level carried in the payload, if any.
func (e *StandardizedEvent) BatteryPercentage() (int, bool) {
	if e.Payload == nil {
		return 0, false
	}
	switch v := e.Payload["batteryPercentage"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// Connector is an integration adapter for one external vendor, scoped to an
// organization.
type Connector struct {
	ID         string          `json:"id"`
	OrgID      string          `json:"org_id"`
	Name       string          `json:"name"`
	Category   string          `json:"category"` // "camera-platform", "sensor-hub", "access-control"
	Enabled    bool            `json:"enabled"`
	APIKeyHash string          `json:"-"`
	Config     json.RawMessage `json:"config"`
}

// Device is the internal device record, keyed by (connector, external id).
// SpaceID and AlarmZoneID are independent associations, each at most one.
type Device struct {
	ID          string   `json:"id"`
	ConnectorID string   `json:"connector_id"`
	ExternalID  string   `json:"external_id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Subtype     string   `json:"subtype"`
	Status      *string  `json:"status"`
	BatteryPct  *int     `json:"battery_pct"`
	SpaceID     *string  `json:"space_id"`
	AlarmZoneID *string  `json:"alarm_zone_id"`
	CameraIDs   []string `json:"camera_ids"` // associated camera external ids, if any
}

// Space groups devices inside a location (a room, a floor, a gate area).
type Space struct {
	ID         string `json:"id"`
	OrgID      string `json:"org_id"`
	LocationID string `json:"location_id"`
	Name       string `json:"name"`
}

// Location is a physical site. Sun times are refreshed daily for locations
// with coordinates and feed solar schedules.
type Location struct {
	ID                string     `json:"id"`
	OrgID             string     `json:"org_id"`
	Name              string     `json:"name"`
	TimeZone          string     `json:"time_zone"`
	Latitude          *float64   `json:"latitude"`
	Longitude         *float64   `json:"longitude"`
	SunriseTime       *time.Time `json:"sunrise_time"`
	SunsetTime        *time.Time `json:"sunset_time"`
	SunTimesUpdatedAt *time.Time `json:"sun_times_updated_at"`
}

// AlarmZone is a security grouping of devices with a shared armed state.
type AlarmZone struct {
	ID              string          `json:"id"`
	OrgID           string          `json:"org_id"`
	LocationID      string          `json:"location_id"`
	Name            string          `json:"name"`
	ArmedState      ArmedState      `json:"armed_state"`
	TriggerBehavior TriggerBehavior `json:"trigger_behavior"`
}

// TriggerOverride overrides the standard trigger classification for one
// event type within one zone.
type TriggerOverride struct {
	ZoneID        string `json:"zone_id"`
	EventType     string `json:"event_type"`
	ShouldTrigger bool   `json:"should_trigger"`
}

// AuditLogEntry records every zone state transition with its cause.
type AuditLogEntry struct {
	ID               int64      `json:"id"`
	OrgID            string     `json:"org_id"`
	ZoneID           string     `json:"zone_id"`
	Action           string     `json:"action"`
	PreviousState    ArmedState `json:"previous_state"`
	NewState         ArmedState `json:"new_state"`
	Reason           string     `json:"reason"`
	TriggerEventUUID *string    `json:"trigger_event_uuid"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Automation is a user-defined rule: one trigger plus an ordered action
// list, authored externally and read-only to the pipeline.
type Automation struct {
	ID         string          `json:"id"`
	OrgID      string          `json:"org_id"`
	Name       string          `json:"name"`
	Enabled    bool            `json:"enabled"`
	LocationID *string         `json:"location_id"` // optional location scope
	ConfigJSON json.RawMessage `json:"config"`
}

// ParseConfig decodes the automation's stored trigger/actions document.
func (a *Automation) ParseConfig() (*AutomationConfig, error) {
	var cfg AutomationConfig
	if err := json.Unmarshal(a.ConfigJSON, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AutomationConfig is the parsed shape of Automation.ConfigJSON.
type AutomationConfig struct {
	Trigger TriggerConfig  `json:"trigger"`
	Actions []ActionConfig `json:"actions"`
}

// Trigger types.
const (
	TriggerTypeEvent    = "event"
	TriggerTypeSchedule = "schedule"
)

// Schedule types.
const (
	ScheduleTypeFixedTime = "fixed_time"
	ScheduleTypeSunrise   = "sunrise"
	ScheduleTypeSunset    = "sunset"
)

// TriggerConfig holds either an event rule tree or a schedule, never both.
type TriggerConfig struct {
	Type string `json:"type"` // "event" | "schedule"

	// Event triggers.
	Conditions      json.RawMessage  `json:"conditions,omitempty"`
	TimeOfDayFilter *TimeOfDayFilter `json:"timeOfDayFilter,omitempty"`

	// Scheduled triggers.
	ScheduleType   string `json:"scheduleType,omitempty"`
	CronExpression string `json:"cronExpression,omitempty"`
	OffsetMinutes  int    `json:"offsetMinutes,omitempty"`
	TimeZone       string `json:"timeZone,omitempty"`
}

// TimeOfDayFilter gates an event trigger to a daily window, evaluated in the
// device location's timezone. Start after End means the window wraps
// midnight.
type TimeOfDayFilter struct {
	Start string `json:"start"` // "HH:MM"
	End   string `json:"end"`   // "HH:MM"
}

// Action types.
const (
	ActionCreateEvent          = "createEvent"
	ActionCreateBookmark       = "createBookmark"
	ActionSendHTTPRequest      = "sendHttpRequest"
	ActionSetDeviceState       = "setDeviceState"
	ActionSendPushNotification = "sendPushNotification"
	ActionArmAlarmZone         = "armAlarmZone"
	ActionDisarmAlarmZone      = "disarmAlarmZone"
)

// ActionConfig is one declared action. Params is the raw template object;
// token resolution happens per execution and is never stored.
type ActionConfig struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params"`
}

// ExecutionStatus is the lifecycle of one automation firing.
type ExecutionStatus string

const (
	ExecutionStatusRunning        ExecutionStatus = "running"
	ExecutionStatusSuccess        ExecutionStatus = "success"
	ExecutionStatusPartialFailure ExecutionStatus = "partial_failure"
	ExecutionStatusFailure        ExecutionStatus = "failure"
)

// ActionStatus is the lifecycle of one action within a firing.
type ActionStatus string

const (
	ActionStatusRunning ActionStatus = "running"
	ActionStatusSuccess ActionStatus = "success"
	ActionStatusFailure ActionStatus = "failure"
)

// AutomationExecution is one row per automation firing.
type AutomationExecution struct {
	ID                string          `json:"id"`
	AutomationID      string          `json:"automation_id"`
	OrgID             string          `json:"org_id"`
	TriggerTimestamp  time.Time       `json:"trigger_timestamp"`
	TriggerEventUUID  *string         `json:"trigger_event_uuid"` // nil for scheduled runs
	Status            ExecutionStatus `json:"status"`
	TotalActions      int             `json:"total_actions"`
	SuccessfulActions int             `json:"successful_actions"`
	FailedActions     int             `json:"failed_actions"`
	DurationMs        *int64          `json:"duration_ms"`
}

// AutomationActionExecution is one row per action within an execution.
type AutomationActionExecution struct {
	ID           string          `json:"id"`
	ExecutionID  string          `json:"execution_id"`
	ActionIndex  int             `json:"action_index"`
	ActionType   string          `json:"action_type"`
	ActionParams json.RawMessage `json:"action_params"` // declared template, not resolved values
	Status       ActionStatus    `json:"status"`
	ErrorMessage *string         `json:"error_message"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// NotificationSettings is the per-organization push notification service
// configuration.
type NotificationSettings struct {
	OrgID           string `json:"org_id"`
	Enabled         bool   `json:"enabled"`
	APIToken        string `json:"-"`
	DefaultGroupKey string `json:"default_group_key"`
}
