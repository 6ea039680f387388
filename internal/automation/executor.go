package automation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sentinel/internal/connectors"
	"sentinel/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const userAgent = "Sentinel-Automation/1.0"

// connector categories that support external events and bookmarks.
const categoryCameraPlatform = "camera-platform"

// actionableStates is the closed set of states the set-device-state action
// may request.
var actionableStates = map[string]bool{
	"on":       true,
	"off":      true,
	"locked":   true,
	"unlocked": true,
	"open":     true,
	"closed":   true,
}

// ExecutorStore is the lookup surface the action executor needs.
type ExecutorStore interface {
	GetConnectorByID(ctx context.Context, connectorID string) (*models.Connector, error)
	GetDeviceByID(ctx context.Context, orgID, deviceID string) (*models.Device, error)
	ListZonesByLocation(ctx context.Context, orgID, locationID string) ([]models.AlarmZone, error)
	ListZonesByOrg(ctx context.Context, orgID string) ([]models.AlarmZone, error)
	GetNotificationSettings(ctx context.Context, orgID string) (*models.NotificationSettings, error)
}

// CameraDriver is the camera-platform surface the executor dispatches to.
type CameraDriver interface {
	CreateEvent(ctx context.Context, connectorID string, payload map[string]interface{}) error
	CreateBookmark(ctx context.Context, connectorID, cameraID string, payload map[string]interface{}) error
}

// PushDriver delivers push notifications.
type PushDriver interface {
	SendNotification(ctx context.Context, apiToken, recipientKey string, params map[string]string) (*connectors.PushResult, error)
}

// DeviceDriver requests physical device state changes.
type DeviceDriver interface {
	RequestStateChange(ctx context.Context, deviceExternalID, targetState string) error
}

// ZoneArmer performs explicit zone state transitions.
type ZoneArmer interface {
	SetArmedState(ctx context.Context, orgID, zoneID string, target models.ArmedState, reason string) error
}

// Invocation is one automation firing handed to the executor.
type Invocation struct {
	Automation       *models.Automation
	Config           *models.AutomationConfig
	Tokens           TokenContext
	TriggerEventUUID *string        // nil for scheduled runs
	SourceDevice     *models.Device // nil for scheduled runs
	TriggeredAt      time.Time
}

// Executor dispatches an automation's actions sequentially in declared
// order, recording each through the ledger. One action's failure never
// prevents the next action from running.
type Executor struct {
	store   ExecutorStore
	camera  CameraDriver
	push    PushDriver
	devices DeviceDriver
	zones   ZoneArmer
	ledger  *Ledger
	http    *resty.Client
	logger  *zap.Logger
}

// NewExecutor creates the action executor.
func NewExecutor(store ExecutorStore, camera CameraDriver, push PushDriver, devices DeviceDriver,
	zones ZoneArmer, ledger *Ledger, logger *zap.Logger) *Executor {
	return &Executor{
		store:   store,
		camera:  camera,
		push:    push,
		devices: devices,
		zones:   zones,
		ledger:  ledger,
		http:    resty.New().SetTimeout(30 * time.Second).SetHeader("User-Agent", userAgent),
		logger:  logger.Named("executor"),
	}
}

// Execute runs every declared action of one firing and finalizes the
// execution record. It never returns an error: all failures are absorbed
// into the ledger.
func (x *Executor) Execute(ctx context.Context, inv Invocation) {
	start := time.Now()
	exec := x.ledger.BeginExecution(ctx, inv.Automation, inv.TriggerEventUUID, len(inv.Config.Actions), inv.TriggeredAt)

	var successful, failed int
	for i, action := range inv.Config.Actions {
		actionExec := x.ledger.BeginAction(ctx, exec.ID, i, action)
		err := x.runActionSafe(ctx, inv, action)
		x.ledger.CompleteAction(ctx, actionExec, err)
		if err != nil {
			failed++
			x.logger.Warn("action failed",
				zap.String("automation_id", inv.Automation.ID),
				zap.String("automation_name", inv.Automation.Name),
				zap.Int("action_index", i),
				zap.String("action_type", action.Type),
				zap.Error(err))
			continue
		}
		successful++
	}

	x.ledger.Finalize(ctx, exec, successful, failed, start)
}

// runActionSafe isolates one action: a panic inside an action handler is an
// action failure, not a pipeline crash.
func (x *Executor) runActionSafe(ctx context.Context, inv Invocation, action models.ActionConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()

	params, err := ResolveParams(action.Params, inv.Tokens, x.logger)
	if err != nil {
		return err
	}

	switch action.Type {
	case models.ActionCreateEvent:
		return x.createEvent(ctx, inv, params)
	case models.ActionCreateBookmark:
		return x.createBookmark(ctx, inv, params)
	case models.ActionSendHTTPRequest:
		return x.sendHTTPRequest(ctx, params)
	case models.ActionSetDeviceState:
		return x.setDeviceState(ctx, inv, params)
	case models.ActionSendPushNotification:
		return x.sendPushNotification(ctx, inv, params)
	case models.ActionArmAlarmZone:
		return x.setZoneStates(ctx, inv, params, models.ArmedStateArmed)
	case models.ActionDisarmAlarmZone:
		return x.setZoneStates(ctx, inv, params, models.ArmedStateDisarmed)
	}
	return fmt.Errorf("unknown action type %q", action.Type)
}

// resolveTargetConnector loads the action's target connector and checks that
// it belongs to the automation's organization and supports camera-platform
// operations. A connector from another org is reported as not found.
func (x *Executor) resolveTargetConnector(ctx context.Context, orgID string, params map[string]interface{}) (*models.Connector, error) {
	connectorID := stringParam(params, "connectorId")
	if connectorID == "" {
		return nil, fmt.Errorf("connectorId is required")
	}
	connector, err := x.store.GetConnectorByID(ctx, connectorID)
	if err != nil {
		return nil, fmt.Errorf("load connector %s: %w", connectorID, err)
	}
	if connector == nil || connector.OrgID != orgID {
		return nil, fmt.Errorf("connector %s not found", connectorID)
	}
	if connector.Category != categoryCameraPlatform {
		return nil, fmt.Errorf("unsupported connector category %q", connector.Category)
	}
	return connector, nil
}

func (x *Executor) createEvent(ctx context.Context, inv Invocation, params map[string]interface{}) error {
	connector, err := x.resolveTargetConnector(ctx, inv.Automation.OrgID, params)
	if err != nil {
		return err
	}

	payload := payloadWithout(params, "connectorId")
	if inv.SourceDevice != nil && len(inv.SourceDevice.CameraIDs) > 0 {
		payload["cameraIds"] = inv.SourceDevice.CameraIDs
	}
	return x.camera.CreateEvent(ctx, connector.ID, payload)
}

func (x *Executor) createBookmark(ctx context.Context, inv Invocation, params map[string]interface{}) error {
	connector, err := x.resolveTargetConnector(ctx, inv.Automation.OrgID, params)
	if err != nil {
		return err
	}

	// A bookmark needs a camera; with none associated there is nothing to
	// bookmark, and that is a skip, not a failure.
	if inv.SourceDevice == nil || len(inv.SourceDevice.CameraIDs) == 0 {
		x.logger.Info("bookmark skipped, source device has no associated cameras",
			zap.String("automation_id", inv.Automation.ID))
		return nil
	}

	payload := payloadWithout(params, "connectorId")
	for _, cameraID := range inv.SourceDevice.CameraIDs {
		if err := x.camera.CreateBookmark(ctx, connector.ID, cameraID, payload); err != nil {
			return err
		}
	}
	return nil
}

func (x *Executor) sendHTTPRequest(ctx context.Context, params map[string]interface{}) error {
	url := stringParam(params, "url")
	if url == "" {
		return fmt.Errorf("url is required")
	}
	method := strings.ToUpper(stringParam(params, "method"))
	if method == "" {
		method = "GET"
	}

	req := x.http.R().SetContext(ctx)

	contentType := ""
	for _, header := range headerList(params) {
		if strings.EqualFold(header.Key, "Content-Type") {
			contentType = header.Value
		}
		req.SetHeader(header.Key, header.Value)
	}

	body := stringParam(params, "body")
	hasBody := body != "" && (method == "POST" || method == "PUT" || method == "PATCH")
	if hasBody {
		if contentType == "" && looksLikeJSON(body) {
			req.SetHeader("Content-Type", "application/json")
		}
		req.SetBody(body)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	if resp.IsError() {
		// Response body captured for diagnostics; no attempt to parse it.
		return fmt.Errorf("http request: status %d: %s", resp.StatusCode(), truncate(resp.String(), 512))
	}
	return nil
}

func (x *Executor) setDeviceState(ctx context.Context, inv Invocation, params map[string]interface{}) error {
	targetState := stringParam(params, "targetState")
	if !actionableStates[targetState] {
		return fmt.Errorf("invalid target state %q", targetState)
	}

	deviceID := stringParam(params, "deviceId")
	if deviceID == "" {
		return fmt.Errorf("deviceId is required")
	}
	device, err := x.store.GetDeviceByID(ctx, inv.Automation.OrgID, deviceID)
	if err != nil {
		return fmt.Errorf("load device %s: %w", deviceID, err)
	}
	if device == nil {
		return fmt.Errorf("device %s not found", deviceID)
	}

	return x.devices.RequestStateChange(ctx, device.ExternalID, targetState)
}

func (x *Executor) sendPushNotification(ctx context.Context, inv Invocation, params map[string]interface{}) error {
	settings, err := x.store.GetNotificationSettings(ctx, inv.Automation.OrgID)
	if err != nil {
		return fmt.Errorf("load notification settings: %w", err)
	}
	if settings == nil || !settings.Enabled || settings.APIToken == "" {
		return fmt.Errorf("push notification service is not configured")
	}

	recipient := stringParam(params, "userKey")
	if recipient == "" {
		recipient = settings.DefaultGroupKey
	}
	if recipient == "" {
		return fmt.Errorf("no recipient: userKey empty and no default group configured")
	}

	message := map[string]string{
		"title":   stringParam(params, "title"),
		"message": stringParam(params, "message"),
	}
	if priority := stringParam(params, "priority"); priority != "" {
		message["priority"] = priority
	}

	result, err := x.push.SendNotification(ctx, settings.APIToken, recipient, message)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("push delivery rejected: %s", strings.Join(result.Errors, "; "))
	}
	return nil
}

// setZoneStates arms or disarms the target zone set: an explicit id list,
// or every zone in the automation's location scope, or every zone in the
// organization. Per-zone failures abort the action but do not roll back
// zones already transitioned.
func (x *Executor) setZoneStates(ctx context.Context, inv Invocation, params map[string]interface{}, target models.ArmedState) error {
	orgID := inv.Automation.OrgID

	zoneIDs := stringListParam(params, "zoneIds")
	if len(zoneIDs) == 0 {
		var zones []models.AlarmZone
		var err error
		if inv.Automation.LocationID != nil {
			zones, err = x.store.ListZonesByLocation(ctx, orgID, *inv.Automation.LocationID)
		} else {
			zones, err = x.store.ListZonesByOrg(ctx, orgID)
		}
		if err != nil {
			return fmt.Errorf("resolve target zones: %w", err)
		}
		for _, z := range zones {
			zoneIDs = append(zoneIDs, z.ID)
		}
	}

	for _, zoneID := range zoneIDs {
		if err := x.zones.SetArmedState(ctx, orgID, zoneID, target, "automation_action"); err != nil {
			return fmt.Errorf("zone %s: %w", zoneID, err)
		}
	}
	return nil
}

type header struct {
	Key   string
	Value string
}

func headerList(params map[string]interface{}) []header {
	raw, ok := params["headers"].([]interface{})
	if !ok {
		return nil
	}
	var headers []header
	for _, item := range raw {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		key, _ := entry["key"].(string)
		value, _ := entry["value"].(string)
		if key != "" {
			headers = append(headers, header{Key: key, Value: value})
		}
	}
	return headers
}

func stringParam(params map[string]interface{}, key string) string {
	s, _ := params[key].(string)
	return s
}

func stringListParam(params map[string]interface{}, key string) []string {
	raw, ok := params[key].([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func payloadWithout(params map[string]interface{}, exclude string) map[string]interface{} {
	payload := make(map[string]interface{}, len(params))
	for k, v := range params {
		if k == exclude {
			continue
		}
		payload[k] = v
	}
	return payload
}

func looksLikeJSON(body string) bool {
	trimmed := strings.TrimSpace(body)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
