package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sentinel/internal/connectors"
	"sentinel/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeExecutorStore struct {
	connectors map[string]*models.Connector
	devices    map[string]*models.Device
	zonesByLoc map[string][]models.AlarmZone
	orgZones   []models.AlarmZone
	settings   *models.NotificationSettings
}

func (f *fakeExecutorStore) GetConnectorByID(_ context.Context, id string) (*models.Connector, error) {
	return f.connectors[id], nil
}

func (f *fakeExecutorStore) GetDeviceByID(_ context.Context, _, id string) (*models.Device, error) {
	return f.devices[id], nil
}

func (f *fakeExecutorStore) ListZonesByLocation(_ context.Context, _, locationID string) ([]models.AlarmZone, error) {
	return f.zonesByLoc[locationID], nil
}

func (f *fakeExecutorStore) ListZonesByOrg(_ context.Context, _ string) ([]models.AlarmZone, error) {
	return f.orgZones, nil
}

func (f *fakeExecutorStore) GetNotificationSettings(_ context.Context, _ string) (*models.NotificationSettings, error) {
	return f.settings, nil
}

type fakeLedgerStore struct {
	executions map[string]*models.AutomationExecution
	actions    []*models.AutomationActionExecution
	finalized  map[string]models.ExecutionStatus
	counts     map[string][2]int
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{
		executions: map[string]*models.AutomationExecution{},
		finalized:  map[string]models.ExecutionStatus{},
		counts:     map[string][2]int{},
	}
}

func (f *fakeLedgerStore) CreateExecution(_ context.Context, e *models.AutomationExecution) error {
	f.executions[e.ID] = e
	return nil
}

func (f *fakeLedgerStore) FinalizeExecution(_ context.Context, id string, status models.ExecutionStatus, successful, failed int, _ int64) error {
	f.finalized[id] = status
	f.counts[id] = [2]int{successful, failed}
	return nil
}

func (f *fakeLedgerStore) CreateActionExecution(_ context.Context, a *models.AutomationActionExecution) error {
	f.actions = append(f.actions, a)
	return nil
}

func (f *fakeLedgerStore) CompleteActionExecution(_ context.Context, id string, status models.ActionStatus, msg *string) error {
	for _, a := range f.actions {
		if a.ID == id {
			a.Status = status
			a.ErrorMessage = msg
		}
	}
	return nil
}

type fakeCameraDriver struct {
	events    []map[string]interface{}
	bookmarks []string // cameraIDs
	fail      error
}

func (f *fakeCameraDriver) CreateEvent(_ context.Context, _ string, payload map[string]interface{}) error {
	if f.fail != nil {
		return f.fail
	}
	f.events = append(f.events, payload)
	return nil
}

func (f *fakeCameraDriver) CreateBookmark(_ context.Context, _, cameraID string, _ map[string]interface{}) error {
	if f.fail != nil {
		return f.fail
	}
	f.bookmarks = append(f.bookmarks, cameraID)
	return nil
}

type fakePushDriver struct {
	sent      []map[string]string
	recipient string
	result    *connectors.PushResult
	fail      error
}

func (f *fakePushDriver) SendNotification(_ context.Context, _, recipientKey string, params map[string]string) (*connectors.PushResult, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.recipient = recipientKey
	f.sent = append(f.sent, params)
	if f.result != nil {
		return f.result, nil
	}
	return &connectors.PushResult{Success: true}, nil
}

type fakeDeviceDriver struct {
	requests []string // "externalID=state"
	fail     error
}

func (f *fakeDeviceDriver) RequestStateChange(_ context.Context, externalID, targetState string) error {
	if f.fail != nil {
		return f.fail
	}
	f.requests = append(f.requests, externalID+"="+targetState)
	return nil
}

type fakeZoneArmer struct {
	calls    []string // "zoneID=state"
	failZone string
}

func (f *fakeZoneArmer) SetArmedState(_ context.Context, _, zoneID string, target models.ArmedState, _ string) error {
	if zoneID == f.failZone {
		return errors.New("zone transition refused")
	}
	f.calls = append(f.calls, zoneID+"="+string(target))
	return nil
}

type executorFixture struct {
	executor *Executor
	store    *fakeExecutorStore
	ledger   *fakeLedgerStore
	camera   *fakeCameraDriver
	push     *fakePushDriver
	devices  *fakeDeviceDriver
	zones    *fakeZoneArmer
}

func newExecutorFixture() *executorFixture {
	f := &executorFixture{
		store: &fakeExecutorStore{
			connectors: map[string]*models.Connector{},
			devices:    map[string]*models.Device{},
			zonesByLoc: map[string][]models.AlarmZone{},
		},
		ledger:  newFakeLedgerStore(),
		camera:  &fakeCameraDriver{},
		push:    &fakePushDriver{},
		devices: &fakeDeviceDriver{},
		zones:   &fakeZoneArmer{},
	}
	logger := zap.NewNop()
	f.executor = NewExecutor(f.store, f.camera, f.push, f.devices, f.zones,
		NewLedger(f.ledger, logger), logger)
	return f
}

func invocationWith(actions ...models.ActionConfig) Invocation {
	eventUUID := "evt-1"
	return Invocation{
		Automation: &models.Automation{
			ID:    "auto-1",
			OrgID: "org-1",
			Name:  "Test automation",
		},
		Config:           &models.AutomationConfig{Actions: actions},
		Tokens:           TokenContext{"event": map[string]interface{}{"type": "door_opened"}},
		TriggerEventUUID: &eventUUID,
		TriggeredAt:      time.Now(),
	}
}

func action(actionType, params string) models.ActionConfig {
	return models.ActionConfig{Type: actionType, Params: json.RawMessage(params)}
}

func singleExecution(t *testing.T, ledger *fakeLedgerStore) (string, models.ExecutionStatus, [2]int) {
	t.Helper()
	require.Len(t, ledger.finalized, 1)
	for id, status := range ledger.finalized {
		return id, status, ledger.counts[id]
	}
	return "", "", [2]int{}
}

func TestExecuteActionIsolation(t *testing.T) {
	f := newExecutorFixture()
	f.store.devices["dev-1"] = &models.Device{ID: "dev-1", ExternalID: "ext-1"}

	inv := invocationWith(
		action(models.ActionSetDeviceState, `{"deviceId":"dev-1","targetState":"locked"}`),
		action(models.ActionSetDeviceState, `{"deviceId":"dev-404","targetState":"locked"}`),
		action(models.ActionSetDeviceState, `{"deviceId":"dev-1","targetState":"off"}`),
	)
	f.executor.Execute(context.Background(), inv)

	// The middle failure never blocks the third action.
	assert.Equal(t, []string{"ext-1=locked", "ext-1=off"}, f.devices.requests)

	_, status, counts := singleExecution(t, f.ledger)
	assert.Equal(t, models.ExecutionStatusPartialFailure, status)
	assert.Equal(t, [2]int{2, 1}, counts)

	require.Len(t, f.ledger.actions, 3)
	assert.Equal(t, models.ActionStatusSuccess, f.ledger.actions[0].Status)
	assert.Equal(t, models.ActionStatusFailure, f.ledger.actions[1].Status)
	require.NotNil(t, f.ledger.actions[1].ErrorMessage)
	assert.Equal(t, models.ActionStatusSuccess, f.ledger.actions[2].Status)
}

func TestExecuteStatusAllSucceed(t *testing.T) {
	f := newExecutorFixture()
	f.store.devices["dev-1"] = &models.Device{ID: "dev-1", ExternalID: "ext-1"}

	f.executor.Execute(context.Background(), invocationWith(
		action(models.ActionSetDeviceState, `{"deviceId":"dev-1","targetState":"on"}`),
	))

	_, status, counts := singleExecution(t, f.ledger)
	assert.Equal(t, models.ExecutionStatusSuccess, status)
	assert.Equal(t, [2]int{1, 0}, counts)
}

func TestExecuteStatusAllFail(t *testing.T) {
	f := newExecutorFixture()

	f.executor.Execute(context.Background(), invocationWith(
		action("teleport", `{}`),
		action(models.ActionSetDeviceState, `{"deviceId":"dev-404","targetState":"on"}`),
	))

	_, status, counts := singleExecution(t, f.ledger)
	assert.Equal(t, models.ExecutionStatusFailure, status)
	assert.Equal(t, [2]int{0, 2}, counts)
}

func TestExecuteRecordsDeclaredTemplate(t *testing.T) {
	f := newExecutorFixture()

	f.executor.Execute(context.Background(), invocationWith(
		action(models.ActionSendPushNotification, `{"title":"{{event.type}}"}`),
	))

	require.Len(t, f.ledger.actions, 1)
	// The ledger keeps the raw template, not the resolved values.
	assert.JSONEq(t, `{"title":"{{event.type}}"}`, string(f.ledger.actions[0].ActionParams))
}

func TestSetDeviceStateValidation(t *testing.T) {
	f := newExecutorFixture()
	f.store.devices["dev-1"] = &models.Device{ID: "dev-1", ExternalID: "ext-1"}

	f.executor.Execute(context.Background(), invocationWith(
		action(models.ActionSetDeviceState, `{"deviceId":"dev-1","targetState":"exploded"}`),
	))

	// Invalid target state is rejected before any driver call.
	assert.Empty(t, f.devices.requests)
	_, status, _ := singleExecution(t, f.ledger)
	assert.Equal(t, models.ExecutionStatusFailure, status)
}

func TestCreateEvent(t *testing.T) {
	t.Run("appends source device cameras", func(t *testing.T) {
		f := newExecutorFixture()
		f.store.connectors["cam-conn"] = &models.Connector{ID: "cam-conn", OrgID: "org-1", Category: "camera-platform"}

		inv := invocationWith(action(models.ActionCreateEvent,
			`{"connectorId":"cam-conn","title":"Motion on {{event.type}}"}`))
		inv.SourceDevice = &models.Device{ID: "dev-1", CameraIDs: []string{"cam-1", "cam-2"}}
		f.executor.Execute(context.Background(), inv)

		require.Len(t, f.camera.events, 1)
		payload := f.camera.events[0]
		assert.Equal(t, "Motion on door_opened", payload["title"])
		assert.Equal(t, []string{"cam-1", "cam-2"}, payload["cameraIds"])
		assert.NotContains(t, payload, "connectorId")
	})

	t.Run("rejects non camera-platform connector", func(t *testing.T) {
		f := newExecutorFixture()
		f.store.connectors["hub"] = &models.Connector{ID: "hub", OrgID: "org-1", Category: "sensor-hub"}

		f.executor.Execute(context.Background(), invocationWith(
			action(models.ActionCreateEvent, `{"connectorId":"hub"}`)))

		assert.Empty(t, f.camera.events)
		_, status, _ := singleExecution(t, f.ledger)
		assert.Equal(t, models.ExecutionStatusFailure, status)
	})

	t.Run("rejects a connector from another org", func(t *testing.T) {
		f := newExecutorFixture()
		f.store.connectors["foreign-conn"] = &models.Connector{ID: "foreign-conn", OrgID: "org-2", Category: "camera-platform"}

		f.executor.Execute(context.Background(), invocationWith(
			action(models.ActionCreateEvent, `{"connectorId":"foreign-conn","title":"hi"}`)))

		assert.Empty(t, f.camera.events)
		_, status, _ := singleExecution(t, f.ledger)
		assert.Equal(t, models.ExecutionStatusFailure, status)
		require.NotNil(t, f.ledger.actions[0].ErrorMessage)
		assert.Contains(t, *f.ledger.actions[0].ErrorMessage, "not found")
	})
}

func TestCreateBookmark(t *testing.T) {
	t.Run("bookmarks every associated camera", func(t *testing.T) {
		f := newExecutorFixture()
		f.store.connectors["cam-conn"] = &models.Connector{ID: "cam-conn", OrgID: "org-1", Category: "camera-platform"}

		inv := invocationWith(action(models.ActionCreateBookmark, `{"connectorId":"cam-conn","label":"break-in"}`))
		inv.SourceDevice = &models.Device{ID: "dev-1", CameraIDs: []string{"cam-1", "cam-2"}}
		f.executor.Execute(context.Background(), inv)

		assert.Equal(t, []string{"cam-1", "cam-2"}, f.camera.bookmarks)
		_, status, _ := singleExecution(t, f.ledger)
		assert.Equal(t, models.ExecutionStatusSuccess, status)
	})

	t.Run("no associated cameras is a successful skip", func(t *testing.T) {
		f := newExecutorFixture()
		f.store.connectors["cam-conn"] = &models.Connector{ID: "cam-conn", OrgID: "org-1", Category: "camera-platform"}

		inv := invocationWith(action(models.ActionCreateBookmark, `{"connectorId":"cam-conn"}`))
		inv.SourceDevice = &models.Device{ID: "dev-1"}
		f.executor.Execute(context.Background(), inv)

		assert.Empty(t, f.camera.bookmarks)
		_, status, _ := singleExecution(t, f.ledger)
		assert.Equal(t, models.ExecutionStatusSuccess, status)
	})
}

func TestSendPushNotification(t *testing.T) {
	t.Run("unconfigured service fails the action", func(t *testing.T) {
		f := newExecutorFixture()

		f.executor.Execute(context.Background(), invocationWith(
			action(models.ActionSendPushNotification, `{"title":"hi","message":"there"}`)))

		assert.Empty(t, f.push.sent)
		_, status, _ := singleExecution(t, f.ledger)
		assert.Equal(t, models.ExecutionStatusFailure, status)
		require.NotNil(t, f.ledger.actions[0].ErrorMessage)
		assert.Contains(t, *f.ledger.actions[0].ErrorMessage, "not configured")
	})

	t.Run("falls back to the default group key", func(t *testing.T) {
		f := newExecutorFixture()
		f.store.settings = &models.NotificationSettings{
			OrgID: "org-1", Enabled: true, APIToken: "tok", DefaultGroupKey: "ops-group",
		}

		f.executor.Execute(context.Background(), invocationWith(
			action(models.ActionSendPushNotification, `{"title":"Alert","message":"{{event.type}}"}`)))

		assert.Equal(t, "ops-group", f.push.recipient)
		require.Len(t, f.push.sent, 1)
		assert.Equal(t, "door_opened", f.push.sent[0]["message"])
	})

	t.Run("rejected delivery fails the action", func(t *testing.T) {
		f := newExecutorFixture()
		f.store.settings = &models.NotificationSettings{OrgID: "org-1", Enabled: true, APIToken: "tok", DefaultGroupKey: "g"}
		f.push.result = &connectors.PushResult{Success: false, Errors: []string{"invalid token"}}

		f.executor.Execute(context.Background(), invocationWith(
			action(models.ActionSendPushNotification, `{"title":"t","message":"m"}`)))

		_, status, _ := singleExecution(t, f.ledger)
		assert.Equal(t, models.ExecutionStatusFailure, status)
	})
}

func TestZoneActions(t *testing.T) {
	t.Run("explicit zone list", func(t *testing.T) {
		f := newExecutorFixture()

		f.executor.Execute(context.Background(), invocationWith(
			action(models.ActionArmAlarmZone, `{"zoneIds":["z1","z2"]}`)))

		assert.Equal(t, []string{"z1=ARMED", "z2=ARMED"}, f.zones.calls)
	})

	t.Run("location scope when no ids given", func(t *testing.T) {
		f := newExecutorFixture()
		f.store.zonesByLoc["loc-1"] = []models.AlarmZone{{ID: "z1"}, {ID: "z2"}}

		inv := invocationWith(action(models.ActionDisarmAlarmZone, `{}`))
		locID := "loc-1"
		inv.Automation.LocationID = &locID
		f.executor.Execute(context.Background(), inv)

		assert.Equal(t, []string{"z1=DISARMED", "z2=DISARMED"}, f.zones.calls)
	})

	t.Run("org scope when unscoped", func(t *testing.T) {
		f := newExecutorFixture()
		f.store.orgZones = []models.AlarmZone{{ID: "z9"}}

		f.executor.Execute(context.Background(), invocationWith(
			action(models.ActionArmAlarmZone, `{}`)))

		assert.Equal(t, []string{"z9=ARMED"}, f.zones.calls)
	})

	t.Run("mid-list failure aborts without rollback", func(t *testing.T) {
		f := newExecutorFixture()
		f.zones.failZone = "z2"

		f.executor.Execute(context.Background(), invocationWith(
			action(models.ActionArmAlarmZone, `{"zoneIds":["z1","z2","z3"]}`)))

		// z1 stays armed, z3 is never attempted.
		assert.Equal(t, []string{"z1=ARMED"}, f.zones.calls)
		_, status, _ := singleExecution(t, f.ledger)
		assert.Equal(t, models.ExecutionStatusFailure, status)
	})
}

func TestSendHTTPRequest(t *testing.T) {
	t.Run("posts resolved body with headers", func(t *testing.T) {
		var gotBody []byte
		var gotContentType, gotCustom string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			gotContentType = r.Header.Get("Content-Type")
			gotCustom = r.Header.Get("X-Source")
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		f := newExecutorFixture()
		params := fmt.Sprintf(`{
			"url": %q,
			"method": "POST",
			"headers": [{"key":"X-Source","value":"{{event.type}}"}],
			"body": "{\"kind\":\"{{event.type}}\"}"
		}`, srv.URL)
		f.executor.Execute(context.Background(), invocationWith(
			action(models.ActionSendHTTPRequest, params)))

		assert.JSONEq(t, `{"kind":"door_opened"}`, string(gotBody))
		assert.Equal(t, "application/json", gotContentType)
		assert.Equal(t, "door_opened", gotCustom)
		_, status, _ := singleExecution(t, f.ledger)
		assert.Equal(t, models.ExecutionStatusSuccess, status)
	})

	t.Run("non-2xx response fails the action", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer srv.Close()

		f := newExecutorFixture()
		f.executor.Execute(context.Background(), invocationWith(
			action(models.ActionSendHTTPRequest, fmt.Sprintf(`{"url":%q}`, srv.URL))))

		_, status, _ := singleExecution(t, f.ledger)
		assert.Equal(t, models.ExecutionStatusFailure, status)
		require.NotNil(t, f.ledger.actions[0].ErrorMessage)
		assert.Contains(t, *f.ledger.actions[0].ErrorMessage, "502")
	})

	t.Run("missing url fails without a request", func(t *testing.T) {
		f := newExecutorFixture()
		f.executor.Execute(context.Background(), invocationWith(
			action(models.ActionSendHTTPRequest, `{"method":"GET"}`)))

		_, status, _ := singleExecution(t, f.ledger)
		assert.Equal(t, models.ExecutionStatusFailure, status)
	})
}
