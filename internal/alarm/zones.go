package alarm

import (
	"context"
	"fmt"

	"sentinel/internal/models"

	"go.uber.org/zap"
)

// Audit reasons for zone transitions.
const (
	ReasonEventTrigger = "alarm_event_trigger"
	ReasonUserAction   = "user_action"
	ReasonAutomation   = "automation_action"
)

// Store is the persistence surface the zone service needs. TransitionZone
// must apply the state change and the audit entry atomically.
type Store interface {
	GetTriggerOverride(ctx context.Context, zoneID, eventType string) (*models.TriggerOverride, error)
	TransitionZone(ctx context.Context, entry models.AuditLogEntry) error
	GetZoneByID(ctx context.Context, orgID, zoneID string) (*models.AlarmZone, error)
}

// Service owns alarm zone state transitions: event-driven triggering and
// explicit arm/disarm.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates the zone service.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger.Named("alarm")}
}

// EvaluateEvent decides whether the event flips the device's zone to
// TRIGGERED. Only ARMED zones are ever evaluated; DISARMED and already
// TRIGGERED zones ignore event content entirely.
func (s *Service) EvaluateEvent(ctx context.Context, zone *models.AlarmZone, event *models.StandardizedEvent) error {
	if zone == nil || zone.ArmedState != models.ArmedStateArmed {
		return nil
	}

	trigger, err := s.classify(ctx, zone, event)
	if err != nil {
		return err
	}
	if !trigger {
		return nil
	}

	eventUUID := event.EventUUID
	entry := models.AuditLogEntry{
		OrgID:            zone.OrgID,
		ZoneID:           zone.ID,
		Action:           "zone_triggered",
		PreviousState:    models.ArmedStateArmed,
		NewState:         models.ArmedStateTriggered,
		Reason:           ReasonEventTrigger,
		TriggerEventUUID: &eventUUID,
	}
	if err := s.store.TransitionZone(ctx, entry); err != nil {
		// No retry queue: a missed trigger stays missed until the next
		// triggering event.
		return fmt.Errorf("transition zone %s to TRIGGERED: %w", zone.ID, err)
	}

	s.logger.Info("zone triggered",
		zap.String("org_id", zone.OrgID),
		zap.String("zone_id", zone.ID),
		zap.String("event_uuid", event.EventUUID),
		zap.String("event_type", event.Type))
	return nil
}

// classify applies the zone's trigger behavior: custom zones consult the
// per-event-type override first, everything else uses the standard table.
func (s *Service) classify(ctx context.Context, zone *models.AlarmZone, event *models.StandardizedEvent) (bool, error) {
	if zone.TriggerBehavior == models.TriggerBehaviorCustom {
		override, err := s.store.GetTriggerOverride(ctx, zone.ID, event.Type)
		if err != nil {
			return false, fmt.Errorf("load trigger override for zone %s: %w", zone.ID, err)
		}
		if override != nil {
			return override.ShouldTrigger, nil
		}
	}
	return ShouldTriggerAlarm(event.Type, event.Subtype, event.DisplayState()), nil
}

// SetArmedState is the explicit arm/disarm operation used by user actions
// and automation zone actions.
func (s *Service) SetArmedState(ctx context.Context, orgID, zoneID string, target models.ArmedState, reason string) error {
	zone, err := s.store.GetZoneByID(ctx, orgID, zoneID)
	if err != nil {
		return fmt.Errorf("load zone %s: %w", zoneID, err)
	}
	if zone == nil {
		return fmt.Errorf("zone %s not found", zoneID)
	}
	if zone.ArmedState == target {
		return nil
	}

	action := "zone_armed"
	if target == models.ArmedStateDisarmed {
		action = "zone_disarmed"
	}
	entry := models.AuditLogEntry{
		OrgID:         orgID,
		ZoneID:        zoneID,
		Action:        action,
		PreviousState: zone.ArmedState,
		NewState:      target,
		Reason:        reason,
	}
	if err := s.store.TransitionZone(ctx, entry); err != nil {
		return fmt.Errorf("set zone %s to %s: %w", zoneID, target, err)
	}

	s.logger.Info("zone state changed",
		zap.String("org_id", orgID),
		zap.String("zone_id", zoneID),
		zap.String("previous", string(zone.ArmedState)),
		zap.String("new", string(target)),
		zap.String("reason", reason))
	return nil
}
