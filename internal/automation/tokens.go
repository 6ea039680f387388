package automation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sentinel/internal/models"
	"sentinel/internal/pipeline"

	"go.uber.org/zap"
)

// TokenContext is the per-execution object that {{dotted.path}} templates
// resolve against: one nested map per context domain.
type TokenContext map[string]interface{}

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// BuildEventTokenContext assembles the token context for an event-triggered
// execution.
func BuildEventTokenContext(event *models.StandardizedEvent, ectx *pipeline.EventContext) TokenContext {
	tctx := TokenContext{
		"event": map[string]interface{}{
			"uuid":         event.EventUUID,
			"timestamp":    event.Timestamp.UTC().Format(time.RFC3339),
			"category":     event.Category,
			"type":         event.Type,
			"subtype":      event.Subtype,
			"displayState": event.DisplayState(),
			"payload":      event.Payload,
		},
	}
	if ectx.Connector != nil {
		tctx["connector"] = map[string]interface{}{
			"id":       ectx.Connector.ID,
			"name":     ectx.Connector.Name,
			"category": ectx.Connector.Category,
		}
	}
	if ectx.Device != nil {
		device := map[string]interface{}{
			"id":   ectx.Device.ID,
			"name": ectx.Device.Name,
			"type": ectx.Device.Type,
		}
		if ectx.Device.Status != nil {
			device["status"] = *ectx.Device.Status
		}
		if ectx.Device.BatteryPct != nil {
			device["battery"] = *ectx.Device.BatteryPct
		}
		tctx["device"] = device
	}
	if ectx.Space != nil {
		tctx["space"] = map[string]interface{}{"id": ectx.Space.ID, "name": ectx.Space.Name}
	}
	if ectx.Location != nil {
		tctx["location"] = map[string]interface{}{"id": ectx.Location.ID, "name": ectx.Location.Name}
	}
	if ectx.Zone != nil {
		tctx["zone"] = map[string]interface{}{
			"id":         ectx.Zone.ID,
			"name":       ectx.Zone.Name,
			"armedState": string(ectx.Zone.ArmedState),
		}
	}
	if ectx.ThumbnailDataURI != "" {
		tctx["thumbnail"] = ectx.ThumbnailDataURI
	}
	return tctx
}

// BuildScheduleTokenContext assembles the token context for a scheduled
// execution.
func BuildScheduleTokenContext(a *models.Automation, location *models.Location, firedAt time.Time) TokenContext {
	tctx := TokenContext{
		"schedule": map[string]interface{}{
			"firedAt":    firedAt.UTC().Format(time.RFC3339),
			"automation": a.Name,
		},
	}
	if location != nil {
		tctx["location"] = map[string]interface{}{"id": location.ID, "name": location.Name}
	}
	return tctx
}

// ResolveParams expands tokens in an action's param template. String fields
// get token substitution; `headers` arrays get element-wise key/value
// resolution (the HTTP action's header list); everything else passes
// through.
func ResolveParams(params json.RawMessage, tctx TokenContext, logger *zap.Logger) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &raw); err != nil {
			return nil, fmt.Errorf("parse action params: %w", err)
		}
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	resolved := make(map[string]interface{}, len(raw))
	for key, value := range raw {
		resolved[key] = resolveValue(value, tctx, logger)
	}
	return resolved, nil
}

func resolveValue(value interface{}, tctx TokenContext, logger *zap.Logger) interface{} {
	switch v := value.(type) {
	case string:
		return ResolveString(v, tctx, logger)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = resolveValue(item, tctx, logger)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = resolveValue(item, tctx, logger)
		}
		return out
	}
	return value
}

// ResolveString replaces every {{dotted.path}} occurrence. Objects are
// JSON-stringified, nil becomes "", scalars take their string form. An
// unresolvable path leaves the token untouched and logs a warning so
// template bugs surface in output instead of vanishing.
func ResolveString(s string, tctx TokenContext, logger *zap.Logger) string {
	return tokenPattern.ReplaceAllStringFunc(s, func(match string) string {
		path := tokenPattern.FindStringSubmatch(match)[1]
		value, found := lookupPath(tctx, path)
		if !found {
			logger.Warn("unresolvable token left in place", zap.String("token", path))
			return match
		}
		return stringify(value)
	})
}

// lookupPath walks the nested context. The second return distinguishes "path
// resolved to nil" (found, renders as "") from "path does not exist" (not
// found, token stays).
func lookupPath(tctx TokenContext, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = map[string]interface{}(tctx)
	for _, part := range parts {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}
