package api

import (
	"encoding/json"
	"net/http"
	"time"

	"sentinel/internal/models"
	"sentinel/internal/web/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// eventRequest is the ingest payload a connector posts.
type eventRequest struct {
	EventID   string                 `json:"eventId"`
	Timestamp *time.Time             `json:"timestamp"`
	DeviceID  string                 `json:"deviceId" binding:"required"`
	Category  string                 `json:"category" binding:"required"`
	Type      string                 `json:"type" binding:"required"`
	Subtype   string                 `json:"subtype"`
	Payload   map[string]interface{} `json:"payload"`
}

// IngestEvent accepts one standardized event from the authenticated
// connector and queues it. The response is an opaque accept: once the event
// is durably queued, later-stage failures never surface here.
func (h *Handlers) IngestEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	original, _ := json.Marshal(req)
	event := &models.StandardizedEvent{
		EventUUID:     req.EventID,
		Timestamp:     time.Now(),
		ConnectorID:   c.GetString(middleware.KeyConnectorID),
		DeviceID:      req.DeviceID,
		Category:      req.Category,
		Type:          req.Type,
		Subtype:       req.Subtype,
		Payload:       req.Payload,
		OriginalEvent: original,
	}
	if event.EventUUID == "" {
		event.EventUUID = uuid.NewString()
	}
	if req.Timestamp != nil {
		event.Timestamp = *req.Timestamp
	}

	if err := h.queue.EnqueueEvent(c.Request.Context(), event); err != nil {
		h.logger.Error("event enqueue failed",
			zap.String("event_uuid", event.EventUUID),
			zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event not accepted"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"eventId": event.EventUUID})
}
