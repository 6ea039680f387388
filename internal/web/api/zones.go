package api

import (
	"net/http"

	"sentinel/internal/alarm"
	"sentinel/internal/models"
	"sentinel/internal/web/middleware"

	"github.com/gin-gonic/gin"
)

// ArmZone sets the zone to ARMED on behalf of a user action.
func (h *Handlers) ArmZone(c *gin.Context) {
	h.setZoneState(c, models.ArmedStateArmed)
}

// DisarmZone sets the zone to DISARMED. Disarming is also how a TRIGGERED
// zone is cleared.
func (h *Handlers) DisarmZone(c *gin.Context) {
	h.setZoneState(c, models.ArmedStateDisarmed)
}

func (h *Handlers) setZoneState(c *gin.Context, target models.ArmedState) {
	orgID := c.GetString(middleware.KeyOrgID)
	zoneID := c.Param("zoneID")

	if err := h.zones.SetArmedState(c.Request.Context(), orgID, zoneID, target, alarm.ReasonUserAction); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"zoneId": zoneID, "armedState": target})
}
