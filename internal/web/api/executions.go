package api

import (
	"net/http"
	"strconv"

	"sentinel/internal/web/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultListLimit = 50

// ListExecutions returns the org's automation execution ledger, newest
// first.
func (h *Handlers) ListExecutions(c *gin.Context) {
	orgID := c.GetString(middleware.KeyOrgID)

	executions, err := h.store.ListExecutionsByOrg(c.Request.Context(), orgID, listLimit(c))
	if err != nil {
		h.logger.Error("execution listing failed", zap.String("org_id", orgID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": executions})
}

// ListActionExecutions returns the per-action rows of one execution. The
// execution must belong to the caller's organization; anything else is a 404.
func (h *Handlers) ListActionExecutions(c *gin.Context) {
	orgID := c.GetString(middleware.KeyOrgID)
	executionID := c.Param("executionID")

	exec, err := h.store.GetExecutionByID(c.Request.Context(), orgID, executionID)
	if err != nil {
		h.logger.Error("execution lookup failed",
			zap.String("execution_id", executionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if exec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "execution not found"})
		return
	}

	actions, err := h.store.ListActionExecutions(c.Request.Context(), orgID, executionID)
	if err != nil {
		h.logger.Error("action execution listing failed",
			zap.String("execution_id", executionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

// ListAuditLog returns the org's zone transition history, newest first.
func (h *Handlers) ListAuditLog(c *gin.Context) {
	orgID := c.GetString(middleware.KeyOrgID)

	entries, err := h.store.ListAuditLog(c.Request.Context(), orgID, listLimit(c))
	if err != nil {
		h.logger.Error("audit log listing failed", zap.String("org_id", orgID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func listLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", ""))
	if err != nil || limit <= 0 || limit > 500 {
		return defaultListLimit
	}
	return limit
}
