package api

import (
	"net/http"
	"time"

	"sentinel/internal/web/middleware"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type tokenRequest struct {
	ConnectorID string `json:"connectorId" binding:"required"`
	APIKey      string `json:"apiKey" binding:"required"`
}

// MintToken exchanges a connector's API key for a short-lived JWT. The key
// is checked against the stored bcrypt hash; disabled connectors are
// rejected the same way as bad keys.
func (h *Handlers) MintToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	connector, err := h.store.GetConnectorByID(c.Request.Context(), req.ConnectorID)
	if err != nil {
		h.logger.Error("connector lookup failed", zap.String("connector_id", req.ConnectorID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if connector == nil || !connector.Enabled {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(connector.APIKeyHash), []byte(req.APIKey)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	now := time.Now()
	claims := jwt.MapClaims{
		middleware.KeyOrgID:       connector.OrgID,
		middleware.KeyConnectorID: connector.ID,
		"iat":                     now.Unix(),
		"exp":                     now.Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		h.logger.Error("token signing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": signed, "expiresIn": int64(24 * time.Hour / time.Second)})
}
