package web

import (
	"sentinel/internal/alarm"
	"sentinel/internal/connectors"
	"sentinel/internal/web/api"
	"sentinel/internal/web/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WebServer struct {
	router *gin.Engine
}

// NewWebServer wires the HTTP surface: connector token exchange, event
// ingest, zone arm/disarm, and the execution and audit listings.
func NewWebServer(store api.Store, queue connectors.EventQueue, zones *alarm.Service, jwtSecret string, logger *zap.Logger) *WebServer {
	router := gin.Default()

	handlers := api.NewHandlers(store, queue, zones, jwtSecret, logger)

	router.POST("/api/v1/auth/token", handlers.MintToken)

	authed := router.Group("/api/v1", middleware.ConnectorAuth(jwtSecret))
	{
		authed.POST("/events", handlers.IngestEvent)
		authed.POST("/zones/:zoneID/arm", handlers.ArmZone)
		authed.POST("/zones/:zoneID/disarm", handlers.DisarmZone)
		authed.GET("/executions", handlers.ListExecutions)
		authed.GET("/executions/:executionID/actions", handlers.ListActionExecutions)
		authed.GET("/audit-log", handlers.ListAuditLog)
	}

	return &WebServer{router: router}
}

func (ws *WebServer) Start(addr string) error {
	return ws.router.Run(addr)
}
