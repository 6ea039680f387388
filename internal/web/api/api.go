package api

import (
	"context"

	"sentinel/internal/alarm"
	"sentinel/internal/connectors"
	"sentinel/internal/models"

	"go.uber.org/zap"
)

// Store is the read surface the API handlers need.
type Store interface {
	GetConnectorByID(ctx context.Context, connectorID string) (*models.Connector, error)
	ListExecutionsByOrg(ctx context.Context, orgID string, limit int) ([]models.AutomationExecution, error)
	GetExecutionByID(ctx context.Context, orgID, executionID string) (*models.AutomationExecution, error)
	ListActionExecutions(ctx context.Context, orgID, executionID string) ([]models.AutomationActionExecution, error)
	ListAuditLog(ctx context.Context, orgID string, limit int) ([]models.AuditLogEntry, error)
}

// Handlers bundles the API's dependencies.
type Handlers struct {
	store     Store
	queue     connectors.EventQueue
	zones     *alarm.Service
	jwtSecret string
	logger    *zap.Logger
}

// NewHandlers creates the API handler set.
func NewHandlers(store Store, queue connectors.EventQueue, zones *alarm.Service, jwtSecret string, logger *zap.Logger) *Handlers {
	return &Handlers{
		store:     store,
		queue:     queue,
		zones:     zones,
		jwtSecret: jwtSecret,
		logger:    logger.Named("api"),
	}
}
