package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"db-schema-keeper/internal/models"
	"db-schema-keeper/internal/services"
	"db-schema-keeper/internal/tree"
)

type Maintenance interface {
	Start() error
	Stop() error
	GetStatus() services.MaintenanceStatus
	UpdateConfig(schedule string) error
	TriggerReset(ctx context.Context) error
}

type Resetter interface {
	PlanReset(ctx context.Context) (*services.ResetPlan, error)
	RemoveAllForeignKeys(ctx context.Context) error
	RemoveAllKeys(ctx context.Context) error
	ResetTable(ctx context.Context, model models.Model, mode models.SyncMode) error
	ResetTableAsync(ctx context.Context, model models.Model, mode models.SyncMode) <-chan error
}

type TreeBuilder interface {
	Build(cfg tree.Config) ([]*tree.Record, error)
	TableTree(ctx context.Context, table string, cfg tree.Config) ([]*tree.Record, error)
}

// Handler holds service dependencies
type Handler struct {
	maintenance Maintenance
	resetter    Resetter
	trees       TreeBuilder
	models      map[string]models.Model
	logger      *zap.Logger
}

func NewHandler(maintenance Maintenance, resetter Resetter, trees TreeBuilder, ms []models.Model, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	byTable := make(map[string]models.Model, len(ms))
	for _, m := range ms {
		byTable[m.TableName] = m
	}
	return &Handler{
		maintenance: maintenance,
		resetter:    resetter,
		trees:       trees,
		models:      byTable,
		logger:      logger,
	}
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrResetInProgress),
		errors.Is(err, services.ErrMaintenanceRunning),
		errors.Is(err, services.ErrMaintenanceStopped):
		return http.StatusConflict
	case errors.Is(err, services.ErrUnknownTable):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidSyncMode),
		errors.Is(err, tree.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, tree.ErrCyclicHierarchy):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) sendServiceError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Error(err))
	}
	sendErrorResponse(w, err.Error(), code)
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	sendSuccessResponse(w, "Service is running", nil)
}

func (h *Handler) RootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		sendErrorResponse(w, "Not found", http.StatusNotFound)
		return
	}

	endpoints := map[string]string{
		"health":           "GET /health",
		"startMaintenance": "POST /api/maintenance/start",
		"stopMaintenance":  "POST /api/maintenance/stop",
		"runMaintenance":   "POST /api/maintenance/run",
		"status":           "GET /api/maintenance/status",
		"updateConfig":     "PUT /api/maintenance/config",
		"resetPlan":        "GET /api/schema/plan",
		"resetForeignKeys": "POST /api/schema/foreign-keys/reset",
		"resetIndexes":     "POST /api/schema/indexes/reset",
		"resetTable":       "POST /api/schema/tables/{table}/reset?mode=force|alter&async=true",
		"buildTree":        "POST /api/tree",
		"tableTree":        "GET /api/tables/{table}/tree?root=&id=&pid=&children=&resId=&resPid=",
	}

	response := Response{
		Success: true,
		Message: "Database Schema Keeper",
		Data:    map[string]interface{}{"endpoints": endpoints},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
