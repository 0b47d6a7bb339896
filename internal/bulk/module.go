// Package bulk module wiring and route registration.
package bulk

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"leadcall_backend/internal/events"
	apphttp "leadcall_backend/internal/http"
	"leadcall_backend/platform/logger"
	"leadcall_backend/platform/validator"
)

// Module is the bulk scheduling bounded context.
type Module struct {
	Service *Service
	handler *Handler
}

// NewModule wires the bulk module.
func NewModule(pool *pgxpool.Pool, jobStore JobScheduler, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, jobStore, bus, log)
	handler := NewHandler(service, val, log)
	return &Module{Service: service, handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "bulk" }

// RegisterRoutes mounts the bulk schedule API.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/bulk-calls")
	group.POST("", m.handler.HandleStartSchedule)
	group.GET("", m.handler.HandleListSchedules)
	group.GET("/:scheduleId", m.handler.HandleGetProgress)
	group.DELETE("/:scheduleId", m.handler.HandleCancelSchedule)
}

var _ apphttp.Module = (*Module)(nil)
