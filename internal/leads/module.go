// Package leads module wiring and route registration.
package leads

import (
	"leadcall_backend/internal/engine"
	"leadcall_backend/internal/events"
	apphttp "leadcall_backend/internal/http"
	"leadcall_backend/internal/jobs"
	"leadcall_backend/internal/leadstore"
	"leadcall_backend/platform/logger"
	"leadcall_backend/platform/validator"
)

// Module is the lead management bounded context.
type Module struct {
	Service *Service
	handler *Handler
}

// NewModule wires the leads module.
func NewModule(leadStore leadstore.Store, jobStore jobs.Store, forcer Forcer, policy engine.RetryPolicy, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	service := NewService(leadStore, jobStore, forcer, policy, bus, log)
	handler := NewHandler(service, val, log)
	return &Module{Service: service, handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "leads" }

// RegisterRoutes mounts the lead API plus orchestrator observability.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/leads")
	group.POST("", m.handler.HandleCreateLead)
	group.GET("", m.handler.HandleListLeads)
	group.GET("/:leadId", m.handler.HandleGetLead)
	group.DELETE("/:leadId", m.handler.HandleDeleteLead)
	group.POST("/:leadId/call", m.handler.HandleForceCall)

	ctx.V1.GET("/jobs", m.handler.HandlePendingJobs)
	ctx.V1.GET("/retry-config", m.handler.HandleRetryConfig)
}

var _ apphttp.Module = (*Module)(nil)
