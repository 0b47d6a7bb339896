package reconciler

import (
	apphttp "leadcall_backend/internal/http"
	"leadcall_backend/platform/config"
	"leadcall_backend/platform/logger"
)

// Module is the webhook ingestion side of the reconciler. The sweep
// loop runs in the orchestrator binary, not here.
type Module struct {
	Service *Service
	handler *Handler
	cfg     config.WebhookConfig
}

// NewModule wires the webhook module around an existing service.
func NewModule(service *Service, cfg config.WebhookConfig, log *logger.Logger) *Module {
	return &Module{
		Service: service,
		handler: NewHandler(service, log),
		cfg:     cfg,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "reconciler" }

// RegisterRoutes mounts the provider webhook endpoint.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Webhook.Group("/voice")
	group.Use(SecretMiddleware(m.cfg.GetWebhookSecret()))
	group.POST("", m.handler.HandleVoiceWebhook)
}

var _ apphttp.Module = (*Module)(nil)
