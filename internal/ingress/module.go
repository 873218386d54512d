// Package ingress receives provider webhook deliveries and polls
// provider-side connection state. This file defines the webhook module.
package ingress

import (
	apphttp "outreach_backend/internal/http"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// Module is the ingress bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	cfg     config.ChannelConfig
}

func NewModule(engine EventApplier, cfg config.ChannelConfig, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(engine, log),
		cfg:     cfg,
	}
}

func (m *Module) Name() string {
	return "ingress"
}

// RegisterRoutes mounts the webhook route. Signature auth, no JWT: the
// provider is the caller.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	webhook := ctx.V1.Group("/webhook")
	webhook.Use(SignatureRequired(m.cfg))
	webhook.POST("/channel", m.handler.HandleChannelEvent)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
