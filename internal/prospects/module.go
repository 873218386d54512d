// Package prospects owns prospect lifecycle state and its activity log.
// This file defines the module for route registration.
package prospects

import (
	apphttp "outreach_backend/internal/http"
	"outreach_backend/internal/prospects/handler"
	"outreach_backend/internal/prospects/repository"
	"outreach_backend/platform/config"
	"outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the prospects bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
}

func NewModule(pool *pgxpool.Pool, cfg config.OutreachConfig, val *validator.Validator) *Module {
	repo := repository.NewRepository(pool)
	return &Module{
		handler: handler.NewHandler(repo, cfg, val),
		repo:    repo,
	}
}

// Repository exposes the prospect store for engine and scheduler wiring.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) Name() string {
	return "prospects"
}

// RegisterRoutes mounts the prospect lifecycle routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Reviewer.Group("/prospects")
	group.POST("", m.handler.HandleEnroll)
	group.GET("/:prospectId", m.handler.HandleGet)
	group.GET("/:prospectId/timeline", m.handler.HandleTimeline)
	group.POST("/:prospectId/markers", m.handler.HandleSetMarker)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
