// Package followup owns draft generation, the approval gate, and the
// reviewer surface. This file defines the module for route registration.
package followup

import (
	"outreach_backend/internal/events"
	"outreach_backend/internal/followup/handler"
	"outreach_backend/internal/followup/repository"
	apphttp "outreach_backend/internal/http"
	"outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the follow-up bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
}

func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator) *Module {
	repo := repository.NewRepository(pool)
	return &Module{
		handler: handler.NewHandler(repo, bus, val),
		repo:    repo,
	}
}

// Repository exposes the draft store for the scheduler and executor wiring.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) Name() string {
	return "followup"
}

// RegisterRoutes mounts the reviewer approval routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	reviewer := ctx.Reviewer.Group("/followups")
	reviewer.GET("/pending", m.handler.HandleListPending)
	reviewer.POST("/:draftId/approve", m.handler.HandleApprove)
	reviewer.POST("/:draftId/reject", m.handler.HandleReject)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
