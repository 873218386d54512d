package scheduler

import (
	"net/http"

	apphttp "outreach_backend/internal/http"
	"outreach_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module exposes the job-trigger endpoints implementing http.Module.
// They enqueue work for the scheduler binary rather than running it
// inline, so a slow cycle never ties up an API request.
type Module struct {
	enqueuer JobEnqueuer
}

func NewHTTPModule(enqueuer JobEnqueuer) *Module {
	return &Module{enqueuer: enqueuer}
}

func (m *Module) Name() string {
	return "scheduler"
}

// RegisterRoutes mounts the shared-secret job triggers.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Jobs.POST("/run-cycle", m.handleRunCycle)
	ctx.Jobs.POST("/poll-connections", m.handlePollConnections)
	ctx.Jobs.POST("/send-approved", m.handleSendApproved)
}

func (m *Module) handleRunCycle(c *gin.Context) {
	if err := m.enqueuer.EnqueueOutreachCycle(c.Request.Context(), "manual"); err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to enqueue cycle", err.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "outreach cycle enqueued"})
}

func (m *Module) handlePollConnections(c *gin.Context) {
	if err := m.enqueuer.EnqueueConnectionPoll(c.Request.Context()); err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to enqueue poll", err.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "connection poll enqueued"})
}

func (m *Module) handleSendApproved(c *gin.Context) {
	if err := m.enqueuer.EnqueueSendApproved(c.Request.Context()); err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to enqueue send", err.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "approved-draft send enqueued"})
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
