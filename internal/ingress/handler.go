package ingress

import (
	"context"
	"net/http"
	"time"

	"outreach_backend/internal/prospects/domain"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// EventApplier runs a lifecycle event through the reconciliation engine.
type EventApplier interface {
	Apply(ctx context.Context, event domain.LifecycleEvent) (string, bool, error)
}

// Handler receives provider webhook deliveries.
type Handler struct {
	engine EventApplier
	log    *logger.Logger
	now    func() time.Time
}

func NewHandler(engine EventApplier, log *logger.Logger) *Handler {
	return &Handler{engine: engine, log: log, now: time.Now}
}

// WebhookResponse acknowledges a delivery. The provider retries anything
// that is not a 2xx, so duplicates and unknown event types still succeed.
type WebhookResponse struct {
	Applied bool   `json:"applied"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// HandleChannelEvent processes a signed webhook delivery.
// POST /api/v1/webhook/channel
func (h *Handler) HandleChannelEvent(c *gin.Context) {
	raw, ok := c.Get(rawBodyKey)
	if !ok {
		httpkit.Error(c, http.StatusInternalServerError, "webhook body not captured", nil)
		return
	}

	event, err := ExtractEvent(raw.([]byte), h.now())
	if err != nil {
		if IsUnknownEventType(err) {
			c.JSON(http.StatusOK, WebhookResponse{Message: "event type not tracked"})
			return
		}
		httpkit.Error(c, http.StatusBadRequest, "invalid webhook payload", err.Error())
		return
	}

	status, applied, err := h.engine.Apply(c.Request.Context(), event)
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusOK, WebhookResponse{Applied: applied, Status: status})
}
