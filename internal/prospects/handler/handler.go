// Package handler exposes prospect enrollment and inspection endpoints.
package handler

import (
	"errors"
	"net/http"
	"time"

	"outreach_backend/internal/prospects/domain"
	"outreach_backend/internal/prospects/repository"
	"outreach_backend/platform/config"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	errInvalidProspectID = "invalid prospect ID"
	errInvalidRequest    = "invalid request body"
	errValidation        = "validation error"
	errNoOrgContext      = "no organization context"

	timelineLimit = 100
)

type Handler struct {
	repo *repository.Repository
	cfg  config.OutreachConfig
	val  *validator.Validator
	now  func() time.Time
}

func NewHandler(repo *repository.Repository, cfg config.OutreachConfig, val *validator.Validator) *Handler {
	return &Handler{repo: repo, cfg: cfg, val: val, now: time.Now}
}

// EnrollRequest registers a prospect into an outreach sequence.
type EnrollRequest struct {
	CampaignID    string `json:"campaignId" validate:"required,uuid"`
	AccountID     string `json:"accountId" validate:"required,max=100"`
	FullName      string `json:"fullName" validate:"required,min=1,max=200"`
	Headline      string `json:"headline" validate:"max=300"`
	Company       string `json:"company" validate:"max=200"`
	ChannelUserID string `json:"channelUserId" validate:"required_without=Email,max=100"`
	ProfileURL    string `json:"profileUrl" validate:"omitempty,url,max=500"`
	Email         string `json:"email" validate:"omitempty,email,max=320"`
}

// ProspectResponse is the API representation of a prospect.
type ProspectResponse struct {
	ID              uuid.UUID  `json:"id"`
	CampaignID      uuid.UUID  `json:"campaignId"`
	AccountID       string     `json:"accountId"`
	FullName        string     `json:"fullName"`
	Headline        string     `json:"headline,omitempty"`
	Company         string     `json:"company,omitempty"`
	ChannelUserID   string     `json:"channelUserId,omitempty"`
	Email           string     `json:"email,omitempty"`
	Status          string     `json:"status"`
	TouchIndex      int        `json:"touchIndex"`
	MaxTouches      int        `json:"maxTouches"`
	NextActionDueAt *time.Time `json:"nextActionDueAt,omitempty"`
	LastInboundAt   *time.Time `json:"lastInboundAt,omitempty"`
	LastOutboundAt  *time.Time `json:"lastOutboundAt,omitempty"`
	LastError       string     `json:"lastError,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// TimelineEntryResponse is one activity-log line.
type TimelineEntryResponse struct {
	EventType       string    `json:"eventType"`
	Source          string    `json:"source"`
	ExternalEventID string    `json:"externalEventId,omitempty"`
	ObservedAt      time.Time `json:"observedAt"`
}

// MarkerRequest stamps a scenario marker on a prospect.
type MarkerRequest struct {
	Marker string    `json:"marker" validate:"required,oneof=meeting_scheduled demo_completed trial_started check_back"`
	At     time.Time `json:"at" validate:"required"`
}

// HandleEnroll registers a prospect and schedules its first action.
// POST /api/v1/prospects
func (h *Handler) HandleEnroll(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.TenantID()
	if orgID == nil {
		httpkit.Error(c, http.StatusForbidden, errNoOrgContext, nil)
		return
	}

	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return
	}

	campaignID, err := uuid.Parse(req.CampaignID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid campaign ID", nil)
		return
	}

	due := h.now()
	created, err := h.repo.Create(c.Request.Context(), domain.Prospect{
		OrgID:           *orgID,
		CampaignID:      campaignID,
		AccountID:       req.AccountID,
		FullName:        req.FullName,
		Headline:        req.Headline,
		Company:         req.Company,
		ChannelUserID:   req.ChannelUserID,
		ProfileURL:      req.ProfileURL,
		Email:           req.Email,
		Status:          domain.StatusPendingSend,
		MaxTouches:      h.cfg.GetMaxTouches(),
		NextActionDueAt: &due,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, toProspectResponse(created))
}

// HandleGet returns one prospect.
// GET /api/v1/prospects/:prospectId
func (h *Handler) HandleGet(c *gin.Context) {
	prospect, ok := h.loadProspect(c)
	if !ok {
		return
	}
	httpkit.OK(c, toProspectResponse(prospect))
}

// HandleTimeline returns the prospect's activity log, newest first.
// GET /api/v1/prospects/:prospectId/timeline
func (h *Handler) HandleTimeline(c *gin.Context) {
	prospect, ok := h.loadProspect(c)
	if !ok {
		return
	}

	entries, err := h.repo.Timeline(c.Request.Context(), prospect.ID, timelineLimit)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]TimelineEntryResponse, len(entries))
	for i, entry := range entries {
		result[i] = TimelineEntryResponse{
			EventType:       entry.EventType,
			Source:          entry.Source,
			ExternalEventID: entry.ExternalEventID,
			ObservedAt:      entry.ObservedAt,
		}
	}
	httpkit.OK(c, result)
}

// HandleSetMarker stamps a scenario marker (meeting booked, demo done,
// trial started, check-back date) that steers follow-up selection.
// POST /api/v1/prospects/:prospectId/markers
func (h *Handler) HandleSetMarker(c *gin.Context) {
	prospect, ok := h.loadProspect(c)
	if !ok {
		return
	}

	var req MarkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return
	}

	if err := h.repo.SetScenarioMarker(c.Request.Context(), prospect.ID, req.Marker+"_at", req.At); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) loadProspect(c *gin.Context) (domain.Prospect, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return domain.Prospect{}, false
	}
	orgID := identity.TenantID()
	if orgID == nil {
		httpkit.Error(c, http.StatusForbidden, errNoOrgContext, nil)
		return domain.Prospect{}, false
	}

	prospectID, err := uuid.Parse(c.Param("prospectId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidProspectID, nil)
		return domain.Prospect{}, false
	}

	prospect, err := h.repo.GetByID(c.Request.Context(), prospectID)
	if errors.Is(err, repository.ErrProspectNotFound) || (err == nil && prospect.OrgID != *orgID) {
		httpkit.Error(c, http.StatusNotFound, "prospect not found", nil)
		return domain.Prospect{}, false
	}
	if httpkit.HandleError(c, err) {
		return domain.Prospect{}, false
	}
	return prospect, true
}

func toProspectResponse(p domain.Prospect) ProspectResponse {
	return ProspectResponse{
		ID:              p.ID,
		CampaignID:      p.CampaignID,
		AccountID:       p.AccountID,
		FullName:        p.FullName,
		Headline:        p.Headline,
		Company:         p.Company,
		ChannelUserID:   p.ChannelUserID,
		Email:           p.Email,
		Status:          p.Status,
		TouchIndex:      p.TouchIndex,
		MaxTouches:      p.MaxTouches,
		NextActionDueAt: p.NextActionDueAt,
		LastInboundAt:   p.LastInboundAt,
		LastOutboundAt:  p.LastOutboundAt,
		LastError:       p.LastError,
		CreatedAt:       p.CreatedAt,
	}
}
