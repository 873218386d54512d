// Package handler exposes the reviewer approval surface for follow-up drafts.
package handler

import (
	"errors"
	"net/http"
	"time"

	"outreach_backend/internal/events"
	"outreach_backend/internal/followup/repository"
	"outreach_backend/internal/prospects/domain"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	errInvalidDraftID = "invalid draft ID"
	errInvalidRequest = "invalid request body"
	errValidation     = "validation error"

	pendingListLimit = 50
)

type Handler struct {
	repo *repository.Repository
	bus  events.Bus
	val  *validator.Validator
}

func NewHandler(repo *repository.Repository, bus events.Bus, val *validator.Validator) *Handler {
	return &Handler{repo: repo, bus: bus, val: val}
}

// DraftResponse is the reviewer-facing draft representation.
type DraftResponse struct {
	ID             uuid.UUID `json:"id"`
	ProspectID     uuid.UUID `json:"prospectId"`
	TouchNumber    int       `json:"touchNumber"`
	Channel        string    `json:"channel"`
	Scenario       string    `json:"scenario"`
	Tone           string    `json:"tone"`
	Subject        string    `json:"subject,omitempty"`
	Body           string    `json:"body"`
	Confidence     float64   `json:"confidence"`
	Reasoning      string    `json:"reasoning,omitempty"`
	ApprovalStatus string    `json:"approvalStatus"`
	CreatedAt      time.Time `json:"createdAt"`
}

// PendingDraftResponse adds the prospect summary a reviewer needs to
// judge the draft without leaving the queue.
type PendingDraftResponse struct {
	DraftResponse
	ProspectName   string `json:"prospectName"`
	Company        string `json:"company,omitempty"`
	ProspectStatus string `json:"prospectStatus"`
}

// RejectRequest carries the mandatory rejection reason.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// HandleListPending returns the organization's drafts awaiting a decision.
// GET /api/v1/followups/pending
func (h *Handler) HandleListPending(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.TenantID()
	if orgID == nil {
		httpkit.Error(c, http.StatusForbidden, "no organization context", nil)
		return
	}

	pending, err := h.repo.ListPendingApproval(c.Request.Context(), *orgID, pendingListLimit)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]PendingDraftResponse, len(pending))
	for i, item := range pending {
		result[i] = PendingDraftResponse{
			DraftResponse:  toDraftResponse(item.Draft),
			ProspectName:   item.ProspectName,
			Company:        item.Company,
			ProspectStatus: item.Status,
		}
	}

	httpkit.OK(c, result)
}

// HandleApprove releases a draft for sending.
// POST /api/v1/followups/:draftId/approve
func (h *Handler) HandleApprove(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	draftID, ok := h.parseDraftID(c)
	if !ok {
		return
	}

	draft, err := h.repo.Approve(c.Request.Context(), draftID, identity.UserID().String())
	if h.handleDecisionError(c, err) {
		return
	}

	h.bus.Publish(c.Request.Context(), events.DraftApproved{
		BaseEvent:  events.NewBaseEvent(),
		DraftID:    draft.ID,
		ProspectID: draft.ProspectID,
		ReviewerID: identity.UserID().String(),
	})

	httpkit.OK(c, toDraftResponse(draft))
}

// HandleReject turns a draft down with a reason. The prospect is picked
// up again by a later scheduling cycle.
// POST /api/v1/followups/:draftId/reject
func (h *Handler) HandleReject(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	draftID, ok := h.parseDraftID(c)
	if !ok {
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return
	}

	draft, err := h.repo.Reject(c.Request.Context(), draftID, identity.UserID().String(), req.Reason)
	if h.handleDecisionError(c, err) {
		return
	}

	h.bus.Publish(c.Request.Context(), events.DraftRejected{
		BaseEvent:  events.NewBaseEvent(),
		DraftID:    draft.ID,
		ProspectID: draft.ProspectID,
		ReviewerID: identity.UserID().String(),
		Reason:     req.Reason,
	})

	httpkit.OK(c, toDraftResponse(draft))
}

func (h *Handler) parseDraftID(c *gin.Context) (uuid.UUID, bool) {
	draftID, err := uuid.Parse(c.Param("draftId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidDraftID, nil)
		return uuid.UUID{}, false
	}
	return draftID, true
}

func (h *Handler) handleDecisionError(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, repository.ErrDraftNotFound):
		httpkit.Error(c, http.StatusNotFound, "draft not found", nil)
		return true
	case errors.Is(err, repository.ErrInvalidDecision):
		httpkit.Error(c, http.StatusConflict, "draft already decided", nil)
		return true
	default:
		return httpkit.HandleError(c, err)
	}
}

func toDraftResponse(d domain.FollowUpDraft) DraftResponse {
	return DraftResponse{
		ID:             d.ID,
		ProspectID:     d.ProspectID,
		TouchNumber:    d.TouchNumber,
		Channel:        d.Channel,
		Scenario:       d.Scenario,
		Tone:           d.Tone,
		Subject:        d.Subject,
		Body:           d.Body,
		Confidence:     d.Confidence,
		Reasoning:      d.Reasoning,
		ApprovalStatus: d.ApprovalStatus,
		CreatedAt:      d.CreatedAt,
	}
}
