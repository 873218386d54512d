// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"outreach_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Prospect Lifecycle Events
// =============================================================================

// ConnectionAccepted is published when a prospect accepts the connection request.
type ConnectionAccepted struct {
	BaseEvent
	ProspectID uuid.UUID `json:"prospectId"`
	OrgID      uuid.UUID `json:"orgId"`
	Source     string    `json:"source"`
}

func (e ConnectionAccepted) EventName() string { return "outreach.connection.accepted" }

// ProspectReplied is published when an inbound message terminates automation.
type ProspectReplied struct {
	BaseEvent
	ProspectID uuid.UUID `json:"prospectId"`
	OrgID      uuid.UUID `json:"orgId"`
	Channel    string    `json:"channel"`
	Preview    string    `json:"preview,omitempty"`
}

func (e ProspectReplied) EventName() string { return "outreach.prospect.replied" }

// ProspectFailed is published when the retry budget is exhausted.
type ProspectFailed struct {
	BaseEvent
	ProspectID uuid.UUID `json:"prospectId"`
	OrgID      uuid.UUID `json:"orgId"`
	LastError  string    `json:"lastError"`
}

func (e ProspectFailed) EventName() string { return "outreach.prospect.failed" }

// SequenceCompleted is published when a prospect exhausts the touch budget.
type SequenceCompleted struct {
	BaseEvent
	ProspectID uuid.UUID `json:"prospectId"`
	OrgID      uuid.UUID `json:"orgId"`
	TouchCount int       `json:"touchCount"`
}

func (e SequenceCompleted) EventName() string { return "outreach.sequence.completed" }

// =============================================================================
// Draft Review Events
// =============================================================================

// DraftPendingApproval is published when a generated draft needs human review.
type DraftPendingApproval struct {
	BaseEvent
	DraftID     uuid.UUID `json:"draftId"`
	ProspectID  uuid.UUID `json:"prospectId"`
	TouchNumber int       `json:"touchNumber"`
	Confidence  float64   `json:"confidence"`
}

func (e DraftPendingApproval) EventName() string { return "outreach.draft.pending_approval" }

// DraftApproved is published when a reviewer (or the auto-approval
// threshold) releases a draft for sending.
type DraftApproved struct {
	BaseEvent
	DraftID    uuid.UUID `json:"draftId"`
	ProspectID uuid.UUID `json:"prospectId"`
	ReviewerID string    `json:"reviewerId,omitempty"`
	Auto       bool      `json:"auto"`
}

func (e DraftApproved) EventName() string { return "outreach.draft.approved" }

// DraftRejected is published when a reviewer rejects a draft.
type DraftRejected struct {
	BaseEvent
	DraftID    uuid.UUID `json:"draftId"`
	ProspectID uuid.UUID `json:"prospectId"`
	ReviewerID string    `json:"reviewerId"`
	Reason     string    `json:"reason"`
}

func (e DraftRejected) EventName() string { return "outreach.draft.rejected" }

// DraftSent is published after the executor confirms dispatch.
type DraftSent struct {
	BaseEvent
	DraftID           uuid.UUID `json:"draftId"`
	ProspectID        uuid.UUID `json:"prospectId"`
	Channel           string    `json:"channel"`
	ExternalMessageID string    `json:"externalMessageId"`
}

func (e DraftSent) EventName() string { return "outreach.draft.sent" }
