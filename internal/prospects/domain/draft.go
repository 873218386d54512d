package domain

import (
	"time"

	"github.com/google/uuid"
)

// Draft approval statuses.
const (
	DraftPendingGeneration = "pending_generation"
	DraftPendingApproval   = "pending_approval"
	DraftApproved          = "approved"
	DraftRejected          = "rejected"
	DraftSent              = "sent"
)

// openDraftStatuses are approval statuses that block creation of another
// draft for the same prospect. At most one open draft may exist per
// prospect at any time.
var openDraftStatuses = map[string]bool{
	DraftPendingGeneration: true,
	DraftPendingApproval:   true,
	DraftApproved:          true,
}

// IsOpenDraftStatus reports whether the approval status is non-terminal.
func IsOpenDraftStatus(status string) bool {
	return openDraftStatuses[status]
}

// FollowUpDraft is a generated candidate message awaiting either
// auto-release or a human decision.
type FollowUpDraft struct {
	ID                uuid.UUID
	ProspectID        uuid.UUID
	TouchNumber       int
	Channel           string
	Scenario          string
	Tone              string
	Body              string
	Subject           string // email channel only
	Confidence        float64
	Reasoning         string
	ApprovalStatus    string
	ReviewerID        string
	DecidedAt         *time.Time
	RejectionReason   string
	ExternalMessageID string
	RetryCount        int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsOpen reports whether the draft still blocks new draft creation.
func (d FollowUpDraft) IsOpen() bool {
	return IsOpenDraftStatus(d.ApprovalStatus)
}
