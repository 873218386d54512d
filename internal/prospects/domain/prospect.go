package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Channel identifiers.
const (
	ChannelLinkedIn = "linkedin"
	ChannelEmail    = "email"
)

// Prospect is a person targeted by one campaign touch-sequence.
// Mutated exclusively through reconciliation transitions and
// scheduler-driven touch completions; terminal prospects are kept,
// never deleted, to preserve audit history.
type Prospect struct {
	ID                  uuid.UUID
	OrgID               uuid.UUID
	CampaignID          uuid.UUID
	AccountID           string // provider account that owns the sequence
	FullName            string
	Headline            string
	Company             string
	ChannelUserID       string // provider identity, empty until resolved
	ProfileURL          string
	Email               string
	Status              string
	TouchIndex          int
	MaxTouches          int
	NextActionDueAt     *time.Time
	ConnectionSentAt    *time.Time
	ConnectionAcceptedAt *time.Time
	LastInboundAt       *time.Time
	LastOutboundAt      *time.Time
	MeetingScheduledAt  *time.Time
	DemoCompletedAt     *time.Time
	TrialStartedAt      *time.Time
	CheckBackAt         *time.Time
	RepliedPositive     bool
	LastError           string
	ClaimedAt           *time.Time
	ClaimedBy           string
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasEmail reports whether the prospect has a resolvable email identity,
// required before escalating to the email channel.
func (p Prospect) HasEmail() bool {
	return strings.Contains(p.Email, "@")
}

// TouchBudgetExhausted reports whether the prospect has used up its
// follow-up allowance.
func (p Prospect) TouchBudgetExhausted() bool {
	return p.MaxTouches > 0 && p.TouchIndex >= p.MaxTouches
}

// DaysSinceLastContact returns whole days since the most recent inbound
// or outbound activity, falling back to connection acceptance.
func (p Prospect) DaysSinceLastContact(now time.Time) int {
	last := p.ConnectionAcceptedAt
	if p.LastOutboundAt != nil && (last == nil || p.LastOutboundAt.After(*last)) {
		last = p.LastOutboundAt
	}
	if p.LastInboundAt != nil && (last == nil || p.LastInboundAt.After(*last)) {
		last = p.LastInboundAt
	}
	if last == nil {
		return 0
	}
	days := int(now.Sub(*last).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
