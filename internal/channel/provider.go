// Package channel defines the outbound messaging surface for outreach
// providers. The lifecycle engine never talks to a provider API directly.
package channel

import (
	"context"
	"time"

	"outreach_backend/internal/prospects/domain"
)

// Invitation is a connection request the provider still reports as pending.
type Invitation struct {
	ChannelUserID string
	SentAt        time.Time
}

// Relation is an established connection on the provider side.
type Relation struct {
	ChannelUserID string
	ConnectedAt   time.Time
}

// Messenger dispatches an approved follow-up message to a prospect.
// It returns the provider's message identifier for reconciliation.
type Messenger interface {
	SendMessage(ctx context.Context, p domain.Prospect, subject, body string) (string, error)
}

// Inviter dispatches the initial connection request.
type Inviter interface {
	SendInvitation(ctx context.Context, p domain.Prospect, note string) (string, error)
}

// RelationLister exposes the provider-side connection state the poller
// reconciles against.
type RelationLister interface {
	ListPendingInvitations(ctx context.Context, accountID string) ([]Invitation, error)
	ListRelations(ctx context.Context, accountID string) ([]Relation, error)
}

// Provider is the full surface of a social outreach channel.
type Provider interface {
	Messenger
	Inviter
	RelationLister
}
