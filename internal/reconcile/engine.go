// Package reconcile applies normalized lifecycle events to prospect state.
// It is the single writer for prospect transitions: the webhook handler,
// the poll worker, and the send executor all funnel through Apply, and the
// dedup/precedence rules here are what make running all three concurrently
// safe under at-least-once delivery.
package reconcile

import (
	"context"
	"time"

	"outreach_backend/internal/events"
	"outreach_backend/internal/prospects/domain"
	"outreach_backend/internal/prospects/repository"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// ProspectStore is the persistence surface the engine needs.
type ProspectStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Prospect, error)
	FindByChannelIdentity(ctx context.Context, accountID, channelUserID string) (domain.Prospect, error)
	ApplyEvent(ctx context.Context, event domain.LifecycleEvent, update repository.TransitionUpdate) (bool, error)
	RecordEvent(ctx context.Context, prospectID uuid.UUID, event domain.LifecycleEvent) (bool, error)
	RecordOrphanEvent(ctx context.Context, event domain.LifecycleEvent) error
	ClearNextAction(ctx context.Context, id uuid.UUID) error
}

// DuePlanner computes the next automated due-time for a prospect that just
// entered the given status. nil means no further automated action.
type DuePlanner interface {
	NextDue(p domain.Prospect, status string, now time.Time) *time.Time
}

// Engine is the reconciliation engine.
type Engine struct {
	store   ProspectStore
	planner DuePlanner
	bus     events.Bus
	log     *logger.Logger
	now     func() time.Time
}

func NewEngine(store ProspectStore, planner DuePlanner, bus events.Bus, log *logger.Logger) *Engine {
	return &Engine{
		store:   store,
		planner: planner,
		bus:     bus,
		log:     log,
		now:     time.Now,
	}
}

// Apply reconciles one lifecycle event. Returns the prospect's status after
// the call and whether the event changed state. Duplicate, late, and
// unknown-prospect events all return applied=false with a nil error; both
// the webhook and poll callers treat that as success since retried
// delivery is expected.
func (e *Engine) Apply(ctx context.Context, event domain.LifecycleEvent) (string, bool, error) {
	prospect, found, err := e.resolve(ctx, event)
	if err != nil {
		return "", false, err
	}
	if !found {
		// No prospect to update. Keep the event for investigations.
		if err := e.store.RecordOrphanEvent(ctx, event); err != nil {
			return "", false, err
		}
		return "", false, nil
	}

	next, valid := domain.Transition(prospect.Status, event.Type)
	if !valid {
		return e.handleInvalid(ctx, prospect, event)
	}

	update := e.buildUpdate(prospect, event, next)
	applied, err := e.store.ApplyEvent(ctx, event, update)
	if err != nil {
		return prospect.Status, false, err
	}
	if !applied {
		// Dedup hit, or a concurrent writer won the race on this row.
		e.log.DuplicateEvent(prospect.ID.String(), event.Type, event.Source, event.ExternalEventID)
		return prospect.Status, false, nil
	}

	e.publish(ctx, prospect, event, update.ToStatus)
	return update.ToStatus, true, nil
}

func (e *Engine) resolve(ctx context.Context, event domain.LifecycleEvent) (domain.Prospect, bool, error) {
	var (
		prospect domain.Prospect
		err      error
	)
	if event.ProspectID != uuid.Nil {
		prospect, err = e.store.GetByID(ctx, event.ProspectID)
	} else {
		prospect, err = e.store.FindByChannelIdentity(ctx, event.AccountID, event.ChannelUserID)
	}
	if err == repository.ErrProspectNotFound {
		return domain.Prospect{}, false, nil
	}
	if err != nil {
		return domain.Prospect{}, false, err
	}
	return prospect, true, nil
}

// handleInvalid records the event for audit and ignores it. The one side
// effect: an inbound message must null a stale due-time even when the
// status can no longer change, so automation never follows up on someone
// who already responded.
func (e *Engine) handleInvalid(ctx context.Context, prospect domain.Prospect, event domain.LifecycleEvent) (string, bool, error) {
	e.log.InvalidTransition(prospect.ID.String(), prospect.Status, event.Type, event.Source)

	if _, err := e.store.RecordEvent(ctx, prospect.ID, event); err != nil {
		return prospect.Status, false, err
	}

	if event.IsInbound() && prospect.NextActionDueAt != nil {
		if err := e.store.ClearNextAction(ctx, prospect.ID); err != nil {
			return prospect.Status, false, err
		}
	}
	return prospect.Status, false, nil
}

func (e *Engine) buildUpdate(prospect domain.Prospect, event domain.LifecycleEvent, next string) repository.TransitionUpdate {
	now := e.now()
	observed := event.ObservedAt
	if observed.IsZero() {
		observed = now
	}

	update := repository.TransitionUpdate{
		ProspectID: prospect.ID,
		FromStatus: prospect.Status,
		ToStatus:   next,
	}

	switch event.Type {
	case domain.EventSendSucceeded:
		update.SetLastOutboundAt = &observed
		if prospect.Status == domain.StatusPendingSend {
			// Connection request went out; nothing more to do until the
			// prospect answers or the poll worker times the invite out.
			update.SetConnectionSentAt = &observed
			update.ClearNextAction = true
			break
		}
		update.IncrementTouch = true
		afterTouch := prospect
		afterTouch.TouchIndex++
		if afterTouch.TouchBudgetExhausted() {
			update.ToStatus = domain.StatusFollowUpComplete
			update.ClearNextAction = true
			break
		}
		e.planNext(&update, afterTouch, now)
	case domain.EventConnectionAccepted:
		update.SetConnectionAcceptedAt = &observed
		accepted := prospect
		accepted.ConnectionAcceptedAt = &observed
		e.planNext(&update, accepted, now)
	case domain.EventMessageReceived:
		update.SetLastInboundAt = &observed
		update.ClearNextAction = true
	case domain.EventConnectionDeclined, domain.EventUnsubscribed:
		update.ClearNextAction = true
	case domain.EventSendFailed:
		update.ClearNextAction = true
		update.LastError = event.FailureReason
		if update.LastError == "" {
			update.LastError = "send failed after retry budget exhausted"
		}
	}

	return update
}

func (e *Engine) planNext(update *repository.TransitionUpdate, prospect domain.Prospect, now time.Time) {
	due := e.planner.NextDue(prospect, update.ToStatus, now)
	if due == nil {
		update.ToStatus = domain.StatusFollowUpComplete
		update.ClearNextAction = true
		return
	}
	update.SetNextActionDueAt = due
}

func (e *Engine) publish(ctx context.Context, prospect domain.Prospect, event domain.LifecycleEvent, newStatus string) {
	if e.bus == nil {
		return
	}

	switch newStatus {
	case domain.StatusConnected:
		e.bus.Publish(ctx, events.ConnectionAccepted{
			BaseEvent:  events.NewBaseEvent(),
			ProspectID: prospect.ID,
			OrgID:      prospect.OrgID,
			Source:     event.Source,
		})
	case domain.StatusReplied:
		e.bus.Publish(ctx, events.ProspectReplied{
			BaseEvent:  events.NewBaseEvent(),
			ProspectID: prospect.ID,
			OrgID:      prospect.OrgID,
			Channel:    channelForEvent(prospect),
			Preview:    event.MessagePreview,
		})
	case domain.StatusFollowUpComplete:
		e.bus.Publish(ctx, events.SequenceCompleted{
			BaseEvent:  events.NewBaseEvent(),
			ProspectID: prospect.ID,
			OrgID:      prospect.OrgID,
			TouchCount: prospect.TouchIndex + 1,
		})
	case domain.StatusFailed:
		e.bus.Publish(ctx, events.ProspectFailed{
			BaseEvent:  events.NewBaseEvent(),
			ProspectID: prospect.ID,
			OrgID:      prospect.OrgID,
			LastError:  event.FailureReason,
		})
	}
}

func channelForEvent(prospect domain.Prospect) string {
	if prospect.ChannelUserID != "" {
		return domain.ChannelLinkedIn
	}
	return domain.ChannelEmail
}
