// Package executor dispatches approved drafts and connection requests
// through the channel providers, pacing sends to look human.
package executor

import (
	"context"
	"math/rand"
	"time"

	"outreach_backend/internal/channel"
	"outreach_backend/internal/events"
	"outreach_backend/internal/prospects/domain"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const sendBatchLimit = 100

// DraftStore is the draft persistence surface the executor needs.
type DraftStore interface {
	ListApproved(ctx context.Context, maxRetries, limit int) ([]domain.FollowUpDraft, error)
	MarkSent(ctx context.Context, draftID uuid.UUID, externalMessageID string) error
	IncrementRetry(ctx context.Context, draftID uuid.UUID) (int, error)
	CloseFailed(ctx context.Context, draftID uuid.UUID, reason string) error
}

// ProspectGetter loads the prospect a draft belongs to.
type ProspectGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Prospect, error)
}

// EventApplier runs internal send outcomes through the reconciliation
// engine, the single writer for prospect state.
type EventApplier interface {
	Apply(ctx context.Context, event domain.LifecycleEvent) (string, bool, error)
}

// QuotaGate consumes from the per-account daily send budget.
type QuotaGate interface {
	Allow(ctx context.Context, accountID string) (bool, error)
}

// Sender is the send executor.
type Sender struct {
	drafts    DraftStore
	prospects ProspectGetter
	engine    EventApplier
	channels  map[string]channel.Messenger
	inviter   channel.Inviter
	quota     QuotaGate
	cfg       config.OutreachConfig
	bus       events.Bus
	log       *logger.Logger
	limiter   *rate.Limiter
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewSender(drafts DraftStore, prospects ProspectGetter, engine EventApplier, linkedin channel.Messenger, email channel.Messenger, inviter channel.Inviter, quota QuotaGate, cfg config.OutreachConfig, bus events.Bus, log *logger.Logger) *Sender {
	channels := map[string]channel.Messenger{}
	if linkedin != nil {
		channels[domain.ChannelLinkedIn] = linkedin
	}
	if email != nil {
		channels[domain.ChannelEmail] = email
	}

	minDelay := cfg.GetSendDelayMin()
	if minDelay <= 0 {
		minDelay = time.Second
	}

	return &Sender{
		drafts:    drafts,
		prospects: prospects,
		engine:    engine,
		channels:  channels,
		inviter:   inviter,
		quota:     quota,
		cfg:       cfg,
		bus:       bus,
		log:       log,
		limiter:   rate.NewLimiter(rate.Every(minDelay), 1),
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// SendApproved dispatches every approved draft that still has retry
// budget. Quota-blocked drafts stay approved and go out on a later run.
func (s *Sender) SendApproved(ctx context.Context) error {
	drafts, err := s.drafts.ListApproved(ctx, s.cfg.GetSendAttempts(), sendBatchLimit)
	if err != nil {
		return err
	}

	for _, draft := range drafts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.sendDraft(ctx, draft); err != nil {
			s.log.Error("draft dispatch errored",
				"draft_id", draft.ID.String(), "error", err.Error())
		}
	}
	return nil
}

func (s *Sender) sendDraft(ctx context.Context, draft domain.FollowUpDraft) error {
	prospect, err := s.prospects.GetByID(ctx, draft.ProspectID)
	if err != nil {
		return err
	}

	// A reply or unsubscribe that landed after approval wins: the draft
	// must never go out.
	if domain.IsTerminal(prospect.Status) {
		return s.drafts.CloseFailed(ctx, draft.ID, "prospect left automation before send")
	}

	allowed, err := s.quota.Allow(ctx, prospect.AccountID)
	if err != nil {
		return err
	}
	if !allowed {
		return nil
	}

	messenger, ok := s.channels[draft.Channel]
	if !ok {
		return s.fail(ctx, draft, prospect, "channel not configured: "+draft.Channel)
	}

	if err := s.pace(ctx); err != nil {
		return err
	}

	externalID, err := messenger.SendMessage(ctx, prospect, draft.Subject, draft.Body)
	if err != nil {
		return s.handleSendError(ctx, draft, prospect, err)
	}

	if err := s.drafts.MarkSent(ctx, draft.ID, externalID); err != nil {
		return err
	}

	_, _, err = s.engine.Apply(ctx, domain.LifecycleEvent{
		ProspectID:      prospect.ID,
		AccountID:       prospect.AccountID,
		ChannelUserID:   prospect.ChannelUserID,
		Type:            domain.EventSendSucceeded,
		Source:          domain.SourceInternal,
		ObservedAt:      s.now(),
		ExternalEventID: "send:" + draft.ID.String(),
	})
	if err != nil {
		return err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.DraftSent{
			BaseEvent:         events.NewBaseEvent(),
			DraftID:           draft.ID,
			ProspectID:        prospect.ID,
			Channel:           draft.Channel,
			ExternalMessageID: externalID,
		})
	}
	return nil
}

// DispatchInvitation sends the initial connection request for a claimed
// pending prospect.
func (s *Sender) DispatchInvitation(ctx context.Context, prospect domain.Prospect) error {
	if s.inviter == nil {
		return apperr.Unavailable("connection channel not configured")
	}

	allowed, err := s.quota.Allow(ctx, prospect.AccountID)
	if err != nil {
		return err
	}
	if !allowed {
		return apperr.RateLimited("daily send limit reached")
	}

	if err := s.pace(ctx); err != nil {
		return err
	}

	invitationID, err := s.inviter.SendInvitation(ctx, prospect, "")
	if err != nil {
		s.log.SendFailure(prospect.ID.String(), domain.ChannelLinkedIn, 1, err)
		return err
	}

	_, _, err = s.engine.Apply(ctx, domain.LifecycleEvent{
		ProspectID:      prospect.ID,
		AccountID:       prospect.AccountID,
		ChannelUserID:   prospect.ChannelUserID,
		Type:            domain.EventSendSucceeded,
		Source:          domain.SourceInternal,
		ObservedAt:      s.now(),
		ExternalEventID: "invite:" + invitationID,
	})
	return err
}

// handleSendError retries transient failures until the attempt budget is
// spent; permanent failures close the draft immediately.
func (s *Sender) handleSendError(ctx context.Context, draft domain.FollowUpDraft, prospect domain.Prospect, sendErr error) error {
	if apperr.IsTransient(sendErr) {
		attempts, err := s.drafts.IncrementRetry(ctx, draft.ID)
		if err != nil {
			return err
		}
		s.log.SendFailure(prospect.ID.String(), draft.Channel, attempts, sendErr)
		if attempts < s.cfg.GetSendAttempts() {
			return nil
		}
		return s.fail(ctx, draft, prospect, "retry budget exhausted: "+sendErr.Error())
	}

	s.log.SendFailure(prospect.ID.String(), draft.Channel, draft.RetryCount+1, sendErr)
	return s.fail(ctx, draft, prospect, sendErr.Error())
}

func (s *Sender) fail(ctx context.Context, draft domain.FollowUpDraft, prospect domain.Prospect, reason string) error {
	if err := s.drafts.CloseFailed(ctx, draft.ID, reason); err != nil {
		return err
	}

	_, _, err := s.engine.Apply(ctx, domain.LifecycleEvent{
		ProspectID:      prospect.ID,
		AccountID:       prospect.AccountID,
		ChannelUserID:   prospect.ChannelUserID,
		Type:            domain.EventSendFailed,
		Source:          domain.SourceInternal,
		ObservedAt:      s.now(),
		ExternalEventID: "send-failed:" + draft.ID.String(),
		FailureReason:   reason,
	})
	return err
}

// pace spreads sends out: the rate limiter enforces the floor and the
// jitter keeps the gaps irregular.
func (s *Sender) pace(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	spread := s.cfg.GetSendDelayMax() - s.cfg.GetSendDelayMin()
	if spread <= 0 {
		return nil
	}
	// Top-level rand is safe when concurrent task handlers share the Sender.
	return s.sleep(ctx, time.Duration(rand.Int63n(int64(spread))))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
