package ingress

import (
	"context"
	"math/rand"
	"time"

	"outreach_backend/internal/channel"
	"outreach_backend/internal/prospects/domain"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

const (
	pollAccountConcurrency = 4
	pollProspectLimit      = 500
)

// ProspectLister lists the prospects the poller must reconcile.
type ProspectLister interface {
	ListAccountsAwaitingAcceptance(ctx context.Context) ([]string, error)
	ListAwaitingAcceptance(ctx context.Context, accountID string, limit int) ([]domain.Prospect, error)
}

// Poller reconciles provider-side connection state against prospects whose
// invitations are still outstanding. Providers do not webhook invitation
// outcomes reliably, so the poll is the authoritative fallback. Duplicate
// observations are absorbed by the engine's dedup.
type Poller struct {
	store    ProspectLister
	provider channel.RelationLister
	engine   EventApplier
	cfg      config.PollConfig
	log      *logger.Logger
	now      func() time.Time
}

func NewPoller(store ProspectLister, provider channel.RelationLister, engine EventApplier, cfg config.PollConfig, log *logger.Logger) *Poller {
	return &Poller{
		store:    store,
		provider: provider,
		engine:   engine,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Poll runs one reconciliation sweep across all accounts with outstanding
// invitations. Account sweeps run in parallel with jittered starts so the
// provider never sees a burst.
func (p *Poller) Poll(ctx context.Context) error {
	if p.provider == nil {
		p.log.Warn("connection poll skipped; channel provider not configured")
		return nil
	}

	accounts, err := p.store.ListAccountsAwaitingAcceptance(ctx)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(pollAccountConcurrency)

	for _, accountID := range accounts {
		group.Go(func() error {
			if err := p.jitter(groupCtx); err != nil {
				return err
			}
			if err := p.pollAccount(groupCtx, accountID); err != nil {
				p.log.Error("connection poll failed for account",
					"account_id", accountID, "error", err.Error())
			}
			return nil
		})
	}
	return group.Wait()
}

func (p *Poller) pollAccount(ctx context.Context, accountID string) error {
	pending, err := p.provider.ListPendingInvitations(ctx, accountID)
	if err != nil {
		return err
	}
	relations, err := p.provider.ListRelations(ctx, accountID)
	if err != nil {
		return err
	}

	stillPending := make(map[string]struct{}, len(pending))
	for _, inv := range pending {
		stillPending[inv.ChannelUserID] = struct{}{}
	}
	connected := make(map[string]channel.Relation, len(relations))
	for _, rel := range relations {
		connected[rel.ChannelUserID] = rel
	}

	prospects, err := p.store.ListAwaitingAcceptance(ctx, accountID, pollProspectLimit)
	if err != nil {
		return err
	}

	now := p.now()
	for _, prospect := range prospects {
		event, ok := p.classify(prospect, stillPending, connected, now)
		if !ok {
			continue
		}
		if _, _, err := p.engine.Apply(ctx, event); err != nil {
			p.log.Error("poll event not applied",
				"prospect_id", prospect.ID.String(),
				"event_type", event.Type,
				"error", err.Error())
		}
	}
	return nil
}

// classify decides what the provider's state says about one prospect.
// An invitation absent from both the pending list and the relations list
// past the decline window is treated as declined; LinkedIn silently drops
// withdrawn and refused invitations rather than reporting them.
func (p *Poller) classify(prospect domain.Prospect, stillPending map[string]struct{}, connected map[string]channel.Relation, now time.Time) (domain.LifecycleEvent, bool) {
	if rel, ok := connected[prospect.ChannelUserID]; ok {
		observedAt := rel.ConnectedAt
		if observedAt.IsZero() {
			observedAt = now
		}
		return domain.LifecycleEvent{
			ProspectID:    prospect.ID,
			AccountID:     prospect.AccountID,
			ChannelUserID: prospect.ChannelUserID,
			Type:          domain.EventConnectionAccepted,
			Source:        domain.SourcePoll,
			ObservedAt:    observedAt,
		}, true
	}

	if _, ok := stillPending[prospect.ChannelUserID]; ok {
		return domain.LifecycleEvent{}, false
	}

	if prospect.ConnectionSentAt == nil || now.Sub(*prospect.ConnectionSentAt) < p.cfg.GetDeclineAfter() {
		return domain.LifecycleEvent{}, false
	}

	return domain.LifecycleEvent{
		ProspectID:    prospect.ID,
		AccountID:     prospect.AccountID,
		ChannelUserID: prospect.ChannelUserID,
		Type:          domain.EventConnectionDeclined,
		Source:        domain.SourcePoll,
		ObservedAt:    now,
	}, true
}

func (p *Poller) jitter(ctx context.Context) error {
	max := p.cfg.GetPollJitterMax()
	if max <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	// Top-level rand is safe for the concurrent account sweeps.
	case <-time.After(time.Duration(rand.Int63n(int64(max)))):
		return nil
	}
}
