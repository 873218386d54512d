package scheduler

import (
	"context"
	"time"

	"outreach_backend/internal/prospects/domain"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// ClaimStore claims and releases due prospects.
type ClaimStore interface {
	ClaimDueBatch(ctx context.Context, now time.Time, limit int, claimedBy string) ([]domain.Prospect, error)
	ReleaseClaim(ctx context.Context, id uuid.UUID) error
}

// DraftGenerator produces the next follow-up draft for a claimed prospect.
type DraftGenerator interface {
	GenerateDraft(ctx context.Context, p domain.Prospect) (domain.FollowUpDraft, error)
}

// InvitationDispatcher sends the initial connection request for a
// pending prospect.
type InvitationDispatcher interface {
	DispatchInvitation(ctx context.Context, p domain.Prospect) error
}

// Cycle processes prospects whose next action is due: pending prospects
// get their connection request, connected ones get a follow-up draft.
// The claim keeps concurrent cycles off the same rows; failed work is
// released so the next cycle can retry it.
type Cycle struct {
	store     ClaimStore
	generator DraftGenerator
	inviter   InvitationDispatcher
	cfg       config.OutreachConfig
	log       *logger.Logger
	claimedBy string
	now       func() time.Time
}

func NewCycle(store ClaimStore, generator DraftGenerator, inviter InvitationDispatcher, cfg config.OutreachConfig, log *logger.Logger, claimedBy string) *Cycle {
	return &Cycle{
		store:     store,
		generator: generator,
		inviter:   inviter,
		cfg:       cfg,
		log:       log,
		claimedBy: claimedBy,
		now:       time.Now,
	}
}

// Run claims and processes batches until the queue drains or the cycle
// budget is spent. The budget caps wall-clock time, not batch count, so
// a backlog cannot make one cycle run unbounded.
func (c *Cycle) Run(ctx context.Context) error {
	batchSize := c.cfg.GetBatchSize()
	deadline := c.now().Add(c.cfg.GetCycleBudget())
	processed := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !c.now().Before(deadline) {
			c.log.Warn("outreach cycle stopped at budget", "processed", processed)
			return nil
		}

		batch, err := c.store.ClaimDueBatch(ctx, c.now(), batchSize, c.claimedBy)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}

		for _, prospect := range batch {
			c.process(ctx, prospect)
			processed++
		}

		if len(batch) < batchSize {
			break
		}
	}

	c.log.Info("outreach cycle complete", "processed", processed)
	return nil
}

func (c *Cycle) process(ctx context.Context, prospect domain.Prospect) {
	var err error
	switch prospect.Status {
	case domain.StatusPendingSend:
		err = c.inviter.DispatchInvitation(ctx, prospect)
	case domain.StatusConnected, domain.StatusMessaging:
		_, err = c.generator.GenerateDraft(ctx, prospect)
	default:
		// The claim query should never hand out other statuses.
		c.log.Error("claimed prospect in unexpected status",
			"prospect_id", prospect.ID.String(), "status", prospect.Status)
		err = c.store.ReleaseClaim(ctx, prospect.ID)
		if err != nil {
			c.log.Error("claim release failed", "prospect_id", prospect.ID.String(), "error", err.Error())
		}
		return
	}

	if err != nil {
		c.log.Error("cycle action failed",
			"prospect_id", prospect.ID.String(),
			"status", prospect.Status,
			"error", err.Error(),
		)
		if releaseErr := c.store.ReleaseClaim(ctx, prospect.ID); releaseErr != nil {
			c.log.Error("claim release failed",
				"prospect_id", prospect.ID.String(), "error", releaseErr.Error())
		}
	}
}
