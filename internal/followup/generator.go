package followup

import (
	"context"
	"time"

	"outreach_backend/internal/events"
	"outreach_backend/internal/followup/writer"
	"outreach_backend/internal/prospects/domain"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// writeAttempts bounds retries against a rate-limited generation
// collaborator.
const writeAttempts = 3

// DraftWriter is the text-generation collaborator.
type DraftWriter interface {
	Write(ctx context.Context, req writer.Request) (writer.Result, error)
}

// DraftStore is the persistence surface the generator needs.
type DraftStore interface {
	HasOpenDraft(ctx context.Context, prospectID uuid.UUID) (bool, error)
	Create(ctx context.Context, d domain.FollowUpDraft) (domain.FollowUpDraft, error)
	AutoApprove(ctx context.Context, draftID uuid.UUID) (domain.FollowUpDraft, error)
	ListSentBodies(ctx context.Context, prospectID uuid.UUID, limit int) ([]string, error)
}

// Generator produces follow-up drafts and runs the approval gate.
type Generator struct {
	store      DraftStore
	writer     DraftWriter
	escalation *Escalation
	cfg        config.OutreachConfig
	bus        events.Bus
	log        *logger.Logger
	now        func() time.Time
	backoff    func(attempt int) time.Duration
}

func NewGenerator(store DraftStore, w DraftWriter, escalation *Escalation, cfg config.OutreachConfig, bus events.Bus, log *logger.Logger) *Generator {
	return &Generator{
		store:      store,
		writer:     w,
		escalation: escalation,
		cfg:        cfg,
		bus:        bus,
		log:        log,
		now:        time.Now,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
	}
}

// GenerateDraft produces the draft for a prospect's next touch and leaves
// it either pending approval or auto-approved past the confidence
// threshold. A second open draft for the same prospect indicates a
// scheduling-claim bug: the generation is aborted, never forced.
func (g *Generator) GenerateDraft(ctx context.Context, p domain.Prospect) (domain.FollowUpDraft, error) {
	hasOpen, err := g.store.HasOpenDraft(ctx, p.ID)
	if err != nil {
		return domain.FollowUpDraft{}, err
	}
	if hasOpen {
		g.log.Error("draft generation aborted: prospect already has an open draft",
			"prospect_id", p.ID.String())
		return domain.FollowUpDraft{}, apperr.Conflict("prospect already has an open draft")
	}

	now := g.now()
	scenario := Detect(p, now)
	touchNumber := p.TouchIndex + 1
	tone := ToneForTouch(touchNumber)
	channel := g.escalation.ResolveChannel(p, touchNumber, originalChannel(p))

	prior, err := g.store.ListSentBodies(ctx, p.ID, 10)
	if err != nil {
		return domain.FollowUpDraft{}, err
	}

	result, err := g.write(ctx, writer.Request{
		ProspectID:           p.ID,
		FullName:             p.FullName,
		Headline:             p.Headline,
		Company:              p.Company,
		Scenario:             scenario,
		Tone:                 tone,
		Channel:              channel,
		TouchNumber:          touchNumber,
		DaysSinceLastContact: p.DaysSinceLastContact(now),
		PriorMessages:        prior,
	})
	if err != nil {
		return domain.FollowUpDraft{}, apperr.Wrap(apperr.KindUnavailable, "draft generation failed", err)
	}

	confidence := ScoreConfidence(scenario, touchNumber, result.Text)
	draft, err := g.store.Create(ctx, domain.FollowUpDraft{
		ProspectID:     p.ID,
		TouchNumber:    touchNumber,
		Channel:        channel,
		Scenario:       scenario,
		Tone:           tone,
		Body:           result.Text,
		Subject:        result.Subject,
		Confidence:     confidence,
		Reasoning:      result.Reasoning,
		ApprovalStatus: domain.DraftPendingApproval,
	})
	if err != nil {
		return domain.FollowUpDraft{}, err
	}

	threshold := g.cfg.GetAutoApproveConfidence()
	if threshold > 0 && confidence >= threshold {
		approved, err := g.store.AutoApprove(ctx, draft.ID)
		if err != nil {
			return domain.FollowUpDraft{}, err
		}
		g.publishApproved(ctx, approved)
		return approved, nil
	}

	if g.bus != nil {
		g.bus.Publish(ctx, events.DraftPendingApproval{
			BaseEvent:   events.NewBaseEvent(),
			DraftID:     draft.ID,
			ProspectID:  draft.ProspectID,
			TouchNumber: draft.TouchNumber,
			Confidence:  draft.Confidence,
		})
	}
	return draft, nil
}

// write retries the collaborator with backoff; it may be rate limited.
func (g *Generator) write(ctx context.Context, req writer.Request) (writer.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		result, err := g.writer.Write(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		g.log.Warn("draft writer attempt failed",
			"prospect_id", req.ProspectID.String(),
			"attempt", attempt,
			"error", err.Error(),
		)
		if attempt == writeAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return writer.Result{}, ctx.Err()
		case <-time.After(g.backoff(attempt)):
		}
	}
	return writer.Result{}, lastErr
}

func (g *Generator) publishApproved(ctx context.Context, draft domain.FollowUpDraft) {
	if g.bus == nil {
		return
	}
	g.bus.Publish(ctx, events.DraftApproved{
		BaseEvent:  events.NewBaseEvent(),
		DraftID:    draft.ID,
		ProspectID: draft.ProspectID,
		Auto:       true,
	})
}

func originalChannel(p domain.Prospect) string {
	if p.ChannelUserID != "" {
		return domain.ChannelLinkedIn
	}
	return domain.ChannelEmail
}
