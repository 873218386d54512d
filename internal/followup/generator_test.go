package followup

import (
	"context"
	"errors"
	"testing"
	"time"

	"outreach_backend/internal/followup/writer"
	"outreach_backend/internal/prospects/domain"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeDraftStore struct {
	hasOpen      bool
	created      *domain.FollowUpDraft
	autoApproved bool
	sentBodies   []string
}

func (s *fakeDraftStore) HasOpenDraft(_ context.Context, _ uuid.UUID) (bool, error) {
	return s.hasOpen, nil
}

func (s *fakeDraftStore) Create(_ context.Context, d domain.FollowUpDraft) (domain.FollowUpDraft, error) {
	d.ID = uuid.New()
	s.created = &d
	return d, nil
}

func (s *fakeDraftStore) AutoApprove(_ context.Context, draftID uuid.UUID) (domain.FollowUpDraft, error) {
	s.autoApproved = true
	d := *s.created
	d.ApprovalStatus = domain.DraftApproved
	return d, nil
}

func (s *fakeDraftStore) ListSentBodies(_ context.Context, _ uuid.UUID, _ int) ([]string, error) {
	return s.sentBodies, nil
}

type fakeWriter struct {
	result   writer.Result
	failures int
	calls    int
}

func (w *fakeWriter) Write(_ context.Context, _ writer.Request) (writer.Result, error) {
	w.calls++
	if w.calls <= w.failures {
		return writer.Result{}, errors.New("kimi api rate limited: 429")
	}
	return w.result, nil
}

type autoApproveConfig struct {
	testOutreachConfig
	threshold float64
}

func (c autoApproveConfig) GetAutoApproveConfidence() float64 { return c.threshold }

func messagingProspect() domain.Prospect {
	return domain.Prospect{
		ID:            uuid.New(),
		FullName:      "Ada Lovelace",
		Company:       "Analytical Engines",
		ChannelUserID: "member-42",
		Email:         "ada@example.com",
		Status:        domain.StatusConnected,
		TouchIndex:    0,
		MaxTouches:    6,
	}
}

func newTestGenerator(store *fakeDraftStore, w *fakeWriter, threshold float64) *Generator {
	cfg := autoApproveConfig{
		testOutreachConfig: testOutreachConfig{maxTouches: 6, escalation: 3, hourStart: 9, hourEnd: 17},
		threshold:          threshold,
	}
	gen := NewGenerator(store, w, NewEscalation(cfg), cfg, nil, logger.New("development"))
	gen.backoff = func(int) time.Duration { return 0 }
	return gen
}

func TestGenerateDraftPendingApproval(t *testing.T) {
	store := &fakeDraftStore{}
	w := &fakeWriter{result: writer.Result{Text: "Hi Ada, worth a quick chat about the rollout metrics your team mentioned? Happy to share what comparable teams did.", Reasoning: "light bump"}}
	gen := newTestGenerator(store, w, 0)

	draft, err := gen.GenerateDraft(context.Background(), messagingProspect())
	if err != nil {
		t.Fatalf("GenerateDraft returned error: %v", err)
	}
	if draft.ApprovalStatus != domain.DraftPendingApproval {
		t.Fatalf("approval_status = %q, want %q", draft.ApprovalStatus, domain.DraftPendingApproval)
	}
	if draft.TouchNumber != 1 || draft.Tone != ToneLightBump {
		t.Fatalf("touch=%d tone=%q, want 1/%s", draft.TouchNumber, draft.Tone, ToneLightBump)
	}
	if draft.Channel != domain.ChannelLinkedIn {
		t.Fatalf("channel = %q, want linkedin below escalation threshold", draft.Channel)
	}
	if draft.Confidence < 0.4 || draft.Confidence > 1.0 {
		t.Fatalf("confidence %v out of bounds", draft.Confidence)
	}
	if store.autoApproved {
		t.Fatal("threshold 0 must never auto-approve")
	}
}

func TestGenerateDraftAbortsOnOpenDraft(t *testing.T) {
	store := &fakeDraftStore{hasOpen: true}
	gen := newTestGenerator(store, &fakeWriter{}, 0)

	_, err := gen.GenerateDraft(context.Background(), messagingProspect())
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if store.created != nil {
		t.Fatal("no draft may be created while another is open")
	}
}

func TestGenerateDraftEscalatesChannel(t *testing.T) {
	store := &fakeDraftStore{}
	w := &fakeWriter{result: writer.Result{Text: "Closing the loop here. If priorities shift, you know where to find me.", Subject: "Closing the loop"}}
	gen := newTestGenerator(store, w, 0)

	p := messagingProspect()
	p.Status = domain.StatusMessaging
	p.TouchIndex = 3

	draft, err := gen.GenerateDraft(context.Background(), p)
	if err != nil {
		t.Fatalf("GenerateDraft returned error: %v", err)
	}
	if draft.Channel != domain.ChannelEmail {
		t.Fatalf("channel = %q, want email at touch 4", draft.Channel)
	}
	if draft.Tone != ToneBreakup {
		t.Fatalf("tone = %q, want breakup", draft.Tone)
	}
}

func TestGenerateDraftAutoApprovesAboveThreshold(t *testing.T) {
	store := &fakeDraftStore{}
	demo := time.Now().Add(-24 * time.Hour)
	w := &fakeWriter{result: writer.Result{Text: "Hi Ada, following up on the demo we walked through last week. Happy to share the rollout plan your team asked about. Worth a quick call on Thursday?"}}
	gen := newTestGenerator(store, w, 0.75)

	p := messagingProspect()
	p.DemoCompletedAt = &demo

	draft, err := gen.GenerateDraft(context.Background(), p)
	if err != nil {
		t.Fatalf("GenerateDraft returned error: %v", err)
	}
	if !store.autoApproved {
		t.Fatal("expected auto-approval above confidence threshold")
	}
	if draft.ApprovalStatus != domain.DraftApproved {
		t.Fatalf("approval_status = %q, want approved", draft.ApprovalStatus)
	}
}

func TestGenerateDraftRetriesRateLimitedWriter(t *testing.T) {
	store := &fakeDraftStore{}
	w := &fakeWriter{
		failures: 1,
		result:   writer.Result{Text: "Saw your team shipped the onboarding flow. Still worth a quick chat?"},
	}
	gen := newTestGenerator(store, w, 0)

	if _, err := gen.GenerateDraft(context.Background(), messagingProspect()); err != nil {
		t.Fatalf("GenerateDraft returned error: %v", err)
	}
	if w.calls != 2 {
		t.Fatalf("writer calls = %d, want 2", w.calls)
	}
}

func TestGenerateDraftSurfacesExhaustedWriter(t *testing.T) {
	store := &fakeDraftStore{}
	w := &fakeWriter{failures: writeAttempts}
	gen := newTestGenerator(store, w, 0)

	_, err := gen.GenerateDraft(context.Background(), messagingProspect())
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable error after retry budget, got %v", err)
	}
	if store.created != nil {
		t.Fatal("no draft may be created when generation failed")
	}
}
