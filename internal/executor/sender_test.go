package executor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"outreach_backend/internal/prospects/domain"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type fakeDrafts struct {
	approved   []domain.FollowUpDraft
	sent       map[uuid.UUID]string
	retries    map[uuid.UUID]int
	closed     map[uuid.UUID]string
}

func newFakeDrafts(approved ...domain.FollowUpDraft) *fakeDrafts {
	return &fakeDrafts{
		approved: approved,
		sent:     map[uuid.UUID]string{},
		retries:  map[uuid.UUID]int{},
		closed:   map[uuid.UUID]string{},
	}
}

func (f *fakeDrafts) ListApproved(_ context.Context, _, _ int) ([]domain.FollowUpDraft, error) {
	return f.approved, nil
}

func (f *fakeDrafts) MarkSent(_ context.Context, draftID uuid.UUID, externalMessageID string) error {
	f.sent[draftID] = externalMessageID
	return nil
}

func (f *fakeDrafts) IncrementRetry(_ context.Context, draftID uuid.UUID) (int, error) {
	f.retries[draftID]++
	return f.retries[draftID], nil
}

func (f *fakeDrafts) CloseFailed(_ context.Context, draftID uuid.UUID, reason string) error {
	f.closed[draftID] = reason
	return nil
}

type fakeProspects struct {
	byID map[uuid.UUID]domain.Prospect
}

func (f *fakeProspects) GetByID(_ context.Context, id uuid.UUID) (domain.Prospect, error) {
	return f.byID[id], nil
}

type fakeEngine struct {
	events []domain.LifecycleEvent
}

func (f *fakeEngine) Apply(_ context.Context, event domain.LifecycleEvent) (string, bool, error) {
	f.events = append(f.events, event)
	return "", true, nil
}

type fakeQuota struct {
	remaining int
}

func (f *fakeQuota) Allow(_ context.Context, _ string) (bool, error) {
	if f.remaining <= 0 {
		return false, nil
	}
	f.remaining--
	return true, nil
}

type fakeMessenger struct {
	externalID string
	err        error
	calls      int
}

func (f *fakeMessenger) SendMessage(_ context.Context, _ domain.Prospect, _, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.externalID, nil
}

type fakeInviter struct {
	invitationID string
	err          error
}

func (f *fakeInviter) SendInvitation(_ context.Context, _ domain.Prospect, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.invitationID, nil
}

func activeProspect() domain.Prospect {
	return domain.Prospect{
		ID:            uuid.New(),
		AccountID:     "acc-1",
		ChannelUserID: "member-1",
		Status:        domain.StatusMessaging,
	}
}

func approvedDraft(prospectID uuid.UUID) domain.FollowUpDraft {
	return domain.FollowUpDraft{
		ID:             uuid.New(),
		ProspectID:     prospectID,
		Channel:        domain.ChannelLinkedIn,
		Body:           "Quick follow-up on the rollout discussion.",
		ApprovalStatus: domain.DraftApproved,
	}
}

func newTestSender(drafts *fakeDrafts, prospects *fakeProspects, engine *fakeEngine, messenger *fakeMessenger, inviter *fakeInviter, quota *fakeQuota) *Sender {
	s := NewSender(drafts, prospects, engine, messenger, nil, inviter, quota, quotaTestConfig{limit: 20}, nil, logger.New("development"))
	s.limiter = rate.NewLimiter(rate.Inf, 1)
	return s
}

func TestSendApprovedMarksSentAndAppliesEvent(t *testing.T) {
	p := activeProspect()
	draft := approvedDraft(p.ID)

	drafts := newFakeDrafts(draft)
	prospects := &fakeProspects{byID: map[uuid.UUID]domain.Prospect{p.ID: p}}
	engine := &fakeEngine{}
	messenger := &fakeMessenger{externalID: "msg-1"}

	sender := newTestSender(drafts, prospects, engine, messenger, &fakeInviter{}, &fakeQuota{remaining: 5})
	if err := sender.SendApproved(context.Background()); err != nil {
		t.Fatalf("SendApproved returned error: %v", err)
	}

	if drafts.sent[draft.ID] != "msg-1" {
		t.Fatalf("draft not marked sent with provider id, got %q", drafts.sent[draft.ID])
	}
	if len(engine.events) != 1 {
		t.Fatalf("engine events = %d, want 1", len(engine.events))
	}
	event := engine.events[0]
	if event.Type != domain.EventSendSucceeded || event.Source != domain.SourceInternal {
		t.Fatalf("event = %+v, want internal send_succeeded", event)
	}
	if event.ExternalEventID != "send:"+draft.ID.String() {
		t.Fatalf("external event id = %q, must be stable for dedup", event.ExternalEventID)
	}
}

func TestSendApprovedSkipsWhenQuotaExhausted(t *testing.T) {
	p := activeProspect()
	draft := approvedDraft(p.ID)

	drafts := newFakeDrafts(draft)
	prospects := &fakeProspects{byID: map[uuid.UUID]domain.Prospect{p.ID: p}}
	engine := &fakeEngine{}
	messenger := &fakeMessenger{externalID: "msg-1"}

	sender := newTestSender(drafts, prospects, engine, messenger, &fakeInviter{}, &fakeQuota{remaining: 0})
	if err := sender.SendApproved(context.Background()); err != nil {
		t.Fatalf("SendApproved returned error: %v", err)
	}

	if messenger.calls != 0 {
		t.Fatal("quota-blocked draft must not be sent")
	}
	if len(drafts.closed) != 0 {
		t.Fatal("quota-blocked draft must stay approved for the next run")
	}
}

func TestSendApprovedClosesDraftWhenProspectTerminal(t *testing.T) {
	p := activeProspect()
	p.Status = domain.StatusReplied
	draft := approvedDraft(p.ID)

	drafts := newFakeDrafts(draft)
	prospects := &fakeProspects{byID: map[uuid.UUID]domain.Prospect{p.ID: p}}
	engine := &fakeEngine{}
	messenger := &fakeMessenger{externalID: "msg-1"}

	sender := newTestSender(drafts, prospects, engine, messenger, &fakeInviter{}, &fakeQuota{remaining: 5})
	if err := sender.SendApproved(context.Background()); err != nil {
		t.Fatalf("SendApproved returned error: %v", err)
	}

	if messenger.calls != 0 {
		t.Fatal("a replied prospect must never receive the queued draft")
	}
	if _, closed := drafts.closed[draft.ID]; !closed {
		t.Fatal("the stale draft must be closed")
	}
	if len(engine.events) != 0 {
		t.Fatal("closing a stale draft must not touch prospect state")
	}
}

func TestSendApprovedRetriesTransientFailure(t *testing.T) {
	p := activeProspect()
	draft := approvedDraft(p.ID)

	drafts := newFakeDrafts(draft)
	prospects := &fakeProspects{byID: map[uuid.UUID]domain.Prospect{p.ID: p}}
	engine := &fakeEngine{}
	messenger := &fakeMessenger{err: apperr.RateLimited("provider throttled")}

	sender := newTestSender(drafts, prospects, engine, messenger, &fakeInviter{}, &fakeQuota{remaining: 5})
	if err := sender.SendApproved(context.Background()); err != nil {
		t.Fatalf("SendApproved returned error: %v", err)
	}

	if drafts.retries[draft.ID] != 1 {
		t.Fatalf("retry count = %d, want 1", drafts.retries[draft.ID])
	}
	if len(drafts.closed) != 0 {
		t.Fatal("draft with remaining retry budget must stay approved")
	}
	if len(engine.events) != 0 {
		t.Fatal("transient failure below the budget must not fail the prospect")
	}
}

func TestSendApprovedFailsAfterRetryBudget(t *testing.T) {
	p := activeProspect()
	draft := approvedDraft(p.ID)

	drafts := newFakeDrafts(draft)
	drafts.retries[draft.ID] = 2
	prospects := &fakeProspects{byID: map[uuid.UUID]domain.Prospect{p.ID: p}}
	engine := &fakeEngine{}
	messenger := &fakeMessenger{err: apperr.Unavailable("provider down")}

	sender := newTestSender(drafts, prospects, engine, messenger, &fakeInviter{}, &fakeQuota{remaining: 5})
	if err := sender.SendApproved(context.Background()); err != nil {
		t.Fatalf("SendApproved returned error: %v", err)
	}

	reason, closed := drafts.closed[draft.ID]
	if !closed || !strings.Contains(reason, "retry budget exhausted") {
		t.Fatalf("draft must be closed after the last attempt, reason=%q", reason)
	}
	if len(engine.events) != 1 || engine.events[0].Type != domain.EventSendFailed {
		t.Fatalf("engine must see send_failed, got %+v", engine.events)
	}
}

func TestSendApprovedPermanentErrorFailsImmediately(t *testing.T) {
	p := activeProspect()
	draft := approvedDraft(p.ID)

	drafts := newFakeDrafts(draft)
	prospects := &fakeProspects{byID: map[uuid.UUID]domain.Prospect{p.ID: p}}
	engine := &fakeEngine{}
	messenger := &fakeMessenger{err: errors.New("invalid recipient")}

	sender := newTestSender(drafts, prospects, engine, messenger, &fakeInviter{}, &fakeQuota{remaining: 5})
	if err := sender.SendApproved(context.Background()); err != nil {
		t.Fatalf("SendApproved returned error: %v", err)
	}

	if drafts.retries[draft.ID] != 0 {
		t.Fatal("permanent failures must not burn the retry budget")
	}
	if _, closed := drafts.closed[draft.ID]; !closed {
		t.Fatal("permanent failure must close the draft")
	}
	if len(engine.events) != 1 || engine.events[0].Type != domain.EventSendFailed {
		t.Fatalf("engine must see send_failed, got %+v", engine.events)
	}
}

func TestDispatchInvitationAppliesSendSucceeded(t *testing.T) {
	p := activeProspect()
	p.Status = domain.StatusPendingSend

	engine := &fakeEngine{}
	sender := newTestSender(newFakeDrafts(), &fakeProspects{}, engine, &fakeMessenger{}, &fakeInviter{invitationID: "inv-9"}, &fakeQuota{remaining: 5})

	if err := sender.DispatchInvitation(context.Background(), p); err != nil {
		t.Fatalf("DispatchInvitation returned error: %v", err)
	}
	if len(engine.events) != 1 {
		t.Fatalf("engine events = %d, want 1", len(engine.events))
	}
	if engine.events[0].ExternalEventID != "invite:inv-9" {
		t.Fatalf("external event id = %q", engine.events[0].ExternalEventID)
	}
}

func TestDispatchInvitationBlockedByQuota(t *testing.T) {
	p := activeProspect()
	p.Status = domain.StatusPendingSend

	engine := &fakeEngine{}
	sender := newTestSender(newFakeDrafts(), &fakeProspects{}, engine, &fakeMessenger{}, &fakeInviter{invitationID: "inv-9"}, &fakeQuota{remaining: 0})

	err := sender.DispatchInvitation(context.Background(), p)
	if !apperr.Is(err, apperr.KindRateLimited) {
		t.Fatalf("expected rate-limited error, got %v", err)
	}
	if len(engine.events) != 0 {
		t.Fatal("blocked invitation must not touch prospect state")
	}
}
