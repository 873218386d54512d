package reconcile

import (
	"context"
	"testing"
	"time"

	"outreach_backend/internal/prospects/domain"
	"outreach_backend/internal/prospects/repository"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	msgExpectedApplied    = "expected event to be applied"
	msgExpectedNotApplied = "expected event not to be applied"
	fmtUnexpectedStatus   = "status = %q, want %q"
)

type fakeStore struct {
	prospects    map[uuid.UUID]domain.Prospect
	seen         map[string]bool
	lastUpdate   *repository.TransitionUpdate
	orphans      int
	recorded     int
	clearedNext  []uuid.UUID
	applyRefused bool
}

func newFakeStore(prospects ...domain.Prospect) *fakeStore {
	store := &fakeStore{
		prospects: make(map[uuid.UUID]domain.Prospect),
		seen:      make(map[string]bool),
	}
	for _, p := range prospects {
		store.prospects[p.ID] = p
	}
	return store
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (domain.Prospect, error) {
	p, ok := s.prospects[id]
	if !ok {
		return domain.Prospect{}, repository.ErrProspectNotFound
	}
	return p, nil
}

func (s *fakeStore) FindByChannelIdentity(_ context.Context, accountID, channelUserID string) (domain.Prospect, error) {
	for _, p := range s.prospects {
		if p.AccountID == accountID && p.ChannelUserID == channelUserID {
			return p, nil
		}
	}
	return domain.Prospect{}, repository.ErrProspectNotFound
}

func (s *fakeStore) ApplyEvent(_ context.Context, event domain.LifecycleEvent, update repository.TransitionUpdate) (bool, error) {
	key := update.ProspectID.String() + "|" + event.DedupKey()
	if s.seen[key] {
		return false, nil
	}
	if s.applyRefused {
		return false, nil
	}
	s.seen[key] = true
	s.lastUpdate = &update

	p := s.prospects[update.ProspectID]
	p.Status = update.ToStatus
	if update.IncrementTouch {
		p.TouchIndex++
	}
	if update.ClearNextAction {
		p.NextActionDueAt = nil
	} else if update.SetNextActionDueAt != nil {
		p.NextActionDueAt = update.SetNextActionDueAt
	}
	s.prospects[update.ProspectID] = p
	return true, nil
}

func (s *fakeStore) RecordEvent(_ context.Context, _ uuid.UUID, _ domain.LifecycleEvent) (bool, error) {
	s.recorded++
	return true, nil
}

func (s *fakeStore) RecordOrphanEvent(_ context.Context, _ domain.LifecycleEvent) error {
	s.orphans++
	return nil
}

func (s *fakeStore) ClearNextAction(_ context.Context, id uuid.UUID) error {
	s.clearedNext = append(s.clearedNext, id)
	p := s.prospects[id]
	p.NextActionDueAt = nil
	s.prospects[id] = p
	return nil
}

type fakePlanner struct {
	due *time.Time
}

func (p *fakePlanner) NextDue(_ domain.Prospect, _ string, _ time.Time) *time.Time {
	return p.due
}

func newTestEngine(store *fakeStore, planner *fakePlanner) *Engine {
	return NewEngine(store, planner, nil, logger.New("development"))
}

func awaitingProspect() domain.Prospect {
	return domain.Prospect{
		ID:            uuid.New(),
		OrgID:         uuid.New(),
		AccountID:     "acct-1",
		ChannelUserID: "member-42",
		Status:        domain.StatusConnectionRequestSent,
		MaxTouches:    4,
	}
}

func TestApplyConnectionAccepted(t *testing.T) {
	prospect := awaitingProspect()
	store := newFakeStore(prospect)
	due := time.Now().Add(24 * time.Hour)
	engine := newTestEngine(store, &fakePlanner{due: &due})

	status, applied, err := engine.Apply(context.Background(), domain.LifecycleEvent{
		AccountID:       "acct-1",
		ChannelUserID:   "member-42",
		Type:            domain.EventConnectionAccepted,
		Source:          domain.SourceWebhook,
		ObservedAt:      time.Now(),
		ExternalEventID: "evt_1",
	})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if !applied {
		t.Fatal(msgExpectedApplied)
	}
	if status != domain.StatusConnected {
		t.Fatalf(fmtUnexpectedStatus, status, domain.StatusConnected)
	}
	if store.lastUpdate.SetConnectionAcceptedAt == nil {
		t.Fatal("expected connection_accepted_at to be stamped")
	}
	if store.lastUpdate.SetNextActionDueAt == nil {
		t.Fatal("expected first follow-up due-time to be planned")
	}
}

func TestApplySameExternalEventTwiceIsNoOp(t *testing.T) {
	prospect := awaitingProspect()
	store := newFakeStore(prospect)
	due := time.Now().Add(24 * time.Hour)
	engine := newTestEngine(store, &fakePlanner{due: &due})

	event := domain.LifecycleEvent{
		ProspectID:      prospect.ID,
		Type:            domain.EventConnectionAccepted,
		Source:          domain.SourceWebhook,
		ObservedAt:      time.Now(),
		ExternalEventID: "evt_dup",
	}

	if _, applied, err := engine.Apply(context.Background(), event); err != nil || !applied {
		t.Fatalf("first apply: applied=%v err=%v", applied, err)
	}

	// Second delivery of the same fact: state must not advance again and
	// the caller must not see an error.
	status, applied, err := engine.Apply(context.Background(), event)
	if err != nil {
		t.Fatalf("second apply returned error: %v", err)
	}
	if applied {
		t.Fatal(msgExpectedNotApplied)
	}
	if status != domain.StatusConnected {
		t.Fatalf(fmtUnexpectedStatus, status, domain.StatusConnected)
	}
}

func TestApplyWebhookPollRaceSingleTransition(t *testing.T) {
	prospect := awaitingProspect()
	store := newFakeStore(prospect)
	due := time.Now().Add(24 * time.Hour)
	engine := newTestEngine(store, &fakePlanner{due: &due})

	webhookEvent := domain.LifecycleEvent{
		ProspectID:      prospect.ID,
		Type:            domain.EventConnectionAccepted,
		Source:          domain.SourceWebhook,
		ObservedAt:      time.Now(),
		ExternalEventID: "evt_wh",
	}
	pollEvent := domain.LifecycleEvent{
		ProspectID: prospect.ID,
		Type:       domain.EventConnectionAccepted,
		Source:     domain.SourcePoll,
		ObservedAt: time.Now(),
	}

	if _, applied, _ := engine.Apply(context.Background(), webhookEvent); !applied {
		t.Fatal(msgExpectedApplied)
	}

	// The poll observation arrives after the webhook already advanced the
	// prospect: no longer a valid transition, logged and ignored.
	status, applied, err := engine.Apply(context.Background(), pollEvent)
	if err != nil {
		t.Fatalf("poll apply returned error: %v", err)
	}
	if applied {
		t.Fatal(msgExpectedNotApplied)
	}
	if status != domain.StatusConnected {
		t.Fatalf(fmtUnexpectedStatus, status, domain.StatusConnected)
	}
	if store.recorded != 1 {
		t.Fatalf("ignored event should still be recorded once, got %d", store.recorded)
	}
}

func TestApplyReplyTerminatesAutomation(t *testing.T) {
	due := time.Now().Add(time.Hour)
	prospect := awaitingProspect()
	prospect.Status = domain.StatusMessaging
	prospect.NextActionDueAt = &due
	store := newFakeStore(prospect)
	engine := newTestEngine(store, &fakePlanner{due: &due})

	status, applied, err := engine.Apply(context.Background(), domain.LifecycleEvent{
		ProspectID:      prospect.ID,
		Type:            domain.EventMessageReceived,
		Source:          domain.SourceWebhook,
		ObservedAt:      time.Now(),
		ExternalEventID: "msg_1",
		MessagePreview:  "thanks, let's talk",
	})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if !applied || status != domain.StatusReplied {
		t.Fatalf("applied=%v status=%q, want applied=true status=%q", applied, status, domain.StatusReplied)
	}
	if !store.lastUpdate.ClearNextAction {
		t.Fatal("reply must clear the scheduled action")
	}
	if store.lastUpdate.SetLastInboundAt == nil {
		t.Fatal("expected last_inbound_at to be stamped")
	}
}

func TestApplyReplyOnTerminalStatusClearsStaleDueTime(t *testing.T) {
	due := time.Now().Add(time.Hour)
	prospect := awaitingProspect()
	prospect.Status = domain.StatusReplied
	prospect.NextActionDueAt = &due
	store := newFakeStore(prospect)
	engine := newTestEngine(store, &fakePlanner{})

	_, applied, err := engine.Apply(context.Background(), domain.LifecycleEvent{
		ProspectID: prospect.ID,
		Type:       domain.EventMessageReceived,
		Source:     domain.SourcePoll,
		ObservedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if applied {
		t.Fatal(msgExpectedNotApplied)
	}
	if len(store.clearedNext) != 1 {
		t.Fatalf("expected stale due-time to be cleared, clears=%d", len(store.clearedNext))
	}
}

func TestApplySendSucceededExhaustsTouchBudget(t *testing.T) {
	prospect := awaitingProspect()
	prospect.Status = domain.StatusMessaging
	prospect.TouchIndex = 3
	prospect.MaxTouches = 4
	store := newFakeStore(prospect)
	due := time.Now().Add(72 * time.Hour)
	engine := newTestEngine(store, &fakePlanner{due: &due})

	status, applied, err := engine.Apply(context.Background(), domain.LifecycleEvent{
		ProspectID: prospect.ID,
		Type:       domain.EventSendSucceeded,
		Source:     domain.SourceInternal,
		ObservedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if !applied {
		t.Fatal(msgExpectedApplied)
	}
	if status != domain.StatusFollowUpComplete {
		t.Fatalf(fmtUnexpectedStatus, status, domain.StatusFollowUpComplete)
	}
	if !store.lastUpdate.ClearNextAction {
		t.Fatal("completed sequence must have no scheduled action")
	}
	if got := store.prospects[prospect.ID].TouchIndex; got != 4 {
		t.Fatalf("touch_index = %d, want 4", got)
	}
}

func TestApplySendSucceededPlansNextTouch(t *testing.T) {
	prospect := awaitingProspect()
	prospect.Status = domain.StatusConnected
	prospect.TouchIndex = 0
	store := newFakeStore(prospect)
	due := time.Now().Add(72 * time.Hour)
	engine := newTestEngine(store, &fakePlanner{due: &due})

	status, applied, err := engine.Apply(context.Background(), domain.LifecycleEvent{
		ProspectID: prospect.ID,
		Type:       domain.EventSendSucceeded,
		Source:     domain.SourceInternal,
		ObservedAt: time.Now(),
	})
	if err != nil || !applied {
		t.Fatalf("applied=%v err=%v", applied, err)
	}
	if status != domain.StatusMessaging {
		t.Fatalf(fmtUnexpectedStatus, status, domain.StatusMessaging)
	}
	if store.lastUpdate.SetNextActionDueAt == nil {
		t.Fatal("expected next touch to be scheduled")
	}
}

func TestApplySendFailedRecordsError(t *testing.T) {
	prospect := awaitingProspect()
	prospect.Status = domain.StatusMessaging
	store := newFakeStore(prospect)
	engine := newTestEngine(store, &fakePlanner{})

	status, applied, err := engine.Apply(context.Background(), domain.LifecycleEvent{
		ProspectID:    prospect.ID,
		Type:          domain.EventSendFailed,
		Source:        domain.SourceInternal,
		ObservedAt:    time.Now(),
		FailureReason: "provider returned 502 three times",
	})
	if err != nil || !applied {
		t.Fatalf("applied=%v err=%v", applied, err)
	}
	if status != domain.StatusFailed {
		t.Fatalf(fmtUnexpectedStatus, status, domain.StatusFailed)
	}
	if store.lastUpdate.LastError == "" {
		t.Fatal("expected last error to be recorded for operator visibility")
	}
}

func TestApplyUnknownProspectRecordsOrphan(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store, &fakePlanner{})

	status, applied, err := engine.Apply(context.Background(), domain.LifecycleEvent{
		AccountID:     "acct-1",
		ChannelUserID: "stranger",
		Type:          domain.EventMessageReceived,
		Source:        domain.SourceWebhook,
		ObservedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if applied || status != "" {
		t.Fatalf("applied=%v status=%q, want no-op", applied, status)
	}
	if store.orphans != 1 {
		t.Fatalf("orphans = %d, want 1", store.orphans)
	}
}

func TestApplyLostRowRaceReturnsNotApplied(t *testing.T) {
	prospect := awaitingProspect()
	store := newFakeStore(prospect)
	store.applyRefused = true
	due := time.Now().Add(24 * time.Hour)
	engine := newTestEngine(store, &fakePlanner{due: &due})

	_, applied, err := engine.Apply(context.Background(), domain.LifecycleEvent{
		ProspectID:      prospect.ID,
		Type:            domain.EventConnectionAccepted,
		Source:          domain.SourcePoll,
		ObservedAt:      time.Now(),
		ExternalEventID: "evt_race",
	})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if applied {
		t.Fatal(msgExpectedNotApplied)
	}
}
