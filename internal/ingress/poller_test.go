package ingress

import (
	"context"
	"sync"
	"testing"
	"time"

	"outreach_backend/internal/channel"
	"outreach_backend/internal/prospects/domain"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeLister struct {
	accounts  []string
	prospects map[string][]domain.Prospect
}

func (f *fakeLister) ListAccountsAwaitingAcceptance(_ context.Context) ([]string, error) {
	return f.accounts, nil
}

func (f *fakeLister) ListAwaitingAcceptance(_ context.Context, accountID string, _ int) ([]domain.Prospect, error) {
	return f.prospects[accountID], nil
}

type fakeRelationLister struct {
	pending   map[string][]channel.Invitation
	relations map[string][]channel.Relation
}

func (f *fakeRelationLister) ListPendingInvitations(_ context.Context, accountID string) ([]channel.Invitation, error) {
	return f.pending[accountID], nil
}

func (f *fakeRelationLister) ListRelations(_ context.Context, accountID string) ([]channel.Relation, error) {
	return f.relations[accountID], nil
}

type fakeApplier struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
}

func (f *fakeApplier) Apply(_ context.Context, event domain.LifecycleEvent) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return "", true, nil
}

func (f *fakeApplier) byProspect(id uuid.UUID) (domain.LifecycleEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.ProspectID == id {
			return e, true
		}
	}
	return domain.LifecycleEvent{}, false
}

type pollTestConfig struct {
	declineAfter time.Duration
	jitterMax    time.Duration
}

func (c pollTestConfig) GetPollJitterMax() time.Duration { return c.jitterMax }
func (c pollTestConfig) GetDeclineAfter() time.Duration  { return c.declineAfter }

func awaitingProspect(accountID, channelUserID string, sentAgo time.Duration) domain.Prospect {
	sentAt := time.Now().Add(-sentAgo)
	return domain.Prospect{
		ID:               uuid.New(),
		AccountID:        accountID,
		ChannelUserID:    channelUserID,
		Status:           domain.StatusConnectionRequestSent,
		ConnectionSentAt: &sentAt,
	}
}

func TestPollJittersAccountSweepsConcurrently(t *testing.T) {
	// The account sweeps run on errgroup workers that all draw jitter;
	// the race detector flags any unsynchronized randomness here.
	accounts := make([]string, 16)
	prospects := map[string][]domain.Prospect{}
	relations := map[string][]channel.Relation{}
	for i := range accounts {
		accountID := "acc-" + uuid.NewString()
		accounts[i] = accountID
		p := awaitingProspect(accountID, "member-"+accountID, time.Hour)
		prospects[accountID] = []domain.Prospect{p}
		relations[accountID] = []channel.Relation{{ChannelUserID: p.ChannelUserID, ConnectedAt: time.Now()}}
	}

	store := &fakeLister{accounts: accounts, prospects: prospects}
	provider := &fakeRelationLister{
		pending:   map[string][]channel.Invitation{},
		relations: relations,
	}
	applier := &fakeApplier{}

	cfg := pollTestConfig{declineAfter: 24 * time.Hour, jitterMax: time.Millisecond}
	poller := NewPoller(store, provider, applier, cfg, logger.New("development"))
	if err := poller.Poll(context.Background()); err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if len(applier.events) != len(accounts) {
		t.Fatalf("events = %d, want one per account (%d)", len(applier.events), len(accounts))
	}
}

func TestPollEmitsAcceptedForNewRelation(t *testing.T) {
	p := awaitingProspect("acc-1", "member-1", time.Hour)
	connectedAt := time.Now().Add(-10 * time.Minute)

	store := &fakeLister{accounts: []string{"acc-1"}, prospects: map[string][]domain.Prospect{"acc-1": {p}}}
	provider := &fakeRelationLister{
		pending:   map[string][]channel.Invitation{},
		relations: map[string][]channel.Relation{"acc-1": {{ChannelUserID: "member-1", ConnectedAt: connectedAt}}},
	}
	applier := &fakeApplier{}

	poller := NewPoller(store, provider, applier, pollTestConfig{declineAfter: 24 * time.Hour}, logger.New("development"))
	if err := poller.Poll(context.Background()); err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}

	event, ok := applier.byProspect(p.ID)
	if !ok {
		t.Fatal("expected an event for the connected prospect")
	}
	if event.Type != domain.EventConnectionAccepted {
		t.Fatalf("type = %q, want %q", event.Type, domain.EventConnectionAccepted)
	}
	if event.Source != domain.SourcePoll {
		t.Fatalf("source = %q, want poll", event.Source)
	}
	if !event.ObservedAt.Equal(connectedAt) {
		t.Fatal("observed_at must come from the provider's connected_at")
	}
}

func TestPollSkipsStillPendingInvitation(t *testing.T) {
	p := awaitingProspect("acc-1", "member-1", 48*time.Hour)

	store := &fakeLister{accounts: []string{"acc-1"}, prospects: map[string][]domain.Prospect{"acc-1": {p}}}
	provider := &fakeRelationLister{
		pending:   map[string][]channel.Invitation{"acc-1": {{ChannelUserID: "member-1"}}},
		relations: map[string][]channel.Relation{},
	}
	applier := &fakeApplier{}

	poller := NewPoller(store, provider, applier, pollTestConfig{declineAfter: 24 * time.Hour}, logger.New("development"))
	if err := poller.Poll(context.Background()); err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if len(applier.events) != 0 {
		t.Fatalf("pending invitation must produce no event, got %+v", applier.events)
	}
}

func TestPollEmitsDeclinedAfterWindow(t *testing.T) {
	p := awaitingProspect("acc-1", "member-1", 48*time.Hour)

	store := &fakeLister{accounts: []string{"acc-1"}, prospects: map[string][]domain.Prospect{"acc-1": {p}}}
	provider := &fakeRelationLister{
		pending:   map[string][]channel.Invitation{},
		relations: map[string][]channel.Relation{},
	}
	applier := &fakeApplier{}

	poller := NewPoller(store, provider, applier, pollTestConfig{declineAfter: 24 * time.Hour}, logger.New("development"))
	if err := poller.Poll(context.Background()); err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}

	event, ok := applier.byProspect(p.ID)
	if !ok {
		t.Fatal("expected a declined event")
	}
	if event.Type != domain.EventConnectionDeclined {
		t.Fatalf("type = %q, want %q", event.Type, domain.EventConnectionDeclined)
	}
}

func TestPollWaitsOutDeclineWindow(t *testing.T) {
	p := awaitingProspect("acc-1", "member-1", time.Hour)

	store := &fakeLister{accounts: []string{"acc-1"}, prospects: map[string][]domain.Prospect{"acc-1": {p}}}
	provider := &fakeRelationLister{
		pending:   map[string][]channel.Invitation{},
		relations: map[string][]channel.Relation{},
	}
	applier := &fakeApplier{}

	poller := NewPoller(store, provider, applier, pollTestConfig{declineAfter: 24 * time.Hour}, logger.New("development"))
	if err := poller.Poll(context.Background()); err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if len(applier.events) != 0 {
		t.Fatalf("invitation inside the decline window must produce no event, got %+v", applier.events)
	}
}
