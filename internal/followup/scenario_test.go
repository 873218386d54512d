package followup

import (
	"testing"
	"time"

	"outreach_backend/internal/prospects/domain"
)

func TestDetectPrecedenceOrder(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	meeting := now.Add(48 * time.Hour)
	demo := now.Add(-24 * time.Hour)
	trial := now.Add(-5 * 24 * time.Hour)
	checkBack := now.Add(-time.Hour)

	tests := []struct {
		name     string
		prospect domain.Prospect
		want     string
	}{
		{
			name:     "meeting wins over everything",
			prospect: domain.Prospect{MeetingScheduledAt: &meeting, DemoCompletedAt: &demo, TrialStartedAt: &trial, RepliedPositive: true, CheckBackAt: &checkBack},
			want:     ScenarioMeetingScheduled,
		},
		{
			name:     "demo wins over trial and reply",
			prospect: domain.Prospect{DemoCompletedAt: &demo, TrialStartedAt: &trial, RepliedPositive: true},
			want:     ScenarioDemoCompleted,
		},
		{
			name:     "stalled trial wins over positive reply",
			prospect: domain.Prospect{TrialStartedAt: &trial, RepliedPositive: true},
			want:     ScenarioTrialStalled,
		},
		{
			name:     "positive reply wins over check-back",
			prospect: domain.Prospect{RepliedPositive: true, CheckBackAt: &checkBack},
			want:     ScenarioRepliedPositive,
		},
		{
			name:     "check-back date reached",
			prospect: domain.Prospect{CheckBackAt: &checkBack},
			want:     ScenarioCheckBackDateReached,
		},
		{
			name:     "nothing set falls through to default",
			prospect: domain.Prospect{},
			want:     ScenarioNoResponseDefault,
		},
	}

	for _, tc := range tests {
		if got := Detect(tc.prospect, now); got != tc.want {
			t.Errorf("%s: Detect = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestDetectTrialNotYetStalled(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	trial := now.Add(-24 * time.Hour)

	if got := Detect(domain.Prospect{TrialStartedAt: &trial}, now); got != ScenarioNoResponseDefault {
		t.Fatalf("fresh trial should not count as stalled, got %q", got)
	}

	oldTrial := now.Add(-6 * 24 * time.Hour)
	inbound := now.Add(-time.Hour)
	if got := Detect(domain.Prospect{TrialStartedAt: &oldTrial, LastInboundAt: &inbound}, now); got != ScenarioNoResponseDefault {
		t.Fatalf("trial with recent inbound activity should not count as stalled, got %q", got)
	}
}

func TestDetectFutureCheckBackNotReached(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(72 * time.Hour)

	if got := Detect(domain.Prospect{CheckBackAt: &future}, now); got != ScenarioNoResponseDefault {
		t.Fatalf("future check-back date must not trigger, got %q", got)
	}
}
