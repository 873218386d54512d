package followup

import (
	"testing"
	"time"

	"outreach_backend/internal/prospects/domain"
)

// testOutreachConfig satisfies config.OutreachConfig for policy tests.
type testOutreachConfig struct {
	maxTouches int
	escalation int
	hourStart  int
	hourEnd    int
}

func (c testOutreachConfig) GetMaxTouches() int                  { return c.maxTouches }
func (c testOutreachConfig) GetBatchSize() int                   { return 20 }
func (c testOutreachConfig) GetDailySendLimit() int              { return 20 }
func (c testOutreachConfig) GetSendAttempts() int                { return 3 }
func (c testOutreachConfig) GetSendDelayMin() time.Duration      { return 3 * time.Second }
func (c testOutreachConfig) GetSendDelayMax() time.Duration      { return 5 * time.Second }
func (c testOutreachConfig) GetEscalationTouchThreshold() int    { return c.escalation }
func (c testOutreachConfig) GetAutoApproveConfidence() float64   { return 0 }
func (c testOutreachConfig) GetPollJitterMax() time.Duration     { return time.Second }
func (c testOutreachConfig) GetDeclineAfter() time.Duration      { return 24 * time.Hour }
func (c testOutreachConfig) GetCycleBudget() time.Duration       { return 4 * time.Minute }
func (c testOutreachConfig) GetSendHourStart() int               { return c.hourStart }
func (c testOutreachConfig) GetSendHourEnd() int                 { return c.hourEnd }
func (c testOutreachConfig) GetScheduleLocation() *time.Location { return time.UTC }

func newTestCadence() *Cadence {
	return NewCadence(testOutreachConfig{maxTouches: 6, escalation: 3, hourStart: 9, hourEnd: 17})
}

func TestNextDueFirstTouchAfterAcceptance(t *testing.T) {
	cadence := newTestCadence()
	// Tuesday, well inside the send window.
	accepted := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	now := accepted.Add(time.Minute)

	p := domain.Prospect{
		Status:               domain.StatusConnected,
		TouchIndex:           0,
		MaxTouches:           6,
		ConnectionAcceptedAt: &accepted,
	}

	due := cadence.NextDue(p, domain.StatusConnected, now)
	if due == nil {
		t.Fatal("expected a due-time for the first touch")
	}
	if due.Before(accepted.Add(24 * time.Hour)) {
		t.Fatalf("first touch due %v, want at least 24h after acceptance", due)
	}
	if due.After(accepted.Add(4 * 24 * time.Hour)) {
		t.Fatalf("first touch due %v, unreasonably far from acceptance", due)
	}
}

func TestNextDueWeekendRollsToWeekday(t *testing.T) {
	cadence := newTestCadence()
	// Friday afternoon + 1 day lands on Saturday.
	accepted := time.Date(2026, 3, 13, 15, 0, 0, 0, time.UTC)
	now := accepted

	p := domain.Prospect{
		Status:               domain.StatusConnected,
		TouchIndex:           0,
		MaxTouches:           6,
		ConnectionAcceptedAt: &accepted,
	}

	due := cadence.NextDue(p, domain.StatusConnected, now)
	if due == nil {
		t.Fatal("expected a due-time")
	}
	wd := due.In(time.UTC).Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		t.Fatalf("due-time landed on %v, weekends must roll forward", wd)
	}
	hour := due.In(time.UTC).Hour()
	if hour < 9 || hour >= 17 {
		t.Fatalf("due hour %d outside send window [9,17)", hour)
	}
}

func TestNextDueNilWhenBudgetExhausted(t *testing.T) {
	cadence := newTestCadence()
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	p := domain.Prospect{
		Status:     domain.StatusMessaging,
		TouchIndex: 6,
		MaxTouches: 6,
	}
	if due := cadence.NextDue(p, domain.StatusMessaging, now); due != nil {
		t.Fatalf("exhausted budget must yield no due-time, got %v", due)
	}
}

func TestNextDueNilBeyondDelayTable(t *testing.T) {
	cadence := newTestCadence()
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	// Max touches allows more, but the scenario table is shorter.
	trial := now.Add(-10 * 24 * time.Hour)
	p := domain.Prospect{
		Status:         domain.StatusMessaging,
		TouchIndex:     3,
		MaxTouches:     10,
		TrialStartedAt: &trial,
	}
	if due := cadence.NextDue(p, domain.StatusMessaging, now); due != nil {
		t.Fatalf("index beyond table must yield no due-time, got %v", due)
	}
}

func TestNextDueNilForTerminalStatus(t *testing.T) {
	cadence := newTestCadence()
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	p := domain.Prospect{Status: domain.StatusReplied, TouchIndex: 1, MaxTouches: 6}
	if due := cadence.NextDue(p, domain.StatusReplied, now); due != nil {
		t.Fatalf("terminal status must yield no due-time, got %v", due)
	}
}

func TestToneForTouchProgression(t *testing.T) {
	tests := []struct {
		touch int
		want  string
	}{
		{1, ToneLightBump},
		{2, ToneValueAdd},
		{3, ToneDifferentAngle},
		{4, ToneBreakup},
		{6, ToneBreakup},
	}
	for _, tc := range tests {
		if got := ToneForTouch(tc.touch); got != tc.want {
			t.Errorf("ToneForTouch(%d) = %q, want %q", tc.touch, got, tc.want)
		}
	}
}

func TestDelayTableFallsBackToDefault(t *testing.T) {
	if got := DelayTable("unheard_of"); len(got) != len(delayTables[ScenarioNoResponseDefault]) {
		t.Fatal("unknown scenario must fall back to the default table")
	}
}
