package followup

import (
	"math/rand"
	"time"

	"outreach_backend/internal/prospects/domain"
	"outreach_backend/platform/config"
)

const day = 24 * time.Hour

// delayTables hold per-scenario offsets keyed by completed touch count:
// entry 0 is the wait before the first follow-up, entry 1 before the
// second, and so on. An index beyond the table means the sequence is done.
var delayTables = map[string][]time.Duration{
	ScenarioNoResponseDefault:    {1 * day, 3 * day, 5 * day, 5 * day, 3 * day, 3 * day},
	ScenarioRepliedPositive:      {2 * day, 3 * day, 5 * day, 5 * day},
	ScenarioTrialStalled:         {2 * day, 3 * day, 4 * day},
	ScenarioMeetingScheduled:     {1 * day, 6 * day},
	ScenarioDemoCompleted:        {2 * day, 4 * day, 6 * day},
	ScenarioCheckBackDateReached: {0, 3 * day, 5 * day},
}

// Message tones by touch number.
const (
	ToneLightBump      = "light_bump"
	ToneValueAdd       = "value_add"
	ToneDifferentAngle = "different_angle"
	ToneBreakup        = "breakup"
)

// ToneForTouch returns the writing tone for a given touch number (1-based).
func ToneForTouch(touchNumber int) string {
	switch {
	case touchNumber <= 1:
		return ToneLightBump
	case touchNumber == 2:
		return ToneValueAdd
	case touchNumber == 3:
		return ToneDifferentAngle
	default:
		return ToneBreakup
	}
}

// Cadence computes follow-up due-times from the per-scenario delay tables,
// rolling weekend landings forward into the configured send window.
type Cadence struct {
	cfg config.OutreachConfig
}

func NewCadence(cfg config.OutreachConfig) *Cadence {
	return &Cadence{cfg: cfg}
}

// DelayTable returns the delay table for a scenario, falling back to the
// default table for unknown scenarios.
func DelayTable(scenario string) []time.Duration {
	if table, ok := delayTables[scenario]; ok {
		return table
	}
	return delayTables[ScenarioNoResponseDefault]
}

// NextDue implements the reconciliation engine's DuePlanner. It returns
// when the prospect's next touch is due, or nil when the sequence has no
// further automated action.
func (c *Cadence) NextDue(p domain.Prospect, status string, now time.Time) *time.Time {
	if domain.IsTerminal(status) {
		return nil
	}
	if p.TouchBudgetExhausted() {
		return nil
	}

	table := DelayTable(Detect(p, now))
	if p.TouchIndex >= len(table) {
		return nil
	}

	base := now
	if p.TouchIndex == 0 && p.ConnectionAcceptedAt != nil && p.ConnectionAcceptedAt.After(base.Add(-30*day)) {
		base = *p.ConnectionAcceptedAt
	}

	due := c.IntoSendWindow(base.Add(table[p.TouchIndex]))
	if due.Before(now) {
		due = c.IntoSendWindow(now)
	}
	return &due
}

// IntoSendWindow moves a timestamp onto a weekday inside the configured
// send-hour window, at a randomized minute to avoid clockwork sending.
func (c *Cadence) IntoSendWindow(t time.Time) time.Time {
	loc := c.cfg.GetScheduleLocation()
	local := t.In(loc)

	for local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		local = local.AddDate(0, 0, 1)
	}

	start := c.cfg.GetSendHourStart()
	end := c.cfg.GetSendHourEnd()
	if local.Hour() >= start && local.Hour() < end {
		return local
	}

	if local.Hour() >= end {
		local = local.AddDate(0, 0, 1)
		for local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
			local = local.AddDate(0, 0, 1)
		}
	}

	// Top-level rand is safe for concurrent callers (webhook handlers,
	// poll workers and the cycle all plan due-times).
	hour := start + rand.Intn(end-start)
	minute := rand.Intn(60)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
}
