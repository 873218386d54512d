// Package followup provides the follow-up policy surface: scenario
// classification, cadence tables, channel escalation, and the draft
// generation gate.
package followup

import (
	"time"

	"outreach_backend/internal/prospects/domain"
)

// Follow-up scenarios, most specific first.
const (
	ScenarioMeetingScheduled      = "meeting_scheduled"
	ScenarioDemoCompleted         = "demo_completed"
	ScenarioTrialStalled          = "trial_stalled"
	ScenarioRepliedPositive       = "replied_positive"
	ScenarioCheckBackDateReached  = "check_back_date_reached"
	ScenarioNoResponseDefault     = "no_response_default"
)

// trialStallAfter is how long a trial may sit without inbound activity
// before the prospect counts as stalled.
const trialStallAfter = 3 * 24 * time.Hour

// Detect classifies which follow-up scenario applies. Pure function over
// persisted fields; scenarios are mutually exclusive and checked in fixed
// precedence order. It never infers from free text and always returns a
// value, so orchestration cannot stall on classification.
func Detect(p domain.Prospect, now time.Time) string {
	switch {
	case p.MeetingScheduledAt != nil:
		return ScenarioMeetingScheduled
	case p.DemoCompletedAt != nil:
		return ScenarioDemoCompleted
	case trialStalled(p, now):
		return ScenarioTrialStalled
	case p.RepliedPositive:
		return ScenarioRepliedPositive
	case p.CheckBackAt != nil && !now.Before(*p.CheckBackAt):
		return ScenarioCheckBackDateReached
	default:
		return ScenarioNoResponseDefault
	}
}

func trialStalled(p domain.Prospect, now time.Time) bool {
	if p.TrialStartedAt == nil {
		return false
	}
	if now.Sub(*p.TrialStartedAt) < trialStallAfter {
		return false
	}
	return p.LastInboundAt == nil || p.LastInboundAt.Before(*p.TrialStartedAt)
}
