// Package domain provides core business rules for the prospects bounded context.
package domain

const (
	StatusPendingSend           = "pending_send"
	StatusConnectionRequestSent = "connection_request_sent"
	StatusConnected             = "connected"
	StatusMessaging             = "messaging"
	StatusReplied               = "replied"
	StatusFollowUpComplete      = "follow_up_complete"
	StatusDeclined              = "declined"
	StatusUnsubscribed          = "unsubscribed"
	StatusFailed                = "failed"
)

// automationBlockedStatuses are statuses where the scheduler must never
// pick the prospect up again, regardless of any stale due-time.
var automationBlockedStatuses = map[string]bool{
	StatusReplied:          true,
	StatusFollowUpComplete: true,
	StatusDeclined:         true,
	StatusUnsubscribed:     true,
	StatusFailed:           true,
}

var knownStatuses = map[string]struct{}{
	StatusPendingSend:           {},
	StatusConnectionRequestSent: {},
	StatusConnected:             {},
	StatusMessaging:             {},
	StatusReplied:               {},
	StatusFollowUpComplete:      {},
	StatusDeclined:              {},
	StatusUnsubscribed:          {},
	StatusFailed:                {},
}

// DueStatuses lists the statuses eligible for the due-prospect sweep.
// connection_request_sent waits on the other side and must never be
// claimed; the blocked statuses are out for good.
func DueStatuses() []string {
	return []string{StatusPendingSend, StatusConnected, StatusMessaging}
}

func IsKnownStatus(status string) bool {
	_, ok := knownStatuses[status]
	return ok
}

// IsTerminal returns true when no further automated action may be
// scheduled for the status. replied is terminal for automation only;
// a human still owns the conversation.
func IsTerminal(status string) bool {
	return automationBlockedStatuses[status]
}

// Transition returns the status that applying eventType to current yields.
// ok is false when the event does not match a valid transition for the
// current status; callers log and ignore those rather than erroring, since
// duplicate and late delivery from the webhook and poll paths is expected.
func Transition(current, eventType string) (string, bool) {
	switch eventType {
	case EventSendSucceeded:
		switch current {
		case StatusPendingSend:
			return StatusConnectionRequestSent, true
		case StatusConnected, StatusMessaging:
			return StatusMessaging, true
		}
	case EventConnectionAccepted:
		if current == StatusConnectionRequestSent {
			return StatusConnected, true
		}
	case EventConnectionDeclined:
		if current == StatusConnectionRequestSent {
			return StatusDeclined, true
		}
	case EventMessageReceived:
		if current == StatusConnected || current == StatusMessaging {
			return StatusReplied, true
		}
	case EventUnsubscribed:
		if !IsTerminal(current) {
			return StatusUnsubscribed, true
		}
	case EventSendFailed:
		if !IsTerminal(current) {
			return StatusFailed, true
		}
	}
	return current, false
}
