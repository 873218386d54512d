package followup

import (
	"outreach_backend/internal/prospects/domain"
	"outreach_backend/platform/config"
)

// Escalation decides whether a touch uses the original channel or
// switches to email once the touch threshold is reached.
type Escalation struct {
	threshold int
}

func NewEscalation(cfg config.OutreachConfig) *Escalation {
	return &Escalation{threshold: cfg.GetEscalationTouchThreshold()}
}

// ResolveChannel returns the effective channel for a touch. Below the
// threshold the original channel always wins. At or above it, email is
// used only when the prospect has a resolvable address; otherwise the
// original channel is kept rather than escalating into a void.
func (e *Escalation) ResolveChannel(p domain.Prospect, touchNumber int, originalChannel string) string {
	if e.threshold <= 0 || touchNumber < e.threshold {
		return originalChannel
	}
	if originalChannel == domain.ChannelEmail {
		return originalChannel
	}
	if p.HasEmail() {
		return domain.ChannelEmail
	}
	return originalChannel
}
