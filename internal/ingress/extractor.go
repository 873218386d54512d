package ingress

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"outreach_backend/internal/prospects/domain"
)

const previewMaxLen = 200

// webhookEnvelope is the provider's delivery format. Only the fields the
// lifecycle cares about are bound; the full payload is kept verbatim on
// the event for the activity log.
type webhookEnvelope struct {
	EventID   string          `json:"event_id"`
	Event     string          `json:"event"`
	AccountID string          `json:"account_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      webhookEventData `json:"data"`
}

type webhookEventData struct {
	ChannelUserID string `json:"provider_id"`
	AttendeeID    string `json:"attendee_id"`
	Text          string `json:"text"`
	Reason        string `json:"reason"`
}

var errUnknownEventType = errors.New("unrecognized webhook event type")

// eventTypeMap normalizes the provider's event names onto the lifecycle
// vocabulary. Unlisted events are acknowledged but never applied.
// Outbound confirmations (message.sent, message.delivered) are deliberately
// absent: the executor records each send as one internal event, and a
// provider echo would count the same touch again under a fresh event id.
var eventTypeMap = map[string]string{
	"message.failed":       domain.EventSendFailed,
	"message.received":     domain.EventMessageReceived,
	"invitation.accepted":  domain.EventConnectionAccepted,
	"invitation.declined":  domain.EventConnectionDeclined,
	"contact.unsubscribed": domain.EventUnsubscribed,
}

// ExtractEvent normalizes a raw webhook delivery into a lifecycle event.
func ExtractEvent(raw []byte, now time.Time) (domain.LifecycleEvent, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return domain.LifecycleEvent{}, fmt.Errorf("decode webhook payload: %w", err)
	}

	eventType, ok := eventTypeMap[strings.ToLower(strings.TrimSpace(envelope.Event))]
	if !ok {
		return domain.LifecycleEvent{}, fmt.Errorf("%w: %q", errUnknownEventType, envelope.Event)
	}

	channelUserID := envelope.Data.ChannelUserID
	if channelUserID == "" {
		channelUserID = envelope.Data.AttendeeID
	}
	if envelope.AccountID == "" || channelUserID == "" {
		return domain.LifecycleEvent{}, errors.New("webhook payload missing account or prospect identity")
	}

	observedAt := envelope.Timestamp
	if observedAt.IsZero() {
		observedAt = now
	}

	event := domain.LifecycleEvent{
		AccountID:       envelope.AccountID,
		ChannelUserID:   channelUserID,
		Type:            eventType,
		Source:          domain.SourceWebhook,
		ObservedAt:      observedAt,
		ExternalEventID: envelope.EventID,
		FailureReason:   envelope.Data.Reason,
		Payload:         json.RawMessage(raw),
	}
	if eventType == domain.EventMessageReceived {
		event.MessagePreview = truncatePreview(envelope.Data.Text)
	}
	return event, nil
}

// IsUnknownEventType reports whether extraction failed only because the
// provider sent an event the lifecycle does not track.
func IsUnknownEventType(err error) bool {
	return errors.Is(err, errUnknownEventType)
}

func truncatePreview(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= previewMaxLen {
		return text
	}
	cut := text[:previewMaxLen]
	// Do not split a multi-byte character.
	for len(cut) > 0 && cut[len(cut)-1]&0xC0 == 0x80 {
		cut = cut[:len(cut)-1]
	}
	return cut
}
