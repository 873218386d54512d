package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Lifecycle event types. Both the webhook handler and the poll worker
// normalize provider payloads into these before anything downstream runs.
const (
	EventSendSucceeded      = "send_succeeded"
	EventSendFailed         = "send_failed"
	EventConnectionAccepted = "connection_accepted"
	EventConnectionDeclined = "connection_declined"
	EventMessageReceived    = "message_received"
	EventUnsubscribed       = "unsubscribed"
)

// Event sources.
const (
	SourceWebhook  = "webhook"
	SourcePoll     = "poll"
	SourceInternal = "internal"
)

// LifecycleEvent is a normalized fact describing something that happened
// to a prospect. Downstream components never see provider field names.
type LifecycleEvent struct {
	ProspectID      uuid.UUID       // zero when only the channel identity is known
	AccountID       string          // provider account the event belongs to
	ChannelUserID   string          // provider identity of the prospect
	Type            string
	Source          string
	ObservedAt      time.Time
	ExternalEventID string // dedup key; empty for poll-derived events
	MessagePreview  string // first characters of an inbound message, when present
	FailureReason   string // populated on send_failed
	Payload         json.RawMessage
}

// FingerprintFor derives a content-based dedup key for events without an
// external id, bound to the resolved prospect. Two observations of the
// same fact (e.g. webhook and poll both reporting an accepted connection)
// collapse to one fingerprint regardless of how each source identified
// the prospect.
func (e LifecycleEvent) FingerprintFor(prospectID uuid.UUID) string {
	h := sha256.New()
	h.Write([]byte(e.Type))
	h.Write([]byte("|"))
	h.Write([]byte(prospectID.String()))
	h.Write([]byte("|"))
	h.Write([]byte(strings.TrimSpace(e.MessagePreview)))
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint is the unresolved-prospect variant: the channel identity
// stands in for the prospect id. Used for orphan rows, which are never
// matched against resolved events.
func (e LifecycleEvent) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(e.Type))
	h.Write([]byte("|"))
	if e.ProspectID != uuid.Nil {
		h.Write([]byte(e.ProspectID.String()))
	} else {
		h.Write([]byte(e.ChannelUserID))
	}
	h.Write([]byte("|"))
	h.Write([]byte(strings.TrimSpace(e.MessagePreview)))
	return hex.EncodeToString(h.Sum(nil))
}

// DedupKey returns the key the activity log deduplicates on: the external
// event id when the provider supplied one, the content fingerprint otherwise.
func (e LifecycleEvent) DedupKey() string {
	if e.ExternalEventID != "" {
		return e.ExternalEventID
	}
	return "fp:" + e.Fingerprint()
}

func (e LifecycleEvent) IsInbound() bool {
	return e.Type == EventMessageReceived
}

func (e LifecycleEvent) IsOutbound() bool {
	return e.Type == EventSendSucceeded
}
