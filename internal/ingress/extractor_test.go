package ingress

import (
	"strings"
	"testing"
	"time"

	"outreach_backend/internal/prospects/domain"
)

func TestExtractEventMessageReceived(t *testing.T) {
	raw := []byte(`{
		"event_id": "evt-123",
		"event": "message.received",
		"account_id": "acc-1",
		"timestamp": "2026-08-10T09:30:00Z",
		"data": {"provider_id": "member-42", "text": "Thanks, let's talk next week."}
	}`)

	event, err := ExtractEvent(raw, time.Now())
	if err != nil {
		t.Fatalf("ExtractEvent returned error: %v", err)
	}
	if event.Type != domain.EventMessageReceived {
		t.Fatalf("type = %q, want %q", event.Type, domain.EventMessageReceived)
	}
	if event.ExternalEventID != "evt-123" || event.AccountID != "acc-1" || event.ChannelUserID != "member-42" {
		t.Fatalf("identity fields wrong: %+v", event)
	}
	if event.Source != domain.SourceWebhook {
		t.Fatalf("source = %q, want webhook", event.Source)
	}
	if event.MessagePreview != "Thanks, let's talk next week." {
		t.Fatalf("preview = %q", event.MessagePreview)
	}
	if event.ObservedAt.IsZero() || event.ObservedAt.Year() != 2026 {
		t.Fatalf("observed_at not taken from payload: %v", event.ObservedAt)
	}
}

func TestExtractEventInvitationAccepted(t *testing.T) {
	raw := []byte(`{
		"event_id": "evt-9",
		"event": "invitation.accepted",
		"account_id": "acc-1",
		"data": {"provider_id": "member-7"}
	}`)

	now := time.Now()
	event, err := ExtractEvent(raw, now)
	if err != nil {
		t.Fatalf("ExtractEvent returned error: %v", err)
	}
	if event.Type != domain.EventConnectionAccepted {
		t.Fatalf("type = %q, want %q", event.Type, domain.EventConnectionAccepted)
	}
	if !event.ObservedAt.Equal(now) {
		t.Fatal("missing timestamp must fall back to receipt time")
	}
}

func TestExtractEventUnknownType(t *testing.T) {
	raw := []byte(`{"event": "profile.viewed", "account_id": "acc-1", "data": {"provider_id": "m-1"}}`)

	_, err := ExtractEvent(raw, time.Now())
	if !IsUnknownEventType(err) {
		t.Fatalf("expected unknown event type error, got %v", err)
	}
}

func TestExtractEventIgnoresOutboundEchoes(t *testing.T) {
	// The executor already applies one internal send_succeeded per
	// dispatched message. Provider confirmations of that same send carry
	// their own event ids, so applying them too would advance the touch
	// counter once per echo.
	for _, echo := range []string{"message.sent", "message.delivered"} {
		raw := []byte(`{"event": "` + echo + `", "account_id": "acc-1", "data": {"provider_id": "m-1"}}`)

		_, err := ExtractEvent(raw, time.Now())
		if !IsUnknownEventType(err) {
			t.Fatalf("%s: expected outbound echo to be ignored, got %v", echo, err)
		}
	}
}

func TestExtractEventMissingIdentity(t *testing.T) {
	raw := []byte(`{"event": "message.received", "data": {"text": "hi"}}`)

	if _, err := ExtractEvent(raw, time.Now()); err == nil {
		t.Fatal("expected error for payload without account and prospect identity")
	}
}

func TestExtractEventTruncatesPreview(t *testing.T) {
	long := strings.Repeat("a", 500)
	raw := []byte(`{"event": "message.received", "account_id": "acc-1", "data": {"provider_id": "m-1", "text": "` + long + `"}}`)

	event, err := ExtractEvent(raw, time.Now())
	if err != nil {
		t.Fatalf("ExtractEvent returned error: %v", err)
	}
	if len(event.MessagePreview) != previewMaxLen {
		t.Fatalf("preview length = %d, want %d", len(event.MessagePreview), previewMaxLen)
	}
}

func TestExtractEventFailureReason(t *testing.T) {
	raw := []byte(`{
		"event": "message.failed",
		"account_id": "acc-1",
		"data": {"provider_id": "m-1", "reason": "recipient unreachable"}
	}`)

	event, err := ExtractEvent(raw, time.Now())
	if err != nil {
		t.Fatalf("ExtractEvent returned error: %v", err)
	}
	if event.Type != domain.EventSendFailed || event.FailureReason != "recipient unreachable" {
		t.Fatalf("failure event wrong: %+v", event)
	}
}
