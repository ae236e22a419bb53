package webhook

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/summitworks/delivery-monitor/internal/domain"
)

func TestNormalizeEventTypes(t *testing.T) {
	cases := []struct {
		provider string
		want     domain.EventType
	}{
		{"injection", domain.EventSent},
		{"sent", domain.EventSent},
		{"delivery", domain.EventDelivered},
		{"delivered", domain.EventDelivered},
		{"delay", domain.EventDeliveryDelayed},
		{"deferred", domain.EventDeliveryDelayed},
		{"bounce", domain.EventBounced},
		{"failed", domain.EventBounced},
		{"spam_complaint", domain.EventComplained},
		{"complaint", domain.EventComplained},
		{"open", domain.EventOpened},
		{"initial_open", domain.EventOpened},
		{"click", domain.EventClicked},
		{"unsubscribe", domain.EventUnsubscribed},
		{"list_unsubscribe", domain.EventUnsubscribed},
	}

	for _, c := range cases {
		raw, _ := json.Marshal(map[string]string{
			"event":      c.provider,
			"message_id": "m-1",
			"recipient":  "user@example.com",
			"timestamp":  "2026-08-30T12:00:00Z",
		})
		ev, err := Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", c.provider, err)
		}
		if ev.Type != c.want {
			t.Errorf("Normalize(%q) = %s, want %s", c.provider, ev.Type, c.want)
		}
	}
}

func TestNormalizeUnrecognizedType(t *testing.T) {
	raw := json.RawMessage(`{"event":"sms_sent","message_id":"m-1"}`)
	_, err := Normalize(raw)
	if !errors.Is(err, ErrUnrecognizedEventType) {
		t.Fatalf("expected ErrUnrecognizedEventType, got %v", err)
	}
}

func TestNormalizeMissingMessageID(t *testing.T) {
	raw := json.RawMessage(`{"event":"delivery","recipient":"user@example.com"}`)
	if _, err := Normalize(raw); err == nil {
		t.Fatal("expected error for missing message_id")
	}
}

func TestNormalizeMissingRecipient(t *testing.T) {
	raw := json.RawMessage(`{"event":"delivery","message_id":"m-1"}`)
	if _, err := Normalize(raw); err == nil {
		t.Fatal("expected error for missing recipient")
	}
}

func TestNormalizeRetainsRawPayload(t *testing.T) {
	raw := json.RawMessage(`{"event":"delivery","message_id":"m-1","recipient":"user@example.com"}`)
	ev, err := Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if string(ev.Raw) != string(raw) {
		t.Error("normalized event should retain the raw provider payload")
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	raw := json.RawMessage(`{"event":"delivery","message_id":"m-1","recipient":"user@example.com","timestamp":"2026-08-30T12:34:56Z"}`)
	ev, err := Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 8, 30, 12, 34, 56, 0, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", ev.Timestamp, want)
	}

	// Unparseable timestamps fall back to now rather than failing the event.
	raw = json.RawMessage(`{"event":"delivery","message_id":"m-1","recipient":"user@example.com","timestamp":"not-a-time"}`)
	ev, err = Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Timestamp.IsZero() {
		t.Error("fallback timestamp should not be zero")
	}
}

func TestClassifyBounce(t *testing.T) {
	cases := []struct {
		name     string
		severity string
		class    string
		want     domain.BounceType
	}{
		{"severity permanent", "permanent", "", domain.BounceHard},
		{"severity temporary", "temporary", "10", domain.BounceSoft},
		{"hard class 10", "", "10", domain.BounceHard},
		{"hard class 30", "", "30", domain.BounceHard},
		{"soft class", "", "22", domain.BounceSoft},
		{"unclassified defaults soft", "", "", domain.BounceSoft},
	}
	for _, c := range cases {
		got := classifyBounce(providerEvent{Severity: c.severity, BounceClass: c.class})
		if got != c.want {
			t.Errorf("%s: classifyBounce = %s, want %s", c.name, got, c.want)
		}
	}
}

func TestNormalizeBounceFields(t *testing.T) {
	raw := json.RawMessage(`{"event":"bounce","message_id":"m-1","recipient":"user@example.com","bounce_class":"10","reason":"550 no such user"}`)
	ev, err := Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if ev.BounceType != domain.BounceHard {
		t.Errorf("bounce type = %s, want hard", ev.BounceType)
	}
	if ev.BounceReason != "550 no such user" {
		t.Errorf("bounce reason = %q", ev.BounceReason)
	}
}
