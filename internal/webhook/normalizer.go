package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/summitworks/delivery-monitor/internal/domain"
)

// ErrUnrecognizedEventType marks a provider event type outside the
// internal vocabulary. Callers log and acknowledge (HTTP 200) rather
// than retry: an unknown event type is not transient.
var ErrUnrecognizedEventType = errors.New("unrecognized event type")

// providerEvent is the duck-typed payload shape the ESP delivers.
// Nothing outside this file touches it; downstream code only sees the
// normalized domain.Event.
type providerEvent struct {
	Event       string `json:"event"`
	MessageID   string `json:"message_id"`
	Recipient   string `json:"recipient"`
	Subject     string `json:"subject"`
	Timestamp   string `json:"timestamp"`
	BounceClass string `json:"bounce_class"`
	Severity    string `json:"severity"` // "permanent" or "temporary" for bounces
	Reason      string `json:"reason"`
	URL         string `json:"url"` // clicked link
}

// Bounce classes the provider documents as permanent failures.
var hardBounceClasses = map[string]bool{
	"10": true, // invalid recipient
	"25": true, // admin failure
	"30": true, // no rcpt
	"90": true, // unsubscribe via bounce
}

// Normalize maps one raw provider event into the internal vocabulary.
// The raw payload is retained on the event for audit storage.
func Normalize(raw json.RawMessage) (domain.Event, error) {
	var pe providerEvent
	if err := json.Unmarshal(raw, &pe); err != nil {
		return domain.Event{}, fmt.Errorf("parse provider event: %w", err)
	}

	ev := domain.Event{
		MessageID: pe.MessageID,
		Recipient: pe.Recipient,
		Subject:   pe.Subject,
		Timestamp: parseTimestamp(pe.Timestamp),
		Raw:       raw,
	}

	switch pe.Event {
	case "injection", "sent":
		ev.Type = domain.EventSent
	case "delivery", "delivered":
		ev.Type = domain.EventDelivered
	case "delay", "delivery_delay", "deferred":
		ev.Type = domain.EventDeliveryDelayed
	case "bounce", "bounced", "failed":
		ev.Type = domain.EventBounced
		ev.BounceType = classifyBounce(pe)
		ev.BounceReason = pe.Reason
	case "spam_complaint", "complaint", "complained":
		ev.Type = domain.EventComplained
	case "open", "opened", "initial_open":
		ev.Type = domain.EventOpened
	case "click", "clicked":
		ev.Type = domain.EventClicked
		ev.ClickURL = pe.URL
	case "unsubscribe", "unsubscribed", "list_unsubscribe":
		ev.Type = domain.EventUnsubscribed
	default:
		return domain.Event{}, fmt.Errorf("%w: %q", ErrUnrecognizedEventType, pe.Event)
	}

	if ev.MessageID == "" {
		return domain.Event{}, fmt.Errorf("provider event %q missing message_id", pe.Event)
	}
	if ev.Recipient == "" {
		return domain.Event{}, fmt.Errorf("provider event %q missing recipient", pe.Event)
	}
	return ev, nil
}

// classifyBounce prefers the explicit severity field and falls back to
// the numeric bounce class. Anything unclassified counts as soft: a
// misread hard bounce re-bounces later, a misread soft bounce would
// suppress a deliverable address.
func classifyBounce(pe providerEvent) domain.BounceType {
	switch pe.Severity {
	case "permanent":
		return domain.BounceHard
	case "temporary":
		return domain.BounceSoft
	}
	if hardBounceClasses[pe.BounceClass] {
		return domain.BounceHard
	}
	return domain.BounceSoft
}

func parseTimestamp(s string) time.Time {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts
	}
	return time.Now().UTC()
}
