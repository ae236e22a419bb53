package domain

import (
	"encoding/json"
	"time"
)

// EventType is the internal vocabulary for provider delivery events.
// The webhook normalizer maps provider payload shapes onto these; nothing
// downstream ever touches raw provider JSON except for audit storage.
type EventType string

const (
	EventSent            EventType = "sent"
	EventDelivered       EventType = "delivered"
	EventDeliveryDelayed EventType = "delivery_delayed"
	EventBounced         EventType = "bounced"
	EventComplained      EventType = "complained"
	EventOpened          EventType = "opened"
	EventClicked         EventType = "clicked"
	EventUnsubscribed    EventType = "unsubscribed"
)

// Event is one normalized delivery event from the email provider.
type Event struct {
	Type         EventType
	MessageID    string
	Recipient    string // original casing as received
	Subject      string
	Timestamp    time.Time
	BounceType   BounceType // set when Type == EventBounced
	BounceReason string
	ClickURL     string
	Raw          json.RawMessage // provider payload, retained for audit
}

// DedupKey identifies an event for at-least-once deduplication. Provider
// redeliveries carry the same message id and event type, so this pair is
// the durable idempotency key.
func (e Event) DedupKey() (messageID, eventType string) {
	return e.MessageID, string(e.Type)
}

// TouchesPolicy reports whether the suppression policy engine needs to
// evaluate this event at all.
func (e Event) TouchesPolicy() bool {
	switch e.Type {
	case EventBounced, EventComplained, EventUnsubscribed:
		return true
	}
	return false
}
