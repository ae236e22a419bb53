package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// DeliveryStatus is the lifecycle state of one outbound message.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusOpened    DeliveryStatus = "opened"
	StatusClicked   DeliveryStatus = "clicked"
	StatusBounced   DeliveryStatus = "bounced"
	StatusSpam      DeliveryStatus = "spam"
)

// statusRank orders the forward progression sent → delivered → opened → clicked.
// Bounced and spam are terminal and handled separately in CanAdvanceTo.
var statusRank = map[DeliveryStatus]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusOpened:    2,
	StatusClicked:   3,
}

// Terminal reports whether no further status transitions are accepted.
func (s DeliveryStatus) Terminal() bool {
	return s == StatusBounced || s == StatusSpam
}

// CanAdvanceTo reports whether a transition from s to next is a forward
// move in the status partial order. Duplicate and backward transitions
// return false; the caller still records side-channel timestamps for them.
func (s DeliveryStatus) CanAdvanceTo(next DeliveryStatus) bool {
	if s.Terminal() {
		return false
	}
	if next.Terminal() {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// BounceType classifies a bounce as permanent or transient.
type BounceType string

const (
	BounceHard BounceType = "hard"
	BounceSoft BounceType = "soft"
)

// DeliveryRecord tracks a single outbound message from send through its
// final delivery disposition. One row per provider message id.
type DeliveryRecord struct {
	MessageID        string          `json:"message_id" db:"message_id"`
	Recipient        string          `json:"recipient" db:"recipient"`                 // normalized, comparison key
	RecipientDisplay string          `json:"recipient_display" db:"recipient_display"` // original casing
	RecipientType    string          `json:"recipient_type,omitempty" db:"recipient_type"`
	RecipientID      string          `json:"recipient_id,omitempty" db:"recipient_id"`
	Category         string          `json:"category,omitempty" db:"category"`
	Subject          string          `json:"subject,omitempty" db:"subject"`
	Status           DeliveryStatus  `json:"status" db:"status"`
	SentAt           time.Time       `json:"sent_at" db:"sent_at"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty" db:"delivered_at"`
	OpenedAt         *time.Time      `json:"opened_at,omitempty" db:"opened_at"`
	ClickedAt        *time.Time      `json:"clicked_at,omitempty" db:"clicked_at"`
	BouncedAt        *time.Time      `json:"bounced_at,omitempty" db:"bounced_at"`
	BounceType       BounceType      `json:"bounce_type,omitempty" db:"bounce_type"`
	BounceReason     string          `json:"bounce_reason,omitempty" db:"bounce_reason"`
	ClickURL         string          `json:"click_url,omitempty" db:"click_url"`
	RawEvent         json.RawMessage `json:"-" db:"raw_event"` // last provider payload, audit only
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// NormalizeEmail lowercases and trims an address for use as a comparison
// key. Display casing is preserved separately where it matters.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
