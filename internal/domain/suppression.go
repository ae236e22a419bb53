package domain

import "time"

// SuppressionType enumerates why an address is blocked from all sends.
type SuppressionType string

const (
	SuppressHardBounce  SuppressionType = "bounce_hard"
	SuppressSoftBounce  SuppressionType = "bounce_soft"
	SuppressComplaint   SuppressionType = "spam_complaint"
	SuppressUnsubscribe SuppressionType = "unsubscribe"
	SuppressManual      SuppressionType = "manual"
)

// SuppressionEntry is a standing block on a normalized address. At most
// one active entry exists per address; re-suppressing updates type and
// reason in place and preserves the original created_at.
type SuppressionEntry struct {
	Email           string          `json:"email" db:"email"`
	SuppressionType SuppressionType `json:"suppression_type" db:"suppression_type"`
	Reason          string          `json:"reason" db:"reason"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}
