package domain

import "time"

// RecipientHistory holds per-address bounce counters and subscription
// flags consulted by the suppression policy engine. It is keyed by
// normalized email and independent of the suppression list itself: the
// pre-send gate treats the suppression entry as the sole authority.
type RecipientHistory struct {
	Email           string     `json:"email" db:"email"`
	BounceCount     int        `json:"bounce_count" db:"bounce_count"`
	LastBounceDate  *time.Time `json:"last_bounce_date,omitempty" db:"last_bounce_date"`
	EmailValid      bool       `json:"email_valid" db:"email_valid"`
	EmailSubscribed bool       `json:"email_subscribed" db:"email_subscribed"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// NewRecipientHistory returns the zero history for an address that has
// never bounced: valid and subscribed.
func NewRecipientHistory(email string) RecipientHistory {
	return RecipientHistory{
		Email:           NormalizeEmail(email),
		EmailValid:      true,
		EmailSubscribed: true,
	}
}
