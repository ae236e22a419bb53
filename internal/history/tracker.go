// Package history tracks per-recipient bounce counters and subscription
// flags. The tracker exposes only narrow mutators — RecordBounce,
// MarkInvalid, MarkUnsubscribed — so nothing can violate the counter and
// flag invariants through a generic update.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/summitworks/delivery-monitor/internal/domain"
)

// ErrNotFound is returned when no history row exists for an address.
var ErrNotFound = errors.New("recipient history not found")

// Repository defines the data access contract for recipient history.
type Repository interface {
	// Get returns the history for a normalized email, or ErrNotFound.
	Get(ctx context.Context, email string) (*domain.RecipientHistory, error)

	// IncrementBounce upserts the row, adds one to bounce_count and sets
	// last_bounce_date. The increment happens in the database so
	// concurrent writers cannot lose updates.
	IncrementBounce(ctx context.Context, email string, at time.Time) error

	// SetInvalid upserts the row with email_valid = false.
	SetInvalid(ctx context.Context, email string) error

	// SetUnsubscribed upserts the row with email_subscribed = false.
	SetUnsubscribed(ctx context.Context, email string) error
}

// Tracker is the service wrapper around recipient history.
type Tracker struct {
	repo Repository
}

// NewTracker creates a recipient history tracker.
func NewTracker(repo Repository) *Tracker {
	return &Tracker{repo: repo}
}

// Get returns the recipient's history. An address never seen before gets
// the zero history: no bounces, valid, subscribed.
func (t *Tracker) Get(ctx context.Context, email string) (domain.RecipientHistory, error) {
	email = domain.NormalizeEmail(email)
	h, err := t.repo.Get(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return domain.NewRecipientHistory(email), nil
	}
	if err != nil {
		return domain.RecipientHistory{}, fmt.Errorf("get history %s: %w", email, err)
	}
	return *h, nil
}

// RecordBounce increments the soft-bounce counter and records the bounce
// date. Counters are never reset automatically.
func (t *Tracker) RecordBounce(ctx context.Context, email string, at time.Time) error {
	return t.repo.IncrementBounce(ctx, domain.NormalizeEmail(email), at)
}

// MarkInvalid flags the address as undeliverable (hard bounce, spam
// complaint, or soft-bounce threshold breach).
func (t *Tracker) MarkInvalid(ctx context.Context, email string) error {
	return t.repo.SetInvalid(ctx, domain.NormalizeEmail(email))
}

// MarkUnsubscribed flags the address as opted out.
func (t *Tracker) MarkUnsubscribed(ctx context.Context, email string) error {
	return t.repo.SetUnsubscribed(ctx, domain.NormalizeEmail(email))
}
