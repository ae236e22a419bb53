package ledger

import (
	"context"
	"time"

	"github.com/summitworks/delivery-monitor/internal/domain"
)

// Repository defines the data access contract for delivery records.
type Repository interface {
	// Get returns the record for a message id, or ErrNotFound.
	Get(ctx context.Context, messageID string) (*domain.DeliveryRecord, error)

	// Insert creates a new record. Inserting an existing message id is a
	// no-op (idempotent).
	Insert(ctx context.Context, rec *domain.DeliveryRecord) error

	// Update rewrites the mutable fields of an existing record in a
	// single-row transaction.
	Update(ctx context.Context, rec *domain.DeliveryRecord) error

	// List returns records matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]domain.DeliveryRecord, error)
}

// EventJournal is the durable dedup index over (message_id, event_type).
// It survives process restarts and horizontal scaling, unlike an
// in-process seen-set.
type EventJournal interface {
	// MarkProcessed records that an event has been applied. Returns
	// false if the exact (messageID, eventType) pair was already marked.
	MarkProcessed(ctx context.Context, messageID, eventType string) (bool, error)

	// Unmark removes a mark so a failed unit of work can be redelivered.
	Unmark(ctx context.Context, messageID, eventType string) error
}

// ListFilter controls delivery record queries for the admin surface.
type ListFilter struct {
	Status    domain.DeliveryStatus
	Recipient string
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}
