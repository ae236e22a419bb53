package suppression

import (
	"context"

	"github.com/summitworks/delivery-monitor/internal/domain"
)

// Repository defines the data access contract for the suppression store.
type Repository interface {
	// Get returns the active entry for a normalized email, or ErrNotFound.
	Get(ctx context.Context, email string) (*domain.SuppressionEntry, error)

	// Upsert inserts or updates the entry keyed by email. On conflict
	// the type and reason are replaced and created_at is preserved.
	Upsert(ctx context.Context, e *domain.SuppressionEntry) error

	// Remove deletes an entry. Returns ErrNotFound if it doesn't exist.
	Remove(ctx context.Context, email string) error

	// List returns entries matching the filter plus the total count.
	List(ctx context.Context, f ListFilter) ([]domain.SuppressionEntry, int, error)

	// Count returns the total number of suppressed addresses.
	Count(ctx context.Context) (int, error)
}

// ListFilter controls pagination and filtering for the admin surface.
type ListFilter struct {
	Type   domain.SuppressionType
	Search string
	Limit  int
	Offset int
}
