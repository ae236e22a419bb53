package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/summitworks/delivery-monitor/internal/domain"
	"github.com/summitworks/delivery-monitor/internal/history"
)

// HistoryRepo implements history.Repository against PostgreSQL. All
// mutators are single-row upserts; the bounce increment happens in SQL
// so concurrent writers cannot lose updates.
type HistoryRepo struct{ db *sql.DB }

// NewHistoryRepo creates a Postgres-backed recipient history repository.
func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

func (r *HistoryRepo) Get(ctx context.Context, email string) (*domain.RecipientHistory, error) {
	var h domain.RecipientHistory
	err := r.db.QueryRowContext(ctx, `
		SELECT email, bounce_count, last_bounce_date, email_valid, email_subscribed, updated_at
		FROM recipient_history WHERE email = $1
	`, email).Scan(&h.Email, &h.BounceCount, &h.LastBounceDate, &h.EmailValid, &h.EmailSubscribed, &h.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, history.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipient history: %w", err)
	}
	return &h, nil
}

func (r *HistoryRepo) IncrementBounce(ctx context.Context, email string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recipient_history (email, bounce_count, last_bounce_date, email_valid, email_subscribed, updated_at)
		VALUES ($1, 1, $2, TRUE, TRUE, NOW())
		ON CONFLICT (email) DO UPDATE SET
			bounce_count = recipient_history.bounce_count + 1,
			last_bounce_date = EXCLUDED.last_bounce_date,
			updated_at = NOW()
	`, email, at)
	if err != nil {
		return fmt.Errorf("increment bounce: %w", err)
	}
	return nil
}

func (r *HistoryRepo) SetInvalid(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recipient_history (email, bounce_count, email_valid, email_subscribed, updated_at)
		VALUES ($1, 0, FALSE, TRUE, NOW())
		ON CONFLICT (email) DO UPDATE SET
			email_valid = FALSE,
			updated_at = NOW()
	`, email)
	if err != nil {
		return fmt.Errorf("mark invalid: %w", err)
	}
	return nil
}

func (r *HistoryRepo) SetUnsubscribed(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recipient_history (email, bounce_count, email_valid, email_subscribed, updated_at)
		VALUES ($1, 0, TRUE, FALSE, NOW())
		ON CONFLICT (email) DO UPDATE SET
			email_subscribed = FALSE,
			updated_at = NOW()
	`, email)
	if err != nil {
		return fmt.Errorf("mark unsubscribed: %w", err)
	}
	return nil
}
