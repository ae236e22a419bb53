package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// EventJournalRepo implements ledger.EventJournal as a durable dedup
// table keyed (message_id, event_type). A table rather than an
// in-process cache so correctness survives restarts and horizontal
// scaling.
type EventJournalRepo struct{ db *sql.DB }

// NewEventJournalRepo creates a Postgres-backed event journal.
func NewEventJournalRepo(db *sql.DB) *EventJournalRepo { return &EventJournalRepo{db: db} }

// MarkProcessed inserts the dedup row. ON CONFLICT DO NOTHING plus
// rows-affected tells apart first sight from redelivery atomically.
func (r *EventJournalRepo) MarkProcessed(ctx context.Context, messageID, eventType string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_events (message_id, event_type, processed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (message_id, event_type) DO NOTHING
	`, messageID, eventType)
	if err != nil {
		return false, fmt.Errorf("mark event processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark event processed: %w", err)
	}
	return n > 0, nil
}

// Unmark removes a dedup row after a failed unit of work.
func (r *EventJournalRepo) Unmark(ctx context.Context, messageID, eventType string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM processed_events WHERE message_id = $1 AND event_type = $2`,
		messageID, eventType,
	)
	if err != nil {
		return fmt.Errorf("unmark event: %w", err)
	}
	return nil
}
