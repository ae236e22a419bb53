// Package postgres implements the repository interfaces against
// PostgreSQL. Each mutation is a single-row statement, so per-key
// atomicity comes for free from the database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/summitworks/delivery-monitor/internal/domain"
	"github.com/summitworks/delivery-monitor/internal/ledger"
)

// DeliveryRepo implements ledger.Repository.
type DeliveryRepo struct{ db *sql.DB }

// NewDeliveryRepo creates a Postgres-backed delivery record repository.
func NewDeliveryRepo(db *sql.DB) *DeliveryRepo { return &DeliveryRepo{db: db} }

const deliveryColumns = `message_id, recipient, recipient_display, recipient_type, recipient_id,
	category, subject, status, sent_at, delivered_at, opened_at, clicked_at, bounced_at,
	bounce_type, bounce_reason, click_url, raw_event, updated_at`

func (r *DeliveryRepo) Get(ctx context.Context, messageID string) (*domain.DeliveryRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deliveryColumns+` FROM delivery_records WHERE message_id = $1`,
		messageID,
	)
	rec, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery record: %w", err)
	}
	return rec, nil
}

func (r *DeliveryRepo) Insert(ctx context.Context, rec *domain.DeliveryRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO delivery_records (`+deliveryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW())
		ON CONFLICT (message_id) DO NOTHING
	`,
		rec.MessageID, rec.Recipient, rec.RecipientDisplay, nullStr(rec.RecipientType), nullStr(rec.RecipientID),
		rec.Category, rec.Subject, rec.Status, rec.SentAt, rec.DeliveredAt, rec.OpenedAt,
		rec.ClickedAt, rec.BouncedAt, nullStr(string(rec.BounceType)), nullStr(rec.BounceReason),
		nullStr(rec.ClickURL), nullBytes(rec.RawEvent),
	)
	if err != nil {
		return fmt.Errorf("insert delivery record: %w", err)
	}
	return nil
}

func (r *DeliveryRepo) Update(ctx context.Context, rec *domain.DeliveryRecord) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE delivery_records SET
			status = $2,
			delivered_at = $3,
			opened_at = $4,
			clicked_at = $5,
			bounced_at = $6,
			bounce_type = $7,
			bounce_reason = $8,
			click_url = $9,
			raw_event = $10,
			updated_at = NOW()
		WHERE message_id = $1
	`,
		rec.MessageID, rec.Status, rec.DeliveredAt, rec.OpenedAt, rec.ClickedAt,
		rec.BouncedAt, nullStr(string(rec.BounceType)), nullStr(rec.BounceReason),
		nullStr(rec.ClickURL), nullBytes(rec.RawEvent),
	)
	if err != nil {
		return fmt.Errorf("update delivery record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *DeliveryRepo) List(ctx context.Context, f ledger.ListFilter) ([]domain.DeliveryRecord, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, cond+"$"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		add("status = ", f.Status)
	}
	if f.Recipient != "" {
		add("recipient = ", domain.NormalizeEmail(f.Recipient))
	}
	if !f.From.IsZero() {
		add("sent_at >= ", f.From)
	}
	if !f.To.IsZero() {
		add("sent_at < ", f.To)
	}

	query := `SELECT ` + deliveryColumns + ` FROM delivery_records`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY sent_at DESC"
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += " LIMIT $" + strconv.Itoa(len(args))
	args = append(args, f.Offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list delivery records: %w", err)
	}
	defer rows.Close()

	var out []domain.DeliveryRecord
	for rows.Next() {
		rec, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanDelivery(row rowScanner) (*domain.DeliveryRecord, error) {
	var (
		rec         domain.DeliveryRecord
		rType, rID  sql.NullString
		bType, bRsn sql.NullString
		clickURL    sql.NullString
		rawEvent    []byte
	)
	err := row.Scan(
		&rec.MessageID, &rec.Recipient, &rec.RecipientDisplay, &rType, &rID,
		&rec.Category, &rec.Subject, &rec.Status, &rec.SentAt, &rec.DeliveredAt,
		&rec.OpenedAt, &rec.ClickedAt, &rec.BouncedAt, &bType, &bRsn,
		&clickURL, &rawEvent, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.RecipientType = rType.String
	rec.RecipientID = rID.String
	rec.BounceType = domain.BounceType(bType.String)
	rec.BounceReason = bRsn.String
	rec.ClickURL = clickURL.String
	rec.RawEvent = rawEvent
	return &rec, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
