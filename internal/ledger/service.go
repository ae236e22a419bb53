package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/summitworks/delivery-monitor/internal/domain"
)

// Service advances delivery records. It contains no locking of its own:
// the ingest pipeline serializes calls per message id.
type Service struct {
	repo    Repository
	journal EventJournal
}

// NewService creates a ledger service backed by the given repository and
// event journal.
func NewService(repo Repository, journal EventJournal) *Service {
	return &Service{repo: repo, journal: journal}
}

// statusFor maps event types onto the status they try to advance to.
// Events absent from the map never change status.
var statusFor = map[domain.EventType]domain.DeliveryStatus{
	domain.EventSent:       domain.StatusSent,
	domain.EventDelivered:  domain.StatusDelivered,
	domain.EventOpened:     domain.StatusOpened,
	domain.EventClicked:    domain.StatusClicked,
	domain.EventBounced:    domain.StatusBounced,
	domain.EventComplained: domain.StatusSpam,
}

// RecordSent inserts a new delivery record for a freshly issued send.
// Calling it again for the same message id is a no-op.
func (s *Service) RecordSent(ctx context.Context, messageID, recipient, subject, category string, sentAt time.Time) error {
	if messageID == "" {
		return fmt.Errorf("message id is required")
	}
	rec := &domain.DeliveryRecord{
		MessageID:        messageID,
		Recipient:        domain.NormalizeEmail(recipient),
		RecipientDisplay: recipient,
		Subject:          subject,
		Category:         category,
		Status:           domain.StatusSent,
		SentAt:           sentAt,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return fmt.Errorf("record sent %s: %w", messageID, err)
	}
	return nil
}

// Claim durably marks an event as processed. Returns ErrDuplicateEvent
// when the exact (messageID, eventType) pair was applied before — the
// caller skips all further work, which is what keeps the bounce counter
// from double-incrementing on provider redelivery.
func (s *Service) Claim(ctx context.Context, ev domain.Event) error {
	msgID, evType := ev.DedupKey()
	fresh, err := s.journal.MarkProcessed(ctx, msgID, evType)
	if err != nil {
		return fmt.Errorf("claim event %s/%s: %w", msgID, evType, err)
	}
	if !fresh {
		return ErrDuplicateEvent
	}
	return nil
}

// ReleaseClaim undoes a claim after a failed unit of work so the
// provider's redelivery is not swallowed as a duplicate.
func (s *Service) ReleaseClaim(ctx context.Context, ev domain.Event) error {
	msgID, evType := ev.DedupKey()
	return s.journal.Unmark(ctx, msgID, evType)
}

// Advance applies a normalized event to the message's delivery record.
// If no record exists yet (a sent event was missed or arrived out of
// order) a minimal record is created first. Out-of-order and duplicate
// events still land their side-channel timestamps, but status never
// regresses. Re-applying the same event yields the same record.
func (s *Service) Advance(ctx context.Context, ev domain.Event) (*domain.DeliveryRecord, error) {
	if ev.Type == domain.EventDeliveryDelayed || ev.Type == domain.EventUnsubscribed {
		// Neither touches the delivery record.
		return nil, nil
	}

	rec, err := s.repo.Get(ctx, ev.MessageID)
	created := false
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		rec = minimalRecord(ev)
		created = true
	default:
		return nil, fmt.Errorf("load delivery record %s: %w", ev.MessageID, err)
	}

	apply(rec, ev)

	if created {
		err = s.repo.Insert(ctx, rec)
	} else {
		err = s.repo.Update(ctx, rec)
	}
	if err != nil {
		return nil, fmt.Errorf("store delivery record %s: %w", ev.MessageID, err)
	}
	return rec, nil
}

// Get returns the record for a message id, or ErrNotFound.
func (s *Service) Get(ctx context.Context, messageID string) (*domain.DeliveryRecord, error) {
	return s.repo.Get(ctx, messageID)
}

// List returns delivery records for the admin surface.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.DeliveryRecord, error) {
	return s.repo.List(ctx, f)
}

// minimalRecord builds the record for a message whose sent event never
// arrived. sentAt falls back to the event timestamp; it only bounds the
// monotonicity of the later fields.
func minimalRecord(ev domain.Event) *domain.DeliveryRecord {
	return &domain.DeliveryRecord{
		MessageID:        ev.MessageID,
		Recipient:        domain.NormalizeEmail(ev.Recipient),
		RecipientDisplay: ev.Recipient,
		Subject:          ev.Subject,
		Status:           domain.StatusSent,
		SentAt:           ev.Timestamp,
	}
}

// apply mutates rec in place. Every individual field write is
// idempotent: timestamps are first-write-wins, status moves only
// forward, and the click URL tracks the last clicked link.
func apply(rec *domain.DeliveryRecord, ev domain.Event) {
	switch ev.Type {
	case domain.EventDelivered:
		setOnce(&rec.DeliveredAt, ev.Timestamp)
	case domain.EventOpened:
		setOnce(&rec.OpenedAt, ev.Timestamp)
	case domain.EventClicked:
		setOnce(&rec.ClickedAt, ev.Timestamp)
		if ev.ClickURL != "" {
			rec.ClickURL = ev.ClickURL
		}
	case domain.EventBounced:
		setOnce(&rec.BouncedAt, ev.Timestamp)
		if rec.BounceType == "" {
			rec.BounceType = ev.BounceType
		}
		if rec.BounceReason == "" {
			rec.BounceReason = ev.BounceReason
		}
	}

	if next, ok := statusFor[ev.Type]; ok && rec.Status.CanAdvanceTo(next) {
		rec.Status = next
	}
	if len(ev.Raw) > 0 {
		rec.RawEvent = ev.Raw
	}
}

func setOnce(dst **time.Time, ts time.Time) {
	if *dst == nil {
		t := ts
		*dst = &t
	}
}
