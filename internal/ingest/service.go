// Package ingest orchestrates the webhook event pipeline: claim the
// event in the durable journal, advance the delivery ledger, run the
// suppression policy and apply its side effects. Each event is an
// independent, possibly-concurrent, possibly-duplicate unit of work.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/summitworks/delivery-monitor/internal/domain"
	"github.com/summitworks/delivery-monitor/internal/gate"
	"github.com/summitworks/delivery-monitor/internal/history"
	"github.com/summitworks/delivery-monitor/internal/ledger"
	"github.com/summitworks/delivery-monitor/internal/pkg/distlock"
	"github.com/summitworks/delivery-monitor/internal/pkg/logger"
	"github.com/summitworks/delivery-monitor/internal/policy"
	"github.com/summitworks/delivery-monitor/internal/suppression"
)

const (
	lockAttempts = 50
	lockBackoff  = 20 * time.Millisecond
)

// Service processes normalized delivery events.
type Service struct {
	ledger *ledger.Service
	engine *policy.Engine
	store  *suppression.Service
	hist   *history.Tracker
	gate   *gate.Gate // optional, for cache invalidation
	locks  distlock.Factory
}

// New creates the ingest service. g may be nil when no gate cache is
// wired (tests, single-process deployments without redis).
func New(l *ledger.Service, e *policy.Engine, store *suppression.Service, hist *history.Tracker, g *gate.Gate, locks distlock.Factory) *Service {
	return &Service{ledger: l, engine: e, store: store, hist: hist, gate: g, locks: locks}
}

// Process applies one event. Returns ledger.ErrDuplicateEvent for an
// already-applied event (the caller acknowledges it as success) and a
// plain error for transient failures (the caller answers 500 so the
// provider redelivers).
//
// All writes for one message id, and all policy side effects for one
// recipient, run under a per-key lock; events for different keys proceed
// fully in parallel.
func (s *Service) Process(ctx context.Context, ev domain.Event) error {
	if ev.MessageID == "" || ev.Recipient == "" {
		return fmt.Errorf("%w: event %s missing message id or recipient", ErrInvalidEvent, ev.Type)
	}
	email := domain.NormalizeEmail(ev.Recipient)

	msgLock := s.locks(distlock.MessageKey(ev.MessageID))
	ok, err := distlock.AcquireWithRetry(ctx, msgLock, lockAttempts, lockBackoff)
	if err != nil {
		return fmt.Errorf("acquire message lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("message %s is locked by another worker", ev.MessageID)
	}
	defer msgLock.Release(ctx)

	// Durable claim on (message_id, event_type). Claiming before any
	// mutation makes the one non-idempotent write — the bounce counter —
	// safe against redelivery; a failed unit of work releases the claim
	// so the provider's retry is not swallowed.
	if err := s.ledger.Claim(ctx, ev); err != nil {
		return err
	}

	if _, err := s.ledger.Advance(ctx, ev); err != nil {
		s.releaseClaim(ctx, ev)
		return fmt.Errorf("%w: %v", ledger.ErrStorageUnavailable, err)
	}

	if !ev.TouchesPolicy() {
		return nil
	}

	if err := s.applyPolicy(ctx, ev, email); err != nil {
		s.releaseClaim(ctx, ev)
		return fmt.Errorf("%w: %v", ledger.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Service) applyPolicy(ctx context.Context, ev domain.Event, email string) error {
	rcptLock := s.locks(distlock.RecipientKey(email))
	ok, err := distlock.AcquireWithRetry(ctx, rcptLock, lockAttempts, lockBackoff)
	if err != nil {
		return fmt.Errorf("acquire recipient lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("recipient %s is locked by another worker", logger.RedactEmail(email))
	}
	defer rcptLock.Release(ctx)

	hist, err := s.hist.Get(ctx, email)
	if err != nil {
		return err
	}

	d := s.engine.Decide(ev, hist)

	// Idempotent writes first, the counter increment last. A failure
	// anywhere before the increment releases the claim and the retry
	// re-applies upserts that converge to the same state; the one write
	// that must not run twice has nothing after it left to fail.
	if d.MarkInvalid {
		if err := s.hist.MarkInvalid(ctx, email); err != nil {
			return err
		}
	}
	if d.MarkUnsubscribed {
		if err := s.hist.MarkUnsubscribed(ctx, email); err != nil {
			return err
		}
	}
	if d.Suppress {
		if err := s.store.Suppress(ctx, email, d.SuppressionType, d.Reason); err != nil {
			return err
		}
		if s.gate != nil {
			s.gate.Invalidate(ctx, email)
		}
		logger.Info("recipient suppressed",
			"email", email,
			"type", string(d.SuppressionType),
			"message_id", ev.MessageID)
	}
	if d.IncrementBounce {
		if err := s.hist.RecordBounce(ctx, email, ev.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

// releaseClaim is best effort: if it fails the event stays marked and a
// redelivery will be treated as a duplicate, trading one lost update for
// never double-counting.
func (s *Service) releaseClaim(ctx context.Context, ev domain.Event) {
	if err := s.ledger.ReleaseClaim(ctx, ev); err != nil {
		msgID, evType := ev.DedupKey()
		logger.Error("failed to release event claim", "message_id", msgID, "event_type", evType, "error", err)
	}
}

// ErrInvalidEvent marks an event that is permanently malformed. Not
// retryable: the handler acknowledges it so the provider does not
// redeliver a batch that can never succeed.
var ErrInvalidEvent = errors.New("invalid event")

// ErrDuplicateEvent re-exported for handler convenience.
var ErrDuplicateEvent = ledger.ErrDuplicateEvent

// IsDuplicate reports whether err marks an already-processed event.
func IsDuplicate(err error) bool { return errors.Is(err, ledger.ErrDuplicateEvent) }

// IsInvalid reports whether err marks a permanently malformed event.
func IsInvalid(err error) bool { return errors.Is(err, ErrInvalidEvent) }
