// Package distlock serializes mutations per key across processes.
//
// Webhook delivery is concurrent and unordered: two events for the same
// message id (or two bounces for the same recipient) may be processed by
// different handlers or different instances at once. All writes for one
// key are routed through a lock on that key; events for different keys
// proceed fully in parallel.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"
)

// DistLock is the interface for distributed locking.
// A lock instance is single-use: acquire, do the work, release.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Factory creates a lock for a given key. The ingest pipeline holds one
// factory and derives per-message and per-recipient locks from it.
type Factory func(key string) DistLock

// MessageKey is the lock key serializing all events for one message id.
func MessageKey(messageID string) string { return "msg:" + messageID }

// RecipientKey is the lock key serializing policy writes for one address.
// Callers pass the already-normalized form so both backends hash the same
// key for the same recipient.
func RecipientKey(email string) string { return "rcpt:" + email }

// AcquireWithRetry polls Acquire until it succeeds, the retry budget is
// exhausted, or the context is cancelled. Webhook units of work are short,
// so contention resolves in a few milliseconds.
func AcquireWithRetry(ctx context.Context, l DistLock, attempts int, backoff time.Duration) (bool, error) {
	for i := 0; i < attempts; i++ {
		ok, err := l.Acquire(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return false, nil
}

// =============================================================================
// PostgreSQL Advisory Lock (fallback when Redis is unavailable)
// =============================================================================
// Uses pg_try_advisory_lock / pg_advisory_unlock which are session-scoped.
// The lock is automatically released if the DB connection drops, providing
// crash-safety similar to Redis TTL expiration.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to acquire the advisory lock. Returns true if successful.
// Uses pg_try_advisory_lock which returns immediately (non-blocking).
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired)
	return acquired, err
}

// Release releases the advisory lock.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
