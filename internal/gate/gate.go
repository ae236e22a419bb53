// Package gate is the read-only guard the send pipeline consults
// immediately before dispatch. The existence of a suppression entry is
// the sole authority on "is this address blocked"; recipient history is
// never consulted here.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/summitworks/delivery-monitor/internal/domain"
	"github.com/summitworks/delivery-monitor/internal/pkg/logger"
	"github.com/summitworks/delivery-monitor/internal/suppression"
)

// DefaultCacheTTL bounds how stale a gate verdict may be. Suppression
// state can change between page load and submit, so the TTL stays short.
const DefaultCacheTTL = 30 * time.Second

// Verdict is the outcome of a pre-send check.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Gate answers "may we send to this address right now".
type Gate struct {
	store *suppression.Service
	cache *redis.Client // nil disables caching
	ttl   time.Duration
}

// New creates a pre-send gate over the suppression store. cache may be
// nil, in which case every check hits the store directly.
func New(store *suppression.Service, cache *redis.Client, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Gate{store: store, cache: cache, ttl: ttl}
}

// CheckSendable normalizes the address and looks it up in the
// suppression store, short-TTL cached. Storage failure fails closed:
// with the store unreachable there is no safe way to call an address
// sendable.
func (g *Gate) CheckSendable(ctx context.Context, email string) (Verdict, error) {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" || !strings.Contains(normalized, "@") {
		return Verdict{Allowed: false, Reason: "invalid address"}, nil
	}

	if v, ok := g.cached(ctx, normalized); ok {
		return v, nil
	}

	entry, err := g.store.Get(ctx, normalized)
	switch {
	case errors.Is(err, suppression.ErrNotFound):
		v := Verdict{Allowed: true}
		g.remember(ctx, normalized, v)
		return v, nil
	case err != nil:
		return Verdict{Allowed: false, Reason: "suppression store unavailable"},
			fmt.Errorf("gate lookup %s: %w", logger.RedactEmail(normalized), err)
	}

	v := Verdict{Allowed: false, Reason: string(entry.SuppressionType)}
	g.remember(ctx, normalized, v)
	return v, nil
}

func cacheKey(email string) string { return "gate:" + email }

func (g *Gate) cached(ctx context.Context, email string) (Verdict, bool) {
	if g.cache == nil {
		return Verdict{}, false
	}
	val, err := g.cache.Get(ctx, cacheKey(email)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("gate cache read failed", "error", err)
		}
		return Verdict{}, false
	}
	if val == "allowed" {
		return Verdict{Allowed: true}, true
	}
	return Verdict{Allowed: false, Reason: strings.TrimPrefix(val, "blocked:")}, true
}

// remember is best-effort: a cache write failure only costs a store
// lookup on the next check.
func (g *Gate) remember(ctx context.Context, email string, v Verdict) {
	if g.cache == nil {
		return
	}
	val := "allowed"
	if !v.Allowed {
		val = "blocked:" + v.Reason
	}
	if err := g.cache.Set(ctx, cacheKey(email), val, g.ttl).Err(); err != nil {
		logger.Warn("gate cache write failed", "error", err)
	}
}

// Invalidate drops the cached verdict for an address. Called after a
// suppression entry is added or removed so the gate converges faster
// than the TTL.
func (g *Gate) Invalidate(ctx context.Context, email string) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Del(ctx, cacheKey(domain.NormalizeEmail(email))).Err(); err != nil {
		logger.Warn("gate cache invalidate failed", "error", err)
	}
}
