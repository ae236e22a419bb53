// Package policy holds the suppression decision logic. The engine is a
// pure function from (event, prior recipient history) to an action; it
// performs no I/O and relies on the caller for event deduplication,
// because "increment counter" is not naturally idempotent.
package policy

import (
	"fmt"

	"github.com/summitworks/delivery-monitor/internal/domain"
)

// DefaultSoftBounceThreshold is the bounce count at which a persistently
// soft-bouncing address is suppressed. One soft bounce (mailbox full,
// transient server issue) is expected noise; three indicate an address
// that wastes send budget and risks sender reputation.
const DefaultSoftBounceThreshold = 3

// Decision is the set of side effects the ingest pipeline must apply for
// one event. The zero value means "do nothing".
type Decision struct {
	Suppress        bool
	SuppressionType domain.SuppressionType
	Reason          string

	IncrementBounce  bool
	MarkInvalid      bool
	MarkUnsubscribed bool
}

// Engine evaluates delivery events against the suppression policy.
type Engine struct {
	softBounceThreshold int
}

// NewEngine creates a policy engine. A non-positive threshold falls back
// to the default of 3.
func NewEngine(softBounceThreshold int) *Engine {
	if softBounceThreshold <= 0 {
		softBounceThreshold = DefaultSoftBounceThreshold
	}
	return &Engine{softBounceThreshold: softBounceThreshold}
}

// Decide maps an event plus the recipient's prior bounce history to a
// suppression action.
//
// The soft-bounce branch increments first and compares after, so the
// triggering bounce is the one that both increments and crosses the
// threshold in the same evaluation.
func (e *Engine) Decide(ev domain.Event, hist domain.RecipientHistory) Decision {
	switch ev.Type {
	case domain.EventBounced:
		if ev.BounceType == domain.BounceHard {
			return Decision{
				Suppress:        true,
				SuppressionType: domain.SuppressHardBounce,
				Reason:          bounceReason("hard bounce", ev),
				MarkInvalid:     true,
			}
		}

		d := Decision{IncrementBounce: true}
		if hist.BounceCount+1 >= e.softBounceThreshold {
			d.Suppress = true
			d.SuppressionType = domain.SuppressSoftBounce
			d.Reason = fmt.Sprintf("%d soft bounces, last at %s", hist.BounceCount+1, ev.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
			d.MarkInvalid = true
		}
		return d

	case domain.EventComplained:
		return Decision{
			Suppress:         true,
			SuppressionType:  domain.SuppressComplaint,
			Reason:           fmt.Sprintf("spam complaint at %s", ev.Timestamp.UTC().Format("2006-01-02T15:04:05Z")),
			MarkInvalid:      true,
			MarkUnsubscribed: true,
		}

	case domain.EventUnsubscribed:
		return Decision{
			Suppress:         true,
			SuppressionType:  domain.SuppressUnsubscribe,
			Reason:           fmt.Sprintf("unsubscribed at %s", ev.Timestamp.UTC().Format("2006-01-02T15:04:05Z")),
			MarkUnsubscribed: true,
		}
	}

	// Sent/Delivered/Opened/Clicked/Delayed: no suppression action.
	return Decision{}
}

func bounceReason(kind string, ev domain.Event) string {
	if ev.BounceReason != "" {
		return fmt.Sprintf("%s at %s: %s", kind, ev.Timestamp.UTC().Format("2006-01-02T15:04:05Z"), ev.BounceReason)
	}
	return fmt.Sprintf("%s at %s", kind, ev.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
}
