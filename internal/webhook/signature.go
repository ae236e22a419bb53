package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/summitworks/delivery-monitor/internal/pkg/logger"
)

// Signature verification errors. Both are terminal for the request:
// the provider does not retry 401 responses.
var (
	ErrMissingHeaders   = errors.New("missing webhook signature headers")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Verifier authenticates inbound webhook calls before any processing.
// No event is ever processed unsigned: with no secret configured the
// verifier fails closed unless explicitly told otherwise (dev only).
type Verifier struct {
	secret        []byte
	allowUnsigned bool
}

// NewVerifier creates a webhook signature verifier. An empty secret with
// allowUnsigned set skips verification entirely and logs a prominent
// warning; an empty secret without it rejects every request.
func NewVerifier(secret string, allowUnsigned bool) *Verifier {
	if secret == "" {
		if allowUnsigned {
			logger.Warn("webhook signature verification DISABLED: no secret configured and allow_unsigned is set; every inbound event will be accepted unauthenticated")
		} else {
			logger.Error("no webhook secret configured: all inbound webhook requests will be rejected until WEBHOOK_SECRET is set")
		}
	}
	return &Verifier{secret: []byte(secret), allowUnsigned: allowUnsigned}
}

// Verify recomputes the HMAC-SHA256 of "id.timestamp.body" with the
// pre-shared secret and compares it in constant time against the
// provided hex signature.
func (v *Verifier) Verify(id, timestamp, signature string, body []byte) error {
	if len(v.secret) == 0 {
		if v.allowUnsigned {
			return nil
		}
		// Fail closed: a missing secret must never silently disable auth.
		return ErrInvalidSignature
	}

	if id == "" || timestamp == "" || signature == "" {
		return ErrMissingHeaders
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%s.%s.", id, timestamp)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
