package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/summitworks/delivery-monitor/internal/domain"
	"github.com/summitworks/delivery-monitor/internal/ingest"
	"github.com/summitworks/delivery-monitor/internal/pkg/httputil"
	"github.com/summitworks/delivery-monitor/internal/pkg/logger"
)

// Required signature headers on every inbound webhook request.
const (
	HeaderID        = "X-Webhook-Id"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderSignature = "X-Webhook-Signature"
)

// Processor applies one normalized event. Implemented by ingest.Service.
type Processor interface {
	Process(ctx context.Context, ev domain.Event) error
}

// Handler receives provider event batches. Response codes drive the
// provider's at-least-once retry behavior: 401 and 200 are final, 500
// triggers redelivery.
type Handler struct {
	verifier     *Verifier
	processor    Processor
	maxBodyBytes int64
}

// NewHandler creates the webhook HTTP handler.
func NewHandler(v *Verifier, p Processor, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 5 * 1024 * 1024
	}
	return &Handler{verifier: v, processor: p, maxBodyBytes: maxBodyBytes}
}

type receiptSummary struct {
	Status     string `json:"status"`
	Accepted   int    `json:"accepted"`
	Duplicates int    `json:"duplicates"`
	Skipped    int    `json:"skipped"`
}

// HandleEvents is the POST endpoint for the provider's event webhook.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Cap payload size to prevent OOM on hostile or runaway batches.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.BadRequest(w, "failed to read body")
		return
	}

	// Hard boundary: nothing is processed unsigned.
	err = h.verifier.Verify(
		r.Header.Get(HeaderID),
		r.Header.Get(HeaderTimestamp),
		r.Header.Get(HeaderSignature),
		body,
	)
	if err != nil {
		logger.Warn("webhook rejected", "error", err, "remote", r.RemoteAddr)
		httputil.Unauthorized(w, err.Error())
		return
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		httputil.BadRequest(w, "invalid JSON: expected an array of events")
		return
	}

	var sum receiptSummary
	sum.Status = "processed"

	for _, raw := range raws {
		ev, err := Normalize(raw)
		if err != nil {
			// Unknown event types are not transient; acknowledge so the
			// provider does not retry. Forward-compatible with provider
			// additions.
			logger.Info("skipping provider event", "error", err)
			sum.Skipped++
			continue
		}

		switch err := h.processor.Process(ctx, ev); {
		case err == nil:
			sum.Accepted++
		case ingest.IsDuplicate(err):
			sum.Duplicates++
		case ingest.IsInvalid(err):
			// Permanently malformed: acknowledging is the only way to
			// stop the provider from redelivering the batch forever.
			logger.Info("skipping malformed event", "error", err)
			sum.Skipped++
		default:
			// Transient failure: answer 500 so the provider redelivers
			// the batch. Already-applied events dedup on the retry.
			httputil.InternalError(w, err)
			return
		}
	}

	httputil.OK(w, sum)
}
