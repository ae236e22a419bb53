package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/summitworks/delivery-monitor/internal/domain"
	"github.com/summitworks/delivery-monitor/internal/gate"
	"github.com/summitworks/delivery-monitor/internal/ledger"
	"github.com/summitworks/delivery-monitor/internal/mailer"
	"github.com/summitworks/delivery-monitor/internal/pkg/httputil"
	"github.com/summitworks/delivery-monitor/internal/suppression"
)

// Sender dispatches one outbound message. Implemented by mailer.Sender.
type Sender interface {
	Send(ctx context.Context, req mailer.SendRequest) (string, error)
}

// Handlers holds the services behind the admin and gate endpoints.
type Handlers struct {
	suppressions *suppression.Service
	deliveries   *ledger.Service
	gate         *gate.Gate
	sender       Sender // nil when outbound sending is disabled
	db           *sql.DB
	startTime    time.Time
}

// NewHandlers creates the API handlers. sender may be nil; the send
// endpoint then answers 503.
func NewHandlers(sup *suppression.Service, del *ledger.Service, g *gate.Gate, sender Sender, db *sql.DB) *Handlers {
	return &Handlers{
		suppressions: sup,
		deliveries:   del,
		gate:         g,
		sender:       sender,
		db:           db,
		startTime:    time.Now(),
	}
}

// HealthCheck reports process liveness and database reachability.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbStatus := "ok"
	if err := h.db.PingContext(r.Context()); err != nil {
		status = "degraded"
		dbStatus = err.Error()
	}
	httputil.OK(w, map[string]any{
		"status":   status,
		"database": dbStatus,
		"uptime":   time.Since(h.startTime).Round(time.Second).String(),
	})
}

// CheckGate answers whether an address may be sent to right now.
func (h *Handlers) CheckGate(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	verdict, err := h.gate.CheckSendable(r.Context(), email)
	if err != nil {
		// Fail-closed verdict still goes to the caller; the error is for
		// the operator.
		httputil.JSON(w, http.StatusServiceUnavailable, verdict)
		return
	}
	httputil.OK(w, verdict)
}

type suppressionList struct {
	Entries []domain.SuppressionEntry `json:"entries"`
	Total   int                       `json:"total"`
	Limit   int                       `json:"limit"`
	Offset  int                       `json:"offset"`
}

// ListSuppressions returns a paginated slice of the suppression store.
func (h *Handlers) ListSuppressions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := suppression.ListFilter{
		Type:   domain.SuppressionType(q.Get("type")),
		Search: q.Get("search"),
		Limit:  intParam(q.Get("limit"), 50),
		Offset: intParam(q.Get("offset"), 0),
	}

	entries, total, err := h.suppressions.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.SuppressionEntry{}
	}
	httputil.OK(w, suppressionList{Entries: entries, Total: total, Limit: f.Limit, Offset: f.Offset})
}

// GetSuppression returns the active entry for one address.
func (h *Handlers) GetSuppression(w http.ResponseWriter, r *http.Request) {
	entry, err := h.suppressions.Get(r.Context(), chi.URLParam(r, "email"))
	switch {
	case errors.Is(err, suppression.ErrNotFound):
		httputil.NotFound(w, "address is not suppressed")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, entry)
	}
}

type addSuppressionRequest struct {
	Email  string `json:"email"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

var validSuppressionTypes = map[domain.SuppressionType]bool{
	domain.SuppressHardBounce:  true,
	domain.SuppressSoftBounce:  true,
	domain.SuppressComplaint:   true,
	domain.SuppressUnsubscribe: true,
	domain.SuppressManual:      true,
}

// AddSuppression adds or updates an entry via the admin surface.
func (h *Handlers) AddSuppression(w http.ResponseWriter, r *http.Request) {
	var req addSuppressionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.BadRequest(w, "email is required")
		return
	}
	typ := domain.SuppressionType(req.Type)
	if req.Type == "" {
		typ = domain.SuppressManual
	}
	if !validSuppressionTypes[typ] {
		httputil.BadRequest(w, "unknown suppression type: "+req.Type)
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "added via API"
	}

	if err := h.suppressions.Suppress(r.Context(), req.Email, typ, reason); err != nil {
		httputil.InternalError(w, err)
		return
	}
	h.gate.Invalidate(r.Context(), req.Email)

	entry, err := h.suppressions.Get(r.Context(), req.Email)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, entry)
}

// RemoveSuppression deletes an entry. Explicit admin action is the only
// path that unblocks an address.
func (h *Handlers) RemoveSuppression(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	err := h.suppressions.Remove(r.Context(), email)
	switch {
	case errors.Is(err, suppression.ErrNotFound):
		httputil.NotFound(w, "address is not suppressed")
		return
	case err != nil:
		httputil.InternalError(w, err)
		return
	}
	h.gate.Invalidate(r.Context(), email)
	httputil.NoContent(w)
}

// GetSuppressionStats returns aggregate counts grouped by type.
func (h *Handlers) GetSuppressionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.suppressions.GetStats(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}

type sendMessageRequest struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	TextBody string `json:"text_body"`
	Category string `json:"category"`
}

// SendMessage dispatches one message through the gated sender. A
// suppressed recipient is a 403, not a server error: the caller asked
// for something policy forbids.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	if h.sender == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "outbound sending is not enabled")
		return
	}

	var req sendMessageRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.To == "" || req.Subject == "" {
		httputil.BadRequest(w, "to and subject are required")
		return
	}
	if req.HTMLBody == "" && req.TextBody == "" {
		httputil.BadRequest(w, "html_body or text_body is required")
		return
	}

	messageID, err := h.sender.Send(r.Context(), mailer.SendRequest{
		To:       req.To,
		Subject:  req.Subject,
		HTMLBody: req.HTMLBody,
		TextBody: req.TextBody,
		Category: req.Category,
	})
	switch {
	case errors.Is(err, mailer.ErrRecipientBlocked):
		httputil.Error(w, http.StatusForbidden, err.Error())
		return
	case err != nil:
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"message_id": messageID})
}

// ListDeliveries returns delivery records, newest first.
func (h *Handlers) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.ListFilter{
		Status:    domain.DeliveryStatus(q.Get("status")),
		Recipient: q.Get("recipient"),
		Limit:     intParam(q.Get("limit"), 50),
		Offset:    intParam(q.Get("offset"), 0),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.BadRequest(w, "invalid 'from' timestamp, want RFC3339")
			return
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.BadRequest(w, "invalid 'to' timestamp, want RFC3339")
			return
		}
		f.To = t
	}

	records, err := h.deliveries.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if records == nil {
		records = []domain.DeliveryRecord{}
	}
	httputil.OK(w, map[string]any{
		"records": records,
		"limit":   f.Limit,
		"offset":  f.Offset,
	})
}

// GetDelivery returns the record for one message id.
func (h *Handlers) GetDelivery(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deliveries.Get(r.Context(), chi.URLParam(r, "messageID"))
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		httputil.NotFound(w, "unknown message id")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, rec)
	}
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
