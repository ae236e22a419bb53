package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/summitworks/delivery-monitor/internal/domain"
	"github.com/summitworks/delivery-monitor/internal/gate"
	"github.com/summitworks/delivery-monitor/internal/ledger"
	"github.com/summitworks/delivery-monitor/internal/mailer"
	"github.com/summitworks/delivery-monitor/internal/suppression"
	"github.com/summitworks/delivery-monitor/internal/webhook"
)

type memSuppressions struct {
	entries map[string]*domain.SuppressionEntry
}

func (m *memSuppressions) Get(_ context.Context, email string) (*domain.SuppressionEntry, error) {
	e, ok := m.entries[email]
	if !ok {
		return nil, suppression.ErrNotFound
	}
	return e, nil
}

func (m *memSuppressions) Upsert(_ context.Context, e *domain.SuppressionEntry) error {
	cp := *e
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.entries[e.Email] = &cp
	return nil
}

func (m *memSuppressions) Remove(_ context.Context, email string) error {
	if _, ok := m.entries[email]; !ok {
		return suppression.ErrNotFound
	}
	delete(m.entries, email)
	return nil
}

func (m *memSuppressions) List(_ context.Context, f suppression.ListFilter) ([]domain.SuppressionEntry, int, error) {
	var out []domain.SuppressionEntry
	for _, e := range m.entries {
		if f.Type != "" && e.SuppressionType != f.Type {
			continue
		}
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (m *memSuppressions) Count(_ context.Context) (int, error) { return len(m.entries), nil }

type memDeliveries struct {
	records map[string]*domain.DeliveryRecord
}

func (m *memDeliveries) Get(_ context.Context, id string) (*domain.DeliveryRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return rec, nil
}

func (m *memDeliveries) Insert(_ context.Context, rec *domain.DeliveryRecord) error {
	m.records[rec.MessageID] = rec
	return nil
}

func (m *memDeliveries) Update(_ context.Context, rec *domain.DeliveryRecord) error {
	m.records[rec.MessageID] = rec
	return nil
}

func (m *memDeliveries) List(_ context.Context, _ ledger.ListFilter) ([]domain.DeliveryRecord, error) {
	var out []domain.DeliveryRecord
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	return out, nil
}

type memJournal struct{}

func (memJournal) MarkProcessed(context.Context, string, string) (bool, error) { return true, nil }
func (memJournal) Unmark(context.Context, string, string) error                { return nil }

type noopProcessor struct{}

func (noopProcessor) Process(context.Context, domain.Event) error { return nil }

type stubSender struct {
	lastReq mailer.SendRequest
	id      string
	err     error
}

func (s *stubSender) Send(_ context.Context, req mailer.SendRequest) (string, error) {
	s.lastReq = req
	if s.err != nil {
		return "", s.err
	}
	return s.id, nil
}

func testRouter(t *testing.T) (http.Handler, *memSuppressions, *memDeliveries) {
	return testRouterWithSender(t, nil)
}

func testRouterWithSender(t *testing.T, sender Sender) (http.Handler, *memSuppressions, *memDeliveries) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	mock.ExpectPing().WillReturnError(nil)

	sups := &memSuppressions{entries: make(map[string]*domain.SuppressionEntry)}
	dels := &memDeliveries{records: make(map[string]*domain.DeliveryRecord)}

	supSvc := suppression.NewService(sups)
	ledgerSvc := ledger.NewService(dels, memJournal{})
	g := gate.New(supSvc, nil, 0)

	h := NewHandlers(supSvc, ledgerSvc, g, sender, db)
	wh := webhook.NewHandler(webhook.NewVerifier("", true), noopProcessor{}, 0)
	return SetupRoutes(h, wh), sups, dels
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router, _, _ := testRouter(t)
	w := do(t, router, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGateEndpoint(t *testing.T) {
	router, sups, _ := testRouter(t)

	w := do(t, router, http.MethodGet, "/api/v1/gate/clean@example.com", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var v gate.Verdict
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatal(err)
	}
	if !v.Allowed {
		t.Errorf("verdict = %+v", v)
	}

	sups.entries["blocked@example.com"] = &domain.SuppressionEntry{
		Email: "blocked@example.com", SuppressionType: domain.SuppressComplaint,
	}
	w = do(t, router, http.MethodGet, "/api/v1/gate/blocked@example.com", "")
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatal(err)
	}
	if v.Allowed || v.Reason != string(domain.SuppressComplaint) {
		t.Errorf("verdict = %+v", v)
	}
}

func TestAddAndRemoveSuppression(t *testing.T) {
	router, sups, _ := testRouter(t)

	w := do(t, router, http.MethodPost, "/api/v1/suppressions/", `{"email":"User@Example.com","reason":"bad actor"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	entry, ok := sups.entries["user@example.com"]
	if !ok {
		t.Fatal("entry missing under normalized key")
	}
	if entry.SuppressionType != domain.SuppressManual {
		t.Errorf("default type = %s, want manual", entry.SuppressionType)
	}

	w = do(t, router, http.MethodDelete, "/api/v1/suppressions/user@example.com", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if len(sups.entries) != 0 {
		t.Error("entry survived deletion")
	}

	w = do(t, router, http.MethodDelete, "/api/v1/suppressions/user@example.com", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", w.Code)
	}
}

func TestAddSuppressionValidation(t *testing.T) {
	router, _, _ := testRouter(t)

	w := do(t, router, http.MethodPost, "/api/v1/suppressions/", `{"reason":"no email"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing email: status = %d", w.Code)
	}

	w = do(t, router, http.MethodPost, "/api/v1/suppressions/", `{"email":"a@b.c","type":"banhammer"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown type: status = %d", w.Code)
	}
}

func TestListSuppressions(t *testing.T) {
	router, sups, _ := testRouter(t)
	sups.entries["a@example.com"] = &domain.SuppressionEntry{Email: "a@example.com", SuppressionType: domain.SuppressHardBounce}
	sups.entries["b@example.com"] = &domain.SuppressionEntry{Email: "b@example.com", SuppressionType: domain.SuppressComplaint}

	w := do(t, router, http.MethodGet, "/api/v1/suppressions/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp suppressionList
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || len(resp.Entries) != 2 {
		t.Errorf("list = %+v", resp)
	}
}

func TestGetDelivery(t *testing.T) {
	router, _, dels := testRouter(t)
	dels.records["m-1"] = &domain.DeliveryRecord{
		MessageID: "m-1",
		Recipient: "user@example.com",
		Status:    domain.StatusDelivered,
	}

	w := do(t, router, http.MethodGet, "/api/v1/deliveries/m-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var rec domain.DeliveryRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Status != domain.StatusDelivered {
		t.Errorf("status = %s", rec.Status)
	}

	w = do(t, router, http.MethodGet, "/api/v1/deliveries/m-ghost", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status = %d", w.Code)
	}
}

func TestSendEndpoint(t *testing.T) {
	sender := &stubSender{id: "ses-out-1"}
	router, _, _ := testRouterWithSender(t, sender)

	w := do(t, router, http.MethodPost, "/api/v1/send",
		`{"to":"user@example.com","subject":"Welcome","text_body":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["message_id"] != "ses-out-1" {
		t.Errorf("message_id = %q", resp["message_id"])
	}
	if sender.lastReq.To != "user@example.com" || sender.lastReq.Subject != "Welcome" {
		t.Errorf("sender saw %+v", sender.lastReq)
	}
}

func TestSendEndpointBlockedRecipient(t *testing.T) {
	sender := &stubSender{err: fmt.Errorf("%w: hard_bounce", mailer.ErrRecipientBlocked)}
	router, _, _ := testRouterWithSender(t, sender)

	w := do(t, router, http.MethodPost, "/api/v1/send",
		`{"to":"bounced@example.com","subject":"Welcome","text_body":"hello"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestSendEndpointDisabled(t *testing.T) {
	router, _, _ := testRouter(t)

	w := do(t, router, http.MethodPost, "/api/v1/send",
		`{"to":"user@example.com","subject":"Welcome","text_body":"hello"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestSendEndpointValidation(t *testing.T) {
	sender := &stubSender{id: "ses-out-1"}
	router, _, _ := testRouterWithSender(t, sender)

	w := do(t, router, http.MethodPost, "/api/v1/send", `{"subject":"no recipient","text_body":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing to: status = %d", w.Code)
	}

	w = do(t, router, http.MethodPost, "/api/v1/send", `{"to":"user@example.com","subject":"no body"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing body: status = %d", w.Code)
	}
}

func TestWebhookMountedOutsideAPI(t *testing.T) {
	router, _, _ := testRouter(t)
	w := do(t, router, http.MethodPost, "/webhooks/email", `[]`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}
