package suppression

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/summitworks/delivery-monitor/internal/domain"
)

type memRepo struct {
	entries map[string]*domain.SuppressionEntry
}

func newMemRepo() *memRepo {
	return &memRepo{entries: make(map[string]*domain.SuppressionEntry)}
}

func (m *memRepo) Get(_ context.Context, email string) (*domain.SuppressionEntry, error) {
	e, ok := m.entries[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memRepo) Upsert(_ context.Context, e *domain.SuppressionEntry) error {
	if prev, ok := m.entries[e.Email]; ok {
		// conflict semantics: type/reason replaced, created_at preserved
		cp := *e
		cp.CreatedAt = prev.CreatedAt
		cp.UpdatedAt = time.Now()
		m.entries[e.Email] = &cp
		return nil
	}
	cp := *e
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.entries[e.Email] = &cp
	return nil
}

func (m *memRepo) Remove(_ context.Context, email string) error {
	if _, ok := m.entries[email]; !ok {
		return ErrNotFound
	}
	delete(m.entries, email)
	return nil
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]domain.SuppressionEntry, int, error) {
	var out []domain.SuppressionEntry
	for _, e := range m.entries {
		if f.Type != "" && e.SuppressionType != f.Type {
			continue
		}
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (m *memRepo) Count(_ context.Context) (int, error) { return len(m.entries), nil }

func TestSuppressNormalizesEmail(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if err := svc.Suppress(ctx, "  User@Example.COM ", domain.SuppressManual, "test"); err != nil {
		t.Fatal(err)
	}
	if _, ok := repo.entries["user@example.com"]; !ok {
		t.Fatal("entry not stored under normalized key")
	}

	entry, err := svc.Get(ctx, "USER@example.com")
	if err != nil {
		t.Fatalf("case-variant lookup: %v", err)
	}
	if entry.SuppressionType != domain.SuppressManual {
		t.Errorf("type = %s", entry.SuppressionType)
	}
}

func TestSuppressRejectsInvalidEmail(t *testing.T) {
	svc := NewService(newMemRepo())
	for _, addr := range []string{"", "   ", "nodomain"} {
		if err := svc.Suppress(context.Background(), addr, domain.SuppressManual, ""); err == nil {
			t.Errorf("Suppress(%q) succeeded", addr)
		}
	}
}

func TestSuppressIsIdempotentUpsert(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if err := svc.Suppress(ctx, "user@example.com", domain.SuppressSoftBounce, "3 soft bounces"); err != nil {
		t.Fatal(err)
	}
	created := repo.entries["user@example.com"].CreatedAt

	// Re-suppression for a stronger reason replaces type, keeps created_at.
	if err := svc.Suppress(ctx, "user@example.com", domain.SuppressComplaint, "spam complaint"); err != nil {
		t.Fatal(err)
	}

	entry := repo.entries["user@example.com"]
	if entry.SuppressionType != domain.SuppressComplaint {
		t.Errorf("type = %s, want complaint", entry.SuppressionType)
	}
	if !entry.CreatedAt.Equal(created) {
		t.Error("created_at must survive re-suppression")
	}
}

func TestRemove(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if err := svc.Remove(ctx, "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("remove missing: got %v", err)
	}

	_ = svc.Suppress(ctx, "user@example.com", domain.SuppressManual, "")
	if err := svc.Remove(ctx, "User@Example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Get(ctx, "user@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("entry survived removal: %v", err)
	}
}

func TestGetStats(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_ = svc.Suppress(ctx, "a@example.com", domain.SuppressHardBounce, "")
	_ = svc.Suppress(ctx, "b@example.com", domain.SuppressHardBounce, "")
	_ = svc.Suppress(ctx, "c@example.com", domain.SuppressComplaint, "")

	stats, err := svc.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 {
		t.Errorf("total = %d", stats.Total)
	}
	if stats.ByType[string(domain.SuppressHardBounce)] != 2 {
		t.Errorf("hard bounce count = %d", stats.ByType[string(domain.SuppressHardBounce)])
	}
	if stats.ByType[string(domain.SuppressComplaint)] != 1 {
		t.Errorf("complaint count = %d", stats.ByType[string(domain.SuppressComplaint)])
	}
}
