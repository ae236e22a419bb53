package suppression

import (
	"context"
	"fmt"
	"strings"

	"github.com/summitworks/delivery-monitor/internal/domain"
)

// Service implements suppression business logic. It is safe for
// concurrent use.
type Service struct {
	repo Repository
}

// NewService creates a suppression service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the active suppression entry for an address, or ErrNotFound.
func (s *Service) Get(ctx context.Context, email string) (*domain.SuppressionEntry, error) {
	return s.repo.Get(ctx, domain.NormalizeEmail(email))
}

// Suppress adds an address to the suppression store. Safe to call
// repeatedly: the entry is upserted keyed by normalized email,
// last-writer-wins on type and reason, created_at preserved from the
// first insert.
func (s *Service) Suppress(ctx context.Context, email string, typ domain.SuppressionType, reason string) error {
	email = domain.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email %q", email)
	}

	entry := &domain.SuppressionEntry{
		Email:           email,
		SuppressionType: typ,
		Reason:          reason,
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("suppress %s: %w", email, err)
	}
	return nil
}

// Remove deletes a suppression entry. Only explicit administrative
// action removes entries; nothing in the event pipeline calls this.
func (s *Service) Remove(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	return s.repo.Remove(ctx, email)
}

// List returns suppression entries matching the given filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.SuppressionEntry, int, error) {
	return s.repo.List(ctx, f)
}

// Stats holds aggregate counts for the admin dashboard.
type Stats struct {
	Total  int            `json:"total"`
	ByType map[string]int `json:"by_type"`
}

// GetStats computes suppression statistics grouped by type.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	entries, total, err := s.repo.List(ctx, ListFilter{Limit: 0})
	if err != nil {
		return nil, err
	}

	stats := &Stats{Total: total, ByType: make(map[string]int)}
	for _, e := range entries {
		stats.ByType[string(e.SuppressionType)]++
	}
	return stats, nil
}
