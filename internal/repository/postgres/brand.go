package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/prospect-pipeline/internal/domain"
)

// BrandRepo lists the brands a user belongs to.
type BrandRepo struct{ db *sql.DB }

// NewBrandRepo creates a Postgres-backed brand repository.
func NewBrandRepo(db *sql.DB) *BrandRepo { return &BrandRepo{db: db} }

// ListForUser returns the user's brands with their membership role,
// newest first.
func (r *BrandRepo) ListForUser(ctx context.Context, userID string) ([]domain.Brand, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.name, COALESCE(b.slug,''), m.role,
		       COALESCE(b.onboarding_completed, false), b.created_at
		FROM brands b
		JOIN brand_memberships m ON m.brand_id = b.id
		WHERE m.user_id = $1
		ORDER BY b.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()

	var brands []domain.Brand
	for rows.Next() {
		var b domain.Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.Slug, &b.Role, &b.OnboardingCompleted, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

// Get returns the brand, or nil if it does not exist.
func (r *BrandRepo) Get(ctx context.Context, brandID string) (*domain.Brand, error) {
	b := &domain.Brand{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(slug,''), COALESCE(onboarding_completed, false), created_at
		FROM brands
		WHERE id = $1
	`, brandID).Scan(&b.ID, &b.Name, &b.Slug, &b.OnboardingCompleted, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get brand: %w", err)
	}
	return b, nil
}
