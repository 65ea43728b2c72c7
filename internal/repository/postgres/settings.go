package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/prospect-pipeline/internal/domain"
)

// SettingsRepo reads and writes per-tenant settings. Tenants without a
// row get the zero-value settings; callers fall back to server defaults.
type SettingsRepo struct{ db *sql.DB }

// NewSettingsRepo creates a Postgres-backed settings repository.
func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

// Get returns the tenant's settings. A missing row is not an error; the
// returned settings carry the tenant id and zero values.
func (r *SettingsRepo) Get(ctx context.Context, tenantID string) (*domain.TenantSettings, error) {
	s := &domain.TenantSettings{TenantID: tenantID}
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(from_name,''), COALESCE(from_email,''), COALESCE(webhook_url,''),
		       COALESCE(generation_per_minute,0), updated_at
		FROM tenant_settings
		WHERE tenant_id = $1
	`, tenantID).Scan(&s.FromName, &s.FromEmail, &s.WebhookURL, &s.GenerationPerMinute, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

// Upsert writes the tenant's settings, creating the row on first save.
func (r *SettingsRepo) Upsert(ctx context.Context, s *domain.TenantSettings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tenant_settings (tenant_id, from_name, from_email, webhook_url,
		                             generation_per_minute, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET
			from_name = EXCLUDED.from_name,
			from_email = EXCLUDED.from_email,
			webhook_url = EXCLUDED.webhook_url,
			generation_per_minute = EXCLUDED.generation_per_minute,
			updated_at = NOW()
	`, s.TenantID, s.FromName, s.FromEmail, s.WebhookURL, s.GenerationPerMinute)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

// WebhookURL returns the tenant's deployment webhook URL, empty when
// unconfigured. Satisfies the deployment stage's provider interface.
func (r *SettingsRepo) WebhookURL(ctx context.Context, tenantID string) (string, error) {
	s, err := r.Get(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return s.WebhookURL, nil
}
