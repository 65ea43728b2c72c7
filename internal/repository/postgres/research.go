package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/prospect-pipeline/internal/domain"
)

// ResearchRepo reads and writes research records. There is at most one per
// lead (UNIQUE on lead_id); Upsert overwrites on re-run.
type ResearchRepo struct{ db *sql.DB }

// NewResearchRepo creates a Postgres-backed research repository.
func NewResearchRepo(db *sql.DB) *ResearchRepo { return &ResearchRepo{db: db} }

// GetByLead returns the lead's research record, or nil if none exists.
func (r *ResearchRepo) GetByLead(ctx context.Context, tenantID, leadID string) (*domain.ResearchRecord, error) {
	rec := &domain.ResearchRecord{}
	var signals []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, lead_id, tenant_id, extracted_signals, created_at, updated_at
		FROM research_records
		WHERE lead_id = $1 AND tenant_id = $2
	`, leadID, tenantID).Scan(&rec.ID, &rec.LeadID, &rec.TenantID, &signals, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get research: %w", err)
	}
	if err := json.Unmarshal(signals, &rec.Signals); err != nil {
		return nil, fmt.Errorf("decode signals: %w", err)
	}
	return rec, nil
}

// Upsert inserts or overwrites the lead's research record. Keying on
// lead_id rather than record id is what makes duplicate stage runs safe:
// two concurrent runs end with one record, last writer wins.
func (r *ResearchRepo) Upsert(ctx context.Context, rec *domain.ResearchRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	signals, err := json.Marshal(rec.Signals)
	if err != nil {
		return "", fmt.Errorf("encode signals: %w", err)
	}

	var id string
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO research_records (id, lead_id, tenant_id, extracted_signals, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (lead_id) DO UPDATE
		SET extracted_signals = EXCLUDED.extracted_signals, updated_at = NOW()
		RETURNING id
	`, rec.ID, rec.LeadID, rec.TenantID, signals).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert research: %w", err)
	}
	rec.ID = id
	return id, nil
}
