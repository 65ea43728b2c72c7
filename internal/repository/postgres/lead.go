package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/prospect-pipeline/internal/domain"
)

// LeadRepo reads and writes leads. The pipeline itself only ever reads;
// Insert exists for ingestion tooling and seeding.
type LeadRepo struct{ db *sql.DB }

// NewLeadRepo creates a Postgres-backed lead repository.
func NewLeadRepo(db *sql.DB) *LeadRepo { return &LeadRepo{db: db} }

// Get returns the lead, or nil if it does not exist.
func (r *LeadRepo) Get(ctx context.Context, tenantID, leadID string) (*domain.Lead, error) {
	l := &domain.Lead{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, COALESCE(first_name,''), COALESCE(last_name,''),
		       COALESCE(email,''), COALESCE(company,''), COALESCE(title,''),
		       COALESCE(decision,''), COALESCE(reasoning,''), COALESCE(confidence,0),
		       created_at, updated_at
		FROM leads
		WHERE id = $1 AND tenant_id = $2
	`, leadID, tenantID).Scan(
		&l.ID, &l.TenantID, &l.FirstName, &l.LastName,
		&l.Email, &l.Company, &l.Title,
		&l.Qualification.Decision, &l.Qualification.Reasoning, &l.Qualification.Confidence,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

// Insert creates a new lead.
func (r *LeadRepo) Insert(ctx context.Context, l *domain.Lead) (string, error) {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO leads (id, tenant_id, first_name, last_name, email, company, title,
		                   decision, reasoning, confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`, l.ID, l.TenantID, l.FirstName, l.LastName, l.Email, l.Company, l.Title,
		l.Qualification.Decision, l.Qualification.Reasoning, l.Qualification.Confidence)
	if err != nil {
		return "", fmt.Errorf("insert lead: %w", err)
	}
	return l.ID, nil
}
