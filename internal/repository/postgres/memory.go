package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/prospect-pipeline/internal/domain"
)

// MemoryRepo appends and lists memory entries. Insert-only: there is no
// update or delete path, the audit trail is purely additive.
type MemoryRepo struct{ db *sql.DB }

// NewMemoryRepo creates a Postgres-backed memory repository.
func NewMemoryRepo(db *sql.DB) *MemoryRepo { return &MemoryRepo{db: db} }

// Append inserts a new memory entry.
func (r *MemoryRepo) Append(ctx context.Context, e *domain.MemoryEntry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	var ctxJSON interface{}
	if len(e.Context) > 0 {
		ctxJSON = []byte(e.Context)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO memory_entries (id, lead_id, tenant_id, event_type, description, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, e.ID, e.LeadID, e.TenantID, e.EventType, e.Description, ctxJSON)
	if err != nil {
		return "", fmt.Errorf("append memory: %w", err)
	}
	return e.ID, nil
}

// ListByLead returns a lead's memory entries, newest first.
func (r *MemoryRepo) ListByLead(ctx context.Context, tenantID, leadID string, limit int) ([]domain.MemoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, lead_id, tenant_id, event_type, description, COALESCE(context, 'null'), created_at
		FROM memory_entries
		WHERE lead_id = $1 AND tenant_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, leadID, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list memory: %w", err)
	}
	defer rows.Close()

	var out []domain.MemoryEntry
	for rows.Next() {
		var e domain.MemoryEntry
		var ctxRaw []byte
		if err := rows.Scan(&e.ID, &e.LeadID, &e.TenantID, &e.EventType, &e.Description, &ctxRaw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		e.Context = ctxRaw
		out = append(out, e)
	}
	return out, rows.Err()
}
