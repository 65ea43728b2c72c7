package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/prospect-pipeline/internal/domain"
	"github.com/ignite/prospect-pipeline/internal/service/sequence"
)

// SequenceRepo reads and writes email sequences. At most one per lead
// (UNIQUE on lead_id). All status-sensitive writes carry the status
// condition in the statement itself, so a race between read and write
// can never mutate a frozen sequence.
type SequenceRepo struct{ db *sql.DB }

// NewSequenceRepo creates a Postgres-backed sequence repository.
func NewSequenceRepo(db *sql.DB) *SequenceRepo { return &SequenceRepo{db: db} }

const sequenceColumns = `id, lead_id, tenant_id, status, thread_1, thread_2, deployed_at, created_at, updated_at`

func scanSequence(row *sql.Row) (*domain.EmailSequence, error) {
	s := &domain.EmailSequence{}
	var t1, t2 []byte
	err := row.Scan(&s.ID, &s.LeadID, &s.TenantID, &s.Status, &t1, &t2, &s.DeployedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(t1) > 0 {
		if err := json.Unmarshal(t1, &s.Thread1); err != nil {
			return nil, fmt.Errorf("decode thread_1: %w", err)
		}
	}
	if len(t2) > 0 {
		if err := json.Unmarshal(t2, &s.Thread2); err != nil {
			return nil, fmt.Errorf("decode thread_2: %w", err)
		}
	}
	return s, nil
}

// Get returns the sequence by id, or nil if it does not exist.
func (r *SequenceRepo) Get(ctx context.Context, tenantID, id string) (*domain.EmailSequence, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sequenceColumns+` FROM email_sequences
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	s, err := scanSequence(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sequence: %w", err)
	}
	return s, nil
}

// GetByLead returns the lead's sequence, or nil if none exists.
func (r *SequenceRepo) GetByLead(ctx context.Context, tenantID, leadID string) (*domain.EmailSequence, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sequenceColumns+` FROM email_sequences
		WHERE lead_id = $1 AND tenant_id = $2
	`, leadID, tenantID)
	s, err := scanSequence(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sequence by lead: %w", err)
	}
	return s, nil
}

// UpsertDraft inserts a drafting sequence for the lead or, if one exists
// and is still editable, overwrites its threads in place. The existing
// status is preserved on overwrite: regenerating content never moves the
// lifecycle, forward or backward. Returns false when the stored sequence
// is frozen and nothing was written.
func (r *SequenceRepo) UpsertDraft(ctx context.Context, s *domain.EmailSequence) (bool, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	t1, err := marshalThread(s.Thread1)
	if err != nil {
		return false, fmt.Errorf("encode thread_1: %w", err)
	}
	t2, err := marshalThread(s.Thread2)
	if err != nil {
		return false, fmt.Errorf("encode thread_2: %w", err)
	}

	var id string
	var status domain.SequenceStatus
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO email_sequences (id, lead_id, tenant_id, status, thread_1, thread_2, created_at, updated_at)
		VALUES ($1, $2, $3, 'drafting', $4, $5, NOW(), NOW())
		ON CONFLICT (lead_id) DO UPDATE
		SET thread_1 = EXCLUDED.thread_1, thread_2 = EXCLUDED.thread_2, updated_at = NOW()
		WHERE email_sequences.status NOT IN ('deployed', 'completed')
		RETURNING id, status
	`, s.ID, s.LeadID, s.TenantID, t1, t2).Scan(&id, &status)
	if err == sql.ErrNoRows {
		// Conflict row exists but is frozen; nothing written.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("upsert sequence: %w", err)
	}
	s.ID = id
	s.Status = status
	return true, nil
}

// UpdateThreads applies the present fields of the partial update,
// conditional on the sequence still being editable.
func (r *SequenceRepo) UpdateThreads(ctx context.Context, tenantID, id string, in sequence.UpdateInput) error {
	set := "updated_at = NOW()"
	args := []interface{}{id, tenantID}
	idx := 3

	if in.Thread1.Present {
		t1, err := marshalThread(in.Thread1.Value)
		if err != nil {
			return fmt.Errorf("encode thread_1: %w", err)
		}
		set += fmt.Sprintf(", thread_1 = $%d", idx)
		args = append(args, t1)
		idx++
	}
	if in.Thread2.Present {
		t2, err := marshalThread(in.Thread2.Value)
		if err != nil {
			return fmt.Errorf("encode thread_2: %w", err)
		}
		set += fmt.Sprintf(", thread_2 = $%d", idx)
		args = append(args, t2)
		idx++
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE email_sequences SET `+set+`
		WHERE id = $1 AND tenant_id = $2 AND status NOT IN ('deployed', 'completed')
	`, args...)
	if err != nil {
		return fmt.Errorf("update threads: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update threads: %w", err)
	}
	if n == 0 {
		// The caller saw an editable sequence; by write time it advanced.
		return sequence.ErrSequenceLocked
	}
	return nil
}

// UpdateStatus transitions status from exactly `from` to `to`. The
// deployed timestamp is stamped on entry into deployed.
func (r *SequenceRepo) UpdateStatus(ctx context.Context, tenantID, id string, from, to domain.SequenceStatus) error {
	stamp := ""
	if to == domain.SequenceDeployed {
		stamp = ", deployed_at = NOW()"
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_sequences SET status = $3, updated_at = NOW()`+stamp+`
		WHERE id = $1 AND tenant_id = $2 AND status = $4
	`, id, tenantID, to, from)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n == 0 {
		return sequence.ErrInvalidTransition
	}
	return nil
}

func marshalThread(t *domain.Thread) ([]byte, error) {
	if t == nil {
		return nil, nil // stored as SQL NULL
	}
	return json.Marshal(t)
}
