// Package postgres implements the pipeline's record store against
// PostgreSQL. Every mutation is a single-record, single-statement write;
// the stage upserts are keyed on lead_id so duplicate event delivery and
// duplicate manual triggers collapse into overwrites.
package postgres

import (
	"context"
	"database/sql"

	"github.com/ignite/prospect-pipeline/internal/domain"
)

// Store bundles the per-entity repositories and forwards the read methods
// the orchestrator needs, so one value satisfies pipeline.Repository.
type Store struct {
	Leads     *LeadRepo
	Research  *ResearchRepo
	Sequences *SequenceRepo
	Memory    *MemoryRepo
}

// NewStore creates all repositories over one connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{
		Leads:     NewLeadRepo(db),
		Research:  NewResearchRepo(db),
		Sequences: NewSequenceRepo(db),
		Memory:    NewMemoryRepo(db),
	}
}

// GetLead implements pipeline.Repository.
func (s *Store) GetLead(ctx context.Context, tenantID, leadID string) (*domain.Lead, error) {
	return s.Leads.Get(ctx, tenantID, leadID)
}

// GetResearch implements pipeline.Repository.
func (s *Store) GetResearch(ctx context.Context, tenantID, leadID string) (*domain.ResearchRecord, error) {
	return s.Research.GetByLead(ctx, tenantID, leadID)
}

// GetSequenceByLead implements pipeline.Repository.
func (s *Store) GetSequenceByLead(ctx context.Context, tenantID, leadID string) (*domain.EmailSequence, error) {
	return s.Sequences.GetByLead(ctx, tenantID, leadID)
}

// GetSequence forwards to the sequence repository for the stage consumers.
func (s *Store) GetSequence(ctx context.Context, tenantID, id string) (*domain.EmailSequence, error) {
	return s.Sequences.Get(ctx, tenantID, id)
}

// UpsertResearch forwards to the research repository.
func (s *Store) UpsertResearch(ctx context.Context, rec *domain.ResearchRecord) (string, error) {
	return s.Research.Upsert(ctx, rec)
}

// UpsertSequenceDraft forwards to the sequence repository.
func (s *Store) UpsertSequenceDraft(ctx context.Context, seq *domain.EmailSequence) (bool, error) {
	return s.Sequences.UpsertDraft(ctx, seq)
}

// UpdateSequenceStatus forwards to the sequence repository.
func (s *Store) UpdateSequenceStatus(ctx context.Context, tenantID, id string, from, to domain.SequenceStatus) error {
	return s.Sequences.UpdateStatus(ctx, tenantID, id, from, to)
}
