package pipeline

import (
	"context"

	"github.com/ignite/prospect-pipeline/internal/domain"
)

// Repository defines the read contract the orchestrator needs.
// All getters use get-or-absent semantics: a missing record is (nil, nil),
// never an error, so callers branch on absence rather than catching errors
// for expected-missing cases. Implementations must be safe for concurrent
// use.
type Repository interface {
	// GetLead returns the lead, or nil if it does not exist.
	GetLead(ctx context.Context, tenantID, leadID string) (*domain.Lead, error)

	// GetResearch returns the lead's research record, or nil.
	GetResearch(ctx context.Context, tenantID, leadID string) (*domain.ResearchRecord, error)

	// GetSequenceByLead returns the lead's email sequence, or nil.
	GetSequenceByLead(ctx context.Context, tenantID, leadID string) (*domain.EmailSequence, error)
}

// AuditLogger appends immutable memory entries. Append failures are the
// caller's to swallow: audit completeness and primary-mutation correctness
// are independent concerns.
type AuditLogger interface {
	Append(ctx context.Context, entry domain.MemoryEntry) error
}
