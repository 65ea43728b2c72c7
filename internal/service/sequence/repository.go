package sequence

import (
	"context"
	"encoding/json"

	"github.com/ignite/prospect-pipeline/internal/domain"
)

// OptionalThread is a tri-state thread field in an update request. It
// distinguishes "absent" (leave the stored thread untouched) from an
// explicit JSON null (clear the stored thread).
type OptionalThread struct {
	Present bool
	Value   *domain.Thread
}

// UnmarshalJSON marks the field present; a literal null leaves Value nil.
func (o *OptionalThread) UnmarshalJSON(b []byte) error {
	o.Present = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// MarshalJSON round-trips the tri-state for logging and tests.
func (o OptionalThread) MarshalJSON() ([]byte, error) {
	if !o.Present || o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UpdateInput holds the partial content update. Only present fields are
// applied.
type UpdateInput struct {
	Thread1 OptionalThread `json:"thread1"`
	Thread2 OptionalThread `json:"thread2"`
}

// Repository defines the data access contract for sequences.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns the sequence, or nil if it does not exist
	// (get-or-absent semantics).
	Get(ctx context.Context, tenantID, id string) (*domain.EmailSequence, error)

	// UpdateThreads applies the present fields of the update. The write is
	// conditional on the sequence still being editable; implementations
	// return ErrSequenceLocked when the condition no longer holds at write
	// time (the status may have advanced since the caller's read).
	UpdateThreads(ctx context.Context, tenantID, id string, in UpdateInput) error

	// UpdateStatus transitions status from exactly `from` to `to`
	// (update-if-status). Returns ErrInvalidTransition when the row is no
	// longer in `from`.
	UpdateStatus(ctx context.Context, tenantID, id string, from, to domain.SequenceStatus) error
}

// AuditLogger appends immutable memory entries; failures are swallowed by
// the service.
type AuditLogger interface {
	Append(ctx context.Context, entry domain.MemoryEntry) error
}
