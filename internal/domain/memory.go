package domain

import (
	"encoding/json"
	"time"
)

// MemoryEntry is an immutable audit record attributed to a lead. Entries
// are append-only: they are never updated or deleted, only added.
type MemoryEntry struct {
	ID          string          `json:"id" db:"id"`
	LeadID      string          `json:"lead_id" db:"lead_id"`
	TenantID    string          `json:"tenant_id" db:"tenant_id"`
	EventType   string          `json:"event_type" db:"event_type"`
	Description string          `json:"description" db:"description"`
	Context     json.RawMessage `json:"context,omitempty" db:"context"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Well-known memory event types. The field is free-form; these are the tags
// the pipeline itself writes.
const (
	MemorySequenceEdited    = "sequence_edited"
	MemorySequenceReady     = "sequence_marked_ready"
	MemorySequenceDeployed  = "sequence_deployed"
	MemoryResearchCompleted = "research_completed"
	MemoryRerunTriggered    = "rerun_triggered"
)
