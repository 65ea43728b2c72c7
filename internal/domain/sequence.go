package domain

import "time"

// SequenceStatus enumerates the lifecycle states of an email sequence.
// The lifecycle is closed and strictly ordered; transitions never move
// backward. A failed deployment leaves the sequence at ready.
type SequenceStatus string

const (
	SequenceDrafting  SequenceStatus = "drafting"
	SequenceReady     SequenceStatus = "ready"
	SequenceDeployed  SequenceStatus = "deployed"
	SequenceCompleted SequenceStatus = "completed"
)

var sequenceOrder = map[SequenceStatus]int{
	SequenceDrafting:  0,
	SequenceReady:     1,
	SequenceDeployed:  2,
	SequenceCompleted: 3,
}

// CanTransition reports whether moving from one status to the next is a
// legal single forward step.
func CanTransition(from, to SequenceStatus) bool {
	fromOrd, okFrom := sequenceOrder[from]
	toOrd, okTo := sequenceOrder[to]
	return okFrom && okTo && toOrd == fromOrd+1
}

// Email is a single message within a thread.
type Email struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Thread is one of the two independent message threads in a sequence.
type Thread struct {
	Subject string  `json:"subject"`
	Emails  []Email `json:"emails"`
}

// EmailSequence holds the generated outbound messaging for a single lead.
// Like ResearchRecord it is at most 1:1 with its lead; sequencing re-runs
// overwrite the draft in place. Either thread may be absent.
type EmailSequence struct {
	ID         string         `json:"id" db:"id"`
	LeadID     string         `json:"lead_id" db:"lead_id"`
	TenantID   string         `json:"tenant_id" db:"tenant_id"`
	Status     SequenceStatus `json:"status" db:"status"`
	Thread1    *Thread        `json:"thread_1"`
	Thread2    *Thread        `json:"thread_2"`
	DeployedAt *time.Time     `json:"deployed_at" db:"deployed_at"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

// Editable reports whether thread content may still be mutated. Mutability
// is purely a function of lifecycle state, independent of who is editing.
func (s *EmailSequence) Editable() bool {
	return s.Status != SequenceDeployed && s.Status != SequenceCompleted
}
