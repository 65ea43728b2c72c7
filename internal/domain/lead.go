package domain

import (
	"time"
)

// Decision enumerates the possible outcomes of lead qualification.
type Decision string

const (
	DecisionYes    Decision = "YES"
	DecisionNo     Decision = "NO"
	DecisionUnsure Decision = "UNSURE"
)

// Qualification is the outcome of the qualification step for a lead.
// Confidence is a 0-100 score.
type Qualification struct {
	Decision   Decision `json:"decision" db:"decision"`
	Reasoning  string   `json:"reasoning" db:"reasoning"`
	Confidence int      `json:"confidence" db:"confidence"`
}

// ManualQualification is the synthetic qualification substituted on operator
// re-runs. An operator re-triggering a step always forces the lead through,
// regardless of what the automated qualifier originally decided.
func ManualQualification() Qualification {
	return Qualification{
		Decision:   DecisionYes,
		Reasoning:  "manual re-run",
		Confidence: 100,
	}
}

// Lead is the aggregate root of the pipeline. ResearchRecord, EmailSequence
// and MemoryEntry records are owned by exactly one lead. Leads are created
// by ingestion and only ever advanced by the pipeline, never deleted.
type Lead struct {
	ID            string        `json:"id" db:"id"`
	TenantID      string        `json:"tenant_id" db:"tenant_id"`
	FirstName     string        `json:"first_name" db:"first_name"`
	LastName      string        `json:"last_name" db:"last_name"`
	Email         string        `json:"email" db:"email"`
	Company       string        `json:"company" db:"company"`
	Title         string        `json:"title" db:"title"`
	Qualification Qualification `json:"qualification"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// PipelineStage is the derived position of a lead in the pipeline. It is
// never stored: it is recomputed from child-record presence and status so a
// persisted copy can never fall out of sync with the records themselves.
type PipelineStage string

const (
	StagePendingResearch   PipelineStage = "pending-research"
	StagePendingSequencing PipelineStage = "pending-sequencing"
	StageSequencing        PipelineStage = "sequencing"
	StageDeployed          PipelineStage = "deployed"
	StageCompleted         PipelineStage = "completed"
)

// StageOf derives the pipeline stage of a lead from its child records.
// research and seq are nil when the corresponding record does not exist.
func StageOf(research *ResearchRecord, seq *EmailSequence) PipelineStage {
	if research == nil {
		return StagePendingResearch
	}
	if seq == nil {
		return StagePendingSequencing
	}
	switch seq.Status {
	case SequenceDeployed:
		return StageDeployed
	case SequenceCompleted:
		return StageCompleted
	default:
		return StageSequencing
	}
}
