package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ignite/prospect-pipeline/internal/domain"
	"github.com/ignite/prospect-pipeline/internal/events"
)

// Step identifies which pipeline stage a re-run re-triggers.
type Step string

const (
	StepResearch Step = "research"
	StepSequence Step = "sequence"
)

// RerunResult is the synchronous answer to a re-run request. The work
// itself happens asynchronously: "triggered" means the event was durably
// published, not that the stage completed.
type RerunResult struct {
	Status string `json:"status"`
	Step   Step   `json:"step"`
}

// Service is the pipeline orchestrator. All public methods are safe for
// concurrent use if the repository and bus are.
type Service struct {
	repo  Repository
	bus   events.Bus
	audit AuditLogger
}

// NewService creates an orchestrator over the given collaborators.
// audit may be nil; auditing is best-effort throughout.
func NewService(repo Repository, bus events.Bus, audit AuditLogger) *Service {
	return &Service{repo: repo, bus: bus, audit: audit}
}

// Rerun re-emits the triggering event for a pipeline step. The emitted
// qualification is always the synthetic manual one: an operator re-running
// a step overrides whatever the automated qualifier decided.
//
// Nothing here deduplicates two rapid re-runs for the same lead/step; the
// stage writes are upserts keyed by lead_id, so duplicate execution is
// harmless by construction.
func (s *Service) Rerun(ctx context.Context, tenantID, leadID string, step Step) (RerunResult, error) {
	switch step {
	case StepResearch:
		if err := s.rerunResearch(ctx, tenantID, leadID); err != nil {
			return RerunResult{}, err
		}
	case StepSequence:
		if err := s.rerunSequence(ctx, tenantID, leadID); err != nil {
			return RerunResult{}, err
		}
	default:
		return RerunResult{}, fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}

	s.logRerun(ctx, tenantID, leadID, step)
	return RerunResult{Status: "triggered", Step: step}, nil
}

func (s *Service) rerunResearch(ctx context.Context, tenantID, leadID string) error {
	lead, err := s.repo.GetLead(ctx, tenantID, leadID)
	if err != nil {
		return fmt.Errorf("get lead: %w", err)
	}
	if lead == nil {
		return ErrLeadNotFound
	}

	return s.bus.Publish(ctx, events.LeadReadyForDeployment, events.ReadyForDeployment{
		LeadID:        lead.ID,
		TenantID:      lead.TenantID,
		Qualification: domain.ManualQualification(),
	})
}

func (s *Service) rerunSequence(ctx context.Context, tenantID, leadID string) error {
	research, err := s.repo.GetResearch(ctx, tenantID, leadID)
	if err != nil {
		return fmt.Errorf("get research: %w", err)
	}
	if research == nil {
		// Sequencing cannot fabricate signals; research must run first.
		return ErrResearchMissing
	}

	return s.bus.Publish(ctx, events.LeadResearchComplete, events.ResearchComplete{
		LeadID:          research.LeadID,
		TenantID:        research.TenantID,
		PersonaMatch:    research.Signals.PersonaMatch,
		TopTriggers:     research.Signals.TopTriggers(),
		MessagingAngles: research.Signals.MessagingAngles,
		Qualification:   domain.ManualQualification(),
	})
}

func (s *Service) logRerun(ctx context.Context, tenantID, leadID string, step Step) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"step": string(step)})
	err := s.audit.Append(ctx, domain.MemoryEntry{
		LeadID:      leadID,
		TenantID:    tenantID,
		EventType:   domain.MemoryRerunTriggered,
		Description: fmt.Sprintf("operator re-triggered %s step", step),
		Context:     payload,
	})
	if err != nil {
		log.Printf("[pipeline.Service] audit append failed (rerun %s lead=%s): %v", step, leadID, err)
	}
}

// LeadView is a lead together with its derived pipeline stage and child
// records.
type LeadView struct {
	Lead     domain.Lead            `json:"lead"`
	Stage    domain.PipelineStage   `json:"stage"`
	Research *domain.ResearchRecord `json:"research,omitempty"`
	Sequence *domain.EmailSequence  `json:"sequence,omitempty"`
}

// GetLead fetches a lead and recomputes its stage from child records. The
// stage is never persisted; deriving it here keeps a second source of
// truth from existing at all.
func (s *Service) GetLead(ctx context.Context, tenantID, leadID string) (*LeadView, error) {
	lead, err := s.repo.GetLead(ctx, tenantID, leadID)
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	if lead == nil {
		return nil, ErrLeadNotFound
	}

	research, err := s.repo.GetResearch(ctx, tenantID, leadID)
	if err != nil {
		return nil, fmt.Errorf("get research: %w", err)
	}
	seq, err := s.repo.GetSequenceByLead(ctx, tenantID, leadID)
	if err != nil {
		return nil, fmt.Errorf("get sequence: %w", err)
	}

	return &LeadView{
		Lead:     *lead,
		Stage:    domain.StageOf(research, seq),
		Research: research,
		Sequence: seq,
	}, nil
}
