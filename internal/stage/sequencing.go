package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ignite/prospect-pipeline/internal/domain"
	"github.com/ignite/prospect-pipeline/internal/events"
	"github.com/ignite/prospect-pipeline/internal/generation"
	"github.com/ignite/prospect-pipeline/internal/pkg/logger"
	"github.com/ignite/prospect-pipeline/internal/service/sequence"
	"github.com/ignite/prospect-pipeline/internal/templates"
)

// SequencingStore is the record-store surface the sequencing stage needs.
type SequencingStore interface {
	GetLead(ctx context.Context, tenantID, leadID string) (*domain.Lead, error)
	GetResearch(ctx context.Context, tenantID, leadID string) (*domain.ResearchRecord, error)
	UpsertSequenceDraft(ctx context.Context, seq *domain.EmailSequence) (bool, error)
	UpdateSequenceStatus(ctx context.Context, tenantID, id string, from, to domain.SequenceStatus) error
}

// SequencingStage consumes lead.research-complete: it drafts the two
// message threads from the event's signals, renders them against the lead,
// and upserts the sequence. When both threads come back complete it moves
// the sequence to ready and emits lead.sequence-ready.
type SequencingStage struct {
	store    SequencingStore
	gen      generation.Generator
	renderer *templates.Renderer
	bus      events.Bus
	audit    AuditLogger
}

// NewSequencingStage wires the stage. audit may be nil.
func NewSequencingStage(store SequencingStore, gen generation.Generator, renderer *templates.Renderer, bus events.Bus, audit AuditLogger) *SequencingStage {
	if renderer == nil {
		renderer = templates.NewRenderer()
	}
	return &SequencingStage{store: store, gen: gen, renderer: renderer, bus: bus, audit: audit}
}

// Handle is the events.Handler for lead.research-complete.
func (s *SequencingStage) Handle(ctx context.Context, payload json.RawMessage) error {
	var evt events.ResearchComplete
	if err := json.Unmarshal(payload, &evt); err != nil {
		logger.Warn("sequencing stage dropping bad payload", "error", err)
		return nil
	}

	// The bus guarantees no ordering across event kinds, so the research
	// record's presence is re-validated here. Running over a lead with no
	// record fails; this stage never fabricates signals.
	research, err := s.store.GetResearch(ctx, evt.TenantID, evt.LeadID)
	if err != nil {
		return fmt.Errorf("sequencing: get research: %w", err)
	}
	if research == nil {
		return fmt.Errorf("sequencing: lead %s has no research record", evt.LeadID)
	}

	lead, err := s.store.GetLead(ctx, evt.TenantID, evt.LeadID)
	if err != nil {
		return fmt.Errorf("sequencing: get lead: %w", err)
	}
	if lead == nil {
		logger.Warn("sequencing stage dropping event for unknown lead", "lead_id", evt.LeadID)
		return nil
	}

	// Work from the event payload, not the re-fetched record: payloads
	// are self-contained and the record may already reflect a newer run.
	t1, t2, err := s.gen.WriteSequence(ctx, lead, generation.SequenceInput{
		PersonaMatch:    evt.PersonaMatch,
		TopTriggers:     evt.TopTriggers,
		MessagingAngles: evt.MessagingAngles,
	})
	if err != nil {
		return fmt.Errorf("sequencing: write sequence for lead %s: %w", evt.LeadID, err)
	}

	bindings := templates.LeadBindings(lead)
	if t1, err = s.renderer.RenderThread(t1, bindings); err != nil {
		return fmt.Errorf("sequencing: render thread_1 for lead %s: %w", evt.LeadID, err)
	}
	if t2, err = s.renderer.RenderThread(t2, bindings); err != nil {
		return fmt.Errorf("sequencing: render thread_2 for lead %s: %w", evt.LeadID, err)
	}

	seq := &domain.EmailSequence{
		LeadID:   lead.ID,
		TenantID: lead.TenantID,
		Thread1:  t1,
		Thread2:  t2,
	}
	written, err := s.store.UpsertSequenceDraft(ctx, seq)
	if err != nil {
		return fmt.Errorf("sequencing: persist drafts for lead %s: %w", evt.LeadID, err)
	}
	if !written {
		// The stored sequence is deployed or completed; regenerating its
		// content is forbidden and redelivery cannot change that.
		logger.Info("sequencing stage dropping regeneration for frozen sequence", "lead_id", evt.LeadID)
		return nil
	}

	if complete(t1) && complete(t2) {
		if err := s.promoteToReady(ctx, seq); err != nil {
			return err
		}
	}

	s.logDrafts(ctx, lead, seq)
	return nil
}

func (s *SequencingStage) promoteToReady(ctx context.Context, seq *domain.EmailSequence) error {
	err := s.store.UpdateSequenceStatus(ctx, seq.TenantID, seq.ID, domain.SequenceDrafting, domain.SequenceReady)
	if errors.Is(err, sequence.ErrInvalidTransition) {
		// Already past drafting (an earlier run or an operator promoted
		// it); that run's sequence-ready event is the one that counts.
		return nil
	}
	if err != nil {
		return fmt.Errorf("sequencing: promote sequence %s: %w", seq.ID, err)
	}

	err = s.bus.Publish(ctx, events.LeadSequenceReady, events.SequenceReady{
		LeadID:     seq.LeadID,
		TenantID:   seq.TenantID,
		SequenceID: seq.ID,
	})
	if err != nil {
		return fmt.Errorf("sequencing: publish sequence-ready for %s: %w", seq.ID, err)
	}
	return nil
}

func complete(t *domain.Thread) bool {
	return t != nil && len(t.Emails) > 0
}

func (s *SequencingStage) logDrafts(ctx context.Context, lead *domain.Lead, seq *domain.EmailSequence) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"sequence_id": seq.ID,
		"thread_1":    seq.Thread1 != nil,
		"thread_2":    seq.Thread2 != nil,
	})
	err := s.audit.Append(ctx, domain.MemoryEntry{
		LeadID:      lead.ID,
		TenantID:    lead.TenantID,
		EventType:   "sequence_drafted",
		Description: "sequencing stage wrote message drafts",
		Context:     payload,
	})
	if err != nil {
		logger.Error("sequencing stage audit append failed", "lead_id", lead.ID, "error", err)
	}
}
