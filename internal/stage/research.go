package stage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ignite/prospect-pipeline/internal/domain"
	"github.com/ignite/prospect-pipeline/internal/events"
	"github.com/ignite/prospect-pipeline/internal/generation"
	"github.com/ignite/prospect-pipeline/internal/pkg/logger"
)

// AuditLogger appends memory entries; stages treat appends as best-effort.
type AuditLogger interface {
	Append(ctx context.Context, entry domain.MemoryEntry) error
}

// ResearchStore is the record-store surface the research stage needs.
type ResearchStore interface {
	GetLead(ctx context.Context, tenantID, leadID string) (*domain.Lead, error)
	UpsertResearch(ctx context.Context, rec *domain.ResearchRecord) (string, error)
}

// ResearchStage consumes lead.ready-for-deployment: it extracts signals
// for the lead, persists the research record, and emits
// lead.research-complete. Safe to run twice for the same lead; the write
// is an upsert.
type ResearchStage struct {
	store ResearchStore
	gen   generation.Generator
	bus   events.Bus
	audit AuditLogger
}

// NewResearchStage wires the stage. audit may be nil.
func NewResearchStage(store ResearchStore, gen generation.Generator, bus events.Bus, audit AuditLogger) *ResearchStage {
	return &ResearchStage{store: store, gen: gen, bus: bus, audit: audit}
}

// Handle is the events.Handler for lead.ready-for-deployment.
func (s *ResearchStage) Handle(ctx context.Context, payload json.RawMessage) error {
	var evt events.ReadyForDeployment
	if err := json.Unmarshal(payload, &evt); err != nil {
		logger.Warn("research stage dropping bad payload", "error", err)
		return nil
	}

	lead, err := s.store.GetLead(ctx, evt.TenantID, evt.LeadID)
	if err != nil {
		return fmt.Errorf("research: get lead: %w", err)
	}
	if lead == nil {
		// Leads are never deleted, so absence means the event referenced
		// something that never existed. Retrying cannot help.
		logger.Warn("research stage dropping event for unknown lead", "lead_id", evt.LeadID)
		return nil
	}

	signals, err := s.gen.ExtractSignals(ctx, lead)
	if err != nil {
		return fmt.Errorf("research: extract signals for lead %s: %w", evt.LeadID, err)
	}

	rec := &domain.ResearchRecord{
		LeadID:   lead.ID,
		TenantID: lead.TenantID,
		Signals:  signals,
	}
	if _, err := s.store.UpsertResearch(ctx, rec); err != nil {
		return fmt.Errorf("research: persist record for lead %s: %w", evt.LeadID, err)
	}

	// Record is durable; only now notify sequencing. The emitter owns
	// truncation of top_triggers.
	err = s.bus.Publish(ctx, events.LeadResearchComplete, events.ResearchComplete{
		LeadID:          lead.ID,
		TenantID:        lead.TenantID,
		PersonaMatch:    signals.PersonaMatch,
		TopTriggers:     signals.TopTriggers(),
		MessagingAngles: signals.MessagingAngles,
		Qualification:   evt.Qualification,
	})
	if err != nil {
		// The record is already written; redelivery will overwrite it and
		// publish again. That is the cost of write-then-notify.
		return fmt.Errorf("research: publish research-complete for lead %s: %w", evt.LeadID, err)
	}

	s.logCompletion(ctx, lead, len(signals.Triggers))
	return nil
}

func (s *ResearchStage) logCompletion(ctx context.Context, lead *domain.Lead, triggerCount int) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]int{"trigger_count": triggerCount})
	err := s.audit.Append(ctx, domain.MemoryEntry{
		LeadID:      lead.ID,
		TenantID:    lead.TenantID,
		EventType:   domain.MemoryResearchCompleted,
		Description: "research stage wrote extracted signals",
		Context:     payload,
	})
	if err != nil {
		logger.Error("research stage audit append failed", "lead_id", lead.ID, "error", err)
	}
}
