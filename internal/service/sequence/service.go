package sequence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/ignite/prospect-pipeline/internal/domain"
	"github.com/ignite/prospect-pipeline/internal/events"
)

// Service implements sequence content mutation with the lifecycle guard.
// Concurrent updates during the editable window race last-writer-wins;
// that is accepted, the guard only promises frozen content after deploy.
type Service struct {
	repo  Repository
	bus   events.Bus
	audit AuditLogger
}

// NewService creates a sequence service. bus and audit may be nil; without
// a bus, MarkReady updates status but emits no deployment trigger.
func NewService(repo Repository, bus events.Bus, audit AuditLogger) *Service {
	return &Service{repo: repo, bus: bus, audit: audit}
}

// Get returns a sequence. Returns ErrNotFound if it does not exist.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*domain.EmailSequence, error) {
	seq, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("get sequence: %w", err)
	}
	if seq == nil {
		return nil, ErrNotFound
	}
	return seq, nil
}

// UpdateContent applies a partial thread update.
//
// An update with neither thread present is rejected: a no-op request
// signals caller intent mismatch, not success. Updates against deployed or
// completed sequences are rejected regardless of payload. On success a
// memory entry tagging the changed threads is appended best-effort; an
// audit failure never rolls back the content write.
func (s *Service) UpdateContent(ctx context.Context, tenantID, id string, in UpdateInput) error {
	if !in.Thread1.Present && !in.Thread2.Present {
		return ErrNoFields
	}

	seq, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return fmt.Errorf("get sequence: %w", err)
	}
	if seq == nil {
		return ErrNotFound
	}
	if !seq.Editable() {
		return ErrSequenceLocked
	}

	if err := s.repo.UpdateThreads(ctx, tenantID, id, in); err != nil {
		return err
	}

	s.logEdit(ctx, seq, in)
	return nil
}

// MarkReady transitions a drafting sequence to ready on operator request.
func (s *Service) MarkReady(ctx context.Context, tenantID, id string) error {
	seq, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return fmt.Errorf("get sequence: %w", err)
	}
	if seq == nil {
		return ErrNotFound
	}
	if !domain.CanTransition(seq.Status, domain.SequenceReady) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, seq.Status, domain.SequenceReady)
	}

	if err := s.repo.UpdateStatus(ctx, tenantID, id, seq.Status, domain.SequenceReady); err != nil {
		return err
	}

	// Status write is durable; now notify deployment. Write-then-notify,
	// never the other way around.
	if s.bus != nil {
		err := s.bus.Publish(ctx, events.LeadSequenceReady, events.SequenceReady{
			LeadID:     seq.LeadID,
			TenantID:   tenantID,
			SequenceID: seq.ID,
		})
		if err != nil {
			return fmt.Errorf("publish sequence-ready: %w", err)
		}
	}

	if s.audit != nil {
		err := s.audit.Append(ctx, domain.MemoryEntry{
			LeadID:      seq.LeadID,
			TenantID:    tenantID,
			EventType:   domain.MemorySequenceReady,
			Description: "operator marked sequence ready for deployment",
		})
		if err != nil {
			log.Printf("[sequence.Service] audit append failed (mark ready seq=%s): %v", id, err)
		}
	}
	return nil
}

func (s *Service) logEdit(ctx context.Context, seq *domain.EmailSequence, in UpdateInput) {
	if s.audit == nil {
		return
	}

	var changed []string
	if in.Thread1.Present {
		changed = append(changed, "thread_1")
	}
	if in.Thread2.Present {
		changed = append(changed, "thread_2")
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"sequence_id":     seq.ID,
		"threads_changed": changed,
	})
	err := s.audit.Append(ctx, domain.MemoryEntry{
		LeadID:      seq.LeadID,
		TenantID:    seq.TenantID,
		EventType:   domain.MemorySequenceEdited,
		Description: fmt.Sprintf("sequence content edited (%s)", strings.Join(changed, ", ")),
		Context:     payload,
	})
	if err != nil {
		log.Printf("[sequence.Service] audit append failed (edit seq=%s): %v", seq.ID, err)
	}
}
