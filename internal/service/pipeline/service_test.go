package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/ignite/prospect-pipeline/internal/domain"
	"github.com/ignite/prospect-pipeline/internal/events"
)

type fakeRepo struct {
	leads    map[string]*domain.Lead
	research map[string]*domain.ResearchRecord
	seqs     map[string]*domain.EmailSequence
	err      error
}

func (f *fakeRepo) GetLead(_ context.Context, _, leadID string) (*domain.Lead, error) {
	return f.leads[leadID], f.err
}

func (f *fakeRepo) GetResearch(_ context.Context, _, leadID string) (*domain.ResearchRecord, error) {
	return f.research[leadID], f.err
}

func (f *fakeRepo) GetSequenceByLead(_ context.Context, _, leadID string) (*domain.EmailSequence, error) {
	return f.seqs[leadID], f.err
}

type published struct {
	name    string
	payload interface{}
}

type fakeBus struct {
	events []published
	err    error
}

func (f *fakeBus) Publish(_ context.Context, name string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, published{name, payload})
	return nil
}

type fakeAudit struct {
	entries []domain.MemoryEntry
	err     error
}

func (f *fakeAudit) Append(_ context.Context, e domain.MemoryEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func newTestLead() *domain.Lead {
	return &domain.Lead{
		ID:       "lead-1",
		TenantID: "tenant-1",
		Email:    "jo@example.com",
		Qualification: domain.Qualification{
			Decision:   domain.DecisionNo,
			Reasoning:  "automated: poor fit",
			Confidence: 20,
		},
	}
}

func TestRerunResearch(t *testing.T) {
	repo := &fakeRepo{leads: map[string]*domain.Lead{"lead-1": newTestLead()}}
	bus := &fakeBus{}
	audit := &fakeAudit{}
	svc := NewService(repo, bus, audit)

	result, err := svc.Rerun(context.Background(), "tenant-1", "lead-1", StepResearch)
	if err != nil {
		t.Fatalf("Rerun: %v", err)
	}
	if result.Status != "triggered" || result.Step != StepResearch {
		t.Errorf("result = %+v", result)
	}

	if len(bus.events) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.events))
	}
	if bus.events[0].name != events.LeadReadyForDeployment {
		t.Errorf("event name = %s", bus.events[0].name)
	}
	payload := bus.events[0].payload.(events.ReadyForDeployment)
	// A manual re-run overrides the stored (NO) qualification.
	if payload.Qualification != domain.ManualQualification() {
		t.Errorf("qualification = %+v, want manual", payload.Qualification)
	}

	if len(audit.entries) != 1 || audit.entries[0].EventType != domain.MemoryRerunTriggered {
		t.Errorf("audit entries = %+v", audit.entries)
	}
}

func TestRerunResearchLeadNotFound(t *testing.T) {
	svc := NewService(&fakeRepo{}, &fakeBus{}, nil)

	_, err := svc.Rerun(context.Background(), "tenant-1", "ghost", StepResearch)
	if !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("err = %v, want ErrLeadNotFound", err)
	}
}

func TestRerunSequence(t *testing.T) {
	repo := &fakeRepo{
		research: map[string]*domain.ResearchRecord{
			"lead-1": {
				LeadID:   "lead-1",
				TenantID: "tenant-1",
				Signals: domain.ExtractedSignals{
					PersonaMatch:    "vp-sales",
					Triggers:        []string{"a", "b", "c", "d", "e"},
					MessagingAngles: []string{"roi"},
				},
			},
		},
	}
	bus := &fakeBus{}
	svc := NewService(repo, bus, nil)

	if _, err := svc.Rerun(context.Background(), "tenant-1", "lead-1", StepSequence); err != nil {
		t.Fatalf("Rerun: %v", err)
	}

	if len(bus.events) != 1 || bus.events[0].name != events.LeadResearchComplete {
		t.Fatalf("events = %+v", bus.events)
	}
	payload := bus.events[0].payload.(events.ResearchComplete)
	if len(payload.TopTriggers) != domain.MaxTopTriggers {
		t.Errorf("top triggers = %v, want truncated to %d", payload.TopTriggers, domain.MaxTopTriggers)
	}
	if payload.Qualification != domain.ManualQualification() {
		t.Errorf("qualification = %+v, want manual", payload.Qualification)
	}
}

func TestRerunSequenceWithoutResearch(t *testing.T) {
	bus := &fakeBus{}
	svc := NewService(&fakeRepo{}, bus, nil)

	_, err := svc.Rerun(context.Background(), "tenant-1", "lead-1", StepSequence)
	if !errors.Is(err, ErrResearchMissing) {
		t.Fatalf("err = %v, want ErrResearchMissing", err)
	}
	if len(bus.events) != 0 {
		t.Errorf("published %d events, want none", len(bus.events))
	}
}

func TestRerunUnknownStep(t *testing.T) {
	svc := NewService(&fakeRepo{}, &fakeBus{}, nil)

	_, err := svc.Rerun(context.Background(), "tenant-1", "lead-1", Step("deploy"))
	if !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("err = %v, want ErrUnknownStep", err)
	}
}

func TestRerunAuditFailureDoesNotFail(t *testing.T) {
	repo := &fakeRepo{leads: map[string]*domain.Lead{"lead-1": newTestLead()}}
	svc := NewService(repo, &fakeBus{}, &fakeAudit{err: errors.New("memory store down")})

	result, err := svc.Rerun(context.Background(), "tenant-1", "lead-1", StepResearch)
	if err != nil {
		t.Fatalf("Rerun: %v", err)
	}
	if result.Status != "triggered" {
		t.Errorf("result = %+v", result)
	}
}

func TestRerunPublishFailure(t *testing.T) {
	repo := &fakeRepo{leads: map[string]*domain.Lead{"lead-1": newTestLead()}}
	svc := NewService(repo, &fakeBus{err: errors.New("queue unreachable")}, nil)

	if _, err := svc.Rerun(context.Background(), "tenant-1", "lead-1", StepResearch); err == nil {
		t.Fatal("expected error when publish fails")
	}
}

func TestGetLeadDerivesStage(t *testing.T) {
	lead := newTestLead()
	repo := &fakeRepo{
		leads:    map[string]*domain.Lead{"lead-1": lead},
		research: map[string]*domain.ResearchRecord{"lead-1": {LeadID: "lead-1"}},
		seqs: map[string]*domain.EmailSequence{
			"lead-1": {LeadID: "lead-1", Status: domain.SequenceDeployed},
		},
	}
	svc := NewService(repo, &fakeBus{}, nil)

	view, err := svc.GetLead(context.Background(), "tenant-1", "lead-1")
	if err != nil {
		t.Fatalf("GetLead: %v", err)
	}
	if view.Stage != domain.StageDeployed {
		t.Errorf("stage = %s, want %s", view.Stage, domain.StageDeployed)
	}
	if view.Research == nil || view.Sequence == nil {
		t.Error("child records missing from view")
	}
}

func TestGetLeadNotFound(t *testing.T) {
	svc := NewService(&fakeRepo{}, &fakeBus{}, nil)
	if _, err := svc.GetLead(context.Background(), "tenant-1", "ghost"); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("err = %v, want ErrLeadNotFound", err)
	}
}
