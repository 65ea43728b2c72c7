package sequence

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ignite/prospect-pipeline/internal/domain"
	"github.com/ignite/prospect-pipeline/internal/events"
)

type fakeRepo struct {
	seq        *domain.EmailSequence
	lastUpdate *UpdateInput
	statusFrom domain.SequenceStatus
	statusTo   domain.SequenceStatus
	updateErr  error
	statusErr  error
}

func (f *fakeRepo) Get(context.Context, string, string) (*domain.EmailSequence, error) {
	return f.seq, nil
}

func (f *fakeRepo) UpdateThreads(_ context.Context, _, _ string, in UpdateInput) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.lastUpdate = &in
	return nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, _, _ string, from, to domain.SequenceStatus) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statusFrom, f.statusTo = from, to
	return nil
}

type fakeBus struct {
	names    []string
	payloads []interface{}
	err      error
}

func (f *fakeBus) Publish(_ context.Context, name string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.names = append(f.names, name)
	f.payloads = append(f.payloads, payload)
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

func draftingSeq() *domain.EmailSequence {
	return &domain.EmailSequence{
		ID:       "seq-1",
		LeadID:   "lead-1",
		TenantID: "tenant-1",
		Status:   domain.SequenceDrafting,
		Thread1:  &domain.Thread{Subject: "hi", Emails: []domain.Email{{Subject: "hi", Body: "hello"}}},
	}
}

func TestUpdateContentPartial(t *testing.T) {
	repo := &fakeRepo{seq: draftingSeq()}
	audit := &fakeAudit{}
	svc := NewService(repo, nil, audit)

	var in UpdateInput
	if err := json.Unmarshal([]byte(`{"thread2": {"subject": "follow up", "emails": []}}`), &in); err != nil {
		t.Fatal(err)
	}

	if err := svc.UpdateContent(context.Background(), "tenant-1", "seq-1", in); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}

	// Absent thread1 must stay untouched; present thread2 carries a value.
	if repo.lastUpdate.Thread1.Present {
		t.Error("thread1 marked present on an absent field")
	}
	if !repo.lastUpdate.Thread2.Present || repo.lastUpdate.Thread2.Value == nil {
		t.Errorf("thread2 = %+v, want present with value", repo.lastUpdate.Thread2)
	}

	if len(audit.entries) != 1 || audit.entries[0].EventType != domain.MemorySequenceEdited {
		t.Errorf("audit entries = %+v", audit.entries)
	}
}

func TestUpdateContentExplicitNullClears(t *testing.T) {
	repo := &fakeRepo{seq: draftingSeq()}
	svc := NewService(repo, nil, nil)

	var in UpdateInput
	if err := json.Unmarshal([]byte(`{"thread1": null}`), &in); err != nil {
		t.Fatal(err)
	}

	if err := svc.UpdateContent(context.Background(), "tenant-1", "seq-1", in); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	if !repo.lastUpdate.Thread1.Present || repo.lastUpdate.Thread1.Value != nil {
		t.Errorf("thread1 = %+v, want present with nil value (clear)", repo.lastUpdate.Thread1)
	}
}

func TestUpdateContentNoFields(t *testing.T) {
	svc := NewService(&fakeRepo{seq: draftingSeq()}, nil, nil)

	err := svc.UpdateContent(context.Background(), "tenant-1", "seq-1", UpdateInput{})
	if !errors.Is(err, ErrNoFields) {
		t.Fatalf("err = %v, want ErrNoFields", err)
	}
}

func TestUpdateContentNotFound(t *testing.T) {
	svc := NewService(&fakeRepo{}, nil, nil)

	var in UpdateInput
	json.Unmarshal([]byte(`{"thread1": null}`), &in)
	if err := svc.UpdateContent(context.Background(), "tenant-1", "ghost", in); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateContentFrozen(t *testing.T) {
	for _, status := range []domain.SequenceStatus{domain.SequenceDeployed, domain.SequenceCompleted} {
		seq := draftingSeq()
		seq.Status = status
		repo := &fakeRepo{seq: seq}
		svc := NewService(repo, nil, nil)

		var in UpdateInput
		json.Unmarshal([]byte(`{"thread1": null}`), &in)
		if err := svc.UpdateContent(context.Background(), "tenant-1", "seq-1", in); !errors.Is(err, ErrSequenceLocked) {
			t.Errorf("status %s: err = %v, want ErrSequenceLocked", status, err)
		}
		if repo.lastUpdate != nil {
			t.Errorf("status %s: repo write happened on a frozen sequence", status)
		}
	}
}

func TestUpdateContentAuditFailureDoesNotRollBack(t *testing.T) {
	repo := &fakeRepo{seq: draftingSeq()}
	svc := NewService(repo, nil, &fakeAudit{err: errors.New("memory store down")})

	var in UpdateInput
	json.Unmarshal([]byte(`{"thread1": null}`), &in)
	if err := svc.UpdateContent(context.Background(), "tenant-1", "seq-1", in); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	if repo.lastUpdate == nil {
		t.Error("content write did not happen")
	}
}

func TestMarkReady(t *testing.T) {
	repo := &fakeRepo{seq: draftingSeq()}
	bus := &fakeBus{}
	audit := &fakeAudit{}
	svc := NewService(repo, bus, audit)

	if err := svc.MarkReady(context.Background(), "tenant-1", "seq-1"); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	if repo.statusFrom != domain.SequenceDrafting || repo.statusTo != domain.SequenceReady {
		t.Errorf("status write %s -> %s", repo.statusFrom, repo.statusTo)
	}
	if len(bus.names) != 1 || bus.names[0] != events.LeadSequenceReady {
		t.Fatalf("published = %v", bus.names)
	}
	payload := bus.payloads[0].(events.SequenceReady)
	if payload.SequenceID != "seq-1" || payload.LeadID != "lead-1" {
		t.Errorf("payload = %+v", payload)
	}
	if len(audit.entries) != 1 || audit.entries[0].EventType != domain.MemorySequenceReady {
		t.Errorf("audit entries = %+v", audit.entries)
	}
}

func TestMarkReadyInvalidTransition(t *testing.T) {
	for _, status := range []domain.SequenceStatus{domain.SequenceReady, domain.SequenceDeployed, domain.SequenceCompleted} {
		seq := draftingSeq()
		seq.Status = status
		bus := &fakeBus{}
		svc := NewService(&fakeRepo{seq: seq}, bus, nil)

		if err := svc.MarkReady(context.Background(), "tenant-1", "seq-1"); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("status %s: err = %v, want ErrInvalidTransition", status, err)
		}
		if len(bus.names) != 0 {
			t.Errorf("status %s: published %v", status, bus.names)
		}
	}
}

func TestMarkReadyStatusWriteBeforePublish(t *testing.T) {
	// If the status write fails, nothing may reach the bus.
	repo := &fakeRepo{seq: draftingSeq(), statusErr: errors.New("db down")}
	bus := &fakeBus{}
	svc := NewService(repo, bus, nil)

	if err := svc.MarkReady(context.Background(), "tenant-1", "seq-1"); err == nil {
		t.Fatal("expected error")
	}
	if len(bus.names) != 0 {
		t.Errorf("published %v before a durable write", bus.names)
	}
}

func TestGet(t *testing.T) {
	svc := NewService(&fakeRepo{seq: draftingSeq()}, nil, nil)
	seq, err := svc.Get(context.Background(), "tenant-1", "seq-1")
	if err != nil || seq.ID != "seq-1" {
		t.Fatalf("Get = %+v, %v", seq, err)
	}

	svc = NewService(&fakeRepo{}, nil, nil)
	if _, err := svc.Get(context.Background(), "tenant-1", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
