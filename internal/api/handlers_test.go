package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ignite/prospect-pipeline/internal/domain"
	"github.com/ignite/prospect-pipeline/internal/service/pipeline"
	"github.com/ignite/prospect-pipeline/internal/service/sequence"
)

type fakePipelineRepo struct {
	leads    map[string]*domain.Lead
	research map[string]*domain.ResearchRecord
	seqs     map[string]*domain.EmailSequence
}

func (f *fakePipelineRepo) GetLead(_ context.Context, _, id string) (*domain.Lead, error) {
	return f.leads[id], nil
}

func (f *fakePipelineRepo) GetResearch(_ context.Context, _, id string) (*domain.ResearchRecord, error) {
	return f.research[id], nil
}

func (f *fakePipelineRepo) GetSequenceByLead(_ context.Context, _, id string) (*domain.EmailSequence, error) {
	return f.seqs[id], nil
}

type fakeSequenceRepo struct {
	seqs map[string]*domain.EmailSequence
}

func (f *fakeSequenceRepo) Get(_ context.Context, _, id string) (*domain.EmailSequence, error) {
	return f.seqs[id], nil
}

func (f *fakeSequenceRepo) UpdateThreads(_ context.Context, _, id string, in sequence.UpdateInput) error {
	seq := f.seqs[id]
	if in.Thread1.Present {
		seq.Thread1 = in.Thread1.Value
	}
	if in.Thread2.Present {
		seq.Thread2 = in.Thread2.Value
	}
	return nil
}

func (f *fakeSequenceRepo) UpdateStatus(_ context.Context, _, id string, _, to domain.SequenceStatus) error {
	f.seqs[id].Status = to
	return nil
}

type nopBus struct{}

func (nopBus) Publish(context.Context, string, interface{}) error { return nil }

func testServer(t *testing.T) (http.Handler, *fakePipelineRepo, *fakeSequenceRepo) {
	t.Helper()

	plRepo := &fakePipelineRepo{
		leads: map[string]*domain.Lead{
			"lead-1": {ID: "lead-1", TenantID: "tenant-1", FirstName: "Jo", Email: "jo@example.com"},
		},
		research: map[string]*domain.ResearchRecord{},
		seqs:     map[string]*domain.EmailSequence{},
	}
	seqRepo := &fakeSequenceRepo{
		seqs: map[string]*domain.EmailSequence{
			"seq-1": {ID: "seq-1", LeadID: "lead-1", TenantID: "tenant-1", Status: domain.SequenceDrafting},
		},
	}

	handlers := NewHandlers(
		pipeline.NewService(plRepo, nopBus{}, nil),
		sequence.NewService(seqRepo, nopBus{}, nil),
		nil, nil, nil,
	)
	return SetupRoutes(handlers, nil, true), plRepo, seqRepo
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Tenant-ID", "tenant-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetLeadEndpoint(t *testing.T) {
	h, _, _ := testServer(t)

	rec := doRequest(t, h, http.MethodGet, "/api/leads/lead-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var view pipeline.LeadView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.Stage != domain.StagePendingResearch {
		t.Errorf("stage = %s", view.Stage)
	}
}

func TestGetLeadNotFound(t *testing.T) {
	h, _, _ := testServer(t)
	rec := doRequest(t, h, http.MethodGet, "/api/leads/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRerunEndpoint(t *testing.T) {
	h, _, _ := testServer(t)

	rec := doRequest(t, h, http.MethodPost, "/api/leads/lead-1/rerun", `{"step":"research"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"triggered"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRerunUnknownStep(t *testing.T) {
	h, _, _ := testServer(t)
	rec := doRequest(t, h, http.MethodPost, "/api/leads/lead-1/rerun", `{"step":"deploy"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRerunSequenceWithoutResearch(t *testing.T) {
	h, _, _ := testServer(t)
	rec := doRequest(t, h, http.MethodPost, "/api/leads/lead-1/rerun", `{"step":"sequence"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateSequenceContent(t *testing.T) {
	h, _, seqRepo := testServer(t)

	body := `{"thread1": {"subject": "intro", "emails": [{"subject": "intro", "body": "hi"}]}}`
	rec := doRequest(t, h, http.MethodPut, "/api/sequences/seq-1/content", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !out.Success {
		t.Errorf("body = %s, want success field true", rec.Body.String())
	}
	if seqRepo.seqs["seq-1"].Thread1 == nil {
		t.Error("thread_1 not written")
	}
}

func TestUpdateSequenceContentNullClears(t *testing.T) {
	h, _, seqRepo := testServer(t)
	seqRepo.seqs["seq-1"].Thread1 = &domain.Thread{Subject: "old"}

	rec := doRequest(t, h, http.MethodPut, "/api/sequences/seq-1/content", `{"thread1": null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if seqRepo.seqs["seq-1"].Thread1 != nil {
		t.Error("explicit null did not clear thread_1")
	}
}

func TestUpdateSequenceContentEmptyBody(t *testing.T) {
	h, _, _ := testServer(t)
	rec := doRequest(t, h, http.MethodPut, "/api/sequences/seq-1/content", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUpdateSequenceContentFrozen(t *testing.T) {
	h, _, seqRepo := testServer(t)
	seqRepo.seqs["seq-1"].Status = domain.SequenceDeployed

	rec := doRequest(t, h, http.MethodPut, "/api/sequences/seq-1/content", `{"thread1": null}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestMarkSequenceReadyEndpoint(t *testing.T) {
	h, _, seqRepo := testServer(t)

	rec := doRequest(t, h, http.MethodPost, "/api/sequences/seq-1/ready", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if seqRepo.seqs["seq-1"].Status != domain.SequenceReady {
		t.Errorf("status = %s", seqRepo.seqs["seq-1"].Status)
	}

	// Marking ready twice is an invalid transition.
	rec = doRequest(t, h, http.MethodPost, "/api/sequences/seq-1/ready", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second mark-ready status = %d", rec.Code)
	}
}

func TestMissingTenantRejectedInProduction(t *testing.T) {
	plRepo := &fakePipelineRepo{leads: map[string]*domain.Lead{}}
	seqRepo := &fakeSequenceRepo{seqs: map[string]*domain.EmailSequence{}}
	handlers := NewHandlers(
		pipeline.NewService(plRepo, nopBus{}, nil),
		sequence.NewService(seqRepo, nopBus{}, nil),
		nil, nil, nil,
	)
	h := SetupRoutes(handlers, nil, false) // production mode

	req := httptest.NewRequest(http.MethodGet, "/api/leads/lead-1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHealthWithoutChecker(t *testing.T) {
	h, _, _ := testServer(t)
	rec := doRequest(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
