package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/prospect-pipeline/internal/domain"
	"github.com/ignite/prospect-pipeline/internal/pkg/httputil"
	"github.com/ignite/prospect-pipeline/internal/service/pipeline"
	"github.com/ignite/prospect-pipeline/internal/service/sequence"
)

// MemoryLister reads a lead's memory feed.
type MemoryLister interface {
	ListByLead(ctx context.Context, tenantID, leadID string, limit int) ([]domain.MemoryEntry, error)
}

// BrandLister lists the brands a user can act in.
type BrandLister interface {
	ListForUser(ctx context.Context, userID string) ([]domain.Brand, error)
}

// SettingsStore reads and writes per-tenant settings.
type SettingsStore interface {
	Get(ctx context.Context, tenantID string) (*domain.TenantSettings, error)
	Upsert(ctx context.Context, s *domain.TenantSettings) error
}

// Handlers bundles the services behind the HTTP surface.
type Handlers struct {
	pipeline  *pipeline.Service
	sequences *sequence.Service
	memory    MemoryLister
	brands    BrandLister
	settings  SettingsStore
}

// NewHandlers wires the handler set. memory, brands, and settings may be
// nil; their routes then answer 404.
func NewHandlers(pl *pipeline.Service, seq *sequence.Service, memory MemoryLister, brands BrandLister, settings SettingsStore) *Handlers {
	return &Handlers{pipeline: pl, sequences: seq, memory: memory, brands: brands, settings: settings}
}

// GetLead returns a lead with its derived stage and child records.
//
//	GET /api/leads/{id}
func (h *Handlers) GetLead(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())
	leadID := chi.URLParam(r, "id")

	view, err := h.pipeline.GetLead(r.Context(), tenant, leadID)
	if errors.Is(err, pipeline.ErrLeadNotFound) {
		httputil.NotFound(w, "lead not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, view)
}

type rerunRequest struct {
	Step string `json:"step"`
}

// RerunStep re-triggers a pipeline step for a lead.
//
//	POST /api/leads/{id}/rerun
func (h *Handlers) RerunStep(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())
	leadID := chi.URLParam(r, "id")

	var req rerunRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	result, err := h.pipeline.Rerun(r.Context(), tenant, leadID, pipeline.Step(req.Step))
	switch {
	case errors.Is(err, pipeline.ErrLeadNotFound):
		httputil.NotFound(w, "lead not found")
	case errors.Is(err, pipeline.ErrResearchMissing), errors.Is(err, pipeline.ErrUnknownStep):
		httputil.BadRequest(w, err.Error())
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, result)
	}
}

// GetSequence returns a sequence by id.
//
//	GET /api/sequences/{id}
func (h *Handlers) GetSequence(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())
	id := chi.URLParam(r, "id")

	seq, err := h.sequences.Get(r.Context(), tenant, id)
	if errors.Is(err, sequence.ErrNotFound) {
		httputil.NotFound(w, "sequence not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, seq)
}

// UpdateSequenceContent applies a partial thread update to a sequence.
// Absent fields stay untouched; an explicit null clears the thread.
//
//	PUT /api/sequences/{id}/content
func (h *Handlers) UpdateSequenceContent(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var in sequence.UpdateInput
	if !httputil.Decode(w, r, &in) {
		return
	}

	err := h.sequences.UpdateContent(r.Context(), tenant, id, in)
	switch {
	case errors.Is(err, sequence.ErrNotFound):
		httputil.NotFound(w, "sequence not found")
	case errors.Is(err, sequence.ErrNoFields), errors.Is(err, sequence.ErrSequenceLocked):
		httputil.BadRequest(w, err.Error())
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, map[string]bool{"success": true})
	}
}

// MarkSequenceReady promotes a drafting sequence to ready.
//
//	POST /api/sequences/{id}/ready
func (h *Handlers) MarkSequenceReady(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())
	id := chi.URLParam(r, "id")

	err := h.sequences.MarkReady(r.Context(), tenant, id)
	switch {
	case errors.Is(err, sequence.ErrNotFound):
		httputil.NotFound(w, "sequence not found")
	case errors.Is(err, sequence.ErrInvalidTransition):
		httputil.BadRequest(w, err.Error())
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, map[string]string{"status": "ready"})
	}
}

// GetLeadMemory returns a lead's memory feed, newest first.
//
//	GET /api/leads/{id}/memory?limit=N
func (h *Handlers) GetLeadMemory(w http.ResponseWriter, r *http.Request) {
	if h.memory == nil {
		httputil.NotFound(w, "memory feed not configured")
		return
	}
	tenant := TenantFromContext(r.Context())
	leadID := chi.URLParam(r, "id")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.memory.ListByLead(r.Context(), tenant, leadID, limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.MemoryEntry{}
	}
	httputil.OK(w, map[string]interface{}{"entries": entries})
}

// ListBrands returns the caller's brands. The user comes from the
// X-User-ID header until a real auth layer fronts this service.
//
//	GET /api/brands
func (h *Handlers) ListBrands(w http.ResponseWriter, r *http.Request) {
	if h.brands == nil {
		httputil.NotFound(w, "brands not configured")
		return
	}
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		httputil.Error(w, http.StatusUnauthorized, "missing user")
		return
	}

	brands, err := h.brands.ListForUser(r.Context(), userID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if brands == nil {
		brands = []domain.Brand{}
	}
	httputil.OK(w, map[string]interface{}{"brands": brands})
}

// GetSettings returns the tenant's settings.
//
//	GET /api/settings
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		httputil.NotFound(w, "settings not configured")
		return
	}
	tenant := TenantFromContext(r.Context())

	s, err := h.settings.Get(r.Context(), tenant)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, s)
}

// UpdateSettings writes the tenant's settings.
//
//	POST /api/settings
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		httputil.NotFound(w, "settings not configured")
		return
	}
	tenant := TenantFromContext(r.Context())

	var s domain.TenantSettings
	if !httputil.Decode(w, r, &s) {
		return
	}
	s.TenantID = tenant

	if err := h.settings.Upsert(r.Context(), &s); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "saved"})
}
