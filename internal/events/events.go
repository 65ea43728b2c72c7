// Package events defines the pipeline's event contract and its SQS-backed
// transport. The bus delivers at-least-once with no ordering guarantee
// across event names, so every payload is self-contained and every consumer
// re-validates its own prerequisites at execution time.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/prospect-pipeline/internal/domain"
)

// Event names. The name is the versioning unit: there is no schema registry,
// so adding a stage means adding a new name with a new payload shape, never
// mutating an existing one.
const (
	LeadReadyForDeployment = "lead.ready-for-deployment"
	LeadResearchComplete   = "lead.research-complete"
	LeadSequenceReady      = "lead.sequence-ready"
)

// ReadyForDeployment triggers the research stage.
type ReadyForDeployment struct {
	LeadID        string               `json:"lead_id"`
	TenantID      string               `json:"tenant_id"`
	Qualification domain.Qualification `json:"qualification"`
}

// ResearchComplete triggers the sequencing stage. TopTriggers is truncated
// to at most domain.MaxTopTriggers by the emitter.
type ResearchComplete struct {
	LeadID          string               `json:"lead_id"`
	TenantID        string               `json:"tenant_id"`
	PersonaMatch    string               `json:"persona_match"`
	TopTriggers     []string             `json:"top_triggers"`
	MessagingAngles []string             `json:"messaging_angles"`
	Qualification   domain.Qualification `json:"qualification"`
}

// SequenceReady triggers the deployment stage once a sequence's threads
// are complete (or an operator marks it ready).
type SequenceReady struct {
	LeadID     string `json:"lead_id"`
	TenantID   string `json:"tenant_id"`
	SequenceID string `json:"sequence_id"`
}

// Envelope is the wire format for every event on the bus.
type Envelope struct {
	Name       string          `json:"event"`
	Payload    json.RawMessage `json:"payload"`
	EmittedAt  time.Time       `json:"emitted_at"`
	Attempt    int             `json:"attempt,omitempty"`
	EmitterRef string          `json:"emitter,omitempty"`
}

// NewEnvelope wraps a payload for publication, validating the name/payload
// pairing at the publish boundary.
func NewEnvelope(name string, payload interface{}) (Envelope, error) {
	switch name {
	case LeadReadyForDeployment:
		p, ok := payload.(ReadyForDeployment)
		if !ok {
			return Envelope{}, fmt.Errorf("events: %s requires ReadyForDeployment payload, got %T", name, payload)
		}
		if p.LeadID == "" || p.TenantID == "" {
			return Envelope{}, fmt.Errorf("events: %s payload missing lead_id or tenant_id", name)
		}
	case LeadResearchComplete:
		p, ok := payload.(ResearchComplete)
		if !ok {
			return Envelope{}, fmt.Errorf("events: %s requires ResearchComplete payload, got %T", name, payload)
		}
		if p.LeadID == "" || p.TenantID == "" {
			return Envelope{}, fmt.Errorf("events: %s payload missing lead_id or tenant_id", name)
		}
		if len(p.TopTriggers) > domain.MaxTopTriggers {
			return Envelope{}, fmt.Errorf("events: %s top_triggers exceeds %d", name, domain.MaxTopTriggers)
		}
	case LeadSequenceReady:
		p, ok := payload.(SequenceReady)
		if !ok {
			return Envelope{}, fmt.Errorf("events: %s requires SequenceReady payload, got %T", name, payload)
		}
		if p.LeadID == "" || p.TenantID == "" || p.SequenceID == "" {
			return Envelope{}, fmt.Errorf("events: %s payload missing lead_id, tenant_id or sequence_id", name)
		}
	default:
		return Envelope{}, fmt.Errorf("events: unknown event name %q", name)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s payload: %w", name, err)
	}
	return Envelope{Name: name, Payload: raw, EmittedAt: time.Now().UTC()}, nil
}
