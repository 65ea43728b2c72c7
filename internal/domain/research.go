package domain

import "time"

// MaxTopTriggers caps how many research triggers flow downstream into
// sequencing. The emitter truncates; consumers never re-truncate.
const MaxTopTriggers = 3

// ExtractedSignals is the structured output of the research stage.
// Triggers are ordered by relevance; only the first MaxTopTriggers are
// carried into downstream events.
type ExtractedSignals struct {
	PersonaMatch    string   `json:"persona_match"`
	Triggers        []string `json:"triggers"`
	MessagingAngles []string `json:"messaging_angles"`
}

// TopTriggers returns the first MaxTopTriggers triggers.
func (s ExtractedSignals) TopTriggers() []string {
	if len(s.Triggers) <= MaxTopTriggers {
		return s.Triggers
	}
	return s.Triggers[:MaxTopTriggers]
}

// ResearchRecord holds the research output for a single lead. There is at
// most one per lead: re-runs overwrite rather than accumulate, which is what
// makes duplicate event delivery harmless.
type ResearchRecord struct {
	ID        string           `json:"id" db:"id"`
	LeadID    string           `json:"lead_id" db:"lead_id"`
	TenantID  string           `json:"tenant_id" db:"tenant_id"`
	Signals   ExtractedSignals `json:"extracted_signals"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}
