package domain

import "time"

// TenantSettings holds per-tenant configuration the pipeline consults at
// runtime: the sending identity and the deployment webhook. Zero values
// fall back to the server-wide defaults.
type TenantSettings struct {
	TenantID            string    `json:"tenant_id"`
	FromName            string    `json:"from_name"`
	FromEmail           string    `json:"from_email"`
	WebhookURL          string    `json:"webhook_url"`
	GenerationPerMinute int       `json:"generation_per_minute"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Brand is a workspace a user belongs to. The API scopes every record
// read and write to one brand; brand and tenant are the same concept at
// the storage layer.
type Brand struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Slug                string    `json:"slug"`
	Role                string    `json:"role"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
}
