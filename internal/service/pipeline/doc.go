// Package pipeline implements the lead pipeline orchestrator: manual
// re-run entry points, derived stage computation, and the prerequisite
// checks between stages.
//
// The orchestrator is deliberately thin and stateless. It re-triggers
// stages by publishing events; it performs no deduplication of concurrent
// re-runs. Durability and idempotence live in the stage write operations
// (upserts keyed by lead_id), not here.
package pipeline
