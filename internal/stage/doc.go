// Package stage implements the pipeline's stage functions: independent
// units that each consume one event kind, perform their domain work, and
// emit the next event kind on success.
//
// The bus delivers at-least-once with no cross-event ordering, so every
// stage re-validates its own prerequisite records at execution time and
// writes through upserts keyed by lead_id. Returning an error from a
// handler leaves the message queued for redelivery; returning nil deletes
// it, including for events that can never succeed (missing lead, frozen
// sequence).
package stage
