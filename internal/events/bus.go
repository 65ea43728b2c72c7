package events

import "context"

// Bus publishes named events. Publish returns only after the transport has
// durably acknowledged the message: callers rely on write-then-notify
// ordering, so a fire-and-forget publish here would let a consumer race
// ahead of its own data dependency.
type Bus interface {
	Publish(ctx context.Context, name string, payload interface{}) error
}
