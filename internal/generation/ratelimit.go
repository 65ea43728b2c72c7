package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/prospect-pipeline/internal/domain"
	"github.com/ignite/prospect-pipeline/internal/pkg/logger"
)

// ErrRateLimited is returned when a tenant has exhausted its generation
// budget for the current window. Callers should surface it as a retryable
// failure (the event stays queued).
var ErrRateLimited = errors.New("generation rate limit exceeded")

// Atomic check-and-increment. Checking before incrementing avoids the
// GET -> check -> INCR race that over-admits under concurrency.
const rateLimitScript = `
local key = KEYS[1]
local increment = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local current = tonumber(redis.call("GET", key) or "0")
if current + increment > limit then
    return {0, current}
end

local newVal = redis.call("INCRBY", key, increment)
if newVal == increment then
    redis.call("EXPIRE", key, ttl)
end
return {1, newVal}
`

// RateLimitedGenerator wraps a Generator with a per-tenant
// requests-per-minute budget held in Redis. Duplicate re-run triggers then
// cost at most the budget, never a model-call stampede.
type RateLimitedGenerator struct {
	inner  Generator
	redis  *redis.Client
	limit  int
	script *redis.Script
}

// NewRateLimitedGenerator wraps inner. perMinute <= 0 defaults to 30.
func NewRateLimitedGenerator(inner Generator, client *redis.Client, perMinute int) *RateLimitedGenerator {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &RateLimitedGenerator{
		inner:  inner,
		redis:  client,
		limit:  perMinute,
		script: redis.NewScript(rateLimitScript),
	}
}

// ExtractSignals implements Generator.
func (g *RateLimitedGenerator) ExtractSignals(ctx context.Context, lead *domain.Lead) (domain.ExtractedSignals, error) {
	if err := g.take(ctx, lead.TenantID); err != nil {
		return domain.ExtractedSignals{}, err
	}
	return g.inner.ExtractSignals(ctx, lead)
}

// WriteSequence implements Generator.
func (g *RateLimitedGenerator) WriteSequence(ctx context.Context, lead *domain.Lead, in SequenceInput) (*domain.Thread, *domain.Thread, error) {
	if err := g.take(ctx, lead.TenantID); err != nil {
		return nil, nil, err
	}
	return g.inner.WriteSequence(ctx, lead, in)
}

func (g *RateLimitedGenerator) take(ctx context.Context, tenantID string) error {
	key := fmt.Sprintf("genlimit:%s:%s", tenantID, time.Now().UTC().Format("200601021504"))
	res, err := g.script.Run(ctx, g.redis, []string{key}, 1, g.limit, 90).Result()
	if err != nil {
		// Redis being down should not halt the pipeline; admit unbudgeted.
		logger.Warn("generation rate limiter unavailable, admitting", "tenant_id", tenantID, "error", err)
		return nil
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 1 {
		return nil
	}
	if allowed, ok := vals[0].(int64); ok && allowed == 0 {
		return ErrRateLimited
	}
	return nil
}
