package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/prospect-pipeline/internal/delivery"
	"github.com/ignite/prospect-pipeline/internal/domain"
	"github.com/ignite/prospect-pipeline/internal/events"
	"github.com/ignite/prospect-pipeline/internal/pkg/distlock"
	"github.com/ignite/prospect-pipeline/internal/pkg/logger"
	"github.com/ignite/prospect-pipeline/internal/service/sequence"
)

// deployLockTTL bounds how long a crashed dispatcher can block a retry.
const deployLockTTL = 2 * time.Minute

// DeploymentStore is the record-store surface the deployment stage needs.
type DeploymentStore interface {
	GetLead(ctx context.Context, tenantID, leadID string) (*domain.Lead, error)
	GetSequence(ctx context.Context, tenantID, id string) (*domain.EmailSequence, error)
	UpdateSequenceStatus(ctx context.Context, tenantID, id string, from, to domain.SequenceStatus) error
}

// WebhookURLProvider resolves the tenant's deployment webhook URL. An
// empty string means the tenant has none configured.
type WebhookURLProvider interface {
	WebhookURL(ctx context.Context, tenantID string) (string, error)
}

// LockFactory creates a fresh single-use lock for the given key.
type LockFactory func(key string, ttl time.Duration) distlock.Lock

// DeploymentStage consumes lead.sequence-ready: it hands the finished
// sequence to the send system and moves it to deployed. Dispatch is the
// one pipeline action that cannot be made idempotent by an upsert, so it
// runs under a distributed lock and behind a status re-check.
type DeploymentStage struct {
	store      DeploymentStore
	dispatcher delivery.Dispatcher
	locks      LockFactory
	webhook    *delivery.WebhookNotifier
	urls       WebhookURLProvider
	audit      AuditLogger
}

// NewDeploymentStage wires the stage. webhook, urls, and audit may be nil.
func NewDeploymentStage(store DeploymentStore, dispatcher delivery.Dispatcher, locks LockFactory, webhook *delivery.WebhookNotifier, urls WebhookURLProvider, audit AuditLogger) *DeploymentStage {
	return &DeploymentStage{
		store:      store,
		dispatcher: dispatcher,
		locks:      locks,
		webhook:    webhook,
		urls:       urls,
		audit:      audit,
	}
}

// Handle is the events.Handler for lead.sequence-ready.
func (s *DeploymentStage) Handle(ctx context.Context, payload json.RawMessage) error {
	var evt events.SequenceReady
	if err := json.Unmarshal(payload, &evt); err != nil {
		logger.Warn("deployment stage dropping bad payload", "error", err)
		return nil
	}

	seq, err := s.store.GetSequence(ctx, evt.TenantID, evt.SequenceID)
	if err != nil {
		return fmt.Errorf("deployment: get sequence: %w", err)
	}
	if seq == nil {
		logger.Warn("deployment stage dropping event for unknown sequence", "sequence_id", evt.SequenceID)
		return nil
	}

	switch seq.Status {
	case domain.SequenceReady:
		// fall through to dispatch
	case domain.SequenceDeployed, domain.SequenceCompleted:
		// A previous delivery of this event already deployed it.
		return nil
	default:
		logger.Warn("deployment stage dropping event for non-ready sequence", "sequence_id", seq.ID, "status", string(seq.Status))
		return nil
	}

	lead, err := s.store.GetLead(ctx, evt.TenantID, seq.LeadID)
	if err != nil {
		return fmt.Errorf("deployment: get lead: %w", err)
	}
	if lead == nil {
		logger.Warn("deployment stage dropping event for unknown lead", "lead_id", seq.LeadID)
		return nil
	}

	lock := s.locks(fmt.Sprintf("deploy:%s", seq.ID), deployLockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("deployment: acquire lock for %s: %w", seq.ID, err)
	}
	if !acquired {
		// Another worker holds the sequence; let redelivery find it in its
		// post-dispatch state.
		return fmt.Errorf("deployment: sequence %s locked by another worker", seq.ID)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Error("deployment stage failed to release lock", "sequence_id", seq.ID, "error", err)
		}
	}()

	// Re-check under the lock: a concurrent worker may have deployed it
	// between the first read and acquisition.
	seq, err = s.store.GetSequence(ctx, evt.TenantID, evt.SequenceID)
	if err != nil {
		return fmt.Errorf("deployment: re-read sequence: %w", err)
	}
	if seq == nil || seq.Status != domain.SequenceReady {
		return nil
	}

	// Dispatch before the status write: a failed send leaves the sequence
	// ready so redelivery retries it. The lock covers the window where a
	// send succeeded but the write below has not landed yet.
	if err := s.dispatcher.Dispatch(ctx, lead, seq); err != nil {
		return fmt.Errorf("deployment: dispatch sequence %s: %w", seq.ID, err)
	}

	err = s.store.UpdateSequenceStatus(ctx, evt.TenantID, seq.ID, domain.SequenceReady, domain.SequenceDeployed)
	if errors.Is(err, sequence.ErrInvalidTransition) {
		// Someone else recorded the deploy while we held the send. Nothing
		// left to do.
		return nil
	}
	if err != nil {
		// Emails are out but the record still says ready, so redelivery
		// will dispatch again. Send-then-write cannot close this window;
		// the lock only keeps concurrent workers out of it while held.
		return fmt.Errorf("deployment: mark sequence %s deployed: %w", seq.ID, err)
	}

	s.logDeployed(ctx, lead, seq)
	s.notify(ctx, lead, seq)
	return nil
}

func (s *DeploymentStage) logDeployed(ctx context.Context, lead *domain.Lead, seq *domain.EmailSequence) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"sequence_id": seq.ID})
	err := s.audit.Append(ctx, domain.MemoryEntry{
		LeadID:      lead.ID,
		TenantID:    lead.TenantID,
		EventType:   domain.MemorySequenceDeployed,
		Description: "sequence handed to the send system",
		Context:     payload,
	})
	if err != nil {
		logger.Error("deployment stage audit append failed", "lead_id", lead.ID, "error", err)
	}
}

// notify fires the tenant's deployment webhook. Failures are logged; the
// deploy already happened and a webhook cannot roll it back.
func (s *DeploymentStage) notify(ctx context.Context, lead *domain.Lead, seq *domain.EmailSequence) {
	if s.webhook == nil || s.urls == nil {
		return
	}
	url, err := s.urls.WebhookURL(ctx, lead.TenantID)
	if err != nil {
		logger.Error("deployment webhook url lookup failed", "tenant_id", lead.TenantID, "error", err)
		return
	}
	err = s.webhook.NotifyDeployed(ctx, url, delivery.DeployedPayload{
		LeadID:     lead.ID,
		TenantID:   lead.TenantID,
		SequenceID: seq.ID,
		DeployedAt: time.Now().UTC(),
	})
	if err != nil {
		logger.Error("deployment webhook notify failed", "sequence_id", seq.ID, "error", err)
	}
}
