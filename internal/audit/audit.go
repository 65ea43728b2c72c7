// Package audit appends immutable memory entries describing state
// transitions and manual interventions, attributed to a lead.
//
// The Postgres row is the primary record; the S3 JSONL archive is a
// best-effort mirror for offline analysis. Callers treat the whole append
// as best-effort relative to the mutation they are auditing: an audit
// failure is logged and swallowed, never surfaced, and never undoes the
// primary mutation.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ignite/prospect-pipeline/internal/domain"
)

// Appender is the durable store for memory entries. Satisfied by
// postgres.MemoryRepo.
type Appender interface {
	Append(ctx context.Context, e *domain.MemoryEntry) (string, error)
}

// Logger writes memory entries to the record store and mirrors them to the
// archive.
type Logger struct {
	repo    Appender
	archive *Archive
}

// NewLogger creates an audit logger. archive may be nil.
func NewLogger(repo Appender, archive *Archive) *Logger {
	return &Logger{repo: repo, archive: archive}
}

// Append persists the entry. The archive mirror failing does not fail the
// append; the Postgres write failing does.
func (l *Logger) Append(ctx context.Context, entry domain.MemoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := l.repo.Append(ctx, &entry); err != nil {
		return fmt.Errorf("audit append: %w", err)
	}

	if l.archive != nil {
		line, err := json.Marshal(entry)
		if err == nil {
			err = l.archive.AppendLine(ctx, entry.TenantID, entry.LeadID, line)
		}
		if err != nil {
			log.Printf("[audit.Logger] archive mirror failed lead=%s: %v", entry.LeadID, err)
		}
	}
	return nil
}
