// Package generation wraps the model calls that produce research signals
// and email copy. The model is a black box to the pipeline: stages care
// only about the structured outputs, never about prompts or providers.
package generation

import (
	"context"

	"github.com/ignite/prospect-pipeline/internal/domain"
)

// SequenceInput carries the research context a copywriting call works from.
// It mirrors the lead.research-complete payload: sequencing passes through
// what it was given rather than re-deriving it.
type SequenceInput struct {
	PersonaMatch    string
	TopTriggers     []string
	MessagingAngles []string
}

// Generator produces research signals and sequence drafts for a lead.
type Generator interface {
	// ExtractSignals researches the lead and returns its structured
	// signals.
	ExtractSignals(ctx context.Context, lead *domain.Lead) (domain.ExtractedSignals, error)

	// WriteSequence drafts the two message threads. Either thread may come
	// back nil when the model declines an angle.
	WriteSequence(ctx context.Context, lead *domain.Lead, in SequenceInput) (thread1, thread2 *domain.Thread, err error)
}
