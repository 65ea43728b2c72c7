package pipeline

import "errors"

// Sentinel errors for the pipeline service layer.
var (
	ErrLeadNotFound    = errors.New("lead not found")
	ErrResearchMissing = errors.New("no research record for lead; run research first")
	ErrUnknownStep     = errors.New("unknown pipeline step")
)
