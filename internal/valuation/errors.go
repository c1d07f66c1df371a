package valuation

import (
	"errors"
	"fmt"
)

// ErrEvidenceRequired is returned when retrieval produced evidence but the
// analysis cites none of it.
var ErrEvidenceRequired = errors.New("evidence_required")

// EvidenceViolationError reports a breach of the evidence rule.
type EvidenceViolationError struct {
	RetrievalHits int
	Citations     int
}

func (e *EvidenceViolationError) Error() string {
	return fmt.Sprintf("evidence_required: retrieval_hits=%d but comps_used=%d", e.RetrievalHits, e.Citations)
}

func (e *EvidenceViolationError) Unwrap() error {
	return ErrEvidenceRequired
}
