package consultant

// #region imports
import (
	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #endregion

// #region escalation

const escalationConfidence = 0.55

// ShouldEscalate decides whether a hard request needs the synthesis backend.
// Easy requests always return false; they reach synthesis on their own path.
// A nil candidate means triage produced nothing usable.
func ShouldEscalate(complexity Complexity, candidate valuation.Draft, comps []valuation.EvidenceChunk) bool {
	if complexity != ComplexityHard {
		return false
	}
	if candidate == nil {
		return true
	}
	confidence, ok := valuation.ConfidenceOf(candidate)
	if !ok || confidence < escalationConfidence {
		return true
	}
	if valuation.CompsCount(candidate) == 0 && len(comps) == 0 {
		return true
	}
	return false
}

// #endregion
