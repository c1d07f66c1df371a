package valuation

// #region imports
import (
	"slices"
	"strings"
)

// #endregion

// #region constants

const (
	fallbackCitationLimit = 3
	fallbackConfidenceCap = 0.55
)

// #endregion

// #region enforce

// Enforce gates output release: when retrieval found evidence the payload must
// cite at least one chunk.
func Enforce(p Payload, retrievalHits int) error {
	if retrievalHits > 0 && len(p.CompsUsed) == 0 {
		return &EvidenceViolationError{RetrievalHits: retrievalHits}
	}
	return nil
}

// #endregion

// #region retrieval-required

var retrievalTerms = []string{
	"comp", "compare", "fx", "eur", "portfolio",
	"multi-year", "multi year",
	"2025", "2026", "2027",
	"scenario", "sensitivity",
}

// RetrievalRequired reports whether the question wording demands cited evidence.
// Callers OR this with "retrieval returned hits".
func RetrievalRequired(question string) bool {
	if question == "" {
		return false
	}
	lower := strings.ToLower(question)
	for _, term := range retrievalTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// #endregion

// #region fallback-citations

// FallbackCitations synthesizes citations from the top retrieved chunks.
// Chunks without an id are skipped.
func FallbackCitations(comps []EvidenceChunk, limit int) []Citation {
	if limit <= 0 {
		limit = fallbackCitationLimit
	}
	var out []Citation
	for _, c := range comps {
		if c.ChunkID == "" {
			continue
		}
		cit := Citation{SourceID: CitationPrefix + c.ChunkID}
		switch {
		case c.Source != "":
			cit.Name = c.Source
		default:
			if section, ok := c.Meta["section"].(string); ok {
				cit.Name = section
			}
		}
		out = append(out, cit)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// InjectFallbackCitations rewrites a draft that failed the evidence rule so it
// cites the top retrieved chunks. It returns false when no chunk can be cited,
// in which case the original violation must surface to the caller.
func InjectFallbackCitations(d Draft, comps []EvidenceChunk) (Draft, bool) {
	citations := FallbackCitations(comps, fallbackCitationLimit)
	if len(citations) == 0 {
		return d, false
	}

	cited := make([]any, len(citations))
	for i, c := range citations {
		m := map[string]any{"source_id": c.SourceID}
		if c.Name != "" {
			m["name"] = c.Name
		}
		cited[i] = m
	}

	flags := riskFlags(d["risk_flags"])
	if !slices.Contains(flags, FlagFallbackCitationsInjected) {
		flags = append(flags, FlagFallbackCitationsInjected)
	}
	flagList := make([]any, len(flags))
	for i, f := range flags {
		flagList[i] = f
	}

	overrides := Draft{
		"comps_used": cited,
		"risk_flags": flagList,
	}
	if c, ok := asFloat(d["confidence"]); !ok || c > fallbackConfidenceCap {
		overrides["confidence"] = fallbackConfidenceCap
	}

	return mergeDraft(d, overrides), true
}

// #endregion
