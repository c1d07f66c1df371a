package valuation

// #region imports
import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// #endregion

// #region constants

const (
	defaultConfidence      = 0.45
	guardrailConfidenceCap = 0.5
	rangeHalfWidth         = 0.5
	outputPlaces           = 6
)

// #endregion

// #region options

// SanitizeOptions carries the request context the sanitizer needs.
type SanitizeOptions struct {
	BaselineMultiple  float64
	RetrievalRequired bool
	RetrievalHits     int
}

// #endregion

// #region sanitize

// Sanitize coerces any draft into a schema-valid Payload. It is total over its
// input except for one case: retrieval is required, produced hits, and no
// well-formed citation survives filtering. That case returns an
// *EvidenceViolationError.
//
// When no citation survives, the multiple and range are frozen to the baseline,
// confidence is capped at 0.5 and no_citable_evidence is flagged once.
// Re-sanitizing a sanitized payload with the same options is a no-op.
func Sanitize(d Draft, opts SanitizeOptions) (Payload, error) {
	var p Payload

	p.Conclusion = normalizeConclusion(d["conclusion"])

	implied, ok := asFloat(d["implied_multiple"])
	if !ok {
		implied = opts.BaselineMultiple
	}

	lo, hi := implied-rangeHalfWidth, implied+rangeHalfWidth
	if items, ok := asList(d["range"]); ok && len(items) == 2 {
		if f, ok := asFloat(items[0]); ok {
			lo = f
		}
		if f, ok := asFloat(items[1]); ok {
			hi = f
		}
	}

	if s, ok := d["reasoning"].(string); ok {
		p.Reasoning = s
	}

	p.CompsUsed = filterCitations(d["comps_used"])

	if opts.RetrievalRequired && opts.RetrievalHits > 0 && len(p.CompsUsed) == 0 {
		return Payload{}, &EvidenceViolationError{RetrievalHits: opts.RetrievalHits}
	}

	flags := riskFlags(d["risk_flags"])

	confidence, ok := asFloat(d["confidence"])
	if !ok {
		confidence = defaultConfidence
	}
	confidence = math.Max(0, math.Min(1, confidence))

	if len(p.CompsUsed) == 0 {
		implied = opts.BaselineMultiple
		lo = math.Max(0, opts.BaselineMultiple-rangeHalfWidth)
		hi = opts.BaselineMultiple + rangeHalfWidth
		confidence = math.Min(confidence, guardrailConfidenceCap)
		flags = append(flags, FlagNoCitableEvidence)
	} else {
		flags = slices.DeleteFunc(flags, func(f string) bool { return f == FlagNoCitableEvidence })
	}

	if lo > hi {
		lo, hi = hi, lo
	}

	p.ImpliedMultiple = round(implied, outputPlaces)
	p.Range = Range{round(lo, outputPlaces), round(hi, outputPlaces)}
	p.RiskFlags = dedupe(flags)
	p.Confidence = round(confidence, outputPlaces)
	if p.CompsUsed == nil {
		p.CompsUsed = []Citation{}
	}

	return p, nil
}

// #endregion

// #region conclusion

func normalizeConclusion(v any) Conclusion {
	s, ok := v.(string)
	if !ok {
		return ConclusionUndetermined
	}
	c := Conclusion(strings.ToLower(strings.TrimSpace(s)))
	if !validConclusions[c] {
		return ConclusionUndetermined
	}
	return c
}

// #endregion

// #region citations

// filterCitations keeps only objects whose source_id is a chunk reference.
// Everything else is dropped without error.
func filterCitations(v any) []Citation {
	items, ok := asList(v)
	if !ok {
		return nil
	}
	var out []Citation
	for _, item := range items {
		var fields map[string]any
		switch t := item.(type) {
		case map[string]any:
			fields = t
		case Draft:
			fields = t
		case map[string]string:
			fields = make(map[string]any, len(t))
			for k, s := range t {
				fields[k] = s
			}
		case Citation:
			fields = map[string]any{"source_id": t.SourceID, "name": t.Name, "ticker": t.Ticker}
		default:
			continue
		}

		sourceID, ok := fields["source_id"].(string)
		if !ok || !strings.HasPrefix(sourceID, CitationPrefix) {
			continue
		}
		c := Citation{SourceID: sourceID}
		c.Name = truthyString(fields["name"])
		c.Ticker = truthyString(fields["ticker"])
		out = append(out, c)
	}
	return out
}

func truthyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
	case float64:
		if t == 0 {
			return ""
		}
	}
	return fmt.Sprint(v)
}

// #endregion

// #region risk-flags

func riskFlags(v any) []string {
	items, ok := asList(v)
	if !ok {
		if s := strings.TrimSpace(truthyString(v)); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(item))
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// dedupe removes repeats, keeping first occurrences in order.
func dedupe(flags []string) []string {
	seen := make(map[string]bool, len(flags))
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// #endregion
