package valuation

// #region imports
import (
	"encoding/json"
	"maps"
	"slices"
)

// #endregion

// #region conclusions

// Conclusion is the verdict label carried by an analysis payload.
type Conclusion string

const (
	ConclusionCheap        Conclusion = "cheap"
	ConclusionFair         Conclusion = "fair"
	ConclusionRich         Conclusion = "rich"
	ConclusionExpensive    Conclusion = "expensive"
	ConclusionUncertain    Conclusion = "uncertain"
	ConclusionUndetermined Conclusion = "undetermined"
)

var validConclusions = map[Conclusion]bool{
	ConclusionCheap:        true,
	ConclusionFair:         true,
	ConclusionRich:         true,
	ConclusionExpensive:    true,
	ConclusionUncertain:    true,
	ConclusionUndetermined: true,
}

// #endregion

// #region risk-flags

const (
	FlagNoCitableEvidence         = "no_citable_evidence"
	FlagFallbackCitationsInjected = "fallback_citations_injected"
)

// CitationPrefix marks a comps_used source_id as a reference to a retrieved chunk.
const CitationPrefix = "chunk:"

// #endregion

// #region deal-facts

// DealFacts is the read-only deal snapshot fed into retrieval and heuristics.
// ID 0 means the deal has no persistent identity.
type DealFacts struct {
	ID       int64   `json:"id,omitempty"`
	Name     string  `json:"name"`
	Industry string  `json:"industry"`
	Price    float64 `json:"price"`
	EBITDA   float64 `json:"ebitda"`
	Currency string  `json:"currency,omitempty"`
}

// BaselineMultiple is price/EBITDA, or 0 when EBITDA is not positive.
// Used as the sanitizer's guardrail multiple.
func (d DealFacts) BaselineMultiple() float64 {
	if d.EBITDA > 0 {
		return d.Price / d.EBITDA
	}
	return 0
}

// #endregion

// #region evidence-chunk

// EvidenceChunk is one retrieved passage. Slices of chunks are ordered by
// relevance: index 0 is the most relevant.
type EvidenceChunk struct {
	ChunkID    string         `json:"chunk_id"`
	Text       string         `json:"text"`
	Source     string         `json:"source,omitempty"`
	DocumentID string         `json:"document_id,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	Similarity float64        `json:"similarity"`
	Score      float64        `json:"score"`
	Reranked   bool           `json:"reranked"`
}

// Name returns the comp name recorded in chunk metadata, if any.
func (c EvidenceChunk) Name() string {
	if v, ok := c.Meta["name"].(string); ok {
		return v
	}
	return ""
}

// #endregion

// #region draft

// Draft is an untrusted candidate payload: baseline output, coerced model output,
// or anything else that still has to pass through Sanitize.
type Draft map[string]any

// Clone returns a deep copy of the draft.
func (d Draft) Clone() Draft {
	if d == nil {
		return nil
	}
	out := make(Draft, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case Draft:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	case []string:
		return slices.Clone(t)
	case []float64:
		return slices.Clone(t)
	default:
		return v
	}
}

// #endregion

// #region payload

// Citation ties a claim in the analysis to a retrieved chunk.
type Citation struct {
	SourceID string `json:"source_id"`
	Name     string `json:"name,omitempty"`
	Ticker   string `json:"ticker,omitempty"`
}

// Range is the implied multiple band, low first.
type Range [2]float64

// Payload is the strict, validated analysis output.
type Payload struct {
	Conclusion      Conclusion `json:"conclusion"`
	ImpliedMultiple float64    `json:"implied_multiple"`
	Range           Range      `json:"range"`
	Reasoning       string     `json:"reasoning"`
	CompsUsed       []Citation `json:"comps_used"`
	RiskFlags       []string   `json:"risk_flags"`
	Confidence      float64    `json:"confidence"`
}

// MarshalJSON keeps comps_used and risk_flags as arrays even when empty.
func (p Payload) MarshalJSON() ([]byte, error) {
	type alias Payload
	a := alias(p)
	if a.CompsUsed == nil {
		a.CompsUsed = []Citation{}
	}
	if a.RiskFlags == nil {
		a.RiskFlags = []string{}
	}
	return json.Marshal(a)
}

// Clone returns a deep copy of the payload.
func (p Payload) Clone() Payload {
	out := p
	out.CompsUsed = slices.Clone(p.CompsUsed)
	out.RiskFlags = slices.Clone(p.RiskFlags)
	return out
}

// Draft converts the payload back into the untyped form accepted by Sanitize.
func (p Payload) Draft() Draft {
	comps := make([]any, len(p.CompsUsed))
	for i, c := range p.CompsUsed {
		m := map[string]any{"source_id": c.SourceID}
		if c.Name != "" {
			m["name"] = c.Name
		}
		if c.Ticker != "" {
			m["ticker"] = c.Ticker
		}
		comps[i] = m
	}
	flags := make([]any, len(p.RiskFlags))
	for i, f := range p.RiskFlags {
		flags[i] = f
	}
	return Draft{
		"conclusion":       string(p.Conclusion),
		"implied_multiple": p.ImpliedMultiple,
		"range":            []any{p.Range[0], p.Range[1]},
		"reasoning":        p.Reasoning,
		"comps_used":       comps,
		"risk_flags":       flags,
		"confidence":       p.Confidence,
	}
}

// HasFlag reports whether the payload carries the given risk flag.
func (p Payload) HasFlag(flag string) bool {
	return slices.Contains(p.RiskFlags, flag)
}

// #endregion

// #region helpers

func mergeDraft(base Draft, overrides Draft) Draft {
	out := base.Clone()
	if out == nil {
		out = Draft{}
	}
	maps.Copy(out, overrides)
	return out
}

// #endregion
