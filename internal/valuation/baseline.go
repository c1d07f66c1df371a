package valuation

// #region imports
import (
	"math"
)

// #endregion

// #region constants

const (
	baselineReasoning  = "Baseline multiple heuristic derived from price/EBITDA."
	baselineConfidence = 0.5
	ebitdaEpsilon      = 1e-9

	fairLow  = 8.0
	fairHigh = 12.0
)

// #endregion

// #region baseline

// Baseline derives the deterministic first-pass verdict from price and EBITDA.
// It has no side effects: it seeds coercion and is the fallback on every failure path.
// comps_used here is a plain name list; Sanitize enforces the citation shape later.
func Baseline(deal DealFacts, comps []EvidenceChunk) Draft {
	ebitda := deal.EBITDA
	if ebitda <= ebitdaEpsilon {
		ebitda = ebitdaEpsilon
	}
	multiple := deal.Price / ebitda

	verdict := ConclusionCheap
	switch {
	case multiple >= fairLow && multiple <= fairHigh:
		verdict = ConclusionFair
	case multiple > fairHigh:
		verdict = ConclusionRich
	}

	names := make([]any, 0, len(comps))
	for _, c := range comps {
		if n := c.Name(); n != "" {
			names = append(names, n)
		}
	}

	return Draft{
		"conclusion":       string(verdict),
		"implied_multiple": round(multiple, 2),
		"range":            []any{math.Max(round(multiple-1, 2), 0), round(multiple+1, 2)},
		"reasoning":        baselineReasoning,
		"comps_used":       names,
		"risk_flags":       []any{},
		"confidence":       baselineConfidence,
	}
}

// #endregion

// #region rounding

// maxRoundable bounds values that are rounded; larger ones are already
// integral at float64 precision and v*p could overflow.
const maxRoundable = 1e15

func round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow(10, float64(places))
	if math.Abs(v) > maxRoundable || math.IsInf(v*p, 0) {
		return v
	}
	return math.Round(v*p) / p
}

// #endregion
