package consultant

// #region imports
import (
	"strings"
	"unicode"

	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #endregion

// #region keywords

// hardTerms are comparative, temporal, cross-currency and scenario cues.
// Single words match as token prefixes ("comp" hits "comps" and "comparable");
// entries with a space or hyphen match as substrings.
var hardTerms = []string{
	"comp", "compare", "versus", "vs",
	"portfolio", "multi", "multi-year",
	"scenario", "sensitivity", "synergy", "dilution",
	"dcf", "discounted cash", "merger", "leveraged",
	"fx", "currency", "hedge", "tax",
	"rag", "retrieval",
}

const (
	maxQuestionMarks = 1
	maxWords         = 40
)

// #endregion

// #region classify

// Classify labels a request easy or hard. Checks run in a fixed order: lexicon,
// then missing fundamentals, then question shape. Missing price, EBITDA or
// industry makes a request hard whatever the wording.
func Classify(question string, deal valuation.DealFacts, _ []valuation.EvidenceChunk) Complexity {
	lower := strings.ToLower(question)

	if matchesHardTerm(lower) {
		return ComplexityHard
	}

	if deal.Price == 0 || deal.EBITDA == 0 || strings.TrimSpace(deal.Industry) == "" {
		return ComplexityHard
	}

	if strings.Count(lower, "?") > maxQuestionMarks || len(strings.Fields(lower)) > maxWords {
		return ComplexityHard
	}

	return ComplexityEasy
}

func matchesHardTerm(lower string) bool {
	if lower == "" {
		return false
	}
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, term := range hardTerms {
		if strings.ContainsAny(term, " -") {
			if strings.Contains(lower, term) {
				return true
			}
			continue
		}
		for _, tok := range tokens {
			if strings.HasPrefix(tok, term) {
				return true
			}
		}
	}
	return false
}

// #endregion
