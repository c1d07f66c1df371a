package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #region fixture-types

// Fixture is the top-level JSON structure for an evaluation fixture.
type Fixture struct {
	Description string `json:"description"`
	Cases       []Case `json:"cases"`
}

// Case is one recorded request: the deal, the question, the evidence the
// retriever would return and the scripted reasoning backends.
type Case struct {
	Name         string                    `json:"name"`
	Deal         valuation.DealFacts       `json:"deal"`
	Question     string                    `json:"question"`
	Evidence     []valuation.EvidenceChunk `json:"evidence"`
	Triage       *Script                   `json:"triage"`
	Synthesis    *Script                   `json:"synthesis"`
	Expectations Expectations              `json:"expectations"`
}

// Script is the canned answer of a reasoning backend. A non-empty Error makes
// the call fail; DelayMS holds the call for that long first. A nil Script
// means the backend is not configured.
type Script struct {
	Response string `json:"response"`
	Error    string `json:"error"`
	DelayMS  int    `json:"delay_ms"`
}

// Expectations are the checks applied after the response schema is valid.
type Expectations struct {
	MinCitations         *int     `json:"min_citations"`
	RequireNoCitableFlag bool     `json:"require_no_citable_flag"`
	RequireFallbackFlag  bool     `json:"require_fallback_flag"`
	MaxConfidence        *float64 `json:"max_confidence"`
	MinConfidence        *float64 `json:"min_confidence"`
	Conclusion           string   `json:"conclusion"`
	Path                 string   `json:"path"`
	// ExpectError names the outcome a failing case must produce:
	// "evidence_required", "deadline_exceeded" or "deal_not_found".
	ExpectError string `json:"expect_error"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	seen := make(map[string]bool, len(f.Cases))
	for i, c := range f.Cases {
		if c.Name == "" {
			return nil, fmt.Errorf("fixture %s: case %d has no name", path, i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("fixture %s: duplicate case %q", path, c.Name)
		}
		seen[c.Name] = true
	}
	return &f, nil
}

// #endregion fixture-loader
