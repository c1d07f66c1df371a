package consultant

// #region imports
import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #endregion

// #region parse

// ParseTriagePlan decodes raw triage text as a strict plan. A bare plan object
// and a {"triage_plan": {...}} envelope are both accepted. Every failure wraps
// ErrTriageParse.
func ParseTriagePlan(raw string) (TriagePlan, error) {
	text := valuation.StripFences(raw)
	if text == "" {
		return TriagePlan{}, fmt.Errorf("%w: empty payload", ErrTriageParse)
	}

	plan, strictErr := decodePlan([]byte(text))
	if strictErr == nil {
		return plan, nil
	}

	var loose map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &loose); err != nil {
		return TriagePlan{}, fmt.Errorf("%w: not a json object: %v", ErrTriageParse, err)
	}
	if inner, ok := loose["triage_plan"]; ok {
		plan, err := decodePlan(inner)
		if err != nil {
			return TriagePlan{}, fmt.Errorf("%w: envelope: %v", ErrTriageParse, err)
		}
		return plan, nil
	}
	return TriagePlan{}, fmt.Errorf("%w: schema mismatch: %v", ErrTriageParse, strictErr)
}

var planKeys = map[string]bool{
	"objective": true, "required_comps": true, "missing_data": true, "queries": true,
	"risk_flags": true, "route_suggestion": true, "confidence": true,
}

func decodePlan(data []byte) (TriagePlan, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var plan TriagePlan
	if err := dec.Decode(&plan); err != nil {
		return TriagePlan{}, err
	}
	if dec.More() {
		return TriagePlan{}, fmt.Errorf("trailing data after plan")
	}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return TriagePlan{}, fmt.Errorf("plan is null")
	}
	// encoding/json folds key case; plan keys must match exactly.
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return TriagePlan{}, err
	}
	for k := range keys {
		if !planKeys[k] {
			return TriagePlan{}, fmt.Errorf("unknown key %q", k)
		}
	}
	if r := plan.RouteSuggestion; r != nil && *r != string(ComplexityEasy) && *r != string(ComplexityHard) {
		return TriagePlan{}, fmt.Errorf("route_suggestion %q not easy|hard", *r)
	}
	if c := plan.Confidence; c != nil && (*c < 0 || *c > 1) {
		return TriagePlan{}, fmt.Errorf("confidence %v outside [0,1]", *c)
	}
	return plan, nil
}

// #endregion

// #region summaries

// SummarizePlan renders a plan as one line for the synthesis prompt.
func SummarizePlan(p TriagePlan) string {
	route := "unknown"
	if p.RouteSuggestion != nil {
		route = *p.RouteSuggestion
	}
	confidence := "none"
	if p.Confidence != nil {
		confidence = fmt.Sprintf("%g", *p.Confidence)
	}
	return fmt.Sprintf("Triage plan: route=%s, confidence=%s, missing=%s, comps=%s",
		route, confidence, preview(p.MissingData), preview(p.RequiredComps))
}

// SummarizeDraft renders a triage draft as one line for the synthesis prompt.
func SummarizeDraft(d valuation.Draft) string {
	confidence := "none"
	if c, ok := valuation.ConfidenceOf(d); ok {
		confidence = fmt.Sprintf("%g", c)
	}
	var names []string
	if items, ok := d["comps_used"].([]any); ok {
		for _, item := range items {
			switch t := item.(type) {
			case string:
				names = append(names, t)
			case map[string]any:
				if id, ok := t["source_id"].(string); ok {
					names = append(names, id)
				}
			}
		}
	}
	comps := "no comps cited"
	if len(names) > 0 {
		comps = preview(names)
	}
	return fmt.Sprintf("Triage first pass: conclusion=%v, confidence=%s, comps=%s", d["conclusion"], confidence, comps)
}

func preview(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	if len(items) > 3 {
		items = items[:3]
	}
	return strings.Join(items, ", ")
}

// #endregion
