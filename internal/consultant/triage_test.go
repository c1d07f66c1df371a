package consultant

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

func ptr[T any](v T) *T { return &v }

func TestParseTriagePlan_Valid(t *testing.T) {
	raw := `{"objective":"size the deal","required_comps":["Globex"],"missing_data":["capex"],
		"queries":["saas multiples"],"risk_flags":["thin comps"],"route_suggestion":"hard","confidence":0.4}`
	got, err := ParseTriagePlan(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := TriagePlan{
		Objective:       ptr("size the deal"),
		RequiredComps:   []string{"Globex"},
		MissingData:     []string{"capex"},
		Queries:         []string{"saas multiples"},
		RiskFlags:       []string{"thin comps"},
		RouteSuggestion: ptr("hard"),
		Confidence:      ptr(0.4),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTriagePlan_Envelope(t *testing.T) {
	got, err := ParseTriagePlan(`{"triage_plan": {"route_suggestion": "easy", "confidence": null}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RouteSuggestion == nil || *got.RouteSuggestion != "easy" || got.Confidence != nil {
		t.Errorf("got %+v", got)
	}
}

func TestParseTriagePlan_Fenced(t *testing.T) {
	if _, err := ParseTriagePlan("```json\n{\"objective\": \"x\"}\n```"); err != nil {
		t.Errorf("fenced plan rejected: %v", err)
	}
}

func TestParseTriagePlan_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", "   "},
		{"not-json", "the deal looks fine"},
		{"unknown-field", `{"objective": "x", "extra": 1}`},
		{"case-folded-keys", `{"OBJECTIVE":"x","Route_Suggestion":"hard","Confidence":0.7}`},
		{"one-case-folded-key", `{"objective":"x","Confidence":0.7}`},
		{"case-folded-envelope", `{"Triage_Plan": {"objective": "x"}}`},
		{"envelope-case-folded-inner", `{"triage_plan": {"Objective": "x"}}`},
		{"valuation-object", `{"conclusion": "fair", "confidence": 0.8}`},
		{"bad-route", `{"route_suggestion": "medium"}`},
		{"confidence-high", `{"confidence": 1.5}`},
		{"confidence-negative", `{"confidence": -0.1}`},
		{"wrong-type", `{"queries": "one"}`},
		{"bad-envelope", `{"triage_plan": {"nope": true}}`},
		{"trailing", `{"objective": "x"} {"objective": "y"}`},
		{"array", `[{"objective": "x"}]`},
		{"null", `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTriagePlan(tt.raw)
			if !errors.Is(err, ErrTriageParse) {
				t.Errorf("expected ErrTriageParse, got %v", err)
			}
		})
	}
}

func TestSummaries(t *testing.T) {
	plan := TriagePlan{
		RouteSuggestion: ptr("hard"),
		Confidence:      ptr(0.3),
		MissingData:     []string{"a", "b", "c", "d"},
	}
	got := SummarizePlan(plan)
	want := "Triage plan: route=hard, confidence=0.3, missing=a, b, c, comps=none"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	d := valuation.Draft{"conclusion": "fair", "confidence": 0.7, "comps_used": []any{"Acme", map[string]any{"source_id": "chunk:9"}}}
	if s := SummarizeDraft(d); !strings.Contains(s, "conclusion=fair") || !strings.Contains(s, "Acme, chunk:9") {
		t.Errorf("draft summary: %q", s)
	}
	if s := SummarizeDraft(valuation.Draft{}); !strings.Contains(s, "no comps cited") || !strings.Contains(s, "confidence=none") {
		t.Errorf("empty draft summary: %q", s)
	}
}
