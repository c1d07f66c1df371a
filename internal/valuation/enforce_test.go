package valuation

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEnforce(t *testing.T) {
	cited := Payload{CompsUsed: []Citation{{SourceID: "chunk:1"}}}
	if err := Enforce(cited, 3); err != nil {
		t.Errorf("cited payload rejected: %v", err)
	}
	if err := Enforce(Payload{}, 0); err != nil {
		t.Errorf("no hits should pass: %v", err)
	}
	err := Enforce(Payload{}, 2)
	if !errors.Is(err, ErrEvidenceRequired) {
		t.Fatalf("expected ErrEvidenceRequired, got %v", err)
	}
	if err.Error() != "evidence_required: retrieval_hits=2 but comps_used=0" {
		t.Errorf("message: %q", err.Error())
	}
}

func TestRetrievalRequired(t *testing.T) {
	tests := []struct {
		q    string
		want bool
	}{
		{"", false},
		{"Is this fairly priced?", false},
		{"Compare with peers", true},
		{"What about FX exposure?", true},
		{"Run a multi-year projection", true},
		{"Outlook for 2026", true},
		{"Sensitivity to rates", true},
	}
	for _, tt := range tests {
		if got := RetrievalRequired(tt.q); got != tt.want {
			t.Errorf("RetrievalRequired(%q) = %v, want %v", tt.q, got, tt.want)
		}
	}
}

func TestFallbackCitations(t *testing.T) {
	comps := []EvidenceChunk{
		{ChunkID: "a", Source: "10-K"},
		{ChunkID: ""},
		{ChunkID: "b", Meta: map[string]any{"section": "Risk Factors"}},
		{ChunkID: "c"},
		{ChunkID: "d", Source: "extra"},
	}
	got := FallbackCitations(comps, 3)
	want := []Citation{
		{SourceID: "chunk:a", Name: "10-K"},
		{SourceID: "chunk:b", Name: "Risk Factors"},
		{SourceID: "chunk:c"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("citations mismatch (-want +got):\n%s", diff)
	}
}

func TestInjectFallbackCitations(t *testing.T) {
	comps := []EvidenceChunk{{ChunkID: "x", Source: "deck"}, {ChunkID: "y"}}
	d := Draft{"conclusion": "fair", "confidence": 0.9, "risk_flags": []any{"fx"}}

	got, ok := InjectFallbackCitations(d, comps)
	if !ok {
		t.Fatal("expected injection")
	}
	if got["confidence"] != 0.55 {
		t.Errorf("confidence: got %v, want 0.55", got["confidence"])
	}
	if d["confidence"] != 0.9 {
		t.Error("input draft mutated")
	}

	p, err := Sanitize(got, SanitizeOptions{BaselineMultiple: 10, RetrievalRequired: true, RetrievalHits: 2})
	if err != nil {
		t.Fatalf("injected draft failed sanitize: %v", err)
	}
	if len(p.CompsUsed) != 2 || p.CompsUsed[0].SourceID != "chunk:x" {
		t.Errorf("comps: %v", p.CompsUsed)
	}
	if diff := cmp.Diff([]string{"fx", FlagFallbackCitationsInjected}, p.RiskFlags); diff != "" {
		t.Errorf("flags mismatch:\n%s", diff)
	}
	if err := Enforce(p, 2); err != nil {
		t.Errorf("enforce after injection: %v", err)
	}

	again, _ := InjectFallbackCitations(got, comps)
	p2, _ := Sanitize(again, SanitizeOptions{BaselineMultiple: 10})
	if n := countFlag(p2.RiskFlags, FlagFallbackCitationsInjected); n != 1 {
		t.Errorf("fallback flag repeated %d times", n)
	}
}

func TestInjectFallbackCitations_KeepsLowerConfidence(t *testing.T) {
	got, ok := InjectFallbackCitations(Draft{"confidence": 0.3}, []EvidenceChunk{{ChunkID: "z"}})
	if !ok || got["confidence"] != 0.3 {
		t.Errorf("got %v %v", got["confidence"], ok)
	}
	got, _ = InjectFallbackCitations(Draft{}, []EvidenceChunk{{ChunkID: "z"}})
	if got["confidence"] != 0.55 {
		t.Errorf("missing confidence should become 0.55, got %v", got["confidence"])
	}
}

func TestInjectFallbackCitations_NothingCitable(t *testing.T) {
	d := Draft{"confidence": 0.9}
	got, ok := InjectFallbackCitations(d, []EvidenceChunk{{ChunkID: ""}})
	if ok {
		t.Fatal("expected no injection")
	}
	if diff := cmp.Diff(d, got); diff != "" {
		t.Errorf("draft changed:\n%s", diff)
	}
}
