package consultant

import (
	"testing"

	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

func TestShouldEscalate(t *testing.T) {
	someComps := []valuation.EvidenceChunk{{ChunkID: "1"}}
	tests := []struct {
		name       string
		complexity Complexity
		candidate  valuation.Draft
		comps      []valuation.EvidenceChunk
		want       bool
	}{
		{"hard-absent", ComplexityHard, nil, nil, true},
		{"hard-confident-cited", ComplexityHard, valuation.Draft{"confidence": 0.6, "comps_used": []any{"x"}}, nil, false},
		{"hard-low-confidence", ComplexityHard, valuation.Draft{"confidence": 0.4, "comps_used": []any{"x"}}, nil, true},
		{"hard-missing-confidence", ComplexityHard, valuation.Draft{"comps_used": []any{"x"}}, nil, true},
		{"hard-string-confidence", ComplexityHard, valuation.Draft{"confidence": "0.9", "comps_used": []any{"x"}}, nil, false},
		{"hard-boundary", ComplexityHard, valuation.Draft{"confidence": 0.55, "comps_used": []any{"x"}}, nil, false},
		{"hard-no-cites-no-comps", ComplexityHard, valuation.Draft{"confidence": 0.9}, nil, true},
		{"hard-no-cites-with-comps", ComplexityHard, valuation.Draft{"confidence": 0.9}, someComps, false},
		{"easy-absent", ComplexityEasy, nil, nil, false},
		{"easy-low", ComplexityEasy, valuation.Draft{"confidence": 0.1}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldEscalate(tt.complexity, tt.candidate, tt.comps); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
