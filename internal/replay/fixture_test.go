package replay

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFixture_Golden(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "cases.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if len(f.Cases) == 0 {
		t.Fatal("expected cases")
	}
	c := f.Cases[1]
	if c.Name != "easy-synthesis-cited" {
		t.Fatalf("unexpected case order: %s", c.Name)
	}
	if c.Triage != nil {
		t.Error("absent triage script should stay nil")
	}
	if c.Synthesis == nil || !strings.Contains(c.Synthesis.Response, "chunk:11") {
		t.Errorf("synthesis script not loaded: %+v", c.Synthesis)
	}
	if c.Expectations.MinCitations == nil || *c.Expectations.MinCitations != 1 {
		t.Errorf("min_citations not loaded: %v", c.Expectations.MinCitations)
	}
	if c.Evidence[0].ChunkID != "11" || c.Deal.EBITDA != 10 {
		t.Errorf("deal or evidence not loaded: %+v %+v", c.Deal, c.Evidence)
	}
}

func TestLoadFixture_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing file", filepath.Join(dir, "nope.json"), "read fixture"},
		{"bad json", write("bad.json", "{"), "parse fixture"},
		{"unnamed case", write("unnamed.json", `{"cases":[{"question":"q"}]}`), "has no name"},
		{"duplicate case", write("dup.json", `{"cases":[{"name":"a"},{"name":"a"}]}`), "duplicate case"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFixture(tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
