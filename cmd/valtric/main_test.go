package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Hussain0327/ValtricConsulting/internal/analyzer"
	"github.com/Hussain0327/ValtricConsulting/internal/store"
	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #region helpers

var backendEnv = []string{
	"VALTRIC_DB", "OPENAI_API_KEY", "OPENAI_BASE_URL", "DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL",
	"COHERE_API_KEY", "COHERE_BASE_URL", "BGE_RERANK_URL", "SUPABASE_URL",
	"SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_MATCH_FUNCTION", "CODEC_ADDR",
	"LLM_MAX_CONCURRENCY", "RERANK_MAX_CONCURRENCY", "REQUEST_TIMEOUT_SECONDS", "CODEC_TIMEOUT_SECONDS",
}

// isolate clears every backend variable and writes a config pointing at a
// fresh database. It returns the config path.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range backendEnv {
		t.Setenv(k, "")
	}
	t.Setenv("RERANK_PROVIDER", "none")
	dir := t.TempDir()
	cfg := filepath.Join(dir, "valtric.yaml")
	body := fmt.Sprintf("db_path: %s\nlog_level: error\n", filepath.Join(dir, "valtric.db"))
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o644))
	return cfg
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

var acme = map[string]any{
	"deal": map[string]any{"name": "Acme Widgets", "industry": "Manufacturing", "price": 100, "ebitda": 10},
	"documents": []any{
		map[string]any{
			"source_name": "peers.pdf",
			"mime_type":   "application/pdf",
			"chunks": []any{
				map[string]any{"text": "Peers trade at 9x to 11x EBITDA.", "meta": map[string]any{"name": "Peer set"}},
				map[string]any{"text": "Margins are stable.", "embedding": []float32{0, 1, 0}},
			},
		},
	},
}

// #endregion helpers

// #region exit-codes

func TestExitCode(t *testing.T) {
	tests := []struct {
		err   error
		code  int
		label string
	}{
		{&valuation.EvidenceViolationError{RetrievalHits: 2}, 3, "evidence_required"},
		{fmt.Errorf("deal 9: %w", analyzer.ErrDealNotFound), 4, "not_found"},
		{fmt.Errorf("%w after 90s", analyzer.ErrDeadlineExceeded), 5, "deadline_exceeded"},
		{errors.New("boom"), 1, "error"},
	}
	for _, tt := range tests {
		code, label := exitCode(tt.err)
		require.Equal(t, tt.code, code, tt.err.Error())
		require.Equal(t, tt.label, label)
	}
}

// #endregion exit-codes

// #region offline

func TestOffline_IngestAnalyzeInspect(t *testing.T) {
	cfg := isolate(t)

	code, out, stderr := run(t, "--config", cfg, "ingest", writeJSON(t, acme))
	require.Equal(t, 0, code, stderr)
	require.Contains(t, out, "Ingested 1 document(s) for deal 1")

	code, out, stderr = run(t, "--config", cfg, "analyze", "--deal-id", "1", "--question", "What is a fair multiple?")
	require.Equal(t, 0, code, stderr)
	var res struct {
		Analysis map[string]any `json:"analysis"`
		Meta     map[string]any `json:"meta"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, "fair", res.Analysis["conclusion"])
	require.Equal(t, 10.0, res.Analysis["implied_multiple"])
	require.Equal(t, []any{"no_citable_evidence"}, res.Analysis["risk_flags"])
	require.Equal(t, "none", res.Meta["retrieval"].(map[string]any)["backend"])
	require.NotEmpty(t, res.Meta["analysis_id"])

	code, out, stderr = run(t, "--config", cfg, "inspect", "--json")
	require.Equal(t, 0, code, stderr)
	var rep inspectReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Len(t, rep.Analyses, 1)
	require.Equal(t, "fair", rep.Analyses[0].Conclusion)
	require.Len(t, rep.Paths, 1)
	require.Equal(t, "easy", rep.Paths[0].Complexity)

	code, out, stderr = run(t, "--config", cfg, "inspect")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, out, "CONCLUSION")
	require.Contains(t, out, "What is a fair multiple?")
}

func TestAnalyze_UnknownDealExitsNotFound(t *testing.T) {
	cfg := isolate(t)
	code, _, stderr := run(t, "--config", cfg, "analyze", "--deal-id", "42")
	require.Equal(t, exitNotFound, code)
	require.Contains(t, stderr, "not_found")
}

func TestIngest_RequiresDeal(t *testing.T) {
	cfg := isolate(t)
	code, _, stderr := run(t, "--config", cfg, "ingest", writeJSON(t, map[string]any{"documents": []any{}}))
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "deal_id or deal is required")
}

func TestReplay_GoldenFixture(t *testing.T) {
	cfg := isolate(t)
	fixture := filepath.Join("..", "..", "internal", "replay", "testdata", "cases.json")
	code, out, stderr := run(t, "--config", cfg, "replay", fixture, "--parallel", "2")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, out, "PASS easy-synthesis-cited")
	require.Contains(t, out, "Evaluation complete: 6/6")
}

// #endregion offline

// #region online

// fakeOpenAI serves embeddings and responses. Every text embeds to the same
// unit vector; synthesis cites the first stored chunk.
func fakeOpenAI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/embeddings"):
			var req struct {
				Input []string `json:"input"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			data := make([]map[string]any, len(req.Input))
			for i := range req.Input {
				data[i] = map[string]any{"index": i, "embedding": []float32{1, 0, 0}}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
		case strings.HasSuffix(r.URL.Path, "/responses"):
			memo := `{"conclusion":"fair","implied_multiple":10,"range":[9,11],"reasoning":"Peers trade at 9x to 11x.",` +
				`"comps_used":[{"source_id":"chunk:1","name":"Peer set"}],"risk_flags":[],"confidence":0.8}`
			_ = json.NewEncoder(w).Encode(map[string]any{"output_text": memo})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOnline_EmbeddedIngestAndCitedAnalysis(t *testing.T) {
	cfg := isolate(t)
	srv := fakeOpenAI(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", srv.URL+"/v1")

	code, _, stderr := run(t, "--config", cfg, "ingest", writeJSON(t, acme))
	require.Equal(t, 0, code, stderr)

	code, out, stderr := run(t, "--config", cfg, "analyze", "--deal-id", "1", "--question", "Is it fairly priced?")
	require.Equal(t, 0, code, stderr)
	var res analyzerOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, "local", res.Meta.Retrieval.Backend)
	require.Equal(t, 2, res.Meta.RetrievalHits)
	require.True(t, res.Meta.UsedSynthesis)
	require.Equal(t, []valuation.Citation{{SourceID: "chunk:1", Name: "Peer set"}}, res.Analysis.CompsUsed)
	require.Equal(t, 0.8, res.Analysis.Confidence)
}

type analyzerOutput struct {
	Analysis valuation.Payload `json:"analysis"`
	Meta     struct {
		RetrievalHits int  `json:"retrieval_hits"`
		UsedSynthesis bool `json:"used_synthesis"`
		Retrieval     struct {
			Backend string `json:"backend"`
		} `json:"retrieval"`
	} `json:"meta"`
}

// #endregion online

// #region ingest-helpers

type countingEmbedder struct{ texts []string }

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.texts = append(c.texts, texts...)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i + 1)}
	}
	return out, nil
}

func TestEmbedMissing_OnlyFillsGaps(t *testing.T) {
	chunks := []store.Chunk{
		{Text: "a"},
		{Text: "b", Embedding: []float32{9}},
		{Text: "c"},
	}
	emb := &countingEmbedder{}
	require.NoError(t, embedMissing(context.Background(), emb, chunks))
	require.Equal(t, []string{"a", "c"}, emb.texts)
	require.Equal(t, []float32{1}, chunks[0].Embedding)
	require.Equal(t, []float32{9}, chunks[1].Embedding)
	require.Equal(t, []float32{2}, chunks[2].Embedding)

	require.NoError(t, embedMissing(context.Background(), nil, []store.Chunk{{Text: "x"}}))
}

func TestToDocument_OrdAndHash(t *testing.T) {
	three := 3
	doc := ingestDocument{
		SourceName: "memo.md",
		Chunks: []ingestChunk{
			{Text: "first"},
			{Text: "second", Ord: &three, Hash: "given"},
		},
	}.toDocument()
	require.Equal(t, 0, doc.Chunks[0].Ord)
	require.Equal(t, store.HashText("first"), doc.Chunks[0].Hash)
	require.Equal(t, 3, doc.Chunks[1].Ord)
	require.Equal(t, "given", doc.Chunks[1].Hash)
}

// #endregion ingest-helpers
