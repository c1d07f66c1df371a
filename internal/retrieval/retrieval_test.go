package retrieval

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/Hussain0327/ValtricConsulting/internal/backend"
	"github.com/Hussain0327/ValtricConsulting/internal/limiter"
	"github.com/Hussain0327/ValtricConsulting/internal/rerank"
	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #region mock
type mockEmbedder struct {
	vecs  [][]float32
	err   error
	texts []string
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.texts = texts
	return m.vecs, m.err
}

type mockSearcher struct {
	hits   []valuation.EvidenceChunk
	err    error
	calls  int
	dealID int64
	topK   int
}

func (m *mockSearcher) Search(_ context.Context, _ []float32, topK int, dealID int64) ([]valuation.EvidenceChunk, error) {
	m.calls++
	m.dealID = dealID
	m.topK = topK
	return m.hits, m.err
}

type mockRerank struct {
	ranked []backend.Ranked
	err    error
}

func (m *mockRerank) Name() string { return "cohere" }

func (m *mockRerank) Rerank(_ context.Context, _ string, _ []string, _ int) ([]backend.Ranked, error) {
	return m.ranked, m.err
}

// slowRerank holds each call briefly and records the peak number of calls in
// flight.
type slowRerank struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (m *slowRerank) Name() string { return "cohere" }

func (m *slowRerank) Rerank(ctx context.Context, _ string, docs []string, _ int) ([]backend.Ranked, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(20 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	out := make([]backend.Ranked, len(docs))
	for i := range docs {
		out[i] = backend.Ranked{Index: i, Score: 1 - float64(i)*0.1}
	}
	return out, nil
}

func chunks(ids ...string) []valuation.EvidenceChunk {
	out := make([]valuation.EvidenceChunk, len(ids))
	for i, id := range ids {
		out[i] = valuation.EvidenceChunk{ChunkID: id, Text: "text " + id, Similarity: 0.9 - float64(i)*0.1}
	}
	return out
}

func ids(cs []valuation.EvidenceChunk) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ChunkID
	}
	return out
}

var embedOK = &mockEmbedder{vecs: [][]float32{{0.1, 0.2}}}

// #endregion mock

// #region query-tests
func TestComposeQuery(t *testing.T) {
	tests := []struct {
		name     string
		deal     valuation.DealFacts
		question string
		want     string
	}{
		{"empty", valuation.DealFacts{}, "", "valuation analysis"},
		{"question-only", valuation.DealFacts{}, "Is it cheap?", "Is it cheap?"},
		{
			"full",
			valuation.DealFacts{Name: "Acme", Industry: "SaaS", Price: 120, EBITDA: 12.5},
			"Is it cheap?",
			"Is it cheap? :: name: Acme | industry: SaaS | price: 120 | ebitda: 12.5",
		},
		{"deal-only", valuation.DealFacts{Name: "Acme"}, "  ", "name: Acme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComposeQuery(tt.deal, tt.question); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// #endregion query-tests

// #region tier-tests
func TestRetrieve_RemoteFirst(t *testing.T) {
	remote := &mockSearcher{hits: chunks("r1", "r2")}
	local := &mockSearcher{hits: chunks("l1")}
	c := NewClient(embedOK, remote, local, nil, DefaultConfig(), nil)

	res := c.Retrieve(context.Background(), valuation.DealFacts{ID: 42, Name: "Acme"}, "q", 0)

	if diff := cmp.Diff([]string{"r1", "r2"}, ids(res.Chunks)); diff != "" {
		t.Errorf("ids mismatch:\n%s", diff)
	}
	if res.Info.Backend != BackendRemote || res.Info.Hits != 2 {
		t.Errorf("info: %+v", res.Info)
	}
	if remote.dealID != 42 || remote.topK != 5 {
		t.Errorf("remote scoped to deal %d topK %d", remote.dealID, remote.topK)
	}
	if local.calls != 0 {
		t.Error("local search should not run")
	}
}

func TestRetrieve_FallsBackToLocal(t *testing.T) {
	tests := []struct {
		name   string
		remote backend.Searcher
	}{
		{"remote-error", &mockSearcher{err: errors.New("timeout")}},
		{"remote-empty", &mockSearcher{}},
		{"remote-absent", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := &mockSearcher{hits: chunks("l1")}
			c := NewClient(embedOK, tt.remote, local, nil, DefaultConfig(), nil)
			res := c.Retrieve(context.Background(), valuation.DealFacts{}, "q", 3)
			if res.Info.Backend != BackendLocal || len(res.Chunks) != 1 {
				t.Errorf("expected local hit, got %+v", res)
			}
		})
	}
}

func TestRetrieve_DegradesToEmpty(t *testing.T) {
	tests := []struct {
		name     string
		embedder backend.Embedder
		remote   backend.Searcher
		local    backend.Searcher
	}{
		{"embed-error", &mockEmbedder{err: errors.New("401")}, &mockSearcher{hits: chunks("a")}, nil},
		{"embed-empty", &mockEmbedder{}, &mockSearcher{hits: chunks("a")}, nil},
		{"no-embedder", nil, &mockSearcher{hits: chunks("a")}, nil},
		{"both-fail", embedOK, &mockSearcher{err: errors.New("x")}, &mockSearcher{err: errors.New("y")}},
		{"no-searchers", embedOK, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.embedder, tt.remote, tt.local, nil, DefaultConfig(), nil)
			res := c.Retrieve(context.Background(), valuation.DealFacts{}, "q", 5)
			if len(res.Chunks) != 0 || res.Info.Hits != 0 || res.Info.Backend != BackendNone {
				t.Errorf("expected empty result, got %+v", res)
			}
		})
	}
}

func TestRetrieve_EmbedsComposedQueryOnce(t *testing.T) {
	emb := &mockEmbedder{vecs: [][]float32{{1}}}
	c := NewClient(emb, &mockSearcher{}, nil, nil, DefaultConfig(), nil)
	c.Retrieve(context.Background(), valuation.DealFacts{Industry: "Retail"}, "Fair?", 5)
	if diff := cmp.Diff([]string{"Fair? :: industry: Retail"}, emb.texts); diff != "" {
		t.Errorf("embed input mismatch:\n%s", diff)
	}
}

func TestRetrieve_ConsistencyCheck(t *testing.T) {
	hits := []valuation.EvidenceChunk{
		{ChunkID: "a", Text: "alpha"},
		{ChunkID: "", Text: "no id"},
		{ChunkID: "b", Text: "   "},
		{ChunkID: "a", Text: "dupe"},
		{ChunkID: "c", Text: "0123456789"},
	}
	cfg := DefaultConfig()
	cfg.MaxEvidenceLen = 4
	c := NewClient(embedOK, &mockSearcher{hits: hits}, nil, nil, cfg, nil)

	res := c.Retrieve(context.Background(), valuation.DealFacts{}, "q", 5)
	if diff := cmp.Diff([]string{"a", "c"}, ids(res.Chunks)); diff != "" {
		t.Errorf("ids mismatch:\n%s", diff)
	}
	if res.Chunks[1].Text != "0123" {
		t.Errorf("text not truncated: %q", res.Chunks[1].Text)
	}
}

func TestRetrieve_RemoteOrphanRowsFallBackToLocal(t *testing.T) {
	remote := &mockSearcher{hits: []valuation.EvidenceChunk{{ChunkID: "", Text: "orphan row"}, {ChunkID: "r1", Text: "  "}}}
	local := &mockSearcher{hits: chunks("L1", "L2")}
	c := NewClient(embedOK, remote, local, nil, DefaultConfig(), nil)

	res := c.Retrieve(context.Background(), valuation.DealFacts{}, "q", 5)

	if remote.calls != 1 || local.calls != 1 {
		t.Fatalf("calls remote=%d local=%d, want 1 and 1", remote.calls, local.calls)
	}
	if res.Info.Backend != BackendLocal {
		t.Errorf("backend = %q, want %q", res.Info.Backend, BackendLocal)
	}
	if diff := cmp.Diff([]string{"L1", "L2"}, ids(res.Chunks)); diff != "" {
		t.Errorf("ids mismatch:\n%s", diff)
	}
}

func TestTruncateText_KeepsRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"€€€€", 4, "€"},
		{"€€€€", 6, "€€"},
		{"abcdef", 4, "abcd"},
		{"ab", 4, "ab"},
		{"€", 2, ""},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		got := truncateText(tt.in, tt.n)
		if got != tt.want {
			t.Errorf("truncateText(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncateText(%q, %d) produced invalid UTF-8", tt.in, tt.n)
		}
	}
}

// #endregion tier-tests

// #region rerank-tests
func TestRetrieve_RerankReorders(t *testing.T) {
	p := &mockRerank{ranked: []backend.Ranked{{Index: 2, Score: 0.95}, {Index: 0, Score: 0.5}, {Index: 1, Score: 0.2}}}
	c := NewClient(embedOK, &mockSearcher{hits: chunks("a", "b", "c")}, nil, rerank.New(p, nil, nil, nil), DefaultConfig(), nil)

	res := c.Retrieve(context.Background(), valuation.DealFacts{}, "q", 5)

	if diff := cmp.Diff([]string{"c", "a", "b"}, ids(res.Chunks)); diff != "" {
		t.Errorf("order mismatch:\n%s", diff)
	}
	if !res.Chunks[0].Reranked || res.Chunks[0].Score != 0.95 {
		t.Errorf("top chunk not annotated: %+v", res.Chunks[0])
	}
	if want := chunks("a", "b", "c")[2].Similarity; res.Chunks[0].Similarity != want {
		t.Errorf("similarity must be preserved, got %v", res.Chunks[0].Similarity)
	}
	want := Info{RerankProvider: "cohere", UsedRerank: true, CandidateK: 3, RerankK: 3}
	got := Info{RerankProvider: res.Info.RerankProvider, UsedRerank: res.Info.UsedRerank, CandidateK: res.Info.CandidateK, RerankK: res.Info.RerankK}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("info mismatch:\n%s", diff)
	}
}

func TestRetrieve_RerankSameOrderNotChanged(t *testing.T) {
	p := &mockRerank{ranked: []backend.Ranked{{Index: 0, Score: 0.9}, {Index: 1, Score: 0.8}}}
	c := NewClient(embedOK, &mockSearcher{hits: chunks("a", "b")}, nil, rerank.New(p, nil, nil, nil), DefaultConfig(), nil)

	res := c.Retrieve(context.Background(), valuation.DealFacts{}, "q", 5)
	if res.Info.UsedRerank {
		t.Error("identical leading ids should not report a change")
	}
	if !res.Chunks[0].Reranked {
		t.Error("provider scores should still be marked as reranked")
	}
}

func TestRetrieve_RerankFailureKeepsSimilarityOrder(t *testing.T) {
	p := &mockRerank{err: errors.New("503")}
	c := NewClient(embedOK, &mockSearcher{hits: chunks("a", "b")}, nil, rerank.New(p, nil, nil, nil), DefaultConfig(), nil)

	res := c.Retrieve(context.Background(), valuation.DealFacts{}, "q", 5)
	if diff := cmp.Diff([]string{"a", "b"}, ids(res.Chunks)); diff != "" {
		t.Errorf("order mismatch:\n%s", diff)
	}
	for _, ch := range res.Chunks {
		if ch.Reranked || ch.Score != ch.Similarity {
			t.Errorf("neutral chunk carries rerank score: %+v", ch)
		}
	}
	if !res.Info.FallbackUsed || res.Info.UsedRerank || res.Info.RerankK != 0 {
		t.Errorf("info: %+v", res.Info)
	}
}

func TestRetrieve_RerankLimiterBoundsConcurrency(t *testing.T) {
	const callers = 6
	for _, size := range []int{1, 2} {
		p := &slowRerank{}
		rr := rerank.New(p, nil, limiter.New("rerank", size), nil)

		var wg sync.WaitGroup
		for j := 0; j < callers; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				emb := &mockEmbedder{vecs: [][]float32{{0.1, 0.2}}}
				c := NewClient(emb, &mockSearcher{hits: chunks("a", "b")}, nil, rr, DefaultConfig(), nil)
				res := c.Retrieve(context.Background(), valuation.DealFacts{}, "q", 5)
				if len(res.Chunks) != 2 || !res.Chunks[0].Reranked {
					t.Errorf("size %d: rerank not applied: %+v", size, res.Chunks)
				}
			}()
		}
		wg.Wait()

		if peak := p.peak.Load(); peak < 1 || int(peak) > size {
			t.Errorf("size %d: peak in-flight rerank calls = %d", size, peak)
		}
	}
}

// #endregion rerank-tests
