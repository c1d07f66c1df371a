package retrieval

// #region imports
import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Hussain0327/ValtricConsulting/internal/backend"
	"github.com/Hussain0327/ValtricConsulting/internal/logging"
	"github.com/Hussain0327/ValtricConsulting/internal/rerank"
	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #endregion

// #region client
// Client turns a deal and question into ranked evidence. Remote search is tried
// first, local search second; any backend may be nil.
type Client struct {
	embedder backend.Embedder
	remote   backend.Searcher
	local    backend.Searcher
	reranker *rerank.Reranker
	config   Config
	log      *slog.Logger
}

// NewClient wires a retrieval client. reranker may be nil.
func NewClient(embedder backend.Embedder, remote, local backend.Searcher, reranker *rerank.Reranker, config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.New("retrieval")
	}
	if config.CompareWindow <= 0 {
		config.CompareWindow = DefaultConfig().CompareWindow
	}
	return &Client{
		embedder: embedder,
		remote:   remote,
		local:    local,
		reranker: reranker,
		config:   config,
		log:      logger,
	}
}

// #endregion client

// #region retrieve
// Retrieve never fails. Embedding or search errors are logged and produce an
// empty evidence list, which routes the request down the baseline-only path.
func (c *Client) Retrieve(ctx context.Context, deal valuation.DealFacts, question string, topK int) Result {
	if topK <= 0 {
		topK = c.config.TopK
	}
	query := ComposeQuery(deal, question)
	res := Result{Info: Info{Query: query, Backend: BackendNone, RerankProvider: rerank.ProviderNone}}

	if c.embedder == nil {
		c.log.Warn("embedding skipped", "error", backend.ErrNotConfigured)
		res.Info.EmbedFailed = true
		return res
	}

	start := time.Now()
	vecs, err := c.embedder.Embed(ctx, []string{query})
	res.Info.EmbedMS = logging.MillisSince(start)
	if err != nil {
		c.log.Warn("embedding failed", "error", err)
		res.Info.EmbedFailed = true
		return res
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		c.log.Info("embedding empty output", "query", query)
		res.Info.EmbedFailed = true
		return res
	}

	start = time.Now()
	hits, used := c.search(ctx, vecs[0], topK, deal.ID)
	res.Info.SearchMS = logging.MillisSince(start)
	if len(hits) == 0 {
		return res
	}
	res.Info.Backend = used

	start = time.Now()
	res.Chunks = c.rerank(ctx, query, hits, &res.Info)
	res.Info.RerankMS = logging.MillisSince(start)
	res.Info.Hits = len(res.Chunks)

	c.log.Info("rerank summary",
		"provider", res.Info.RerankProvider,
		"used_rerank", res.Info.UsedRerank,
		"fallback_used", res.Info.FallbackUsed,
		"candidate_k", res.Info.CandidateK,
		"rerank_k", res.Info.RerankK,
	)
	return res
}

// search runs remote then local. An error, or an answer with no citable
// chunks after the consistency check, moves on to the next tier.
func (c *Client) search(ctx context.Context, vec []float32, topK int, dealID int64) ([]valuation.EvidenceChunk, string) {
	tiers := []struct {
		name string
		s    backend.Searcher
	}{
		{BackendRemote, c.remote},
		{BackendLocal, c.local},
	}
	for _, tier := range tiers {
		if tier.s == nil {
			continue
		}
		hits, err := tier.s.Search(ctx, vec, topK, dealID)
		if err != nil {
			c.log.Warn("vector search failed", "backend", tier.name, "error", err)
			continue
		}
		valid := c.consistencyCheck(hits)
		c.log.Info("vector search", "backend", tier.name, "hits", len(hits), "citable", len(valid))
		if len(valid) > 0 {
			return valid, tier.name
		}
	}
	return nil, BackendNone
}

// #endregion retrieve

// #region rerank
// rerank reorders hits over the full candidate set. A neutral answer keeps the
// search order and leaves each score at its similarity.
func (c *Client) rerank(ctx context.Context, query string, hits []valuation.EvidenceChunk, info *Info) []valuation.EvidenceChunk {
	window := c.config.CompareWindow
	info.CandidateK = min(len(hits), window)

	for i := range hits {
		hits[i].Score = hits[i].Similarity
		hits[i].Reranked = false
	}
	if !c.reranker.Enabled() {
		return hits
	}

	docs := make([]string, len(hits))
	for i, h := range hits {
		docs[i] = h.Text
	}
	out := c.reranker.Rerank(ctx, query, docs, len(docs))
	info.RerankProvider = out.Provider
	info.FallbackUsed = out.FallbackUsed
	if out.Neutral {
		return hits
	}

	ordered := make([]valuation.EvidenceChunk, 0, len(out.Order))
	for _, r := range out.Order {
		h := hits[r.Index]
		h.Score = r.Score
		h.Reranked = true
		ordered = append(ordered, h)
	}
	info.UsedRerank = !slices.Equal(leadingIDs(hits, window), leadingIDs(ordered, window))
	info.RerankK = min(len(ordered), window)
	return ordered
}

func leadingIDs(chunks []valuation.EvidenceChunk, n int) []string {
	n = min(n, len(chunks))
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = chunks[i].ChunkID
	}
	return ids
}

// #endregion rerank

// #region consistency-check
// consistencyCheck drops chunks that cannot be cited or carry no text, removes
// duplicate ids and truncates overlong text. Order is preserved.
func (c *Client) consistencyCheck(hits []valuation.EvidenceChunk) []valuation.EvidenceChunk {
	seen := make(map[string]bool, len(hits))
	var valid []valuation.EvidenceChunk
	for _, h := range hits {
		if h.ChunkID == "" || strings.TrimSpace(h.Text) == "" {
			continue
		}
		if seen[h.ChunkID] {
			continue
		}
		seen[h.ChunkID] = true
		h.Text = truncateText(h.Text, c.config.MaxEvidenceLen)
		valid = append(valid, h)
	}
	return valid
}

// truncateText cuts s to at most n bytes without splitting a rune.
func truncateText(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// #endregion consistency-check

// #region query
// ComposeQuery joins the question and a compact rendering of the deal facts.
// Zero price or EBITDA is treated as absent.
func ComposeQuery(deal valuation.DealFacts, question string) string {
	var parts []string
	if q := strings.TrimSpace(question); q != "" {
		parts = append(parts, q)
	}

	var details []string
	if deal.Name != "" {
		details = append(details, "name: "+deal.Name)
	}
	if deal.Industry != "" {
		details = append(details, "industry: "+deal.Industry)
	}
	if deal.Price != 0 {
		details = append(details, "price: "+strconv.FormatFloat(deal.Price, 'f', -1, 64))
	}
	if deal.EBITDA != 0 {
		details = append(details, "ebitda: "+strconv.FormatFloat(deal.EBITDA, 'f', -1, 64))
	}
	if len(details) > 0 {
		parts = append(parts, strings.Join(details, " | "))
	}

	if len(parts) == 0 {
		return "valuation analysis"
	}
	return strings.Join(parts, " :: ")
}

// #endregion query
