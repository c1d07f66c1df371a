package rerank

// #region imports
import (
	"context"
	"fmt"
	"net/http"

	"github.com/Hussain0327/ValtricConsulting/internal/backend"
)

// #endregion

// #region cohere

// Cohere calls the hosted rerank endpoint at {base}/rerank.
type Cohere struct {
	hc     *http.Client
	url    string
	apiKey string
	model  string
}

// NewCohere returns a Cohere provider, or backend.ErrNotConfigured without an API key.
func NewCohere(hc *http.Client, baseURL, apiKey, model string) (*Cohere, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("cohere rerank: %w", backend.ErrNotConfigured)
	}
	if baseURL == "" {
		baseURL = "https://api.cohere.com/v1"
	}
	if model == "" {
		model = "rerank-english-v3.0"
	}
	return &Cohere{hc: hc, url: backend.JoinURL(baseURL, "rerank"), apiKey: apiKey, model: model}, nil
}

func (c *Cohere) Name() string { return "cohere" }

type cohereResponse struct {
	Results []struct {
		Index          *int    `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func (c *Cohere) Rerank(ctx context.Context, query string, docs []string, topK int) ([]backend.Ranked, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	body := map[string]any{
		"model":     c.model,
		"query":     query,
		"documents": docs,
		"top_n":     topK,
	}
	var resp cohereResponse
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := backend.PostJSON(ctx, c.hc, "cohere rerank", c.url, headers, body, &resp); err != nil {
		return nil, err
	}
	out := make([]backend.Ranked, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Index == nil {
			continue
		}
		out = append(out, backend.Ranked{Index: *r.Index, Score: r.RelevanceScore})
	}
	return out, nil
}

// #endregion

// #region bge

// BGE calls a self-hosted cross-encoder service that accepts
// {query, documents, top_k}.
type BGE struct {
	hc  *http.Client
	url string
}

// NewBGE returns a BGE provider, or backend.ErrNotConfigured without a URL.
func NewBGE(hc *http.Client, url string) (*BGE, error) {
	if url == "" {
		return nil, fmt.Errorf("bge rerank: %w", backend.ErrNotConfigured)
	}
	return &BGE{hc: hc, url: url}, nil
}

func (b *BGE) Name() string { return "bge" }

type bgeResponse struct {
	Results []struct {
		Index          *int     `json:"index"`
		Score          *float64 `json:"score"`
		RelevanceScore *float64 `json:"relevance_score"`
	} `json:"results"`
}

func (b *BGE) Rerank(ctx context.Context, query string, docs []string, topK int) ([]backend.Ranked, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	body := map[string]any{"query": query, "documents": docs, "top_k": topK}
	var resp bgeResponse
	if err := backend.PostJSON(ctx, b.hc, "bge rerank", b.url, nil, body, &resp); err != nil {
		return nil, err
	}
	out := make([]backend.Ranked, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Index == nil {
			continue
		}
		item := backend.Ranked{Index: *r.Index}
		switch {
		case r.Score != nil:
			item.Score = *r.Score
		case r.RelevanceScore != nil:
			item.Score = *r.RelevanceScore
		}
		out = append(out, item)
	}
	return out, nil
}

// #endregion
