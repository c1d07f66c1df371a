package supabase

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Hussain0327/ValtricConsulting/internal/backend"
	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #endregion

// #region client

// DefaultMatchFunction is the RPC that performs the vector match.
const DefaultMatchFunction = "match_chunks"

// Client searches chunks through a PostgREST RPC at {url}/rest/v1/rpc/{fn}.
type Client struct {
	hc  *http.Client
	url string
	key string
}

// New returns a search client, or backend.ErrNotConfigured when the URL or
// service key is missing.
func New(hc *http.Client, baseURL, serviceKey, matchFn string) (*Client, error) {
	if baseURL == "" || serviceKey == "" {
		return nil, fmt.Errorf("supabase: %w", backend.ErrNotConfigured)
	}
	if matchFn == "" {
		matchFn = DefaultMatchFunction
	}
	if hc == nil {
		hc = backend.NewHTTPClient(backend.Timeouts{Read: 25 * time.Second})
	}
	return &Client{hc: hc, url: backend.JoinURL(baseURL, "rest/v1/rpc/"+matchFn), key: serviceKey}, nil
}

func (c *Client) Name() string { return "supabase" }

// #endregion

// #region search

type row struct {
	ChunkID    json.RawMessage `json:"chunk_id"`
	ID         json.RawMessage `json:"id"`
	Text       *string         `json:"text"`
	Content    *string         `json:"content"`
	Meta       map[string]any  `json:"meta"`
	DocumentID json.RawMessage `json:"document_id"`
	SourceName *string         `json:"source_name"`
	Source     *string         `json:"source"`
	Similarity *float64        `json:"similarity"`
	Score      *float64        `json:"score"`
}

// Search runs the match function. The RPC may answer with a bare list or
// with {"results": [...]}.
func (c *Client) Search(ctx context.Context, vec []float32, topK int, dealID int64) ([]valuation.EvidenceChunk, error) {
	if len(vec) == 0 || topK <= 0 {
		return nil, nil
	}
	payload := map[string]any{
		"query_embedding": vec,
		"match_count":     topK,
	}
	if dealID != 0 {
		payload["target_deal_id"] = dealID
	}
	headers := map[string]string{
		"apikey":        c.key,
		"Authorization": "Bearer " + c.key,
	}

	var raw json.RawMessage
	if err := backend.PostJSON(ctx, c.hc, "supabase search", c.url, headers, payload, &raw); err != nil {
		return nil, err
	}
	rows, err := decodeRows(raw)
	if err != nil {
		return nil, fmt.Errorf("supabase search: %w", err)
	}

	out := make([]valuation.EvidenceChunk, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.chunk())
	}
	return out, nil
}

func decodeRows(raw json.RawMessage) ([]row, error) {
	var rows []row
	if err := json.Unmarshal(raw, &rows); err == nil {
		return rows, nil
	}
	var env struct {
		Results []row `json:"results"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return env.Results, nil
}

func (r row) chunk() valuation.EvidenceChunk {
	c := valuation.EvidenceChunk{
		ChunkID:    idString(r.ChunkID),
		DocumentID: idString(r.DocumentID),
		Meta:       r.Meta,
	}
	if c.ChunkID == "" {
		c.ChunkID = idString(r.ID)
	}
	switch {
	case r.Text != nil:
		c.Text = *r.Text
	case r.Content != nil:
		c.Text = *r.Content
	}
	switch {
	case r.SourceName != nil:
		c.Source = *r.SourceName
	case r.Source != nil:
		c.Source = *r.Source
	}
	switch {
	case r.Similarity != nil:
		c.Similarity = *r.Similarity
	case r.Score != nil:
		c.Similarity = *r.Score
	}
	c.Score = c.Similarity
	return c
}

// idString renders a numeric or string id; null and absent give "".
func idString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return string(raw)
}

// #endregion
