package codec

import (
	"context"
	"fmt"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Hussain0327/ValtricConsulting/internal/backend"
	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #region methods
const servicePrefix = "/valtric.codec.v1.CodecService/"

const (
	methodEmbed    = servicePrefix + "Embed"
	methodSearch   = servicePrefix + "Search"
	methodRerank   = servicePrefix + "Rerank"
	methodComplete = servicePrefix + "Complete"
)

// DefaultTimeout bounds one sidecar call when the caller sets none.
const DefaultTimeout = 45 * time.Second

// #endregion methods

// #region client-struct
// Client talks to the inference sidecar. Requests and responses are
// google.protobuf.Struct messages, so no generated stubs are needed.
type Client struct {
	conn    *grpc.ClientConn
	cc      grpc.ClientConnInterface
	timeout time.Duration
}

// #endregion client-struct

// #region constructor
// NewClient connects to the sidecar at addr. Every call is bounded by
// timeout; zero means DefaultTimeout.
func NewClient(addr string, timeout time.Duration) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("codec: %w", backend.ErrNotConfigured)
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn, timeout: callTimeout(timeout)}, nil
}

// NewClientWithConn wraps an existing connection. Used for testing without a
// real sidecar.
func NewClientWithConn(cc grpc.ClientConnInterface, timeout time.Duration) *Client {
	return &Client{cc: cc, timeout: callTimeout(timeout)}
}

func callTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}

func (c *Client) Name() string { return "codec" }

// #endregion constructor

// #region close
// Close shuts down the gRPC connection, if the client owns one.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region invoke
func (c *Client) call(ctx context.Context, op, method string, req map[string]any) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("%s: encode: %w", op, err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, method, in, out); err != nil {
		if status.Code(err) == codes.Unimplemented {
			return nil, fmt.Errorf("%s rpc: %w: %v", op, backend.ErrNotConfigured, err)
		}
		return nil, fmt.Errorf("%s rpc: %w", op, err)
	}
	return out.AsMap(), nil
}

// #endregion invoke

// #region embed
// Embed returns one vector per text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	resp, err := c.call(ctx, "embed", methodEmbed, map[string]any{"texts": anyStrings(texts)})
	if err != nil {
		return nil, err
	}
	rows, _ := resp["embeddings"].([]any)
	if len(rows) != len(texts) {
		return nil, fmt.Errorf("embed rpc: expected %d vectors, got %d", len(texts), len(rows))
	}
	out := make([][]float32, len(rows))
	for i, r := range rows {
		out[i] = vector(r)
	}
	return out, nil
}

// #endregion embed

// #region search
// Search runs a vector search on the sidecar's chunk store.
func (c *Client) Search(ctx context.Context, vec []float32, topK int, dealID int64) ([]valuation.EvidenceChunk, error) {
	if len(vec) == 0 || topK <= 0 {
		return nil, nil
	}
	req := map[string]any{"vector": anyFloats(vec), "top_k": topK}
	if dealID != 0 {
		req["deal_id"] = dealID
	}
	resp, err := c.call(ctx, "search", methodSearch, req)
	if err != nil {
		return nil, err
	}
	items, _ := resp["results"].([]any)
	out := make([]valuation.EvidenceChunk, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		sim := number(m["similarity"])
		meta, _ := m["meta"].(map[string]any)
		out = append(out, valuation.EvidenceChunk{
			ChunkID:    text(m["chunk_id"]),
			Text:       text(m["text"]),
			Source:     text(m["source"]),
			DocumentID: text(m["document_id"]),
			Meta:       meta,
			Similarity: sim,
			Score:      sim,
		})
	}
	return out, nil
}

// #endregion search

// #region rerank
// Rerank scores docs against query on the sidecar's cross-encoder.
func (c *Client) Rerank(ctx context.Context, query string, docs []string, topK int) ([]backend.Ranked, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	resp, err := c.call(ctx, "rerank", methodRerank, map[string]any{
		"query":     query,
		"documents": anyStrings(docs),
		"top_k":     topK,
	})
	if err != nil {
		return nil, err
	}
	items, _ := resp["results"].([]any)
	out := make([]backend.Ranked, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		idx, ok := m["index"].(float64)
		if !ok || idx != math.Trunc(idx) {
			continue
		}
		out = append(out, backend.Ranked{Index: int(idx), Score: number(m["score"])})
	}
	return out, nil
}

// #endregion rerank

// #region complete
// Complete runs one reasoning call on the sidecar's local model.
func (c *Client) Complete(ctx context.Context, req backend.CompletionRequest) (string, error) {
	resp, err := c.call(ctx, "complete", methodComplete, map[string]any{
		"system":    req.System,
		"prompt":    req.Prompt,
		"effort":    req.Effort,
		"verbosity": req.Verbosity,
	})
	if err != nil {
		return "", err
	}
	return text(resp["text"]), nil
}

// #endregion complete

// #region values
func anyStrings(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func anyFloats(in []float32) []any {
	out := make([]any, len(in))
	for i, f := range in {
		out[i] = float64(f)
	}
	return out
}

func vector(v any) []float32 {
	items, _ := v.([]any)
	out := make([]float32, len(items))
	for i, it := range items {
		out[i] = float32(number(it))
	}
	return out
}

func number(v any) float64 {
	f, _ := v.(float64)
	return f
}

// text renders a string or integral id; anything else is "".
func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	}
	return ""
}

// #endregion values
