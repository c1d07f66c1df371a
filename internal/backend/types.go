package backend

// #region imports
import (
	"context"
	"errors"

	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #endregion

// #region errors

// ErrNotConfigured marks a backend that is absent or missing credentials.
// Callers skip such backends instead of failing the request.
var ErrNotConfigured = errors.New("backend not configured")

// #endregion

// #region contracts

// Embedder turns texts into vectors. The result has the same length as texts;
// empty input yields empty output.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher is a vector-search backend. dealID 0 means unscoped.
// Results are ordered by similarity, highest first.
type Searcher interface {
	Search(ctx context.Context, vec []float32, topK int, dealID int64) ([]valuation.EvidenceChunk, error)
}

// Ranked is one entry of a rerank response: an index into the submitted
// documents and its relevance score.
type Ranked struct {
	Index int
	Score float64
}

// RerankProvider scores documents against a query.
type RerankProvider interface {
	Rerank(ctx context.Context, query string, docs []string, topK int) ([]Ranked, error)
}

// CompletionRequest is a single reasoning call. Effort and Verbosity are hints;
// backends that do not support them ignore them.
type CompletionRequest struct {
	System    string
	Prompt    string
	Effort    string
	Verbosity string
}

// Reasoner returns raw text that is expected, but not guaranteed, to be a
// single JSON object.
type Reasoner interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// #endregion

// #region named

// Namer is implemented by backends that report a provider name for metadata.
type Namer interface {
	Name() string
}

// NameOf returns the provider name of v, or fallback when v does not report one.
func NameOf(v any, fallback string) string {
	if n, ok := v.(Namer); ok {
		if name := n.Name(); name != "" {
			return name
		}
	}
	return fallback
}

// #endregion
