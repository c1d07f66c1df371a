package llm

// #region imports
import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Hussain0327/ValtricConsulting/internal/backend"
	"github.com/Hussain0327/ValtricConsulting/internal/logging"
)

// #endregion

// #region embeddings-client

// Embeddings calls {base}/embeddings.
type Embeddings struct {
	hc   *http.Client
	url  string
	opts Options
	log  *slog.Logger
}

// NewEmbeddings returns an embedder, or backend.ErrNotConfigured without an API key.
func NewEmbeddings(hc *http.Client, opts Options, logger *slog.Logger) (*Embeddings, error) {
	opts, err := opts.resolve("embeddings", DefaultOpenAIBaseURL, DefaultEmbeddingModel)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.New("llm")
	}
	return &Embeddings{hc: orDefault(hc), url: backend.JoinURL(opts.BaseURL, "embeddings"), opts: opts, log: logger}, nil
}

func (e *Embeddings) Name() string { return "embeddings:" + e.opts.Model }

// #endregion

// #region embed

type embeddingsResponse struct {
	Data []struct {
		Index     *int      `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text. A response with a different count
// is an error.
func (e *Embeddings) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	body := map[string]any{"model": e.opts.Model, "input": texts}
	var resp embeddingsResponse
	if err := backend.PostJSON(ctx, e.hc, "embeddings", e.url, e.opts.headers(), body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		e.log.Warn("embedding count mismatch", "expected", len(texts), "got", len(resp.Data))
		return nil, fmt.Errorf("embeddings: expected %d vectors, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		idx := i
		if d.Index != nil {
			idx = *d.Index
		}
		if idx < 0 || idx >= len(out) || out[idx] != nil {
			return nil, fmt.Errorf("embeddings: bad index %d", idx)
		}
		out[idx] = d.Embedding
	}
	return out, nil
}

// #endregion
