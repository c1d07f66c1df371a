package rerank

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Hussain0327/ValtricConsulting/internal/backend"
	"github.com/Hussain0327/ValtricConsulting/internal/limiter"
	"github.com/Hussain0327/ValtricConsulting/internal/logging"
)

// #endregion

// #region types

// NeutralScore annotates entries of an ordering no provider produced.
const NeutralScore = 0.0

// ProviderNone is reported when no provider ran.
const ProviderNone = "none"

// ErrPartialResult marks a provider response that does not cover the full
// requested index set.
var ErrPartialResult = errors.New("rerank returned a partial index set")

// Result is the outcome of one rerank. Neutral is true when Order is the
// original ordering because no provider produced an accepted answer; in that
// case every score is NeutralScore and must not be read as relevance.
type Result struct {
	Order        []backend.Ranked
	Provider     string
	Neutral      bool
	FallbackUsed bool
}

// #endregion

// #region reranker

// Reranker orders candidates with a primary provider, then a fallback, then the
// original order. Each provider call holds a slot of the shared rerank limiter.
type Reranker struct {
	primary  backend.RerankProvider
	fallback backend.RerankProvider
	lim      *limiter.Limiter
	log      *slog.Logger
}

// New creates a reranker. Either provider may be nil; lim may be nil for tests.
func New(primary, fallback backend.RerankProvider, lim *limiter.Limiter, logger *slog.Logger) *Reranker {
	if logger == nil {
		logger = logging.New("rerank")
	}
	return &Reranker{primary: primary, fallback: fallback, lim: lim, log: logger}
}

// Enabled reports whether any provider is configured.
func (r *Reranker) Enabled() bool {
	return r != nil && (r.primary != nil || r.fallback != nil)
}

// Rerank returns an ordering of the first min(topK, len(docs)) positions.
// It never fails: provider errors degrade to the next tier.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []string, topK int) Result {
	want := len(docs)
	if topK > 0 && topK < want {
		want = topK
	}
	if !r.Enabled() || want == 0 {
		return Result{Order: neutral(want), Provider: ProviderNone, Neutral: true}
	}

	var tried bool
	for i, p := range []backend.RerankProvider{r.primary, r.fallback} {
		if p == nil {
			continue
		}
		name := backend.NameOf(p, fmt.Sprintf("provider_%d", i))
		order, err := r.call(ctx, p, query, docs, want)
		if err == nil {
			return Result{Order: order, Provider: name, FallbackUsed: tried}
		}
		tried = true
		r.log.Warn("rerank failed", "provider", name, "error", err)
	}

	return Result{Order: neutral(want), Provider: ProviderNone, Neutral: true, FallbackUsed: true}
}

func (r *Reranker) call(ctx context.Context, p backend.RerankProvider, query string, docs []string, want int) ([]backend.Ranked, error) {
	var ranked []backend.Ranked
	err := r.lim.Do(ctx, func(ctx context.Context) error {
		var err error
		ranked, err = p.Rerank(ctx, query, docs, want)
		return err
	})
	if err != nil {
		return nil, err
	}
	return accept(ranked, len(docs), want)
}

// #endregion

// #region acceptance

// accept keeps a provider answer only if it names exactly want distinct,
// in-range indices.
func accept(ranked []backend.Ranked, n, want int) ([]backend.Ranked, error) {
	seen := make(map[int]bool, len(ranked))
	out := make([]backend.Ranked, 0, want)
	for _, item := range ranked {
		if item.Index < 0 || item.Index >= n || seen[item.Index] {
			continue
		}
		seen[item.Index] = true
		out = append(out, item)
	}
	if len(out) != want {
		return nil, fmt.Errorf("%w: got %d of %d", ErrPartialResult, len(out), want)
	}
	return out, nil
}

func neutral(n int) []backend.Ranked {
	out := make([]backend.Ranked, n)
	for i := range out {
		out[i] = backend.Ranked{Index: i, Score: NeutralScore}
	}
	return out
}

// #endregion
