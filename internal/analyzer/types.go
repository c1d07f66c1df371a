package analyzer

// #region imports
import (
	"context"
	"errors"
	"time"

	"github.com/Hussain0327/ValtricConsulting/internal/consultant"
	"github.com/Hussain0327/ValtricConsulting/internal/retrieval"
	"github.com/Hussain0327/ValtricConsulting/internal/store"
	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #endregion

// #region errors

var (
	// ErrDealNotFound is returned when the deal id is unknown to the deal store.
	ErrDealNotFound = errors.New("deal not found")
	// ErrDeadlineExceeded is returned when the per-request deadline fires
	// before the pipeline completes. No partial result accompanies it.
	ErrDeadlineExceeded = errors.New("analysis deadline exceeded")
)

// #endregion

// #region collaborators

// DealStore resolves deal ids. store.Store satisfies it.
type DealStore interface {
	GetDeal(ctx context.Context, id int64) (valuation.DealFacts, error)
}

// Retriever produces ordered evidence. It never fails.
type Retriever interface {
	Retrieve(ctx context.Context, deal valuation.DealFacts, question string, topK int) retrieval.Result
}

// Pipeline produces an unsanitized draft. It never fails.
type Pipeline interface {
	Analyze(ctx context.Context, deal valuation.DealFacts, comps []valuation.EvidenceChunk, question string) (valuation.Draft, consultant.Meta)
}

// Sink persists finished analyses. Failures are logged, never returned.
type Sink interface {
	SaveAnalysis(ctx context.Context, rec store.AnalysisRecord) (string, error)
	RecordOutcome(ctx context.Context, rec store.StageOutcome) error
}

// #endregion

// #region options

// Options wires a Service. Only Pipeline is required.
type Options struct {
	Deals     DealStore
	Retriever Retriever
	Pipeline  Pipeline
	Sink      Sink
	// Cache may be nil; correctness never depends on it.
	Cache *Cache

	Timeout         time.Duration
	TopK            int
	ResponseVersion string
}

const (
	DefaultTimeout         = 90 * time.Second
	DefaultResponseVersion = "response_v1.0"

	persistTimeout = 5 * time.Second
)

// #endregion

// #region result

// Meta is the observability record returned next to the payload. It is not
// part of the validated schema.
type Meta struct {
	RequestID  string `json:"request_id"`
	AnalysisID string `json:"analysis_id,omitempty"`
	DealID     int64  `json:"deal_id"`

	consultant.Meta

	RetrievalHits             int            `json:"retrieval_hits"`
	RetrievalRequired         bool           `json:"retrieval_required"`
	Citations                 int            `json:"citations"`
	FallbackCitationsInjected bool           `json:"fallback_citations_injected"`
	CacheHit                  bool           `json:"cache_hit"`
	ResponseVersion           string         `json:"response_version"`
	RequestMS                 float64        `json:"request_ms"`
	Retrieval                 retrieval.Info `json:"retrieval"`
}

// Result is a validated payload and its metadata.
type Result struct {
	Payload valuation.Payload `json:"analysis"`
	Meta    Meta              `json:"meta"`
}

// Clone returns a deep copy of the result.
func (r Result) Clone() Result {
	out := r
	out.Payload = r.Payload.Clone()
	if r.Meta.TriageConfidence != nil {
		c := *r.Meta.TriageConfidence
		out.Meta.TriageConfidence = &c
	}
	return out
}

// #endregion
