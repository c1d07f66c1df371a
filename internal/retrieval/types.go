package retrieval

import "github.com/Hussain0327/ValtricConsulting/internal/valuation"

// #region config
// Config holds retrieval limits.
type Config struct {
	TopK           int // default result count when the caller passes 0
	MaxEvidenceLen int // chunk text longer than this is truncated; 0 disables
	CompareWindow  int // leading ids compared to decide whether rerank changed the order
}

// DefaultConfig returns the production retrieval limits.
func DefaultConfig() Config {
	return Config{
		TopK:           5,
		MaxEvidenceLen: 4000,
		CompareWindow:  5,
	}
}

// #endregion config

// #region backend-names

const (
	BackendRemote = "remote"
	BackendLocal  = "local"
	BackendNone   = "none"
)

// #endregion backend-names

// #region result
// Info is retrieval observability data. It never drives control flow.
type Info struct {
	Query          string  `json:"query"`
	Backend        string  `json:"backend"`
	Hits           int     `json:"hits"`
	EmbedFailed    bool    `json:"embed_failed,omitempty"`
	RerankProvider string  `json:"rerank_provider"`
	UsedRerank     bool    `json:"used_rerank"`
	FallbackUsed   bool    `json:"fallback_used"`
	CandidateK     int     `json:"candidate_k"`
	RerankK        int     `json:"rerank_k"`
	EmbedMS        float64 `json:"embed_ms"`
	SearchMS       float64 `json:"search_ms"`
	RerankMS       float64 `json:"rerank_ms"`
}

// Result is an ordered evidence list plus how it was produced.
type Result struct {
	Chunks []valuation.EvidenceChunk
	Info   Info
}

// #endregion result
