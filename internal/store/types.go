package store

import (
	"errors"
	"time"

	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #region errors
// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// #endregion errors

// #region documents
// Document is an ingested source file and its chunks.
type Document struct {
	ID         int64
	DealID     int64
	SourceName string
	MimeType   string
	Chunks     []Chunk
}

// Chunk is one passage of a document. Embedding may be empty, in which case
// the chunk is stored but never returned by Search.
type Chunk struct {
	ID        int64
	Ord       int
	Text      string
	Meta      map[string]any
	Hash      string
	Embedding []float32
}

// #endregion documents

// #region analyses
// LineageKind says how a chunk took part in an analysis.
type LineageKind string

const (
	LineageRetrieved LineageKind = "retrieved"
	LineageCited     LineageKind = "cited"
)

// LineageEvent links an analysis to one chunk. Rank is the chunk's position
// in the retrieved list, or the citation order for cited chunks.
type LineageEvent struct {
	ChunkID string
	Kind    LineageKind
	Score   float64
	Rank    int
}

// AnalysisRecord is one persisted analysis. ID is assigned by SaveAnalysis
// when empty.
type AnalysisRecord struct {
	ID        string
	RequestID string
	DealID    int64
	Question  string
	Payload   valuation.Payload
	Meta      map[string]any
	CreatedAt time.Time
	Lineage   []LineageEvent
}

// #endregion analyses

// #region outcomes
// StageOutcome summarises which stages ran for one request.
type StageOutcome struct {
	RequestID     string
	DealID        int64
	Complexity    string
	TriageOutcome string
	UsedSynthesis bool
	Confidence    float64
	Citations     int
	Guardrail     bool
	CreatedAt     time.Time
}

// PathStat is the decay-weighted view of one pipeline path. A path is a
// complexity label plus whether synthesis ran.
type PathStat struct {
	Complexity         string  `json:"complexity"`
	UsedSynthesis      bool    `json:"used_synthesis"`
	Count              int     `json:"count"`
	WeightedConfidence float64 `json:"weighted_confidence"`
	GuardrailRate      float64 `json:"guardrail_rate"`
}

// #endregion outcomes
