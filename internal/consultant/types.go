package consultant

// #region imports
import (
	"errors"

	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #endregion

// #region complexity

// Complexity labels how much reasoning a request needs.
type Complexity string

const (
	ComplexityEasy Complexity = "easy"
	ComplexityHard Complexity = "hard"
)

// #endregion

// #region triage-plan

// ErrTriageParse marks triage text that is not a valid plan.
var ErrTriageParse = errors.New("triage plan parse failed")

// TriagePlan is the structured plan a triage backend may return.
// Unknown fields make the whole plan invalid.
type TriagePlan struct {
	Objective       *string  `json:"objective"`
	RequiredComps   []string `json:"required_comps"`
	MissingData     []string `json:"missing_data"`
	Queries         []string `json:"queries"`
	RiskFlags       []string `json:"risk_flags"`
	RouteSuggestion *string  `json:"route_suggestion"`
	Confidence      *float64 `json:"confidence"`
}

// #endregion

// #region triage-outcome

// TriageKind is the variant tag of a TriageOutcome.
type TriageKind string

const (
	TriageSkipped     TriageKind = "skipped"     // not hard, or no backend
	TriageUnavailable TriageKind = "unavailable" // the call itself failed
	TriagePlanned     TriageKind = "planned"     // strict plan parsed
	TriageDrafted     TriageKind = "drafted"     // plan parse failed; text coerced into a draft
)

// TriageOutcome is the result of the triage stage. Plan is set only for
// TriagePlanned and Draft only for TriageDrafted. ParseErr records why a
// drafted response was not a plan.
type TriageOutcome struct {
	Kind     TriageKind
	Plan     *TriagePlan
	Draft    valuation.Draft
	Summary  string
	Err      error
	ParseErr error
}

// Confidence returns the plan confidence, or nil when there is no plan or the
// plan left it unset.
func (o TriageOutcome) Confidence() *float64 {
	if o.Plan == nil || o.Plan.Confidence == nil {
		return nil
	}
	c := *o.Plan.Confidence
	return &c
}

// #endregion

// #region skip-reasons

const (
	SkipNotHard           = "not_hard"
	SkipMissingBackend    = "missing_backend"
	SkipTriageUnavailable = "triage_unavailable"
)

// #endregion

// #region meta

// Timings are per-stage wall times in milliseconds. A stage that did not run
// reports 0.
type Timings struct {
	TriageMS    float64 `json:"triage_ms"`
	SynthesisMS float64 `json:"synthesis_ms"`
	OverallMS   float64 `json:"overall_ms"`
}

// Meta describes how a draft was produced. It is observability data and not
// part of the validated payload.
type Meta struct {
	Path             Complexity `json:"path"`
	Timings          Timings    `json:"timings"`
	TriageOutcome    TriageKind `json:"triage_outcome"`
	TriageConfidence *float64   `json:"triage_confidence"`
	SkipReason       string     `json:"skip_reason,omitempty"`
	Escalated        bool       `json:"escalated"`
	UsedSynthesis    bool       `json:"used_synthesis"`
	SynthesisFailed  bool       `json:"synthesis_failed,omitempty"`
	RoutingVersion   string     `json:"routing_version,omitempty"`
	PromptVersion    string     `json:"prompt_version,omitempty"`
}

// #endregion

// #region config

// Config holds the reasoning hints and version labels.
type Config struct {
	TriageEffort        string
	SynthesisEffortEasy string
	SynthesisEffortHard string
	VerbosityEasy       string
	VerbosityHard       string
	RoutingVersion      string
	PromptVersion       string
}

// DefaultConfig returns the production hints.
func DefaultConfig() Config {
	return Config{
		TriageEffort:        "high",
		SynthesisEffortEasy: "minimal",
		SynthesisEffortHard: "high",
		VerbosityEasy:       "low",
		VerbosityHard:       "medium",
		RoutingVersion:      "routing_v1.0",
		PromptVersion:       "prompt_v1.0",
	}
}

// #endregion
