package consultant

// #region imports
import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Hussain0327/ValtricConsulting/internal/backend"
	"github.com/Hussain0327/ValtricConsulting/internal/limiter"
	"github.com/Hussain0327/ValtricConsulting/internal/logging"
	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #endregion

// #region consultant-struct

// Consultant runs the adaptive pipeline: baseline, optional triage, escalation
// decision, optional synthesis. Triage and synthesis share one limiter so the
// total number of outbound reasoning calls stays bounded.
type Consultant struct {
	triage    backend.Reasoner
	synthesis backend.Reasoner
	lim       *limiter.Limiter
	cfg       Config
	log       *slog.Logger
}

// #endregion

// #region constructor

// New wires a consultant. Either reasoner may be nil; a nil limiter means unbounded.
func New(triage, synthesis backend.Reasoner, lim *limiter.Limiter, cfg Config, logger *slog.Logger) *Consultant {
	if logger == nil {
		logger = logging.New("consultant")
	}
	return &Consultant{
		triage:    triage,
		synthesis: synthesis,
		lim:       lim,
		cfg:       cfg,
		log:       logger,
	}
}

// #endregion

// #region analyze

// Analyze produces an unsanitized candidate draft and its metadata. It never
// fails: triage and synthesis errors fall back to the previous candidate, and
// the baseline is always available.
func (c *Consultant) Analyze(ctx context.Context, deal valuation.DealFacts, comps []valuation.EvidenceChunk, question string) (valuation.Draft, Meta) {
	overall := time.Now()

	baseline := valuation.Baseline(deal, comps)
	complexity := Classify(question, deal, comps)
	c.log.Info("analysis classification",
		"complexity", complexity,
		"routing_version", c.cfg.RoutingVersion,
	)

	meta := Meta{
		Path:           complexity,
		RoutingVersion: c.cfg.RoutingVersion,
		PromptVersion:  c.cfg.PromptVersion,
	}

	outcome := TriageOutcome{Kind: TriageSkipped, Summary: "Triage not executed; using baseline heuristic."}
	switch {
	case complexity != ComplexityHard:
		meta.SkipReason = SkipNotHard
	case c.triage == nil:
		meta.SkipReason = SkipMissingBackend
		outcome.Summary = "Triage unavailable; falling back to baseline heuristic."
	default:
		start := time.Now()
		outcome = c.runTriage(ctx, deal, comps, baseline, question)
		meta.Timings.TriageMS = logging.MillisSince(start)
		if outcome.Kind == TriageUnavailable {
			meta.SkipReason = SkipTriageUnavailable
		}
	}
	meta.TriageOutcome = outcome.Kind
	meta.TriageConfidence = outcome.Confidence()

	c.log.Info("triage result",
		"outcome", outcome.Kind,
		"skip_reason", meta.SkipReason,
		"triage_confidence", optional(meta.TriageConfidence),
	)

	candidate := baseline
	if outcome.Kind == TriageDrafted && outcome.Draft != nil {
		candidate = outcome.Draft
	}

	meta.Escalated = ShouldEscalate(complexity, candidate, comps)
	if (complexity == ComplexityEasy || meta.Escalated) && c.synthesis != nil {
		start := time.Now()
		draft, err := c.runSynthesis(ctx, deal, comps, baseline, candidate, outcome.Summary, complexity, question)
		meta.Timings.SynthesisMS = logging.MillisSince(start)
		if err != nil {
			c.log.Warn("synthesis failed", "error", err)
			meta.SynthesisFailed = true
		} else {
			candidate = draft
			meta.UsedSynthesis = true
		}
	}

	meta.Timings.OverallMS = logging.MillisSince(overall)
	c.log.Info("pipeline timings",
		"complexity", complexity,
		"triage_ms", meta.Timings.TriageMS,
		"synthesis_ms", meta.Timings.SynthesisMS,
		"overall_ms", meta.Timings.OverallMS,
		"used_synthesis", meta.UsedSynthesis,
		"prompt_version", c.cfg.PromptVersion,
	)

	return candidate.Clone(), meta
}

// #endregion

// #region triage-stage

// runTriage calls the triage backend and classifies its answer. A transport
// failure yields TriageUnavailable; text that is not a plan is coerced into a
// draft seeded by the baseline.
func (c *Consultant) runTriage(ctx context.Context, deal valuation.DealFacts, comps []valuation.EvidenceChunk, baseline valuation.Draft, question string) TriageOutcome {
	req := backend.CompletionRequest{
		System: triageSystemPrompt,
		Prompt: renderTriagePrompt(deal, comps, baseline, question),
		Effort: c.cfg.TriageEffort,
	}
	raw, err := c.complete(ctx, c.triage, req)
	if err != nil {
		c.log.Warn("triage failed", "error", err)
		return TriageOutcome{
			Kind:    TriageUnavailable,
			Err:     err,
			Summary: "Triage unavailable; falling back to baseline heuristic.",
		}
	}

	plan, parseErr := ParseTriagePlan(raw)
	if parseErr == nil {
		c.log.Info("triage plan parsed",
			"confidence", optional(plan.Confidence),
			"route_suggestion", optional(plan.RouteSuggestion),
			"missing", len(plan.MissingData),
			"queries", len(plan.Queries),
		)
		return TriageOutcome{Kind: TriagePlanned, Plan: &plan, Summary: SummarizePlan(plan)}
	}

	c.log.Info("triage plan parse failed", "error", parseErr)
	draft := valuation.Coerce(raw, baseline)
	return TriageOutcome{
		Kind:     TriageDrafted,
		Draft:    draft,
		ParseErr: parseErr,
		Summary:  SummarizeDraft(draft),
	}
}

// #endregion

// #region synthesis-stage

func (c *Consultant) runSynthesis(ctx context.Context, deal valuation.DealFacts, comps []valuation.EvidenceChunk, baseline, seed valuation.Draft, triageSummary string, complexity Complexity, question string) (valuation.Draft, error) {
	effort, verbosity := c.cfg.SynthesisEffortHard, c.cfg.VerbosityHard
	if complexity == ComplexityEasy {
		effort, verbosity = c.cfg.SynthesisEffortEasy, c.cfg.VerbosityEasy
	}
	req := backend.CompletionRequest{
		System:    SystemPrompt(),
		Prompt:    renderSynthesisPrompt(deal, comps, baseline, triageSummary, complexity, question),
		Effort:    effort,
		Verbosity: verbosity,
	}
	raw, err := c.complete(ctx, c.synthesis, req)
	if err != nil {
		return nil, err
	}
	if _, ok := valuation.DecodeObject(raw); !ok {
		c.log.Warn("synthesis returned invalid json", "bytes", len(raw))
	}
	return valuation.Coerce(raw, seed), nil
}

// #endregion

// #region complete

var errEmptyCompletion = errors.New("empty completion")

// optional unwraps a pointer for logging; nil stays nil.
func optional[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// complete issues one reasoning call under the shared limiter. No retries.
func (c *Consultant) complete(ctx context.Context, r backend.Reasoner, req backend.CompletionRequest) (string, error) {
	var raw string
	err := c.lim.Do(ctx, func(ctx context.Context) error {
		var err error
		raw, err = r.Complete(ctx, req)
		return err
	})
	if err != nil {
		return "", err
	}
	if raw == "" {
		return "", errEmptyCompletion
	}
	return raw, nil
}

// #endregion
