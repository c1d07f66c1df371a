package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Hussain0327/ValtricConsulting/internal/analyzer"
	"github.com/Hussain0327/ValtricConsulting/internal/backend"
	"github.com/Hussain0327/ValtricConsulting/internal/consultant"
	"github.com/Hussain0327/ValtricConsulting/internal/limiter"
	"github.com/Hussain0327/ValtricConsulting/internal/logging"
	"github.com/Hussain0327/ValtricConsulting/internal/retrieval"
	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #region types

// Config controls a replay run.
type Config struct {
	Parallel       int           // concurrent cases; default 1
	LLMConcurrency int           // shared reasoning limiter size; default 4
	Timeout        time.Duration // per-case deadline; default analyzer.DefaultTimeout
	Logger         *slog.Logger
}

// DefaultConfig returns serial replay with production limits.
func DefaultConfig() Config {
	return Config{Parallel: 1, LLMConcurrency: 4, Timeout: analyzer.DefaultTimeout}
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Name   string
	Passed bool
	Detail string
	Result *analyzer.Result
	Err    error
}

// Report aggregates a run. Results keep fixture order.
type Report struct {
	Total   int
	Passed  int
	Results []CaseResult
}

// #endregion types

// #region run

// Run replays every case through the full analysis pipeline with scripted
// backends. All cases share one reasoning limiter, as requests do in
// production.
func Run(ctx context.Context, f *Fixture, cfg Config) Report {
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	if cfg.LLMConcurrency < 1 {
		cfg.LLMConcurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = analyzer.DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New("replay")
	}
	lim := limiter.New("reasoning", cfg.LLMConcurrency)

	results := make([]CaseResult, len(f.Cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallel)
	for i, c := range f.Cases {
		i, c := i, c
		g.Go(func() error {
			results[i] = runCase(gctx, c, lim, cfg)
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Total: len(results), Results: results}
	for _, r := range results {
		if r.Passed {
			rep.Passed++
		}
	}
	return rep
}

func runCase(ctx context.Context, c Case, lim *limiter.Limiter, cfg Config) CaseResult {
	log := cfg.Logger.With("case", c.Name)
	pipeline := consultant.New(scripted(c.Triage), scripted(c.Synthesis), lim, consultant.DefaultConfig(), log)
	svc, err := analyzer.New(analyzer.Options{
		Retriever: fixedEvidence(c.Evidence),
		Pipeline:  pipeline,
		Timeout:   cfg.Timeout,
	}, log)
	if err != nil {
		return CaseResult{Name: c.Name, Err: err, Detail: err.Error()}
	}

	res, err := svc.AnalyzeDeal(ctx, c.Deal, c.Question)
	out := CaseResult{Name: c.Name, Err: err}
	if err == nil {
		out.Result = &res
	}
	if detail := check(c, res, err); detail != "" {
		out.Detail = detail
		return out
	}
	out.Passed = true
	return out
}

// #endregion run

// #region stubs

type scriptedReasoner struct{ s Script }

func (r scriptedReasoner) Complete(ctx context.Context, _ backend.CompletionRequest) (string, error) {
	if r.s.DelayMS > 0 {
		select {
		case <-time.After(time.Duration(r.s.DelayMS) * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if r.s.Error != "" {
		return "", errors.New(r.s.Error)
	}
	return r.s.Response, nil
}

// scripted returns nil for a nil script so the consultant sees an absent backend.
func scripted(s *Script) backend.Reasoner {
	if s == nil {
		return nil
	}
	return scriptedReasoner{s: *s}
}

type fixedEvidence []valuation.EvidenceChunk

func (f fixedEvidence) Retrieve(_ context.Context, _ valuation.DealFacts, question string, topK int) retrieval.Result {
	chunks := []valuation.EvidenceChunk(f)
	if topK > 0 && len(chunks) > topK {
		chunks = chunks[:topK]
	}
	out := make([]valuation.EvidenceChunk, len(chunks))
	copy(out, chunks)
	backendName := retrieval.BackendLocal
	if len(out) == 0 {
		backendName = retrieval.BackendNone
	}
	return retrieval.Result{
		Chunks: out,
		Info:   retrieval.Info{Query: question, Backend: backendName, Hits: len(out), RerankProvider: "none"},
	}
}

// #endregion stubs

// #region checks

// check returns "" when the case outcome matches its expectations.
func check(c Case, res analyzer.Result, err error) string {
	exp := c.Expectations
	if exp.ExpectError != "" {
		if err == nil {
			return fmt.Sprintf("expected error %s, got a result", exp.ExpectError)
		}
		if name := errorName(err); name != exp.ExpectError {
			return fmt.Sprintf("expected error %s, got %s (%v)", exp.ExpectError, name, err)
		}
		return ""
	}
	if err != nil {
		return fmt.Sprintf("unexpected error: %v", err)
	}

	raw, mErr := json.Marshal(res.Payload)
	if mErr != nil {
		return fmt.Sprintf("encode payload: %v", mErr)
	}
	if vErr := ValidateResponse(raw); vErr != nil {
		return vErr.Error()
	}
	if detail := checkExpectations(exp, res); detail != "" {
		return fmt.Sprintf("%s: %s", c.Name, detail)
	}
	return ""
}

func errorName(err error) string {
	switch {
	case errors.Is(err, valuation.ErrEvidenceRequired):
		return "evidence_required"
	case errors.Is(err, analyzer.ErrDeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, analyzer.ErrDealNotFound):
		return "deal_not_found"
	}
	return "internal"
}

func checkExpectations(exp Expectations, res analyzer.Result) string {
	p := res.Payload
	if exp.MinCitations != nil && len(p.CompsUsed) < *exp.MinCitations {
		return fmt.Sprintf("expected at least %d citations, got %d", *exp.MinCitations, len(p.CompsUsed))
	}
	if exp.RequireNoCitableFlag && !p.HasFlag(valuation.FlagNoCitableEvidence) {
		return "missing no_citable_evidence flag"
	}
	if exp.RequireFallbackFlag && !p.HasFlag(valuation.FlagFallbackCitationsInjected) {
		return "missing fallback_citations_injected flag"
	}
	if exp.MaxConfidence != nil && p.Confidence > *exp.MaxConfidence {
		return fmt.Sprintf("confidence %g exceeds %g", p.Confidence, *exp.MaxConfidence)
	}
	if exp.MinConfidence != nil && p.Confidence < *exp.MinConfidence {
		return fmt.Sprintf("confidence %g below %g", p.Confidence, *exp.MinConfidence)
	}
	if exp.Conclusion != "" && string(p.Conclusion) != exp.Conclusion {
		return fmt.Sprintf("conclusion %q, want %q", p.Conclusion, exp.Conclusion)
	}
	if exp.Path != "" && string(res.Meta.Path) != exp.Path {
		return fmt.Sprintf("path %q, want %q", res.Meta.Path, exp.Path)
	}
	return ""
}

// #endregion checks

// #region validate

var allowedKeys = map[string]bool{
	"conclusion": true, "implied_multiple": true, "range": true, "reasoning": true,
	"comps_used": true, "risk_flags": true, "confidence": true,
}

// ValidateResponse checks an encoded analysis payload against the response
// contract: exactly the seven keys, correct JSON types, chunk-prefixed
// citations and confidence within [0, 1].
func ValidateResponse(raw []byte) error {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("response is not a JSON object: %w", err)
	}
	var extra []string
	for k := range data {
		if !allowedKeys[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		return fmt.Errorf("unexpected keys: %s", strings.Join(extra, ", "))
	}
	if _, ok := data["conclusion"].(string); !ok {
		return errors.New("conclusion must be string")
	}
	if _, ok := data["implied_multiple"].(float64); !ok {
		return errors.New("implied_multiple must be number")
	}
	rng, ok := data["range"].([]any)
	if !ok || len(rng) != 2 {
		return errors.New("range must be [low, high]")
	}
	lo, okLo := rng[0].(float64)
	hi, okHi := rng[1].(float64)
	if !okLo || !okHi {
		return errors.New("range entries must be numeric")
	}
	if lo > hi {
		return errors.New("range low must not exceed high")
	}
	if _, ok := data["reasoning"].(string); !ok {
		return errors.New("reasoning must be string")
	}
	comps, ok := data["comps_used"].([]any)
	if !ok {
		return errors.New("comps_used must be list")
	}
	for _, c := range comps {
		m, ok := c.(map[string]any)
		if !ok {
			return errors.New("comps_used entries must be objects")
		}
		id, ok := m["source_id"].(string)
		if !ok || !strings.HasPrefix(id, valuation.CitationPrefix) {
			return errors.New("each comp must include source_id starting with chunk:")
		}
	}
	if _, ok := data["risk_flags"].([]any); !ok {
		return errors.New("risk_flags must be list")
	}
	conf, ok := data["confidence"].(float64)
	if !ok || conf < 0 || conf > 1 {
		return errors.New("confidence must be 0<=x<=1")
	}
	return nil
}

// #endregion validate
