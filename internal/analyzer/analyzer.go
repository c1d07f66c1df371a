package analyzer

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Hussain0327/ValtricConsulting/internal/cache"
	"github.com/Hussain0327/ValtricConsulting/internal/logging"
	"github.com/Hussain0327/ValtricConsulting/internal/retrieval"
	"github.com/Hussain0327/ValtricConsulting/internal/store"
	"github.com/Hussain0327/ValtricConsulting/internal/valuation"
)

// #endregion

// #region service

// Service answers one valuation question per call: retrieval, the consultant
// pipeline, sanitization with one-shot citation recovery, and the evidence
// gate, all under a per-request deadline.
type Service struct {
	opts Options
	log  *slog.Logger
}

// New builds a Service. A nil logger means logging.New("analyzer").
func New(opts Options, logger *slog.Logger) (*Service, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("analyzer: pipeline is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.TopK <= 0 {
		opts.TopK = retrieval.DefaultConfig().TopK
	}
	if opts.ResponseVersion == "" {
		opts.ResponseVersion = DefaultResponseVersion
	}
	if logger == nil {
		logger = logging.New("analyzer")
	}
	return &Service{opts: opts, log: logger}, nil
}

// #endregion

// #region analyze

// Analyze resolves dealID through the deal store and analyzes it.
func (s *Service) Analyze(ctx context.Context, dealID int64, question string) (Result, error) {
	if s.opts.Deals == nil {
		return Result{}, fmt.Errorf("deal %d: %w", dealID, ErrDealNotFound)
	}
	deal, err := s.opts.Deals.GetDeal(ctx, dealID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{}, fmt.Errorf("deal %d: %w", dealID, ErrDealNotFound)
	}
	if err != nil {
		return Result{}, fmt.Errorf("load deal %d: %w", dealID, err)
	}
	return s.AnalyzeDeal(ctx, deal, question)
}

// AnalyzeDeal analyzes an already resolved deal. Deals without an id bypass
// the cache and are not persisted.
func (s *Service) AnalyzeDeal(ctx context.Context, deal valuation.DealFacts, question string) (Result, error) {
	key := cache.Key(deal.ID, question)
	if deal.ID != 0 {
		if hit, ok := s.opts.Cache.Get(key); ok {
			hit.Meta.CacheHit = true
			s.log.Info("analysis cache hit", "deal_id", deal.ID, "request_id", hit.Meta.RequestID)
			return hit, nil
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	type outcome struct {
		res   Result
		comps []valuation.EvidenceChunk
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		res, comps, err := s.run(runCtx, deal, question)
		done <- outcome{res, comps, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-runCtx.Done():
		out.err = runCtx.Err()
	}
	if out.err == nil && runCtx.Err() != nil {
		// stages degrade on cancelled calls, so a late result is discarded
		out.err = runCtx.Err()
	}
	if out.err != nil {
		if errors.Is(out.err, context.DeadlineExceeded) {
			s.log.Warn("analysis deadline exceeded", "deal_id", deal.ID, "timeout", s.opts.Timeout)
			return Result{}, fmt.Errorf("%w after %s", ErrDeadlineExceeded, s.opts.Timeout)
		}
		return Result{}, out.err
	}

	res := out.res
	if deal.ID != 0 {
		if s.opts.Sink != nil {
			res.Meta.AnalysisID = s.persist(ctx, deal, question, res, out.comps)
		}
		s.opts.Cache.Set(key, res)
	}
	return res, nil
}

// #endregion

// #region run

func (s *Service) run(ctx context.Context, deal valuation.DealFacts, question string) (Result, []valuation.EvidenceChunk, error) {
	start := time.Now()
	meta := Meta{
		RequestID:       uuid.New().String(),
		DealID:          deal.ID,
		ResponseVersion: s.opts.ResponseVersion,
	}
	log := s.log.With("request_id", meta.RequestID, "deal_id", deal.ID)

	var comps []valuation.EvidenceChunk
	if s.opts.Retriever != nil {
		stage := time.Now()
		ret := s.opts.Retriever.Retrieve(ctx, deal, question, s.opts.TopK)
		comps = ret.Chunks
		meta.Retrieval = ret.Info
		logging.Boundary(log, "retrieval", stage, "retrieval_hits", len(comps), "backend", ret.Info.Backend)
	} else {
		meta.Retrieval = retrieval.Info{Backend: retrieval.BackendNone, RerankProvider: "none"}
	}

	stage := time.Now()
	draft, cmeta := s.opts.Pipeline.Analyze(ctx, deal, comps, question)
	meta.Meta = cmeta
	logging.Boundary(log, "consultant", stage, "complexity", cmeta.Path, "used_synthesis", cmeta.UsedSynthesis)

	hits := len(comps)
	meta.RetrievalHits = hits
	meta.RetrievalRequired = valuation.RetrievalRequired(question) || hits > 0
	opts := valuation.SanitizeOptions{
		BaselineMultiple:  deal.BaselineMultiple(),
		RetrievalRequired: meta.RetrievalRequired,
		RetrievalHits:     hits,
	}

	payload, err := valuation.Sanitize(draft, opts)
	if errors.Is(err, valuation.ErrEvidenceRequired) {
		recovered, ok := valuation.InjectFallbackCitations(draft, comps)
		if !ok {
			log.Error("evidence violation", "error", err, "retrieval_hits", hits)
			return Result{}, nil, err
		}
		log.Warn("injecting fallback citations", "retrieval_hits", hits)
		meta.FallbackCitationsInjected = true
		payload, err = valuation.Sanitize(recovered, opts)
	}
	if err != nil {
		log.Error("sanitize failed", "error", err, "retrieval_hits", hits)
		return Result{}, nil, err
	}
	if err := valuation.Enforce(payload, hits); err != nil {
		log.Error("evidence violation", "error", err, "retrieval_hits", hits)
		return Result{}, nil, err
	}

	meta.Citations = len(payload.CompsUsed)
	meta.RequestMS = logging.MillisSince(start)
	log.Info("analysis complete",
		"complexity", cmeta.Path,
		"triage_confidence", confidenceAttr(cmeta.TriageConfidence),
		"retrieval_hits", hits,
		"retrieval_required", meta.RetrievalRequired,
		"cited_comps", meta.Citations,
		"fallback_citations", meta.FallbackCitationsInjected,
		"overall_ms", meta.RequestMS,
		"response_version", meta.ResponseVersion,
	)

	return Result{Payload: payload, Meta: meta}, comps, nil
}

func confidenceAttr(c *float64) any {
	if c == nil {
		return nil
	}
	return *c
}

// #endregion
