package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Hussain0327/ValtricConsulting/internal/analyzer"
	"github.com/Hussain0327/ValtricConsulting/internal/backend"
	"github.com/Hussain0327/ValtricConsulting/internal/codec"
	"github.com/Hussain0327/ValtricConsulting/internal/config"
	"github.com/Hussain0327/ValtricConsulting/internal/consultant"
	"github.com/Hussain0327/ValtricConsulting/internal/limiter"
	"github.com/Hussain0327/ValtricConsulting/internal/llm"
	"github.com/Hussain0327/ValtricConsulting/internal/logging"
	"github.com/Hussain0327/ValtricConsulting/internal/rerank"
	"github.com/Hussain0327/ValtricConsulting/internal/retrieval"
	"github.com/Hussain0327/ValtricConsulting/internal/store"
	"github.com/Hussain0327/ValtricConsulting/internal/supabase"
)

// #region app

// app holds the process-wide collaborators: the store, the optional codec
// sidecar and one pooled HTTP client per backend class.
type app struct {
	cfg   config.Config
	store *store.Store
	codec *codec.Client
	log   *slog.Logger

	reasoningHC *http.Client
	searchHC    *http.Client
	embedHC     *http.Client
}

func openApp(cfg config.Config) (*app, error) {
	log := logging.New("valtric")
	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{
		cfg:   cfg,
		store: st,
		log:   log,
		reasoningHC: backend.NewHTTPClient(backend.Timeouts{
			Connect: cfg.HTTP.Connect, Write: cfg.HTTP.Write, Read: cfg.HTTP.ReadReasoning,
		}),
		searchHC: backend.NewHTTPClient(backend.Timeouts{
			Connect: cfg.HTTP.Connect, Write: cfg.HTTP.Write, Read: cfg.HTTP.ReadSearch,
		}),
		embedHC: backend.NewHTTPClient(backend.Timeouts{
			Connect: cfg.HTTP.Connect, Write: cfg.HTTP.Write, Read: cfg.HTTP.ReadEmbeddings,
		}),
	}
	if cfg.CodecAddr != "" {
		c, err := codec.NewClient(cfg.CodecAddr, cfg.CodecTimeout)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("codec client %s: %w", cfg.CodecAddr, err)
		}
		a.codec = c
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.codec.Close(); err != nil {
		a.log.Warn("close codec", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("close store", "error", err)
	}
}

// #endregion app

// #region backends

// notConfigured logs why an optional backend is absent. Other construction
// errors are returned.
func (a *app) notConfigured(name string, err error) error {
	if errors.Is(err, backend.ErrNotConfigured) {
		a.log.Info("backend not configured", "backend", name)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// embedder prefers the HTTP embeddings endpoint, then the codec sidecar.
func (a *app) embedder() (backend.Embedder, error) {
	e, err := llm.NewEmbeddings(a.embedHC, llm.Options{
		BaseURL: a.cfg.Embeddings.BaseURL, APIKey: a.cfg.Embeddings.APIKey, Model: a.cfg.Embeddings.Model,
	}, logging.New("embeddings"))
	if err == nil {
		return e, nil
	}
	if err := a.notConfigured("embeddings", err); err != nil {
		return nil, err
	}
	if a.codec != nil {
		return a.codec, nil
	}
	return nil, nil
}

// remoteSearcher prefers Supabase, then the codec sidecar.
func (a *app) remoteSearcher() (backend.Searcher, error) {
	s, err := supabase.New(a.searchHC, a.cfg.Supabase.URL, a.cfg.Supabase.ServiceKey, a.cfg.Supabase.MatchFunction)
	if err == nil {
		return s, nil
	}
	if err := a.notConfigured("supabase", err); err != nil {
		return nil, err
	}
	if a.codec != nil {
		return a.codec, nil
	}
	return nil, nil
}

func (a *app) triageReasoner() (backend.Reasoner, error) {
	c, err := llm.NewChat(a.reasoningHC, llm.Options{
		BaseURL: a.cfg.Triage.BaseURL, APIKey: a.cfg.Triage.APIKey, Model: a.cfg.Triage.Model,
	})
	if err == nil {
		return c, nil
	}
	if err := a.notConfigured("triage", err); err != nil {
		return nil, err
	}
	if a.codec != nil {
		return a.codec, nil
	}
	return nil, nil
}

func (a *app) synthesisReasoner() (backend.Reasoner, error) {
	r, err := llm.NewResponses(a.reasoningHC, llm.Options{
		BaseURL: a.cfg.Synthesis.BaseURL, APIKey: a.cfg.Synthesis.APIKey, Model: a.cfg.Synthesis.Model,
	})
	if err == nil {
		return r, nil
	}
	if err := a.notConfigured("synthesis", err); err != nil {
		return nil, err
	}
	if a.codec != nil {
		return a.codec, nil
	}
	return nil, nil
}

// rerankProviders resolves the configured provider. Cohere without a key
// degrades to BGE; BGE backs up Cohere and the codec sidecar.
func (a *app) rerankProviders() (primary, fallback backend.RerankProvider) {
	var bge backend.RerankProvider
	if b, err := rerank.NewBGE(a.searchHC, a.cfg.Rerank.BGEURL); err == nil {
		bge = b
	}
	switch a.cfg.Rerank.Provider {
	case config.ProviderCohere:
		c, err := rerank.NewCohere(a.searchHC, a.cfg.Rerank.CohereBaseURL, a.cfg.Rerank.CohereAPIKey, a.cfg.Rerank.Model)
		if err != nil {
			a.log.Info("rerank falling back to bge", "provider", a.cfg.Rerank.Provider)
			return bge, nil
		}
		return c, bge
	case config.ProviderBGE:
		return bge, nil
	case config.ProviderCodec:
		if a.codec == nil {
			return bge, nil
		}
		return a.codec, bge
	}
	return nil, nil
}

// #endregion backends

// #region pipeline

func (a *app) retriever() (*retrieval.Client, error) {
	emb, err := a.embedder()
	if err != nil {
		return nil, err
	}
	remote, err := a.remoteSearcher()
	if err != nil {
		return nil, err
	}
	primary, fallback := a.rerankProviders()
	rr := rerank.New(primary, fallback, limiter.New("rerank", a.cfg.Limits.RerankConcurrency), logging.New("rerank"))

	rcfg := retrieval.DefaultConfig()
	rcfg.TopK = a.cfg.Retrieval.TopK
	rcfg.MaxEvidenceLen = a.cfg.Retrieval.MaxEvidenceLen
	return retrieval.NewClient(emb, remote, a.store, rr, rcfg, logging.New("retrieval")), nil
}

func (a *app) consultant() (*consultant.Consultant, error) {
	triage, err := a.triageReasoner()
	if err != nil {
		return nil, err
	}
	synthesis, err := a.synthesisReasoner()
	if err != nil {
		return nil, err
	}
	ccfg := consultant.Config{
		TriageEffort:        a.cfg.Triage.EffortHard,
		SynthesisEffortEasy: a.cfg.Synthesis.EffortEasy,
		SynthesisEffortHard: a.cfg.Synthesis.EffortHard,
		VerbosityEasy:       a.cfg.Synthesis.VerbosityEasy,
		VerbosityHard:       a.cfg.Synthesis.VerbosityHard,
		RoutingVersion:      a.cfg.Versions.Routing,
		PromptVersion:       a.cfg.Versions.Prompt,
	}
	lim := limiter.New("reasoning", a.cfg.Limits.LLMConcurrency)
	return consultant.New(triage, synthesis, lim, ccfg, logging.New("consultant")), nil
}

// analyzer wires the full request pipeline over the store.
func (a *app) analyzer() (*analyzer.Service, error) {
	ret, err := a.retriever()
	if err != nil {
		return nil, err
	}
	cons, err := a.consultant()
	if err != nil {
		return nil, err
	}
	return analyzer.New(analyzer.Options{
		Deals:           a.store,
		Retriever:       ret,
		Pipeline:        cons,
		Sink:            a.store,
		Cache:           analyzer.NewCache(a.cfg.Cache.Size, a.cfg.Cache.TTL),
		Timeout:         a.cfg.RequestTimeout,
		TopK:            a.cfg.Retrieval.TopK,
		ResponseVersion: a.cfg.Versions.Response,
	}, logging.New("analyzer"))
}

// #endregion pipeline
