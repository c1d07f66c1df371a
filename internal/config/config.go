package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// #region types

// Config is the full runtime configuration. Zero values are filled from
// Default; environment variables override the file.
type Config struct {
	DBPath    string `yaml:"db_path"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Triage     Model      `yaml:"triage"`
	Synthesis  Model      `yaml:"synthesis"`
	Embeddings Model      `yaml:"embeddings"`
	Rerank     Rerank     `yaml:"rerank"`
	Supabase   Supabase   `yaml:"supabase"`
	CodecAddr  string     `yaml:"codec_addr"`
	Limits     Limits     `yaml:"limits"`
	Retrieval  Retrieval  `yaml:"retrieval"`
	Cache      Cache      `yaml:"cache"`
	Versions   Versions   `yaml:"versions"`
	HTTP       HTTPTiming `yaml:"http"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	CodecTimeout   time.Duration `yaml:"codec_timeout"` // per sidecar call
}

// Model configures one reasoning or embedding endpoint.
type Model struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	EffortEasy    string `yaml:"effort_easy"`
	EffortHard    string `yaml:"effort_hard"`
	VerbosityEasy string `yaml:"verbosity_easy"`
	VerbosityHard string `yaml:"verbosity_hard"`
}

// Rerank selects the re-ranking providers. Provider is one of cohere, bge,
// codec or none.
type Rerank struct {
	Provider      string `yaml:"provider"`
	Model         string `yaml:"model"`
	CohereBaseURL string `yaml:"cohere_base_url"`
	CohereAPIKey  string `yaml:"cohere_api_key"`
	BGEURL        string `yaml:"bge_url"`
}

type Supabase struct {
	URL           string `yaml:"url"`
	ServiceKey    string `yaml:"service_key"`
	MatchFunction string `yaml:"match_function"`
}

type Limits struct {
	LLMConcurrency    int `yaml:"llm_concurrency"`
	RerankConcurrency int `yaml:"rerank_concurrency"`
}

type Retrieval struct {
	TopK           int `yaml:"top_k"`
	MaxEvidenceLen int `yaml:"max_evidence_len"`
}

type Cache struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

type Versions struct {
	Routing  string `yaml:"routing"`
	Prompt   string `yaml:"prompt"`
	Response string `yaml:"response"`
}

// HTTPTiming holds the outbound timeouts. Read differs per backend class.
type HTTPTiming struct {
	Connect        time.Duration `yaml:"connect"`
	Write          time.Duration `yaml:"write"`
	ReadReasoning  time.Duration `yaml:"read_reasoning"`
	ReadSearch     time.Duration `yaml:"read_search"`
	ReadEmbeddings time.Duration `yaml:"read_embeddings"`
}

// #endregion types

// #region defaults

const (
	ProviderCohere = "cohere"
	ProviderBGE    = "bge"
	ProviderCodec  = "codec"
	ProviderNone   = "none"
)

// Default returns the production settings with no credentials.
func Default() Config {
	return Config{
		DBPath:    "valtric.db",
		LogLevel:  "info",
		LogFormat: "text",
		Triage: Model{
			BaseURL:    "https://api.deepseek.com/v1",
			Model:      "deepseek-chat",
			EffortHard: "high",
		},
		Synthesis: Model{
			BaseURL:       "https://api.openai.com/v1",
			Model:         "gpt-5-nano",
			EffortEasy:    "minimal",
			EffortHard:    "high",
			VerbosityEasy: "low",
			VerbosityHard: "medium",
		},
		Embeddings: Model{
			BaseURL: "https://api.openai.com/v1",
			Model:   "text-embedding-3-large",
		},
		Rerank: Rerank{
			Provider:      ProviderCohere,
			Model:         "rerank-english-v3.0",
			CohereBaseURL: "https://api.cohere.com/v1",
			BGEURL:        "http://localhost:11434/v1/rerank",
		},
		Supabase:  Supabase{MatchFunction: "match_chunks"},
		Limits:    Limits{LLMConcurrency: 4, RerankConcurrency: 8},
		Retrieval: Retrieval{TopK: 5, MaxEvidenceLen: 4000},
		Cache:     Cache{Size: 256, TTL: 600 * time.Second},
		Versions:  Versions{Routing: "routing_v1.0", Prompt: "prompt_v1.0", Response: "response_v1.0"},
		HTTP: HTTPTiming{
			Connect:        3 * time.Second,
			Write:          10 * time.Second,
			ReadReasoning:  45 * time.Second,
			ReadSearch:     25 * time.Second,
			ReadEmbeddings: 60 * time.Second,
		},
		RequestTimeout: 90 * time.Second,
		CodecTimeout:   45 * time.Second,
	}
}

// #endregion defaults

// #region load

// Load reads path over the defaults, then applies environment overrides.
// An empty path or a missing file means defaults only.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields from the environment. OPENAI_* feeds both the
// synthesis and embeddings endpoints.
func (c *Config) applyEnv(getenv func(string) string) error {
	env := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	env("VALTRIC_DB", &c.DBPath)
	env("VALTRIC_LOG_LEVEL", &c.LogLevel)
	env("OPENAI_API_KEY", &c.Synthesis.APIKey)
	env("OPENAI_API_KEY", &c.Embeddings.APIKey)
	env("OPENAI_BASE_URL", &c.Synthesis.BaseURL)
	env("OPENAI_BASE_URL", &c.Embeddings.BaseURL)
	env("DEEPSEEK_API_KEY", &c.Triage.APIKey)
	env("DEEPSEEK_BASE_URL", &c.Triage.BaseURL)
	env("COHERE_API_KEY", &c.Rerank.CohereAPIKey)
	env("COHERE_BASE_URL", &c.Rerank.CohereBaseURL)
	env("RERANK_PROVIDER", &c.Rerank.Provider)
	env("BGE_RERANK_URL", &c.Rerank.BGEURL)
	env("SUPABASE_URL", &c.Supabase.URL)
	env("SUPABASE_SERVICE_ROLE_KEY", &c.Supabase.ServiceKey)
	env("SUPABASE_MATCH_FUNCTION", &c.Supabase.MatchFunction)
	env("CODEC_ADDR", &c.CodecAddr)

	ints := []struct {
		key string
		dst *int
	}{
		{"LLM_MAX_CONCURRENCY", &c.Limits.LLMConcurrency},
		{"RERANK_MAX_CONCURRENCY", &c.Limits.RerankConcurrency},
	}
	for _, e := range ints {
		v := strings.TrimSpace(getenv(e.key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", e.key, err)
		}
		*e.dst = n
	}
	seconds := []struct {
		key string
		dst *time.Duration
	}{
		{"REQUEST_TIMEOUT_SECONDS", &c.RequestTimeout},
		{"CODEC_TIMEOUT_SECONDS", &c.CodecTimeout},
	}
	for _, e := range seconds {
		v := strings.TrimSpace(getenv(e.key))
		if v == "" {
			continue
		}
		sec, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", e.key, err)
		}
		*e.dst = time.Duration(sec * float64(time.Second))
	}
	c.Rerank.Provider = strings.ToLower(c.Rerank.Provider)
	return nil
}

// #endregion load

// #region validate

// Validate rejects settings the pipeline cannot run with. Missing credentials
// are not errors: the matching backend is simply absent.
func (c Config) Validate() error {
	var errs []error
	if c.Limits.LLMConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("llm concurrency must be positive, got %d", c.Limits.LLMConcurrency))
	}
	if c.Limits.RerankConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("rerank concurrency must be positive, got %d", c.Limits.RerankConcurrency))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"http.connect", c.HTTP.Connect},
		{"http.write", c.HTTP.Write},
		{"http.read_reasoning", c.HTTP.ReadReasoning},
		{"http.read_search", c.HTTP.ReadSearch},
		{"http.read_embeddings", c.HTTP.ReadEmbeddings},
		{"cache.ttl", c.Cache.TTL},
		{"codec_timeout", c.CodecTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.d))
		}
	}
	switch c.Rerank.Provider {
	case ProviderCohere, ProviderBGE, ProviderCodec, ProviderNone, "":
	default:
		errs = append(errs, fmt.Errorf("unknown rerank provider %q", c.Rerank.Provider))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval top_k must be positive, got %d", c.Retrieval.TopK))
	}
	if c.Cache.Size <= 0 {
		errs = append(errs, fmt.Errorf("cache size must be positive, got %d", c.Cache.Size))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// #endregion validate
