package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var overrideKeys = []string{
	"VALTRIC_DB", "VALTRIC_LOG_LEVEL", "OPENAI_API_KEY", "OPENAI_BASE_URL",
	"DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL", "COHERE_API_KEY", "COHERE_BASE_URL",
	"RERANK_PROVIDER", "BGE_RERANK_URL", "SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY",
	"SUPABASE_MATCH_FUNCTION", "CODEC_ADDR", "LLM_MAX_CONCURRENCY",
	"RERANK_MAX_CONCURRENCY", "REQUEST_TIMEOUT_SECONDS", "CODEC_TIMEOUT_SECONDS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range overrideKeys {
		t.Setenv(k, "")
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 4, cfg.Limits.LLMConcurrency)
	require.Equal(t, 8, cfg.Limits.RerankConcurrency)
	require.Equal(t, 90*time.Second, cfg.RequestTimeout)
	require.Equal(t, 45*time.Second, cfg.CodecTimeout)
	require.Equal(t, "gpt-5-nano", cfg.Synthesis.Model)
	require.Equal(t, "deepseek-chat", cfg.Triage.Model)
	require.Equal(t, "match_chunks", cfg.Supabase.MatchFunction)
	require.Empty(t, cfg.Synthesis.APIKey)
}

func TestLoad_MissingFileMeansDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_FileOverDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "valtric.yaml")
	body := `
db_path: /tmp/deals.db
request_timeout: 30s
limits:
  llm_concurrency: 2
rerank:
  provider: bge
cache:
  ttl: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/deals.db", cfg.DBPath)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.Equal(t, 2, cfg.Limits.LLMConcurrency)
	require.Equal(t, 8, cfg.Limits.RerankConcurrency, "unset fields keep defaults")
	require.Equal(t, ProviderBGE, cfg.Rerank.Provider)
	require.Equal(t, time.Minute, cfg.Cache.TTL)
	require.Equal(t, "rerank-english-v3.0", cfg.Rerank.Model)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "valtric.yaml")
	require.NoError(t, os.WriteFile(path, []byte("codec_addr: file:1\n"), 0o644))
	t.Setenv("CODEC_ADDR", "env:2")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "2.5")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "env:2", cfg.CodecAddr)
	require.Equal(t, 2500*time.Millisecond, cfg.RequestTimeout)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("limits: [1, 2"), 0o644))
	_, err := Load(bad)
	require.ErrorContains(t, err, "parse config")

	t.Setenv("LLM_MAX_CONCURRENCY", "many")
	_, err = Load("")
	require.ErrorContains(t, err, "LLM_MAX_CONCURRENCY")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":            "sk-test",
		"OPENAI_BASE_URL":           "http://openai.local/v1",
		"DEEPSEEK_API_KEY":          "ds-test",
		"COHERE_API_KEY":            "co-test",
		"RERANK_PROVIDER":           " Codec ",
		"SUPABASE_URL":              "http://supabase.local",
		"SUPABASE_SERVICE_ROLE_KEY": "srk",
		"LLM_MAX_CONCURRENCY":       "6",
		"RERANK_MAX_CONCURRENCY":    "3",
		"CODEC_TIMEOUT_SECONDS":     "1.5",
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(k string) string { return env[k] }))

	require.Equal(t, "sk-test", cfg.Synthesis.APIKey)
	require.Equal(t, "sk-test", cfg.Embeddings.APIKey)
	require.Equal(t, "http://openai.local/v1", cfg.Embeddings.BaseURL)
	require.Equal(t, "ds-test", cfg.Triage.APIKey)
	require.Equal(t, "co-test", cfg.Rerank.CohereAPIKey)
	require.Equal(t, ProviderCodec, cfg.Rerank.Provider)
	require.Equal(t, "http://supabase.local", cfg.Supabase.URL)
	require.Equal(t, "srk", cfg.Supabase.ServiceKey)
	require.Equal(t, 6, cfg.Limits.LLMConcurrency)
	require.Equal(t, 3, cfg.Limits.RerankConcurrency)
	require.Equal(t, "https://api.deepseek.com/v1", cfg.Triage.BaseURL)
	require.Equal(t, 1500*time.Millisecond, cfg.CodecTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero llm limit", func(c *Config) { c.Limits.LLMConcurrency = 0 }, "llm concurrency"},
		{"negative rerank limit", func(c *Config) { c.Limits.RerankConcurrency = -1 }, "rerank concurrency"},
		{"zero request timeout", func(c *Config) { c.RequestTimeout = 0 }, "request timeout"},
		{"zero connect timeout", func(c *Config) { c.HTTP.Connect = 0 }, "http.connect"},
		{"zero codec timeout", func(c *Config) { c.CodecTimeout = 0 }, "codec_timeout"},
		{"unknown provider", func(c *Config) { c.Rerank.Provider = "jina" }, `unknown rerank provider "jina"`},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }, "top_k"},
		{"zero cache", func(c *Config) { c.Cache.Size = 0 }, "cache size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
