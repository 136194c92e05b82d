package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "CONFIG_FILE", "RAG_SEMANTIC_TOP_K", "RAG_LEXICAL_TOP_K", "RAG_TOP_K", "RAG_FUSION_RRF_K",
		"RAG_FUSION_IDENTITY", "RERANK_ENABLED", "VECTOR_BACKEND", "EMBEDDING_PROVIDER", "DATABASE_URL", "POSTGRES_DSN")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SemanticTopK != 12 || cfg.LexicalTopK != 12 || cfg.FinalTopK != 5 {
		t.Fatalf("unexpected top-k defaults %d/%d/%d", cfg.SemanticTopK, cfg.LexicalTopK, cfg.FinalTopK)
	}
	if cfg.RerankEnabled {
		t.Fatalf("reranker must be disabled by default")
	}
	if cfg.FusionRRFK != 60 || cfg.FusionIdentity != "content" {
		t.Fatalf("unexpected fusion defaults k=%d identity=%q", cfg.FusionRRFK, cfg.FusionIdentity)
	}
	if cfg.VectorBackend != "pgvector" || cfg.VectorCollection != "ftf_pbs_chunks" {
		t.Fatalf("unexpected vector defaults %q/%q", cfg.VectorBackend, cfg.VectorCollection)
	}
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	clearEnv(t, "RAG_SEMANTIC_TOP_K", "RAG_TOP_K", "RERANK_ENABLED", "EMBED_CACHE_TTL", "VECTOR_BACKEND", "LOG_LEVEL")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
retrieval:
  top_k_semantic: 20
  top_k_reranked: 8
  enable_reranker: true
embeddings:
  cache:
    enabled: true
    ttl: 2h
vector:
  backend: qdrant
query_analysis:
  extract_years: false
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("RAG_TOP_K", "3")
	t.Setenv("RAG_SEMANTIC_TOP_K", "not-a-number")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.SemanticTopK != 20 {
		t.Fatalf("invalid env value must keep file value, got %d", cfg.SemanticTopK)
	}
	if cfg.FinalTopK != 3 {
		t.Fatalf("expected env to override file, got %d", cfg.FinalTopK)
	}
	if !cfg.RerankEnabled || !cfg.EmbedCacheEnabled || cfg.EmbedCacheTTL != 2*time.Hour {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.VectorBackend != "qdrant" || cfg.ExtractYears || cfg.LogLevel != "debug" {
		t.Fatalf("file values not applied: backend=%q years=%v level=%q", cfg.VectorBackend, cfg.ExtractYears, cfg.LogLevel)
	}
	if !cfg.ExtractCountries {
		t.Fatalf("absent file keys must keep defaults")
	}
}

func TestLoadFileRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("reranker:\n  timeout: soon\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "faiss")
	if _, err := LoadFile(""); err == nil {
		t.Fatalf("expected error for unsupported backend")
	}
}

func TestEnvListAndDuration(t *testing.T) {
	t.Setenv("REDIS_ADDRS", "a:6379, b:6379,")
	t.Setenv("RAG_VECTOR_TIMEOUT", "750ms")
	clearEnv(t, "VECTOR_BACKEND", "EMBEDDING_PROVIDER")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(cfg.RedisAddrs) != 2 || cfg.RedisAddrs[1] != "b:6379" {
		t.Fatalf("unexpected redis addrs %v", cfg.RedisAddrs)
	}
	if cfg.VectorTimeout != 750*time.Millisecond {
		t.Fatalf("unexpected vector timeout %v", cfg.VectorTimeout)
	}
}

func TestNormalizeDatabaseURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "postgres://u:p@localhost:5432/pbs", want: "postgres://u:p@localhost:5432/pbs"},
		{in: "postgres://u:p@db.example.com/pbs", want: "postgres://u:p@db.example.com/pbs?sslmode=require"},
		{in: "postgres://u:p@db.example.com/pbs?x=1", want: "postgres://u:p@db.example.com/pbs?x=1&sslmode=require"},
		{in: "postgres://db.example.com/pbs?sslmode=disable", want: "postgres://db.example.com/pbs?sslmode=disable"},
	}
	for _, tc := range cases {
		if got := NormalizeDatabaseURL(tc.in); got != tc.want {
			t.Fatalf("NormalizeDatabaseURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
