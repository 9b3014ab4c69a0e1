package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/Aman-CERP/docingest/internal/errors"
	"github.com/Aman-CERP/docingest/internal/store"
	"github.com/Aman-CERP/docingest/internal/tokenize"
)

func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func loadIsolated(t *testing.T, opts LoadOptions) (*Config, error) {
	t.Helper()
	opts.SkipUserConfig = true
	return Load(opts)
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "liferay_docs", cfg.Index.CollectionName)
	assert.Equal(t, "chroma_db", cfg.Index.PersistLocation)
	assert.Equal(t, store.BackendLocal, cfg.Index.Backend)
	assert.True(t, cfg.Index.FullText)
	assert.Equal(t, 2000, cfg.Chunking.ChunkSize)
	assert.Equal(t, 200, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, tokenize.SchemeO200K, cfg.Chunking.TokenizationScheme)
	assert.Equal(t, 300000, cfg.Batching.TokenLimit)
	assert.True(t, cfg.Header.IncludeTitle)
	assert.True(t, cfg.Header.DocEndSentinel)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yml := `
chunking:
  chunk_size: 500
header:
  include_title: false
index:
  collection_name: handbook
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docingest.yaml"), []byte(yml), 0o644))

	cfg, err := loadIsolated(t, LoadOptions{Dir: dir, SkipDotEnv: true})
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, 200, cfg.Chunking.ChunkOverlap, "absent keys keep defaults")
	assert.False(t, cfg.Header.IncludeTitle, "explicit false is honoured")
	assert.True(t, cfg.Header.DocEndSentinel)
	assert.Equal(t, "handbook", cfg.Index.CollectionName)
}

func TestLoad_TOMLProjectFile(t *testing.T) {
	dir := t.TempDir()
	tml := `
[batching]
token_limit = 1234

[embeddings]
provider = "ollama"
model = "nomic-embed-text"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docingest.toml"), []byte(tml), 0o644))

	cfg, err := loadIsolated(t, LoadOptions{Dir: dir, SkipDotEnv: true})
	require.NoError(t, err)

	assert.Equal(t, 1234, cfg.Batching.TokenLimit)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
	assert.Equal(t, 2000, cfg.Chunking.ChunkSize)
}

func TestLoad_YAMLPreferredOverTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docingest.yaml"), []byte("index:\n  collection_name: from_yaml\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docingest.toml"), []byte("[index]\ncollection_name = \"from_toml\"\n"), 0o644))

	assert.Equal(t, filepath.Join(dir, "docingest.yaml"), FindProjectFile(dir))

	cfg, err := loadIsolated(t, LoadOptions{Dir: dir, SkipDotEnv: true})
	require.NoError(t, err)
	assert.Equal(t, "from_yaml", cfg.Index.CollectionName)
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	_, err := loadIsolated(t, LoadOptions{Path: filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeConfigNotFound, ierrors.GetCode(err))
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunking:\n  chunk_sise: 10\n"), 0o644))

	_, err := loadIsolated(t, LoadOptions{Path: path})
	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeConfigInvalid, ierrors.GetCode(err))
}

func TestLoad_EmptyYAMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	cfg, err := loadIsolated(t, LoadOptions{Path: path})
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Chunking, cfg.Chunking)
}

func TestLoad_UserConfigBelowProject(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	userPath := filepath.Join(xdg, "docingest", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o755))
	require.NoError(t, os.WriteFile(userPath, []byte("chunking:\n  chunk_size: 900\n  chunk_overlap: 90\n"), 0o644))
	assert.Equal(t, userPath, GetUserConfigPath())

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docingest.yaml"), []byte("chunking:\n  chunk_size: 700\n"), 0o644))

	cfg, err := Load(LoadOptions{Dir: dir, SkipDotEnv: true})
	require.NoError(t, err)
	assert.Equal(t, 700, cfg.Chunking.ChunkSize)
	assert.Equal(t, 90, cfg.Chunking.ChunkOverlap)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	env := "DOCINGEST_COLLECTION=from_dotenv\nDOCINGEST_CHUNK_SIZE=321\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644))

	t.Setenv("DOCINGEST_COLLECTION", "from_env")
	// Registers cleanup so the value .env sets does not leak.
	t.Setenv("DOCINGEST_CHUNK_SIZE", "")
	require.NoError(t, os.Unsetenv("DOCINGEST_CHUNK_SIZE"))

	cfg, err := loadIsolated(t, LoadOptions{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.Index.CollectionName)
	assert.Equal(t, 321, cfg.Chunking.ChunkSize)
}

func TestApplyEnv(t *testing.T) {
	cfg := NewConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"DATA":                    "legacy.jsonl",
		"DOCINGEST_DATA":          "s3://bucket/docs.jsonl",
		"CHROMA_DB_DIR":           "/var/lib/index",
		"DOCINGEST_COLLECTION":    "kb",
		"DOCINGEST_CHUNK_SIZE":    "1000",
		"DOCINGEST_CHUNK_OVERLAP": "100",
		"DOCINGEST_TOKEN_LIMIT":   "5000",
		"DOCINGEST_SCHEME":        "cl100k_base",
		"DOCINGEST_EMBEDDER":      "openai",
		"OPENAI_API_KEY":          "sk-test",
		"DOCINGEST_LOG_LEVEL":     "debug",
		"DOCINGEST_BACKEND":       "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "s3://bucket/docs.jsonl", cfg.Source.Path, "prefixed name wins")
	assert.Equal(t, "/var/lib/index", cfg.Index.PersistLocation)
	assert.Equal(t, "kb", cfg.Index.CollectionName)
	assert.Equal(t, 1000, cfg.Chunking.ChunkSize)
	assert.Equal(t, 100, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, 5000, cfg.Batching.TokenLimit)
	assert.Equal(t, "cl100k_base", cfg.Chunking.TokenizationScheme)
	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, "sk-test", cfg.Embeddings.OpenAIAPIKey)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, store.BackendLocal, cfg.Index.Backend, "empty value ignored")
}

func TestApplyEnv_BadInteger(t *testing.T) {
	cfg := NewConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{"DOCINGEST_CHUNK_SIZE": "big"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOCINGEST_CHUNK_SIZE")
	assert.Equal(t, 2000, cfg.Chunking.ChunkSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = 0 }, "chunk_size"},
		{"overlap equals size", func(c *Config) { c.Chunking.ChunkOverlap = c.Chunking.ChunkSize }, "chunk_overlap"},
		{"negative overlap", func(c *Config) { c.Chunking.ChunkOverlap = -1 }, "chunk_overlap"},
		{"unknown scheme", func(c *Config) { c.Chunking.TokenizationScheme = "p50k" }, "tokenization_scheme"},
		{"zero token limit", func(c *Config) { c.Batching.TokenLimit = 0 }, "token_limit"},
		{"unknown backend", func(c *Config) { c.Index.Backend = "chroma" }, "index.backend"},
		{"pgvector without url", func(c *Config) { c.Index.Backend = store.BackendPGVector }, "database_url"},
		{"empty persist", func(c *Config) { c.Index.PersistLocation = "" }, "persist_location"},
		{"bad collection", func(c *Config) { c.Index.CollectionName = "a b" }, "collection_name"},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "cohere" }, "provider"},
		{"batch too large", func(c *Config) { c.Embeddings.BatchSize = 100000 }, "batch_size"},
		{"bad timeout", func(c *Config) { c.Embeddings.Timeout = "soon" }, "timeout"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"empty source", func(c *Config) { c.Source.Path = " " }, "source.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, ierrors.ErrCodeConfigInvalid, ierrors.GetCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_AcceptsAlternatives(t *testing.T) {
	cfg := NewConfig()
	cfg.Index.Backend = store.BackendPGVector
	cfg.Index.DatabaseURL = "postgres://localhost/docs"
	cfg.Index.PersistLocation = ""
	cfg.Embeddings.Provider = ""
	cfg.Chunking.ChunkOverlap = 0
	cfg.Logging.Level = "WARN"
	assert.NoError(t, cfg.Validate())
}

func TestEmbedConfig(t *testing.T) {
	prefix := "passage: "
	cfg := NewConfig()
	cfg.Embeddings.Provider = "gemini"
	cfg.Embeddings.Model = "text-embedding-004"
	cfg.Embeddings.Timeout = "45s"
	cfg.Embeddings.DocumentPrefix = &prefix
	cfg.Embeddings.GeminiAPIKey = "key"

	ec := cfg.EmbedConfig()
	assert.Equal(t, "gemini", ec.Provider)
	assert.Equal(t, "text-embedding-004", ec.Model)
	assert.Equal(t, 45*time.Second, ec.Timeout)
	assert.Equal(t, "key", ec.GeminiAPIKey)
	require.NotNil(t, ec.DocumentPrefix)
	assert.Equal(t, prefix, *ec.DocumentPrefix)
}

func TestBackendOptions(t *testing.T) {
	cfg := NewConfig()
	cfg.Index.FullText = false
	opts := cfg.BackendOptions()
	assert.Equal(t, store.BackendLocal, opts.Kind)
	assert.False(t, opts.FullText)
}

func TestWriteFile_RoundTrip(t *testing.T) {
	for _, name := range []string{"out.yaml", "out.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := NewConfig()
			cfg.Index.CollectionName = "roundtrip"
			cfg.Header.DocEndSentinel = false
			cfg.Embeddings.OpenAIAPIKey = "secret"
			require.NoError(t, cfg.WriteFile(path))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.NotContains(t, string(data), "secret", "keys are never written")

			got, err := loadIsolated(t, LoadOptions{Path: path, SkipDotEnv: true})
			require.NoError(t, err)
			assert.Equal(t, "roundtrip", got.Index.CollectionName)
			assert.False(t, got.Header.DocEndSentinel)
		})
	}
}
