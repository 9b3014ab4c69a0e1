// Package config loads docingest settings from defaults, config files, .env
// and the environment, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/docingest/internal/batch"
	"github.com/Aman-CERP/docingest/internal/chunk"
	"github.com/Aman-CERP/docingest/internal/embed"
	ierrors "github.com/Aman-CERP/docingest/internal/errors"
	"github.com/Aman-CERP/docingest/internal/store"
	"github.com/Aman-CERP/docingest/internal/tokenize"
)

// Defaults for settings the original tool hard-coded.
const (
	DefaultCollection      = "liferay_docs"
	DefaultPersistLocation = "chroma_db"
	DefaultSourcePath      = "data.jsonl"
)

// ProjectFileNames are looked up, in order, in the working directory when no
// --config path is given.
var ProjectFileNames = []string{"docingest.yaml", "docingest.yml", "docingest.toml"}

// Config represents the complete docingest configuration.
type Config struct {
	Version    int              `yaml:"version" toml:"version" json:"version"`
	Source     SourceConfig     `yaml:"source" toml:"source" json:"source"`
	Chunking   ChunkingConfig   `yaml:"chunking" toml:"chunking" json:"chunking"`
	Header     HeaderConfig     `yaml:"header" toml:"header" json:"header"`
	Batching   BatchingConfig   `yaml:"batching" toml:"batching" json:"batching"`
	Index      IndexConfig      `yaml:"index" toml:"index" json:"index"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" toml:"embeddings" json:"embeddings"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging" json:"logging"`
}

// SourceConfig says where raw records come from.
type SourceConfig struct {
	// Path is a JSONL file, "-" for stdin, or s3://bucket/key.
	Path   string `yaml:"path" toml:"path" json:"path"`
	Region string `yaml:"region,omitempty" toml:"region,omitempty" json:"region,omitempty"`
	// Validate checks every line against the record JSON schema.
	Validate bool `yaml:"validate" toml:"validate" json:"validate"`
}

// ChunkingConfig sizes chunks in tokens.
type ChunkingConfig struct {
	ChunkSize          int    `yaml:"chunk_size" toml:"chunk_size" json:"chunk_size"`
	ChunkOverlap       int    `yaml:"chunk_overlap" toml:"chunk_overlap" json:"chunk_overlap"`
	TokenizationScheme string `yaml:"tokenization_scheme" toml:"tokenization_scheme" json:"tokenization_scheme"`
}

// HeaderConfig selects the injected header variant.
type HeaderConfig struct {
	IncludeTitle   bool `yaml:"include_title" toml:"include_title" json:"include_title"`
	DocEndSentinel bool `yaml:"doc_end_sentinel" toml:"doc_end_sentinel" json:"doc_end_sentinel"`
}

// BatchingConfig bounds each embedding and index call.
type BatchingConfig struct {
	TokenLimit int `yaml:"token_limit" toml:"token_limit" json:"token_limit"`
}

// IndexConfig names the collection and where it lives.
type IndexConfig struct {
	Backend         string `yaml:"backend" toml:"backend" json:"backend"`
	CollectionName  string `yaml:"collection_name" toml:"collection_name" json:"collection_name"`
	PersistLocation string `yaml:"persist_location" toml:"persist_location" json:"persist_location"`
	DatabaseURL     string `yaml:"database_url,omitempty" toml:"database_url,omitempty" json:"-"`
	FullText        bool   `yaml:"full_text" toml:"full_text" json:"full_text"`
}

// EmbeddingsConfig selects and tunes the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" toml:"provider" json:"provider"`
	Model      string `yaml:"model,omitempty" toml:"model,omitempty" json:"model,omitempty"`
	Dimensions int    `yaml:"dimensions,omitempty" toml:"dimensions,omitempty" json:"dimensions,omitempty"`
	// DocumentPrefix overrides the model family default when set.
	DocumentPrefix *string `yaml:"document_prefix,omitempty" toml:"document_prefix,omitempty" json:"document_prefix,omitempty"`

	OllamaHost    string `yaml:"ollama_host,omitempty" toml:"ollama_host,omitempty" json:"ollama_host,omitempty"`
	OpenAIBaseURL string `yaml:"openai_base_url,omitempty" toml:"openai_base_url,omitempty" json:"openai_base_url,omitempty"`

	// API keys come from the environment only.
	OpenAIAPIKey string `yaml:"-" toml:"-" json:"-"`
	GeminiAPIKey string `yaml:"-" toml:"-" json:"-"`

	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second" json:"requests_per_second"`
	BatchSize         int     `yaml:"batch_size" toml:"batch_size" json:"batch_size"`
	// Workers is how many index batches are embedded concurrently.
	Workers   int    `yaml:"workers" toml:"workers" json:"workers"`
	CacheSize int    `yaml:"cache_size" toml:"cache_size" json:"cache_size"`
	Timeout   string `yaml:"timeout" toml:"timeout" json:"timeout"`
}

// LoggingConfig configures the run log.
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level" json:"level"`
	// File is the log path; empty uses ~/.docingest/logs/run.log.
	File string `yaml:"file,omitempty" toml:"file,omitempty" json:"file,omitempty"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Source: SourceConfig{
			Path: DefaultSourcePath,
		},
		Chunking: ChunkingConfig{
			ChunkSize:          chunk.DefaultChunkSize,
			ChunkOverlap:       chunk.DefaultChunkOverlap,
			TokenizationScheme: tokenize.DefaultScheme,
		},
		Header: HeaderConfig{
			IncludeTitle:   true,
			DocEndSentinel: true,
		},
		Batching: BatchingConfig{
			TokenLimit: batch.DefaultTokenLimit,
		},
		Index: IndexConfig{
			Backend:         store.BackendLocal,
			CollectionName:  DefaultCollection,
			PersistLocation: DefaultPersistLocation,
			FullText:        true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:          embed.ProviderStatic,
			RequestsPerSecond: embed.DefaultRequestsPerSecond,
			BatchSize:         embed.DefaultBatchSize,
			Workers:           4,
			CacheSize:         embed.DefaultEmbeddingCacheSize,
			Timeout:           embed.DefaultTimeout.String(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadOptions says where Load looks.
type LoadOptions struct {
	// Path is an explicit config file. It must exist.
	Path string
	// Dir is searched for ProjectFileNames and .env when Path is empty.
	// Empty means the working directory.
	Dir string
	// SkipUserConfig ignores the per-user config file.
	SkipUserConfig bool
	// SkipDotEnv ignores .env.
	SkipDotEnv bool
}

// Load builds the configuration, applying in increasing precedence:
//  1. Hardcoded defaults
//  2. User config ($XDG_CONFIG_HOME/docingest/config.yaml)
//  3. Project config (opts.Path, or docingest.{yaml,yml,toml} in opts.Dir)
//  4. .env in opts.Dir, without overriding variables already set
//  5. Environment variables
//
// CLI flags are applied by the caller afterwards.
func Load(opts LoadOptions) (*Config, error) {
	cfg := NewConfig()

	if !opts.SkipUserConfig {
		if path := GetUserConfigPath(); fileExists(path) {
			if err := cfg.LoadFile(path); err != nil {
				return nil, err
			}
		}
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	if opts.Path != "" {
		if !fileExists(opts.Path) {
			return nil, ierrors.New(ierrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file not found: %s", opts.Path), nil).
				WithSuggestion("run `docingest config init` to create one")
		}
		if err := cfg.LoadFile(opts.Path); err != nil {
			return nil, err
		}
	} else if path := FindProjectFile(dir); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if !opts.SkipDotEnv {
		envPath := filepath.Join(dir, ".env")
		if fileExists(envPath) {
			if err := godotenv.Load(envPath); err != nil {
				return nil, ierrors.ConfigError(fmt.Sprintf("failed to load %s: %v", envPath, err), err)
			}
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindProjectFile returns the first of ProjectFileNames present in dir.
func FindProjectFile(dir string) string {
	for _, name := range ProjectFileNames {
		if p := filepath.Join(dir, name); fileExists(p) {
			return p
		}
	}
	return ""
}

// LoadFile decodes a YAML or TOML file over c. Keys absent from the file
// keep their current values; unknown keys are an error.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ierrors.New(ierrors.ErrCodeConfigNotFound, fmt.Sprintf("failed to read config file %s", path), err)
	}

	if isTOML(path) {
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(c)
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(c)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	}
	if err != nil {
		return ierrors.ConfigError(fmt.Sprintf("failed to parse config file %s: %v", path, err), err)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv applies environment overrides. Where a legacy name exists
// (DATA, CHROMA_DB_DIR) the DOCINGEST_ name wins.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	var errs []error
	num := func(dst *int, key string) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s=%q is not an integer", key, v))
			return
		}
		*dst = n
	}

	str(&c.Source.Path, "DOCINGEST_DATA", "DATA")
	str(&c.Source.Region, "DOCINGEST_S3_REGION", "AWS_REGION")
	str(&c.Index.PersistLocation, "DOCINGEST_PERSIST_DIR", "CHROMA_DB_DIR")
	str(&c.Index.CollectionName, "DOCINGEST_COLLECTION")
	str(&c.Index.Backend, "DOCINGEST_BACKEND")
	str(&c.Index.DatabaseURL, "DOCINGEST_DATABASE_URL")
	str(&c.Chunking.TokenizationScheme, "DOCINGEST_SCHEME")
	num(&c.Chunking.ChunkSize, "DOCINGEST_CHUNK_SIZE")
	num(&c.Chunking.ChunkOverlap, "DOCINGEST_CHUNK_OVERLAP")
	num(&c.Batching.TokenLimit, "DOCINGEST_TOKEN_LIMIT")
	str(&c.Embeddings.Provider, "DOCINGEST_EMBEDDER")
	str(&c.Embeddings.Model, "DOCINGEST_MODEL")
	str(&c.Embeddings.OllamaHost, "DOCINGEST_OLLAMA_HOST", "OLLAMA_HOST")
	str(&c.Embeddings.OpenAIBaseURL, "DOCINGEST_OPENAI_BASE_URL", "OPENAI_BASE_URL")
	str(&c.Embeddings.OpenAIAPIKey, "OPENAI_API_KEY")
	str(&c.Embeddings.GeminiAPIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	str(&c.Logging.Level, "DOCINGEST_LOG_LEVEL")

	if len(errs) > 0 {
		return ierrors.ConfigError(errors.Join(errs...).Error(), nil)
	}
	return nil
}

// Validate checks the settings the pipeline depends on.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Source.Path) == "" {
		add("source.path is empty")
	}
	if c.Chunking.ChunkSize <= 0 {
		add("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		add("chunking.chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap)
	}
	if !tokenize.Known(c.Chunking.TokenizationScheme) {
		add("chunking.tokenization_scheme must be one of %s, got %q",
			strings.Join(tokenize.Schemes(), ", "), c.Chunking.TokenizationScheme)
	}
	if c.Batching.TokenLimit <= 0 {
		add("batching.token_limit must be positive, got %d", c.Batching.TokenLimit)
	}

	switch c.Index.Backend {
	case store.BackendLocal:
		if strings.TrimSpace(c.Index.PersistLocation) == "" {
			add("index.persist_location is empty")
		}
	case store.BackendPGVector:
		if c.Index.DatabaseURL == "" {
			add("index.database_url is required for the pgvector backend")
		}
	case store.BackendMemory:
	default:
		add("index.backend must be %s, %s or %s, got %q",
			store.BackendLocal, store.BackendPGVector, store.BackendMemory, c.Index.Backend)
	}
	if !store.ValidCollectionName(c.Index.CollectionName) {
		add("index.collection_name must match [A-Za-z0-9_-]{1,63}, got %q", c.Index.CollectionName)
	}

	if c.Embeddings.Provider != "" && !embed.IsValidProvider(c.Embeddings.Provider) {
		add("embeddings.provider must be one of %s, got %q",
			strings.Join(embed.Providers(), ", "), c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions < 0 {
		add("embeddings.dimensions must not be negative, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.BatchSize < 0 || c.Embeddings.BatchSize > embed.MaxBatchSize {
		add("embeddings.batch_size must be in [0, %d], got %d", embed.MaxBatchSize, c.Embeddings.BatchSize)
	}
	if c.Embeddings.RequestsPerSecond < 0 {
		add("embeddings.requests_per_second must not be negative")
	}
	if c.Embeddings.Workers < 0 {
		add("embeddings.workers must not be negative, got %d", c.Embeddings.Workers)
	}
	if c.Embeddings.Timeout != "" {
		if _, err := time.ParseDuration(c.Embeddings.Timeout); err != nil {
			add("embeddings.timeout %q is not a duration", c.Embeddings.Timeout)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}

	if len(problems) > 0 {
		return ierrors.ConfigError("invalid configuration: "+strings.Join(problems, "; "), nil).
			WithSuggestion("check docingest.yaml and DOCINGEST_* environment variables")
	}
	return nil
}

// EmbedConfig converts the embeddings section for embed.New.
func (c *Config) EmbedConfig() embed.Config {
	timeout, _ := time.ParseDuration(c.Embeddings.Timeout)
	return embed.Config{
		Provider:          c.Embeddings.Provider,
		Model:             c.Embeddings.Model,
		Dimensions:        c.Embeddings.Dimensions,
		DocumentPrefix:    c.Embeddings.DocumentPrefix,
		OllamaHost:        c.Embeddings.OllamaHost,
		OpenAIBaseURL:     c.Embeddings.OpenAIBaseURL,
		OpenAIAPIKey:      c.Embeddings.OpenAIAPIKey,
		GeminiAPIKey:      c.Embeddings.GeminiAPIKey,
		RequestsPerSecond: c.Embeddings.RequestsPerSecond,
		BatchSize:         c.Embeddings.BatchSize,
		Timeout:           timeout,
		CacheSize:         c.Embeddings.CacheSize,
	}
}

// BackendOptions converts the index section for store.NewBackend.
func (c *Config) BackendOptions() store.BackendOptions {
	return store.BackendOptions{
		Kind:        c.Index.Backend,
		DatabaseURL: c.Index.DatabaseURL,
		FullText:    c.Index.FullText,
	}
}

// Marshal encodes c as TOML when path ends in .toml and YAML otherwise.
func (c *Config) Marshal(path string) ([]byte, error) {
	if isTOML(path) {
		return toml.Marshal(c)
	}
	return yaml.Marshal(c)
}

// WriteFile writes c to path, creating parent directories.
func (c *Config) WriteFile(path string) error {
	data, err := c.Marshal(path)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetUserConfigPath returns the per-user config file:
//   - $XDG_CONFIG_HOME/docingest/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/docingest/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docingest", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docingest", "config.yaml")
	}
	return filepath.Join(home, ".config", "docingest", "config.yaml")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
