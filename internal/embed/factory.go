package embed

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	ierrors "github.com/Aman-CERP/docingest/internal/errors"
)

// Provider names.
const (
	ProviderStatic = "static"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config selects and configures a provider.
type Config struct {
	Provider   string
	Model      string
	Dimensions int

	// DocumentPrefix overrides the model family default when non-nil.
	DocumentPrefix *string

	OllamaHost    string
	OpenAIBaseURL string
	OpenAIAPIKey  string
	GeminiAPIKey  string

	RequestsPerSecond float64
	BatchSize         int
	Timeout           time.Duration

	// CacheSize is the LRU size; negative disables the cache.
	CacheSize int
}

// Providers returns the known provider names.
func Providers() []string {
	return []string{ProviderGemini, ProviderOllama, ProviderOpenAI, ProviderStatic}
}

// IsValidProvider reports whether s names a provider.
func IsValidProvider(s string) bool {
	return slices.Contains(Providers(), strings.ToLower(s))
}

// New creates the configured embedder wrapped in a cache. An empty provider
// selects static.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	inner, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize < 0 {
		return inner, nil
	}
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

func newProvider(ctx context.Context, cfg Config) (Embedder, error) {
	prefix := func(model string) string {
		if cfg.DocumentPrefix != nil {
			return *cfg.DocumentPrefix
		}
		return DocumentPrefixFor(model)
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderStatic:
		return NewStaticEmbedderDims(cfg.Dimensions), nil

	case ProviderOllama:
		oc := DefaultOllamaConfig()
		if cfg.OllamaHost != "" {
			oc.Host = cfg.OllamaHost
		}
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		oc.Dimensions = cfg.Dimensions
		oc.DocumentPrefix = prefix(oc.Model)
		if cfg.BatchSize > 0 {
			oc.BatchSize = cfg.BatchSize
		}
		if cfg.Timeout > 0 {
			oc.Timeout = cfg.Timeout
		}
		return NewOllamaEmbedder(ctx, oc)

	case ProviderOpenAI:
		model := cfg.Model
		if model == "" {
			model = DefaultOpenAIModel
		}
		return NewOpenAIEmbedder(ctx, OpenAIConfig{
			BaseURL:           cfg.OpenAIBaseURL,
			APIKey:            cfg.OpenAIAPIKey,
			Model:             model,
			Dimensions:        cfg.Dimensions,
			DocumentPrefix:    prefix(model),
			BatchSize:         cfg.BatchSize,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})

	case ProviderGemini:
		return NewGeminiEmbedder(ctx, GeminiConfig{
			APIKey:            cfg.GeminiAPIKey,
			Model:             cfg.Model,
			BatchSize:         cfg.BatchSize,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})

	default:
		return nil, ierrors.ConfigError(fmt.Sprintf("unknown embeddings provider %q", cfg.Provider), nil).
			WithSuggestion("use one of: " + strings.Join(Providers(), ", "))
	}
}

// Describe returns "provider/model (N dims)" for logs and progress output.
func Describe(e Embedder) string {
	provider := ProviderOf(e)
	if provider == e.ModelName() {
		return fmt.Sprintf("%s (%d dims)", provider, e.Dimensions())
	}
	return fmt.Sprintf("%s/%s (%d dims)", provider, e.ModelName(), e.Dimensions())
}

// ProviderOf names the provider behind e, looking through the cache.
// Embedders from outside this package report "custom".
func ProviderOf(e Embedder) string {
	if c, ok := e.(*CachedEmbedder); ok {
		e = c.Inner()
	}
	switch e.(type) {
	case *StaticEmbedder:
		return ProviderStatic
	case *OllamaEmbedder:
		return ProviderOllama
	case *OpenAIEmbedder:
		return ProviderOpenAI
	case *GeminiEmbedder:
		return ProviderGemini
	default:
		return "custom"
	}
}
