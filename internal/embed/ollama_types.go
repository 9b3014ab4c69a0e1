package embed

import (
	"strings"
	"time"
)

const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the default local embedding model.
	DefaultOllamaModel = "nomic-embed-text"

	// OllamaConnectTimeout bounds the startup model check.
	OllamaConnectTimeout = 10 * time.Second

	// OllamaPoolSize is the HTTP connection pool size.
	OllamaPoolSize = 4
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host  string
	Model string

	// Dimensions overrides auto-detection when non-zero.
	Dimensions int

	// DocumentPrefix is prepended to every text before embedding.
	DocumentPrefix string

	BatchSize int

	// Timeout bounds one request attempt.
	Timeout time.Duration

	PoolSize int

	// SkipHealthCheck skips the model lookup and dimension probe.
	SkipHealthCheck bool
}

// DefaultOllamaConfig returns the defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:           DefaultOllamaHost,
		Model:          DefaultOllamaModel,
		DocumentPrefix: DocumentPrefixFor(DefaultOllamaModel),
		BatchSize:      DefaultBatchSize,
		Timeout:        DefaultTimeout,
		PoolSize:       OllamaPoolSize,
	}
}

// DocumentPrefixFor returns the passage prefix a model family expects on
// indexed text, or "" when it needs none.
func DocumentPrefixFor(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "e5"):
		return "passage: "
	case strings.HasPrefix(m, "nomic-embed"):
		return "search_document: "
	default:
		return ""
	}
}

// OllamaEmbedRequest is the /api/embed request.
type OllamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string
}

// OllamaEmbedResponse is the /api/embed response.
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaModelListResponse is the /api/tags response.
type OllamaModelListResponse struct {
	Models []OllamaModelInfo `json:"models"`
}

// OllamaModelInfo describes an installed model.
type OllamaModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}
