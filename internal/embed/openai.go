package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	ierrors "github.com/Aman-CERP/docingest/internal/errors"
)

const providerOpenAI = "openai"

const (
	// DefaultOpenAIBaseURL is the OpenAI API root.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// DefaultOpenAIModel is the default remote model.
	DefaultOpenAIModel = "text-embedding-3-small"
)

// openAIDimensions lists native sizes of known models.
var openAIDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIConfig configures an OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string

	// Dimensions requests shortened embeddings when non-zero.
	Dimensions int

	DocumentPrefix string
	BatchSize      int

	// RequestsPerSecond throttles requests; burst is one request.
	RequestsPerSecond float64

	Retry ierrors.RetryConfig

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

type openAIRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

// OpenAIEmbedder calls a remote /embeddings endpoint under a rate limit,
// retrying 429 and 5xx responses with backoff.
type OpenAIEmbedder struct {
	cfg     OpenAIConfig
	client  *http.Client
	limiter *rate.Limiter
	dims    int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder validates cfg. No request is made until the first
// embedding unless the model's dimension is unknown.
func NewOpenAIEmbedder(ctx context.Context, cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, ierrors.ConfigError("openai embeddings need an API key", nil).
			WithSuggestion("set OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = ierrors.DefaultRetryConfig()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	e := &OpenAIEmbedder{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		dims:    cfg.Dimensions,
	}
	if e.dims == 0 {
		e.dims = openAIDimensions[cfg.Model]
	}
	if e.dims == 0 {
		vecs, err := e.EmbedBatch(ctx, []string{"dimension probe"})
		if err != nil {
			return nil, fmt.Errorf("failed to detect embedding dimensions: %w", err)
		}
		e.dims = len(vecs[0])
	}
	return e, nil
}

// Embed embeds a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in requests of BatchSize.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	return inBatches(ctx, withPrefix(e.cfg.DocumentPrefix, texts), e.cfg.BatchSize,
		func(ctx context.Context, part []string) ([][]float32, error) {
			return retryRequest(ctx, e.cfg.Retry, DefaultTimeout, func(ctx context.Context) ([][]float32, error) {
				if err := e.limiter.Wait(ctx); err != nil {
					return nil, err
				}
				return e.embed(ctx, part)
			})
		})
}

func (e *OpenAIEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(openAIRequest{Model: e.cfg.Model, Input: texts, Dimensions: e.cfg.Dimensions})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, transportError(providerOpenAI, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(providerOpenAI, resp)
	}

	var result openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, countMismatch(len(texts), len(result.Data))
	}

	sort.Slice(result.Data, func(i, j int) bool { return result.Data[i].Index < result.Data[j].Index })
	out := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		out[i] = normalizeVector(d.Embedding)
	}
	return out, nil
}

// Dimensions returns the embedding length.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the configured model.
func (e *OpenAIEmbedder) ModelName() string {
	return e.cfg.Model
}

// Close releases idle connections.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
