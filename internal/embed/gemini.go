package embed

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	ierrors "github.com/Aman-CERP/docingest/internal/errors"
)

const (
	// DefaultGeminiModel is the default Gemini embedding model.
	DefaultGeminiModel = "text-embedding-004"

	// geminiMaxBatch is the API's per-request limit.
	geminiMaxBatch = 100
)

// GeminiConfig configures the Gemini embedder.
type GeminiConfig struct {
	APIKey            string
	Model             string
	BatchSize         int
	RequestsPerSecond float64
}

// GeminiEmbedder embeds with Google's generative AI batch API.
type GeminiEmbedder struct {
	client  *genai.Client
	model   *genai.EmbeddingModel
	name    string
	batch   int
	limiter *rate.Limiter
	retry   ierrors.RetryConfig
	dims    int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*GeminiEmbedder)(nil)

// NewGeminiEmbedder creates a client and probes the model dimension.
func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, ierrors.ConfigError("gemini embeddings need an API key", nil).
			WithSuggestion("set GEMINI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > geminiMaxBatch {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, ierrors.New(ierrors.ErrCodeNetworkUnavailable, fmt.Sprintf("gemini client: %v", err), err)
	}

	e := &GeminiEmbedder{
		client:  client,
		model:   client.EmbeddingModel(cfg.Model),
		name:    cfg.Model,
		batch:   cfg.BatchSize,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		retry:   ierrors.DefaultRetryConfig(),
	}
	e.model.TaskType = genai.TaskTypeRetrievalDocument

	vecs, err := e.EmbedBatch(ctx, []string{"dimension probe"})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to detect embedding dimensions: %w", err)
	}
	e.dims = len(vecs[0])
	return e, nil
}

// Embed embeds a single text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in BatchEmbedContents calls.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	return inBatches(ctx, texts, e.batch, func(ctx context.Context, part []string) ([][]float32, error) {
		return retryRequest(ctx, e.retry, DefaultTimeout, func(ctx context.Context) ([][]float32, error) {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return e.embed(ctx, part)
		})
	})
}

func (e *GeminiEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	b := e.model.NewBatch()
	for _, t := range texts {
		b.AddContent(genai.Text(t))
	}

	resp, err := e.model.BatchEmbedContents(ctx, b)
	if err != nil {
		// Retried within the retry budget.
		return nil, ierrors.New(ierrors.ErrCodeNetworkUnavailable, fmt.Sprintf("gemini batch embed: %v", err), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, countMismatch(len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		out[i] = normalizeVector(emb.Values)
	}
	return out, nil
}

// Dimensions returns the embedding length.
func (e *GeminiEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the configured model.
func (e *GeminiEmbedder) ModelName() string {
	return e.name
}

// Close closes the client.
func (e *GeminiEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.client.Close()
}
