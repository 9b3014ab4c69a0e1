package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/Aman-CERP/docingest/internal/errors"
)

func fastRetry() ierrors.RetryConfig {
	cfg := ierrors.DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.Jitter = false
	return cfg
}

// ollamaServer serves /api/tags and /api/embed, returning 3-dim vectors whose
// first component is the input length.
func ollamaServer(t *testing.T, models []string, inputs *[][]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			var resp OllamaModelListResponse
			for _, m := range models {
				resp.Models = append(resp.Models, OllamaModelInfo{Name: m})
			}
			_ = json.NewEncoder(w).Encode(resp)
		case "/api/embed":
			var req struct {
				Model string `json:"model"`
				Input any    `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			var texts []string
			switch in := req.Input.(type) {
			case string:
				texts = []string{in}
			case []any:
				for _, s := range in {
					texts = append(texts, s.(string))
				}
			}
			if inputs != nil {
				*inputs = append(*inputs, texts)
			}
			resp := OllamaEmbedResponse{Model: req.Model}
			for _, s := range texts {
				resp.Embeddings = append(resp.Embeddings, []float64{float64(len(s)), 0, 0})
			}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestOllamaEmbedder_DetectsModelAndDimensions(t *testing.T) {
	srv := ollamaServer(t, []string{"nomic-embed-text:latest"}, nil)
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, "nomic-embed-text:latest", e.ModelName())
	assert.Equal(t, 3, e.Dimensions())
}

func TestOllamaEmbedder_MissingModel(t *testing.T) {
	srv := ollamaServer(t, []string{"llama3:8b"}, nil)
	defer srv.Close()

	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	require.Error(t, err)
	ie, ok := ierrors.As(err)
	require.True(t, ok)
	assert.Contains(t, ie.Suggestion, "ollama pull nomic-embed-text")
}

func TestOllamaEmbedder_BatchesAndPrefixes(t *testing.T) {
	var inputs [][]string
	srv := ollamaServer(t, nil, &inputs)
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            srv.URL,
		Model:           "multilingual-e5-large",
		Dimensions:      3,
		DocumentPrefix:  "passage: ",
		BatchSize:       2,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)

	require.Len(t, vecs, 3)
	assert.Equal(t, [][]string{{"passage: a", "passage: bb"}, {"passage: ccc"}}, inputs)
	for _, v := range vecs {
		assert.InDelta(t, 1.0, vectorMagnitude(v), 0.001)
	}
}

func TestOllamaEmbedder_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: url})
	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeNetworkUnavailable, ierrors.GetCode(err))
}

func openAIHandler(t *testing.T, fail *atomic.Int32, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		if fail.Load() > 0 {
			fail.Add(-1)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"try later"}`))
			return
		}

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Reverse order to exercise index sorting.
		var resp openAIResponse
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{float32(len(req.Input[i])), 1}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func newTestOpenAI(t *testing.T, url string) *OpenAIEmbedder {
	t.Helper()
	e, err := NewOpenAIEmbedder(context.Background(), OpenAIConfig{
		BaseURL:           url + "/v1",
		APIKey:            "sk-test",
		Model:             "text-embedding-3-small",
		RequestsPerSecond: 1000,
		Retry:             fastRetry(),
	})
	require.NoError(t, err)
	return e
}

func TestOpenAIEmbedder_OrdersByIndex(t *testing.T) {
	var fail atomic.Int32
	srv := httptest.NewServer(openAIHandler(t, &fail, 0))
	defer srv.Close()

	e := newTestOpenAI(t, srv.URL)
	assert.Equal(t, 1536, e.Dimensions())

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "bbb"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Greater(t, vecs[1][0], vecs[0][0])
}

func TestOpenAIEmbedder_RetriesRateLimit(t *testing.T) {
	var fail atomic.Int32
	fail.Store(2)
	srv := httptest.NewServer(openAIHandler(t, &fail, http.StatusTooManyRequests))
	defer srv.Close()

	vecs, err := newTestOpenAI(t, srv.URL).EmbedBatch(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Zero(t, fail.Load())
}

func TestOpenAIEmbedder_GivesUpAfterRetries(t *testing.T) {
	var fail atomic.Int32
	fail.Store(100)
	srv := httptest.NewServer(openAIHandler(t, &fail, http.StatusServiceUnavailable))
	defer srv.Close()

	_, err := newTestOpenAI(t, srv.URL).EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeEmbeddingFailed, ierrors.GetCode(err))
	assert.Equal(t, int32(96), fail.Load(), "one attempt plus three retries")
}

func TestOpenAIEmbedder_ClientErrorNotRetried(t *testing.T) {
	var fail atomic.Int32
	fail.Store(100)
	srv := httptest.NewServer(openAIHandler(t, &fail, http.StatusBadRequest))
	defer srv.Close()

	_, err := newTestOpenAI(t, srv.URL).EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeEmbeddingFailed, ierrors.GetCode(err))
	assert.Equal(t, int32(99), fail.Load())
}

func TestOpenAIEmbedder_RequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder(context.Background(), OpenAIConfig{})
	assert.Equal(t, ierrors.ErrCodeConfigInvalid, ierrors.GetCode(err))
}

func TestGeminiEmbedder_RequiresKey(t *testing.T) {
	_, err := NewGeminiEmbedder(context.Background(), GeminiConfig{})
	assert.Equal(t, ierrors.ErrCodeConfigInvalid, ierrors.GetCode(err))
}

func TestNew_Providers(t *testing.T) {
	e, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.IsType(t, &CachedEmbedder{}, e)
	assert.Equal(t, "static (256 dims)", Describe(e))

	e, err = New(context.Background(), Config{Provider: "static", Dimensions: 32, CacheSize: -1})
	require.NoError(t, err)
	assert.IsType(t, &StaticEmbedder{}, e)
	assert.Equal(t, 32, e.Dimensions())

	_, err = New(context.Background(), Config{Provider: "mlx"})
	assert.Equal(t, ierrors.ErrCodeConfigInvalid, ierrors.GetCode(err))
}

func TestNew_OllamaUsesModelPrefix(t *testing.T) {
	var inputs [][]string
	srv := ollamaServer(t, []string{"e5-small:latest"}, &inputs)
	defer srv.Close()

	e, err := New(context.Background(), Config{Provider: "ollama", Model: "e5-small", OllamaHost: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "ollama/e5-small:latest (3 dims)", Describe(e))

	_, err = e.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []string{"passage: text"}, inputs[len(inputs)-1])
}

func TestDocumentPrefixFor(t *testing.T) {
	assert.Equal(t, "passage: ", DocumentPrefixFor("intfloat/multilingual-e5-large"))
	assert.Equal(t, "search_document: ", DocumentPrefixFor("nomic-embed-text"))
	assert.Equal(t, "", DocumentPrefixFor("text-embedding-3-small"))
}

func TestIsValidProvider(t *testing.T) {
	assert.True(t, IsValidProvider("OpenAI"))
	assert.False(t, IsValidProvider("mlx"))
}
