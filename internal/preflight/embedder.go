package preflight

import (
	"fmt"
	"path/filepath"

	"github.com/jackc/pgx/v5"

	"github.com/Aman-CERP/docingest/internal/config"
	"github.com/Aman-CERP/docingest/internal/embed"
	ierrors "github.com/Aman-CERP/docingest/internal/errors"
	"github.com/Aman-CERP/docingest/internal/store"
)

// CheckCollection fails when the local collection already holds vectors.
func (c *Checker) CheckCollection(persistDir, collection string) CheckResult {
	result := CheckResult{
		Name:     "collection",
		Required: true,
		Code:     ierrors.ErrCodeCollectionExists,
	}

	dir := store.CollectionDir(persistDir, collection)
	dims, err := store.ReadVectorDimensions(filepath.Join(dir, store.VectorsFile))
	if err != nil {
		result.Status = StatusFail
		result.Code = ierrors.ErrCodeCorruptIndex
		result.Message = fmt.Sprintf("unreadable vector metadata in %s: %v", dir, err)
		return result
	}
	if dims > 0 {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s already holds data", dir)
		result.Details = "choose another collection name or remove the directory"
		return result
	}

	result.Status = StatusPass
	result.Message = collection + " is new"
	return result
}

// CheckDatabaseURL parses the pgvector connection string without connecting.
func (c *Checker) CheckDatabaseURL(dsn string) CheckResult {
	result := CheckResult{
		Name:     "database_url",
		Required: true,
		Code:     ierrors.ErrCodeConfigInvalid,
	}

	if dsn == "" {
		result.Status = StatusFail
		result.Message = "not set"
		return result
	}
	pc, err := pgx.ParseConfig(dsn)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("invalid: %v", err)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s:%d/%s", pc.Host, pc.Port, pc.Database)
	return result
}

// CheckEmbedder checks that remote providers have an API key. The static
// provider passes with a warning since its vectors carry no meaning.
func (c *Checker) CheckEmbedder(ec config.EmbeddingsConfig) CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: true,
		Code:     ierrors.ErrCodeConfigInvalid,
	}

	switch ec.Provider {
	case "", embed.ProviderStatic:
		result.Status = StatusWarn
		result.Required = false
		result.Message = "static hash embeddings (offline, not semantic)"
	case embed.ProviderOllama:
		host := ec.OllamaHost
		if host == "" {
			host = embed.DefaultOllamaConfig().Host
		}
		result.Status = StatusPass
		result.Message = "ollama at " + host
	case embed.ProviderOpenAI:
		switch {
		case ec.OpenAIAPIKey != "":
			result.Status = StatusPass
			result.Message = "openai (API key set)"
		case ec.OpenAIBaseURL != "":
			result.Status = StatusWarn
			result.Required = false
			result.Message = "no OPENAI_API_KEY, assuming " + ec.OpenAIBaseURL + " needs none"
		default:
			result.Status = StatusFail
			result.Message = "OPENAI_API_KEY is not set"
		}
	case embed.ProviderGemini:
		if ec.GeminiAPIKey == "" {
			result.Status = StatusFail
			result.Message = "GEMINI_API_KEY is not set"
			break
		}
		result.Status = StatusPass
		result.Message = "gemini (API key set)"
	default:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("unknown provider %q", ec.Provider)
	}
	return result
}
