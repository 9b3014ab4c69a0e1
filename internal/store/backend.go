package store

import (
	"fmt"

	ierrors "github.com/Aman-CERP/docingest/internal/errors"
)

// BackendOptions selects and configures a Backend.
type BackendOptions struct {
	Kind        string
	DatabaseURL string
	FullText    bool
}

// NewBackend returns the backend named by opts.Kind. An empty kind selects
// the local backend.
func NewBackend(opts BackendOptions) (Backend, error) {
	switch opts.Kind {
	case "", BackendLocal:
		return NewLocalBackend(LocalOptions{FullText: opts.FullText}), nil
	case BackendPGVector:
		if opts.DatabaseURL == "" {
			return nil, ierrors.ConfigError("index.database_url is required for the pgvector backend", nil).
				WithSuggestion("set DOCINGEST_DATABASE_URL or index.database_url")
		}
		return NewPGVectorBackend(opts.DatabaseURL), nil
	case BackendMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, ierrors.ConfigError(fmt.Sprintf("unknown index backend %q", opts.Kind), nil).
			WithSuggestion("use one of: local, pgvector, memory")
	}
}
