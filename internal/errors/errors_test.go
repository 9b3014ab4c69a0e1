package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("original error")

	ingestErr := New(ErrCodeSourceNotFound, "source not found: docs.jsonl", originalErr)

	require.NotNil(t, ingestErr)
	assert.Equal(t, originalErr, errors.Unwrap(ingestErr))
	assert.True(t, errors.Is(ingestErr, originalErr))
}

func TestIngestError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "oversized chunk",
			code:     ErrCodeOversizedChunk,
			message:  "chunk abc has 12 tokens",
			expected: "[ERR_404_OVERSIZED_CHUNK] chunk abc has 12 tokens",
		},
		{
			name:     "network error",
			code:     ErrCodeNetworkTimeout,
			message:  "request timed out",
			expected: "[ERR_301_NETWORK_TIMEOUT] request timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestIngestError_Is_MatchesByCode(t *testing.T) {
	sentinel := New(ErrCodeOversizedChunk, "oversized chunk", nil)
	err := New(ErrCodeOversizedChunk, "chunk 7 too large", nil)

	assert.True(t, errors.Is(err, sentinel))
	assert.True(t, errors.Is(fmt.Errorf("batching: %w", err), sentinel))
	assert.False(t, errors.Is(New(ErrCodeMalformedRecord, "bad", nil), sentinel))
}

func TestIngestError_WithDetailAndSuggestion(t *testing.T) {
	err := New(ErrCodeOversizedChunk, "too large", nil).
		WithDetail("chunk_id", "c-1").
		WithDetail("tokens", "12").
		WithSuggestion("raise batching.token_limit")

	assert.Equal(t, "c-1", err.Details["chunk_id"])
	assert.Equal(t, "12", err.Details["tokens"])
	assert.Equal(t, "raise batching.token_limit", err.Suggestion)
}

func TestIngestError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeUnknownScheme, CategoryConfig},
		{ErrCodeSourceRead, CategoryIO},
		{ErrCodeCollectionExists, CategoryIO},
		{ErrCodeRateLimited, CategoryNetwork},
		{ErrCodeMalformedRecord, CategoryValidation},
		{ErrCodeOversizedChunk, CategoryValidation},
		{ErrCodeIndexFailed, CategoryInternal},
		{"bad", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.wantCategory, New(tt.code, "msg", nil).Category)
		})
	}
}

func TestIngestError_SeverityAndRetryable(t *testing.T) {
	tests := []struct {
		code          string
		wantSeverity  Severity
		wantRetryable bool
	}{
		{ErrCodeOversizedChunk, SeverityFatal, false},
		{ErrCodeCorruptIndex, SeverityFatal, false},
		{ErrCodeMalformedRecord, SeverityWarning, false},
		{ErrCodeNetworkTimeout, SeverityWarning, true},
		{ErrCodeRateLimited, SeverityWarning, true},
		{ErrCodeIndexFailed, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestHelpers_LookThroughWrapping(t *testing.T) {
	inner := New(ErrCodeOversizedChunk, "too large", nil)
	wrapped := fmt.Errorf("stage batch: %w", inner)

	assert.True(t, IsFatal(wrapped))
	assert.False(t, IsRetryable(wrapped))
	assert.Equal(t, ErrCodeOversizedChunk, GetCode(wrapped))
	assert.Equal(t, CategoryValidation, GetCategory(wrapped))

	assert.Equal(t, "", GetCode(errors.New("plain")))
	assert.False(t, IsFatal(nil))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))

	orig := errors.New("something went wrong")
	err := Wrap(ErrCodeIndexFailed, orig)
	require.NotNil(t, err)
	assert.Equal(t, "something went wrong", err.Message)
	assert.Equal(t, orig, err.Cause)
}
