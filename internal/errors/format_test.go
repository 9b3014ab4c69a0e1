package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI(t *testing.T) {
	err := New(ErrCodeOversizedChunk, "chunk exceeds token limit", nil).
		WithDetail("tokens", "12").
		WithDetail("chunk_id", "c-1").
		WithSuggestion("raise batching.token_limit")

	out := FormatForCLI(err)

	assert.Contains(t, out, "chunk exceeds token limit")
	assert.Contains(t, out, "  chunk_id: c-1\n  tokens: 12\n")
	assert.Contains(t, out, "Hint: raise batching.token_limit")
	assert.Contains(t, out, "Code: ERR_404_OVERSIZED_CHUNK")
	assert.Equal(t, "", FormatForCLI(nil))
}

func TestFormatForCLI_StandardError(t *testing.T) {
	out := FormatForCLI(errors.New("boom"))

	assert.Contains(t, out, "Error: boom")
	assert.Contains(t, out, ErrCodeInternal)
}

func TestFormatJSON(t *testing.T) {
	cause := errors.New("connection refused")
	data, err := FormatJSON(New(ErrCodeNetworkUnavailable, "embedder unreachable", cause))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, ErrCodeNetworkUnavailable, got["code"])
	assert.Equal(t, "connection refused", got["cause"])
	assert.Equal(t, true, got["retryable"])
}

func TestLogAttrs(t *testing.T) {
	assert.Nil(t, LogAttrs(nil))
	assert.Equal(t, []any{"error", "plain"}, LogAttrs(errors.New("plain")))

	attrs := LogAttrs(New(ErrCodeMalformedRecord, "bad record", nil).WithDetail("line", "3"))
	assert.Equal(t, []any{
		"error_code", ErrCodeMalformedRecord,
		"error", "bad record",
		"severity", "WARNING",
		"detail_line", "3",
	}, attrs)
}
