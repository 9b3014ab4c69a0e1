package tokenize

import (
	"github.com/pkoukk/tiktoken-go"

	ierrors "github.com/Aman-CERP/docingest/internal/errors"
)

// BPE is a byte-pair-encoding scheme backed by tiktoken tables.
// Tables are fetched (and cached on disk by tiktoken) when the tokenizer is built.
type BPE struct {
	scheme string
	enc    *tiktoken.Tiktoken
}

func newBPE(scheme string) (*BPE, error) {
	enc, err := tiktoken.GetEncoding(scheme)
	if err != nil {
		return nil, ierrors.New(ierrors.ErrCodeNetworkUnavailable,
			"load tokenizer tables for "+scheme, err).
			WithSuggestion("set TIKTOKEN_CACHE_DIR to a directory holding the tables, or use the words scheme offline")
	}
	return &BPE{scheme: scheme, enc: enc}, nil
}

// Scheme implements Tokenizer.
func (b *BPE) Scheme() string { return b.scheme }

// Count implements Tokenizer. Special-token text is counted as ordinary text.
func (b *BPE) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(b.enc.Encode(text, nil, nil))
}

// Split implements Tokenizer. A token may hold part of a multi-byte rune;
// the pieces still join back to the exact input bytes. Callers that cut text
// at piece offsets must keep such runs together.
func (b *BPE) Split(text string) []string {
	if text == "" {
		return nil
	}
	ids := b.enc.Encode(text, nil, nil)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = b.enc.Decode([]int{id})
	}
	return out
}
