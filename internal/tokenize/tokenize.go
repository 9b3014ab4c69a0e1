// Package tokenize counts and splits text under a fixed tokenization scheme.
//
// The same Tokenizer must be used for chunking and batching within a run;
// chunk sizes and batch limits are only comparable under one scheme.
package tokenize

import (
	"fmt"
	"sort"
	"strings"

	ierrors "github.com/Aman-CERP/docingest/internal/errors"
)

// Scheme names.
const (
	SchemeO200K  = "o200k_base"
	SchemeCL100K = "cl100k_base"
	SchemeWords  = "words"

	DefaultScheme = SchemeO200K
)

// Tokenizer is a deterministic tokenization scheme.
type Tokenizer interface {
	// Scheme returns the scheme name.
	Scheme() string
	// Count returns the number of tokens in text; always len(Split(text)).
	Count(text string) int
	// Split returns the tokens of text as substrings. Joining them gives back text.
	Split(text string) []string
}

var builders = map[string]func() (Tokenizer, error){
	SchemeWords:  func() (Tokenizer, error) { return NewWords(), nil },
	SchemeO200K:  func() (Tokenizer, error) { return newBPE(SchemeO200K) },
	SchemeCL100K: func() (Tokenizer, error) { return newBPE(SchemeCL100K) },
}

// New returns the tokenizer for scheme, loading its tables if needed.
func New(scheme string) (Tokenizer, error) {
	build, ok := builders[strings.ToLower(strings.TrimSpace(scheme))]
	if !ok {
		return nil, ierrors.New(ierrors.ErrCodeUnknownScheme,
			fmt.Sprintf("unknown tokenization scheme %q", scheme), nil).
			WithSuggestion("use one of: " + strings.Join(Schemes(), ", "))
	}
	return build()
}

// Schemes lists the supported scheme names.
func Schemes() []string {
	out := make([]string, 0, len(builders))
	for name := range builders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Known reports whether scheme is supported.
func Known(scheme string) bool {
	_, ok := builders[strings.ToLower(strings.TrimSpace(scheme))]
	return ok
}
