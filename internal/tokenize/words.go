package tokenize

import "regexp"

// wordPattern matches maximal runs of newlines, other whitespace, letters and
// digits, or punctuation. Neighbouring tokens always belong to different
// classes, so any cut on a token boundary tokenizes back to the same pieces.
var wordPattern = regexp.MustCompile(`\n+|[^\S\n]+|[\p{L}\p{N}_]+|[^\s\p{L}\p{N}_]+`)

// Words is an offline scheme that needs no vocabulary tables.
type Words struct{}

// NewWords returns the words tokenizer.
func NewWords() Words { return Words{} }

// Scheme implements Tokenizer.
func (Words) Scheme() string { return SchemeWords }

// Count implements Tokenizer.
func (Words) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(wordPattern.FindAllStringIndex(text, -1))
}

// Split implements Tokenizer.
func (Words) Split(text string) []string {
	if text == "" {
		return nil
	}
	locs := wordPattern.FindAllStringIndex(text, -1)
	out := make([]string, len(locs))
	for i, loc := range locs {
		out[i] = text[loc[0]:loc[1]]
	}
	return out
}
