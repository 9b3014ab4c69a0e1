// Package record reads raw scraped documentation records.
//
// A record is one JSON object per line:
//
//	{"content": "...", "url": "...", "title": "...", "path": "...",
//	 "scraped_at": "...", "metadata": {"Product": "DXP", "Tags": ["a", "b"]}}
//
// Records are immutable once read. Metadata keeps the key order of the source line.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is one raw scraped document.
type Record struct {
	Content   string
	URL       string
	Title     string
	Path      string
	ScrapedAt string
	Metadata  Metadata

	// Line is the 1-based line number in the source, 0 if built in memory.
	Line int
}

// Field is one metadata entry.
type Field struct {
	Key   string
	Value Value
}

// Metadata is an ordered list of metadata entries.
type Metadata []Field

// Get returns the value for key and whether it was present.
// If the key repeats, the last occurrence wins.
func (m Metadata) Get(key string) (Value, bool) {
	for i := len(m) - 1; i >= 0; i-- {
		if m[i].Key == key {
			return m[i].Value, true
		}
	}
	return Value{}, false
}

// Value is a metadata value: a scalar or a list of scalars, already rendered as text.
// null renders as "", booleans as true/false and numbers exactly as written.
type Value struct {
	Items []string
	List  bool
}

// Scalar builds a single-valued Value.
func Scalar(s string) Value {
	return Value{Items: []string{s}}
}

// List builds a list Value.
func List(items ...string) Value {
	return Value{Items: items, List: true}
}

// String joins list items with ", ".
func (v Value) String() string {
	if v.List {
		return strings.Join(v.Items, ", ")
	}
	if len(v.Items) == 0 {
		return ""
	}
	return v.Items[0]
}

// parseMetadata decodes a JSON object preserving key order.
// Nested objects and nested lists are kept as compact JSON text and reported
// through the returned issues.
func parseMetadata(raw json.RawMessage) (Metadata, []string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil, nil
	}
	if raw[0] != '{' {
		return nil, []string{"metadata is not an object"}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}

	var (
		md     Metadata
		issues []string
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected metadata key %v", tok)
		}

		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, nil, err
		}

		v, issue := parseValue(val)
		if issue != "" {
			issues = append(issues, fmt.Sprintf("metadata %q: %s", key, issue))
		}
		md = append(md, Field{Key: key, Value: v})
	}
	return md, issues, nil
}

func parseValue(raw json.RawMessage) (Value, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return Scalar(string(raw)), "invalid list"
		}
		out := make([]string, 0, len(items))
		var issue string
		for _, item := range items {
			s, ok := scalarText(item)
			if !ok {
				issue = "list contains a non-scalar item"
			}
			out = append(out, s)
		}
		return List(out...), issue
	}

	s, ok := scalarText(raw)
	if !ok {
		return Scalar(s), "value is an object"
	}
	return Scalar(s), ""
}

// scalarText renders a JSON scalar as text. Non-scalars come back as compact
// JSON with ok=false.
func scalarText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", true
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return string(raw), false
		}
		return s, true
	case 'n':
		return "", true
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return string(raw), false
		}
		return buf.String(), false
	case 't', 'f':
		return string(raw), true
	default:
		return numberText(string(raw)), true
	}
}

// numberText writes a JSON number in its shortest form: 1.50 -> 1.5,
// 2e3 -> 2000. Integer literals are kept as written so large ids stay exact.
func numberText(lit string) string {
	if !strings.ContainsAny(lit, ".eE") {
		return lit
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return lit
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
