package record

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Aman-CERP/docingest/internal/diag"
	ierrors "github.com/Aman-CERP/docingest/internal/errors"
)

const maxLineBytes = 64 * 1024 * 1024

// Reader streams records from newline-delimited JSON.
//
// Malformed input never stops the stream: absent fields become empty, schema
// violations are reported and the record is still returned, and a line that is
// not JSON at all is reported and skipped.
type Reader struct {
	sc        *bufio.Scanner
	line      int
	validator *Validator
	sink      diag.Sink
	malformed int
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithSink sets where malformed-record diagnostics go.
func WithSink(s diag.Sink) ReaderOption {
	return func(r *Reader) {
		if s != nil {
			r.sink = s
		}
	}
}

// WithValidator enables schema validation of every line.
func WithValidator(v *Validator) ReaderOption {
	return func(r *Reader) {
		r.validator = v
	}
}

// NewReader wraps src.
func NewReader(src io.Reader, opts ...ReaderOption) *Reader {
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	r := &Reader{sc: sc, sink: diag.Discard}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Malformed returns how many malformed lines have been seen so far.
func (r *Reader) Malformed() int {
	return r.malformed
}

// Next returns the next record, or io.EOF when the input is exhausted.
func (r *Reader) Next() (Record, error) {
	for r.sc.Scan() {
		r.line++
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 {
			continue
		}

		rec, issues, err := decode(line)
		if err != nil {
			r.report(err.Error(), true)
			continue
		}
		rec.Line = r.line

		if r.validator != nil {
			if verr := r.validator.Validate(line); verr != nil {
				issues = append(issues, verr.Error())
			}
		}
		if len(issues) > 0 {
			r.report(strings.Join(issues, "; "), false)
		}
		return rec, nil
	}

	if err := r.sc.Err(); err != nil {
		return Record{}, ierrors.IOError(fmt.Sprintf("read records at line %d", r.line+1), err)
	}
	return Record{}, io.EOF
}

func (r *Reader) report(reason string, skipped bool) {
	r.malformed++
	ie := ierrors.New(ierrors.ErrCodeMalformedRecord, reason, nil).
		WithDetail("line", strconv.Itoa(r.line))
	r.sink.Emit(diag.Event{
		Stage:   "load",
		Kind:    diag.KindMalformedRecord,
		Message: ie.Error(),
		Attrs:   map[string]any{"line": r.line, "skipped": skipped},
	})
}

// ReadAll drains r, stopping early if ctx is cancelled.
func ReadAll(ctx context.Context, r *Reader) ([]Record, error) {
	var out []Record
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// decode turns one JSON line into a Record. Fields with unexpected types are
// recovered as text and listed in issues.
func decode(line []byte) (Record, []string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return Record{}, nil, fmt.Errorf("line is not a JSON object: %w", err)
	}
	if fields == nil {
		return Record{}, nil, fmt.Errorf("line is not a JSON object")
	}

	var (
		rec    Record
		issues []string
	)
	text := func(name string) string {
		raw, ok := fields[name]
		if !ok {
			if name == "content" {
				issues = append(issues, "missing content")
			}
			return ""
		}
		raw = bytes.TrimSpace(raw)
		if name == "content" && string(raw) == "null" {
			issues = append(issues, "missing content")
			return ""
		}
		s, scalar := scalarText(raw)
		if !scalar || (raw[0] != '"' && string(raw) != "null") {
			issues = append(issues, fmt.Sprintf("%s is not a string", name))
		}
		return s
	}

	rec.Content = text("content")
	rec.URL = text("url")
	rec.Title = text("title")
	rec.Path = text("path")
	rec.ScrapedAt = text("scraped_at")

	md, mdIssues, err := parseMetadata(fields["metadata"])
	if err != nil {
		return Record{}, nil, fmt.Errorf("metadata: %w", err)
	}
	rec.Metadata = md
	issues = append(issues, mdIssues...)

	return rec, issues, nil
}
