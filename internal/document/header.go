package document

import "strings"

// DocEndSentinel marks the end of a logical document inside a body.
const DocEndSentinel = "[DOC_END]"

// Header line labels, in output order.
const (
	LabelTitle  = "Title: "
	LabelPath   = "Documentation Path: "
	LabelSource = "Source: "
)

// InjectorOptions selects the header variant. The choice is made once per run.
type InjectorOptions struct {
	// IncludeTitle writes the "Title:" line.
	IncludeTitle bool
	// DocEndSentinel appends a "[DOC_END]" line after the body.
	DocEndSentinel bool
}

// DefaultInjectorOptions writes the full header and the sentinel.
func DefaultInjectorOptions() InjectorOptions {
	return InjectorOptions{IncludeTitle: true, DocEndSentinel: true}
}

// Injector prepends a metadata header to document bodies.
type Injector struct {
	opts InjectorOptions
}

// NewInjector returns an Injector with the given options.
func NewInjector(opts InjectorOptions) *Injector {
	return &Injector{opts: opts}
}

// Options returns the variant in use.
func (i *Injector) Options() InjectorOptions {
	return i.opts
}

// Header returns the header lines for attrs, without trailing newline.
// Only non-blank title, path and url produce a line.
func (i *Injector) Header(attrs Attributes) string {
	var lines []string

	add := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			lines = append(lines, label+v)
		}
	}
	if i.opts.IncludeTitle {
		add(LabelTitle, attrs[AttrTitle])
	}
	add(LabelPath, attrs[AttrPath])
	add(LabelSource, attrs[AttrURL])

	return strings.Join(lines, "\n")
}

// Inject returns header, a blank line and body, followed by the sentinel line
// when enabled. A body with no header fields is returned unchanged.
func (i *Injector) Inject(body string, attrs Attributes) string {
	header := i.Header(attrs)
	if header == "" {
		return body
	}

	out := header + "\n\n" + body
	if i.opts.DocEndSentinel {
		out += "\n" + DocEndSentinel
	}
	return out
}
