// Package document turns raw records into text units: a body ready for
// chunking plus a flat attribute map carried unchanged to the index.
package document

import (
	"maps"

	"github.com/Aman-CERP/docingest/internal/record"
)

// Attribute keys copied from the record itself.
const (
	AttrURL       = "url"
	AttrTitle     = "title"
	AttrPath      = "path"
	AttrScrapedAt = "scraped_at"
)

// Attributes is the flat metadata of a text unit. Keys are unique.
type Attributes map[string]string

// Clone returns an independent copy.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return Attributes{}
	}
	return maps.Clone(a)
}

// TextUnit is one document flowing through the pipeline.
// Stages rewrite Body; Attributes are fixed once normalized.
type TextUnit struct {
	Body       string
	Attributes Attributes
}

// WithBody returns a copy of u carrying body. Attributes are shared; callers
// that need to mutate them must Clone first.
func (u TextUnit) WithBody(body string) TextUnit {
	u.Body = body
	return u
}

// New builds the text unit for rec: normalized attributes and the
// header-injected body.
func New(rec record.Record, inj *Injector) TextUnit {
	attrs := Normalize(rec)
	body := rec.Content
	if inj != nil {
		body = inj.Inject(body, attrs)
	}
	return TextUnit{Body: body, Attributes: attrs}
}
