// Package engines describes how to query each search engine and how to pull
// results out of its page.
package engines

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/rubiojr/sieve/pkg/core"
	"github.com/rubiojr/sieve/pkg/extract"
	"github.com/rubiojr/sieve/pkg/transport"
)

// QueryPlaceholder is replaced by the escaped query in request templates.
const QueryPlaceholder = "{query}"

var (
	// ErrInvalidSpec wraps every configuration problem found while building
	// an adapter.
	ErrInvalidSpec = errors.New("invalid engine spec")

	// ErrConsumerGone is returned by Run when the emit callback reports that
	// nobody is reading results any more.
	ErrConsumerGone = errors.New("result consumer gone")

	ErrUnknownEngine = core.ErrUnknownEngine
)

var requiredGroups = []string{"url", "title", "description"}

// RequestTemplate builds the HTTP request for a query.
type RequestTemplate struct {
	Method      string
	URL         string
	Body        string
	ContentType string
}

// Spec is the static description of one engine.
type Spec struct {
	Engine        core.Engine
	StartMarker   string
	ResultPattern string
	// DateLayout is a time.Parse layout; empty when the engine shows no
	// absolute dates.
	DateLayout string
	Request    RequestTemplate
}

// WithURL returns a copy of the spec pointed at a different URL template.
func (s Spec) WithURL(tmpl string) Spec {
	s.Request.URL = tmpl
	return s
}

// Validate checks the templates and compiles the patterns.
func (s Spec) Validate() error {
	_, err := s.compile()
	return err
}

func (s Spec) compile() (*extract.Rules, error) {
	if !s.Engine.Valid() {
		return nil, errors.Wrapf(ErrInvalidSpec, "engine %d", int(s.Engine))
	}
	name := s.Engine.String()

	if s.Request.URL == "" {
		return nil, errors.Wrapf(ErrInvalidSpec, "%s: empty URL template", name)
	}
	if !strings.Contains(s.Request.URL, QueryPlaceholder) && !strings.Contains(s.Request.Body, QueryPlaceholder) {
		return nil, errors.Wrapf(ErrInvalidSpec, "%s: request template lacks %s", name, QueryPlaceholder)
	}

	if s.StartMarker == "" {
		return nil, errors.Wrapf(ErrInvalidSpec, "%s: empty start marker", name)
	}
	marker, err := regexp.Compile(s.StartMarker)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSpec, "%s: start marker: %v", name, err)
	}
	result, err := regexp.Compile(s.ResultPattern)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSpec, "%s: result pattern: %v", name, err)
	}
	for _, g := range requiredGroups {
		if result.SubexpIndex(g) < 0 {
			return nil, errors.Wrapf(ErrInvalidSpec, "%s: result pattern lacks group %q", name, g)
		}
	}
	if result.MatchString("") {
		return nil, errors.Wrapf(ErrInvalidSpec, "%s: result pattern matches empty text", name)
	}

	return &extract.Rules{
		Engine:      s.Engine,
		StartMarker: marker,
		Result:      result,
		DateLayout:  s.DateLayout,
	}, nil
}

// BuildRequest expands the template for query.
func (t RequestTemplate) BuildRequest(query string) transport.Request {
	escaped := url.QueryEscape(query)
	method := t.Method
	if method == "" {
		method = "GET"
	}
	return transport.Request{
		Method:      method,
		URL:         strings.ReplaceAll(t.URL, QueryPlaceholder, escaped),
		Body:        strings.ReplaceAll(t.Body, QueryPlaceholder, escaped),
		ContentType: t.ContentType,
	}
}
