// Package render turns search events into HTML and terminal friendly text.
package render

import (
	"embed"
	"html/template"
	"io"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/rubiojr/sieve/pkg/core"
	"github.com/rubiojr/sieve/pkg/search"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page writes the streaming results page piece by piece: the head, one
// fragment per event, then the footer. Safe for concurrent use.
type Page struct {
	tmpl *template.Template
}

func NewPage() (*Page, error) {
	tmpl, err := template.New("page").Funcs(TemplateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parsing page templates")
	}
	return &Page{tmpl: tmpl}, nil
}

type headData struct {
	Query   string
	Engines []core.Engine
}

type footData struct {
	Count    int
	Elapsed  time.Duration
	Outcomes []search.Outcome
}

// WriteHome writes the search form shown before any query.
func (p *Page) WriteHome(w io.Writer, engines []core.Engine) error {
	return p.tmpl.ExecuteTemplate(w, "home.html", headData{Engines: engines})
}

func (p *Page) WriteHead(w io.Writer, query string, engines []core.Engine) error {
	return p.tmpl.ExecuteTemplate(w, "head.html", headData{Query: query, Engines: engines})
}

// WriteEvent renders results and duplicate notices. Other events produce
// no output.
func (p *Page) WriteEvent(w io.Writer, ev search.Event) error {
	switch ev.Kind {
	case search.EventResult:
		return p.tmpl.ExecuteTemplate(w, "result.html", ev)
	case search.EventDuplicate:
		return p.tmpl.ExecuteTemplate(w, "duplicate.html", ev)
	}
	return nil
}

func (p *Page) WriteFoot(w io.Writer, count int, elapsed time.Duration, outcomes []search.Outcome) error {
	return p.tmpl.ExecuteTemplate(w, "foot.html", footData{Count: count, Elapsed: elapsed, Outcomes: outcomes})
}
