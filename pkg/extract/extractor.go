// Package extract pulls structured search results out of an HTML page that
// arrives in arbitrarily sized chunks.
//
// An Extractor is a small state machine. It starts in the seeking state,
// looking for the engine's start-of-results marker. Once the marker is seen it
// switches to the in-results state for good and accumulates normalized text in
// a buffer. Next applies the engine's single-result pattern to the whole buffer
// and, on a match, returns one result and keeps only the text after it.
//
// Because matching always runs against the accumulated buffer, the way a page
// is split into chunks does not change the results produced for it.
package extract

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rubiojr/sieve/pkg/core"
)

// DefaultMarkerWindow is the amount of normalized text kept while looking for
// the start marker. Markers must be shorter than this.
const DefaultMarkerWindow = 4096

// Rules is the immutable matching configuration of one engine.
// A Rules value is shared read-only by every extractor built from it.
type Rules struct {
	Engine      core.Engine
	StartMarker *regexp.Regexp
	Result      *regexp.Regexp
	// DateLayout is a time.Parse layout for absolute dates. Empty disables
	// absolute parsing; relative expressions are still recognised.
	DateLayout string
}

// Options tune an Extractor.
type Options struct {
	// Now returns the extraction wall-clock time. Defaults to time.Now.
	Now func() time.Time
	// CalendarDates switches relative month/year offsets to calendar
	// arithmetic instead of the fixed 30/365 day approximations.
	CalendarDates bool
	// MarkerWindow overrides DefaultMarkerWindow.
	MarkerWindow int
}

// Extractor is the per-search incremental parser. It is not safe for
// concurrent use; each search owns its extractors exclusively.
type Extractor struct {
	rules *Rules
	opts  Options

	started bool
	// seek holds recent text while the start marker has not been seen.
	seek string
	// buf holds text delivered but not yet consumed by a match.
	buf string
	// pending holds an incomplete UTF-8 sequence from the previous chunk.
	pending []byte
	// lastSpace records whether the normalized stream ends with a space.
	lastSpace bool

	groups fieldGroups
}

type fieldGroups struct {
	url, title, description, image, date int
}

// New returns an extractor in the seeking state.
func New(rules *Rules, opts Options) *Extractor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MarkerWindow <= 0 {
		opts.MarkerWindow = DefaultMarkerWindow
	}
	return &Extractor{
		rules: rules,
		opts:  opts,
		groups: fieldGroups{
			url:         rules.Result.SubexpIndex("url"),
			title:       rules.Result.SubexpIndex("title"),
			description: rules.Result.SubexpIndex("description"),
			image:       rules.Result.SubexpIndex("image"),
			date:        rules.Result.SubexpIndex("date"),
		},
	}
}

// Started reports whether the start marker has been observed.
func (e *Extractor) Started() bool {
	return e.started
}

// Buffer returns the unconsumed text.
func (e *Extractor) Buffer() string {
	return e.buf
}

// Feed consumes one raw chunk.
func (e *Extractor) Feed(chunk []byte) {
	if len(e.pending) > 0 {
		joined := make([]byte, 0, len(e.pending)+len(chunk))
		joined = append(joined, e.pending...)
		chunk = append(joined, chunk...)
		e.pending = nil
	}
	complete, rest := splitIncomplete(chunk)
	if len(rest) > 0 {
		e.pending = append([]byte(nil), rest...)
	}
	e.push(NormalizeText(complete))
}

// Finish flushes bytes held back from the last chunk. Call it once the
// stream has ended, before draining the remaining results.
func (e *Extractor) Finish() {
	if len(e.pending) == 0 {
		return
	}
	text := NormalizeText(e.pending)
	e.pending = nil
	e.push(text)
}

func (e *Extractor) push(text string) {
	if text == "" {
		return
	}
	// A whitespace run split across chunks still collapses to one space.
	if e.lastSpace && text[0] == ' ' {
		text = text[1:]
		if text == "" {
			return
		}
	}
	e.lastSpace = text[len(text)-1] == ' '

	if e.started {
		e.buf += text
		return
	}

	e.seek += text
	if loc := e.rules.StartMarker.FindStringIndex(e.seek); loc != nil {
		e.started = true
		e.buf = e.seek[loc[1]:]
		e.seek = ""
		return
	}
	e.trimSeek()
}

// trimSeek keeps only the trailing marker window, cut on a rune boundary.
func (e *Extractor) trimSeek() {
	if len(e.seek) <= e.opts.MarkerWindow {
		return
	}
	cut := len(e.seek) - e.opts.MarkerWindow
	for cut < len(e.seek) && !utf8.RuneStart(e.seek[cut]) {
		cut++
	}
	e.seek = strings.Clone(e.seek[cut:])
}

// Next tries to extract one result from the buffer. It returns false when no
// complete result is buffered yet, leaving the state untouched.
func (e *Extractor) Next() (core.Result, bool) {
	if !e.started || e.buf == "" {
		return core.Result{}, false
	}
	loc := e.rules.Result.FindStringSubmatchIndex(e.buf)
	if loc == nil || loc[1] == 0 {
		return core.Result{}, false
	}

	result := e.build(loc)
	e.buf = strings.Clone(e.buf[loc[1]:])
	return result, true
}

func (e *Extractor) group(loc []int, idx int) string {
	if idx < 0 || 2*idx+1 >= len(loc) || loc[2*idx] < 0 {
		return ""
	}
	return e.buf[loc[2*idx]:loc[2*idx+1]]
}

func (e *Extractor) build(loc []int) core.Result {
	result := core.Result{
		Engine:      e.rules.Engine,
		URL:         DecodeText(e.group(loc, e.groups.url)),
		Title:       DecodeText(e.group(loc, e.groups.title)),
		Description: StripMarkup(DecodeText(e.group(loc, e.groups.description))),
		Image:       DecodeText(e.group(loc, e.groups.image)),
	}
	if raw := strings.TrimSpace(e.group(loc, e.groups.date)); raw != "" {
		result.Date = ParseDate(DecodeText(raw), e.rules.DateLayout, e.opts.Now(), e.opts.CalendarDates)
	}
	return result
}
