package render

import (
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rubiojr/sieve/pkg/core"
)

var titleCaser = cases.Title(language.English)

// Title upper-cases the first letter of every word.
func Title(s string) string {
	return titleCaser.String(s)
}

// FormatTime renders t relative to now for recent times and as a date
// otherwise.
func FormatTime(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < 0:
		return t.Format("Jan 2, 2006")
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return t.Format("Jan 2, 2006")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// FormatDate renders a result date. Relative dates are shown relative to
// the moment they were extracted, so they read the same as on the engine.
func FormatDate(d *core.ResultDate) string {
	if d == nil {
		return ""
	}
	if d.Relative && !d.ExtractedAt.IsZero() {
		return FormatTime(d.Time, d.ExtractedAt)
	}
	return d.Time.Format("Jan 2, 2006")
}

// FormatElapsed rounds a duration for display.
func FormatElapsed(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}

// DisplayURL shortens a URL to host and path.
func DisplayURL(raw string, max int) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Truncate(raw, max)
	}
	return Truncate(strings.TrimSuffix(u.Host+u.EscapedPath(), "/"), max)
}

// Truncate cuts s to at most max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max <= 1 {
		return string(runes[:max])
	}
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

// TemplateFuncs are available to every page template.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"title":      Title,
		"formatDate": FormatDate,
		"elapsed":    FormatElapsed,
		"displayURL": DisplayURL,
		"truncate":   Truncate,
		"engineName": func(e core.Engine) string { return e.DisplayName() },
	}
}
