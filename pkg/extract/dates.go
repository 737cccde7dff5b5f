package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rubiojr/sieve/pkg/core"
)

var relativeDate = regexp.MustCompile(`(?i)^(\d+)\s+(second|minute|hour|day|week|month|year)s?\s+ago$`)

// unitSeconds are fixed approximations; month and year are not calendar exact.
var unitSeconds = map[string]int64{
	"second": 1,
	"minute": 60,
	"hour":   60 * 60,
	"day":    24 * 60 * 60,
	"week":   7 * 24 * 60 * 60,
	"month":  30 * 24 * 60 * 60,
	"year":   365 * 24 * 60 * 60,
}

// ParseDate normalizes a date string found next to a result.
//
// An absolute date parsed with layout yields a non relative date. Otherwise
// "<n> <unit> ago" is resolved against now. Anything else yields nil.
func ParseDate(text, layout string, now time.Time, calendar bool) *core.ResultDate {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if layout != "" {
		if t, err := time.Parse(layout, text); err == nil {
			return &core.ResultDate{Time: t}
		}
	}

	m := relativeDate.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}
	unit := strings.ToLower(m[2])
	if n > math.MaxInt64/int64(time.Second)/unitSeconds[unit] {
		return nil
	}

	var t time.Time
	switch {
	case calendar && unit == "month":
		t = now.AddDate(0, -int(n), 0)
	case calendar && unit == "year":
		t = now.AddDate(-int(n), 0, 0)
	default:
		t = now.Add(-time.Duration(n*unitSeconds[unit]) * time.Second)
	}
	return &core.ResultDate{Time: t, Relative: true, ExtractedAt: now}
}
