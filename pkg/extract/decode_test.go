package extract

import (
	"testing"
	"time"
)

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"percent", "https://example.com/a%20b%2Fc", "https://example.com/a b/c"},
		{"plus is kept", "a+b", "a+b"},
		{"bad percent left as is", "100% sure", "100% sure"},
		{"named entities", "Tom &amp; Jerry &lt;3", "Tom & Jerry <3"},
		{"decimal", "caf&#233;", "café"},
		{"hex", "caf&#xE9; &#X41;", "café A"},
		{"unknown entity kept", "a &nosuchentity; b", "a &nosuchentity; b"},
		{"legacy prefix not applied", "&ampfoo;", "&ampfoo;"},
		{"out of range dropped", "x&#x110000;y", "xy"},
		{"nul dropped", "x&#0;y", "xy"},
		{"percent before entities", "%26amp%3B", "&"},
		{"trims", "  padded  ", "padded"},
		{"semi entity", "a&semi;", "a;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeText(tt.in); got != tt.want {
				t.Errorf("DecodeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"no tags here", "no tags here"},
		{"<strong>Go</strong> is fun", "Go is fun"},
		{`see <a href="https://go.dev">the site</a> & more`, "see the site & more"},
		{"Fish &amp; chips <em>daily</em>", "Fish & chips daily"},
		{"<span class=\"x\"></span>text", "text"},
	}
	for _, tt := range tests {
		if got := StripMarkup(tt.in); got != tt.want {
			t.Errorf("StripMarkup(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	now := time.Date(2025, 6, 30, 10, 0, 0, 0, time.UTC)
	const layout = "Jan 2, 2006"

	tests := []struct {
		name     string
		text     string
		calendar bool
		want     time.Time
		relative bool
		absent   bool
	}{
		{name: "absolute", text: "Feb 14, 2023", want: time.Date(2023, 2, 14, 0, 0, 0, 0, time.UTC)},
		{name: "three days", text: "3 days ago", want: now.Add(-3 * 86400 * time.Second), relative: true},
		{name: "singular", text: "1 hour ago", want: now.Add(-time.Hour), relative: true},
		{name: "seconds", text: "45 seconds ago", want: now.Add(-45 * time.Second), relative: true},
		{name: "weeks", text: "2 weeks ago", want: now.Add(-14 * 24 * time.Hour), relative: true},
		{name: "month approx", text: "1 month ago", want: now.Add(-30 * 24 * time.Hour), relative: true},
		{name: "year approx", text: "2 years ago", want: now.Add(-730 * 24 * time.Hour), relative: true},
		{name: "month calendar", text: "1 month ago", calendar: true, want: time.Date(2025, 5, 30, 10, 0, 0, 0, time.UTC), relative: true},
		{name: "year calendar", text: "1 year ago", calendar: true, want: time.Date(2024, 6, 30, 10, 0, 0, 0, time.UTC), relative: true},
		{name: "case insensitive", text: "5 Minutes Ago", want: now.Add(-5 * time.Minute), relative: true},
		{name: "garbage", text: "yesterday-ish", absent: true},
		{name: "empty", text: "  ", absent: true},
		{name: "overflow", text: "99999999999999 years ago", absent: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.text, layout, now, tt.calendar)
			if tt.absent {
				if got != nil {
					t.Fatalf("expected no date, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a date")
			}
			if !got.Time.Equal(tt.want) {
				t.Errorf("time: got %v, want %v", got.Time, tt.want)
			}
			if got.Relative != tt.relative {
				t.Errorf("relative: got %v, want %v", got.Relative, tt.relative)
			}
			if tt.relative && !got.ExtractedAt.Equal(now) {
				t.Errorf("extracted at: got %v, want %v", got.ExtractedAt, now)
			}
		})
	}
}

func TestParseDateWithoutLayout(t *testing.T) {
	now := time.Now()
	if got := ParseDate("Feb 14, 2023", "", now, false); got != nil {
		t.Errorf("absolute date parsed without a layout: %+v", got)
	}
	got := ParseDate("3 days ago", "", now, false)
	if got == nil || !got.Relative {
		t.Fatalf("expected relative date, got %+v", got)
	}
	want := now.Add(-3 * 86400 * time.Second)
	if d := got.Time.Sub(want); d < -time.Second || d > time.Second {
		t.Errorf("relative date outside window: got %v, want ~%v", got.Time, want)
	}
}
