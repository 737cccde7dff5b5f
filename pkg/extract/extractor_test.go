package extract

import (
	"math/rand/v2"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rubiojr/sieve/pkg/core"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

const testPage = `<!doctype html>
<html>
<head><title>results for café</title></head>
<body>
  <div id="results">
    <li class="r"><a href="https://example.com/a%20b">Caf&eacute; &amp; Bar</a><p>First <b>bold</b>
       result &#233; ok</p><span>3 days ago</span></li>
    <li class="r"><a href="https://example.org/">Second</a><p>Desc two &bogus; &#x110000;</p><span>Jan 5, 2024</span></li><li class="r"><a href="https://example.net/ü">Ünïcödé 日本語</a><p>Multi

	   space</p></li>
  </div>
</body>
</html>
`

func testRules() *Rules {
	return &Rules{
		Engine:      core.DuckDuckGo,
		StartMarker: regexp.MustCompile(`id="results"`),
		Result:      regexp.MustCompile(`<li class="r"><a href="(?P<url>[^"]*)">(?P<title>.*?)</a><p>(?P<description>.*?)</p>(?:<span>(?P<date>[^<]*)</span>)?</li>`),
		DateLayout:  "Jan 2, 2006",
	}
}

func newTestExtractor() *Extractor {
	return New(testRules(), Options{Now: func() time.Time { return fixedNow }})
}

// drain feeds every chunk, pulling results after each one, then flushes.
func drain(ex *Extractor, chunks [][]byte) []core.Result {
	var out []core.Result
	pull := func() {
		for {
			r, ok := ex.Next()
			if !ok {
				return
			}
			out = append(out, r)
		}
	}
	for _, c := range chunks {
		ex.Feed(c)
		pull()
	}
	ex.Finish()
	pull()
	return out
}

func splitEvery(doc []byte, size int) [][]byte {
	var chunks [][]byte
	for len(doc) > 0 {
		n := min(size, len(doc))
		chunks = append(chunks, doc[:n])
		doc = doc[n:]
	}
	return chunks
}

func TestExtractWholeDocument(t *testing.T) {
	results := drain(newTestExtractor(), [][]byte{[]byte(testPage)})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d: %+v", len(results), results)
	}

	first := results[0]
	if first.URL != "https://example.com/a b" {
		t.Errorf("url: got %q", first.URL)
	}
	if first.Title != "Café & Bar" {
		t.Errorf("title: got %q", first.Title)
	}
	if first.Description != "First bold result é ok" {
		t.Errorf("description: got %q", first.Description)
	}
	if first.Engine != core.DuckDuckGo {
		t.Errorf("engine: got %v", first.Engine)
	}
	if first.Date == nil || !first.Date.Relative {
		t.Fatalf("expected relative date, got %+v", first.Date)
	}
	if want := fixedNow.Add(-72 * time.Hour); !first.Date.Time.Equal(want) {
		t.Errorf("date: got %v, want %v", first.Date.Time, want)
	}

	second := results[1]
	if second.Description != "Desc two &bogus;" {
		t.Errorf("description: got %q", second.Description)
	}
	if second.Date == nil || second.Date.Relative {
		t.Fatalf("expected absolute date, got %+v", second.Date)
	}
	if want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC); !second.Date.Time.Equal(want) {
		t.Errorf("date: got %v, want %v", second.Date.Time, want)
	}

	third := results[2]
	if third.URL != "https://example.net/ü" || third.Title != "Ünïcödé 日本語" {
		t.Errorf("unicode fields: got %q / %q", third.URL, third.Title)
	}
	if third.Description != "Multi space" {
		t.Errorf("whitespace not collapsed: %q", third.Description)
	}
	if third.Date != nil {
		t.Errorf("expected no date, got %+v", third.Date)
	}
}

func TestChunkBoundaryInvariance(t *testing.T) {
	doc := []byte(testPage)
	want := drain(newTestExtractor(), [][]byte{doc})

	t.Run("every two-way split", func(t *testing.T) {
		for i := 1; i < len(doc); i++ {
			got := drain(newTestExtractor(), [][]byte{doc[:i], doc[i:]})
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("split at %d (%q|%q): results differ\ngot:  %+v\nwant: %+v", i, doc[max(0, i-5):i], doc[i:min(len(doc), i+5)], got, want)
			}
		}
	})

	for _, size := range []int{1, 2, 3, 7, 64, 1400} {
		got := drain(newTestExtractor(), splitEvery(doc, size))
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("chunk size %d: results differ\ngot:  %+v\nwant: %+v", size, got, want)
		}
	}

	rng := rand.New(rand.NewPCG(7, 11))
	for round := 0; round < 200; round++ {
		var chunks [][]byte
		rest := doc
		for len(rest) > 0 {
			n := min(1+rng.IntN(40), len(rest))
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}
		got := drain(newTestExtractor(), chunks)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("random round %d: results differ\ngot:  %+v\nwant: %+v", round, got, want)
		}
	}
}

func TestSeekingDiscardsTextBeforeMarker(t *testing.T) {
	ex := newTestExtractor()
	ex.Feed([]byte(`<li class="r"><a href="https://before.example/">Before</a><p>x</p></li> <div id="res`))
	if ex.Started() {
		t.Fatal("started before the marker was complete")
	}
	if _, ok := ex.Next(); ok {
		t.Fatal("extracted a result while seeking")
	}

	ex.Feed([]byte(`ults">tail`))
	if !ex.Started() {
		t.Fatal("marker split across chunks was not detected")
	}
	if got := ex.Buffer(); got != ">tail" {
		t.Errorf("buffer after marker: got %q, want %q", got, ">tail")
	}
}

func TestNextIsIdempotentWhenExhausted(t *testing.T) {
	ex := newTestExtractor()
	doc := []byte(testPage)
	cut := strings.Index(testPage, "Second")
	ex.Feed(doc[:cut])

	if _, ok := ex.Next(); !ok {
		t.Fatal("expected the first result")
	}
	before := ex.Buffer()
	for i := 0; i < 5; i++ {
		if r, ok := ex.Next(); ok {
			t.Fatalf("call %d: unexpected result %+v", i, r)
		}
		if ex.Buffer() != before {
			t.Fatalf("call %d: buffer changed from %q to %q", i, before, ex.Buffer())
		}
	}
}

func TestBufferRetainsExactSuffix(t *testing.T) {
	ex := newTestExtractor()
	ex.Feed([]byte(testPage))

	for {
		before := ex.Buffer()
		loc := testRules().Result.FindStringIndex(before)
		_, ok := ex.Next()
		if !ok {
			if loc != nil {
				t.Fatal("pattern matches but Next returned nothing")
			}
			break
		}
		if got, want := ex.Buffer(), before[loc[1]:]; got != want {
			t.Fatalf("buffer after match:\ngot:  %q\nwant: %q", got, want)
		}
	}
}

func TestAdjacentResultsInOneChunk(t *testing.T) {
	ex := newTestExtractor()
	ex.Feed([]byte(`<div id="results"><li class="r"><a href="/1">One</a><p>a</p></li><li class="r"><a href="/2">Two</a><p>b</p></li>`))

	var titles []string
	for {
		r, ok := ex.Next()
		if !ok {
			break
		}
		titles = append(titles, r.Title)
	}
	if !reflect.DeepEqual(titles, []string{"One", "Two"}) {
		t.Errorf("expected both adjacent results, got %v", titles)
	}
}

func TestMissingOptionalGroups(t *testing.T) {
	rules := &Rules{
		Engine:      core.Bing,
		StartMarker: regexp.MustCompile(`<ol>`),
		Result:      regexp.MustCompile(`<li><a href="(?P<url>[^"]*)">(?P<title>[^<]*)</a>(?:<img src="(?P<image>[^"]*)">)?(?P<description>[^<]*)</li>`),
	}
	ex := New(rules, Options{})
	ex.Feed([]byte(`<ol><li><a href="https://x.example/">X</a>plain</li>`))

	r, ok := ex.Next()
	if !ok {
		t.Fatal("expected a result")
	}
	if r.Image != "" || r.Date != nil {
		t.Errorf("absent groups should be empty, got image=%q date=%v", r.Image, r.Date)
	}
	if r.Description != "plain" {
		t.Errorf("description: got %q", r.Description)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"collapses runs", []byte("a \n\t  b\r\nc"), "a b c"},
		{"keeps single spaces", []byte("a b"), "a b"},
		{"lossy invalid utf8", []byte{'a', 0xff, 'b'}, "a�b"},
		{"empty", nil, ""},
		{"only whitespace", []byte("\n\n"), " "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.in); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitUTF8SequenceAcrossChunks(t *testing.T) {
	doc := []byte(`<div id="results"><li class="r"><a href="/x">日本</a><p>d</p></li>`)
	idx := strings.Index(string(doc), "日") + 1

	results := drain(newTestExtractor(), [][]byte{doc[:idx], doc[idx:]})
	if len(results) != 1 || results[0].Title != "日本" {
		t.Fatalf("split rune was not reassembled: %+v", results)
	}
}
