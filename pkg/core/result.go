package core

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
)

// ResultDate is the publication date attached to a result.
//
// When Relative is true the original text was an offset expression such as
// "3 days ago" and Time was computed by subtracting that offset from
// ExtractedAt. ExtractedAt is kept so the value can be reproduced.
type ResultDate struct {
	Time        time.Time `json:"time"`
	Relative    bool      `json:"relative"`
	ExtractedAt time.Time `json:"extracted_at,omitzero"`
}

// Result is a single search result extracted from an engine page.
//
// Two results with the same URL are the same logical result, regardless of
// the engine that produced them.
type Result struct {
	Title       string      `json:"title"`
	URL         string      `json:"url"`
	Description string      `json:"description"`
	Engine      Engine      `json:"engine"`
	Image       string      `json:"image,omitempty"`
	Date        *ResultDate `json:"date,omitempty"`
}

// ID returns the identifier derived from the result URL.
func (r Result) ID() string {
	return URLID(r.URL)
}

// Summary returns a concise one-line description, mostly for logs.
func (r Result) Summary() string {
	return fmt.Sprintf("[%s] %s <%s>", r.Engine, r.Title, r.URL)
}

// URLID hashes a decoded URL into a short hex identifier. The value is
// deterministic for a given URL and meant for client-side grouping only.
func URLID(url string) string {
	sum := blake3.Sum256([]byte(url))
	return hex.EncodeToString(sum[:16])
}
