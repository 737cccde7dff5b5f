package engines

import "github.com/rubiojr/sieve/pkg/core"

// BraveSpec targets search.brave.com. Class names carry a generated
// svelte-<hash> suffix, so the pattern only anchors on their prefix.
//
// The favicon and the "<date> - " prefix are optional. Both groups are pinned
// to their place inside the snippet so a result without them never borrows
// them from the next one.
func BraveSpec() Spec {
	return Spec{
		Engine:        core.Brave,
		StartMarker:   `<body`,
		ResultPattern: `<div class="snippet svelte-[^"]*"[^>]*> ?<a href="(?P<url>[^"]+)"[^>]*> ?(?:<div class="site-wrapper"><img[^>]*src="(?P<image>[^"]+)"[^>]*> ?</div> ?)?.*?<div class="title svelte-[^"]*">(?P<title>.+?)</div></div>.*?<div class="snippet-description[^"]*">(?:(?P<date>[A-Z][a-z]{2} \d{1,2}, \d{4}|\d+ [a-z]+ ago) - )?(?P<description>.+?)</div>.*?</div>.*?</div>`,
		DateLayout:    "Jan 2, 2006",
		Request: RequestTemplate{
			Method: "GET",
			URL:    "https://search.brave.com/search?q={query}",
		},
	}
}
