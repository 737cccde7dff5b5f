package engines

import "github.com/rubiojr/sieve/pkg/core"

// DuckDuckGoSpec targets the JavaScript free html.duckduckgo.com endpoint,
// which expects the query as a form POST.
//
// A normalized result looks like:
//
//	<div class="result results_links ..."> <div class="links_main ..."> <h2 class="result__title">
//	<a rel="nofollow" class="result__a" href="URL"> TITLE </a> </h2> ...
//	<a class="result__snippet" href="URL"> SNIPPET </a> <div class="clear"></div> </div> </div>
func DuckDuckGoSpec() Spec {
	return Spec{
		Engine:        core.DuckDuckGo,
		StartMarker:   `id="links"`,
		ResultPattern: `<div class="result.*?<a.*?href="(?P<url>.*?)".*?>(?P<title>.*?)</a>.*?class="result__snippet".*?>(?P<description>.*?)</a>.*?class="clear".*?</div>( </div>){2}`,
		Request: RequestTemplate{
			Method:      "POST",
			URL:         "https://html.duckduckgo.com/html/",
			Body:        "q={query}",
			ContentType: "application/x-www-form-urlencoded",
		},
	}
}
