package engines

import "github.com/rubiojr/sieve/pkg/core"

// BingSpec targets the unlocalized www.bing.com page. A result's caption is
// either a b_caption block or a b_lineclamp paragraph; both start with a
// span that is not part of the description.
func BingSpec() Spec {
	return Spec{
		Engine:        core.Bing,
		StartMarker:   `id="b_results"`,
		ResultPattern: `<li class="b_algo".*?<h2.*?><a href="(?P<url>.+?)".*?>(?P<title>.+?)</a></h2>.*?((<div class="b_caption.*?<p.*?)|(<p class="b_lineclamp.*?))><span.*?</span>(?P<description>.*?)</p>.*?</li>`,
		Request: RequestTemplate{
			Method: "GET",
			URL:    "https://www.bing.com/search?q={query}",
		},
	}
}
