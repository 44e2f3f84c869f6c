package tracker

import (
	"log"
	"net/url"
	"strings"
)

// searchHostPatterns are substrings matched against a URL's hostname to
// recognize search-engine result pages. Substring match so subdomains and
// country TLDs (www.google.co.uk, search.bing.com) match too.
var searchHostPatterns = []string{
	"google.",
	"duckduckgo.",
	"bing.com",
	"yahoo.",
	"startpage.",
	"ecosia.",
}

// queryParamKeys are the query-parameter names search engines put the query
// under, in priority order. First present non-empty value wins.
var queryParamKeys = []string{"q", "query", "text", "p"}

// Classification is the result of classifying a URL.
type Classification struct {
	IsSearch bool
	RawQuery string // URL-decoded once by query parsing; empty unless IsSearch
}

// Classify decides whether a URL is a search-engine query and extracts the
// raw query string. Unparsable URLs classify as non-searches; classification
// never fails.
func Classify(rawURL string) Classification {
	u, err := url.Parse(rawURL)
	if err != nil {
		log.Printf("Classify: invalid URL %q: %v", rawURL, err)
		return Classification{}
	}

	if !isSearchEngineHost(u.Hostname()) {
		return Classification{}
	}

	values := u.Query()
	for _, key := range queryParamKeys {
		if v := values.Get(key); v != "" {
			return Classification{IsSearch: true, RawQuery: v}
		}
	}

	return Classification{}
}

func isSearchEngineHost(hostname string) bool {
	hostname = strings.ToLower(hostname)
	for _, pattern := range searchHostPatterns {
		if strings.Contains(hostname, pattern) {
			return true
		}
	}
	return false
}
