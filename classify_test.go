package tracker

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		rawURL     string
		wantSearch bool
		wantQuery  string
	}{
		{
			name:       "google search",
			rawURL:     "https://www.google.com/search?q=golang%20channels",
			wantSearch: true,
			wantQuery:  "golang channels",
		},
		{
			name:       "google country domain",
			rawURL:     "https://www.google.co.uk/search?q=weather",
			wantSearch: true,
			wantQuery:  "weather",
		},
		{
			name:       "duckduckgo",
			rawURL:     "https://duckduckgo.com/?q=privacy+tools",
			wantSearch: true,
			wantQuery:  "privacy tools",
		},
		{
			name:       "bing",
			rawURL:     "https://www.bing.com/search?q=maps",
			wantSearch: true,
			wantQuery:  "maps",
		},
		{
			name:       "yahoo p parameter",
			rawURL:     "https://search.yahoo.com/search?p=stocks",
			wantSearch: true,
			wantQuery:  "stocks",
		},
		{
			name:       "startpage query parameter",
			rawURL:     "https://www.startpage.com/sp/search?query=anonymous",
			wantSearch: true,
			wantQuery:  "anonymous",
		},
		{
			name:       "ecosia",
			rawURL:     "https://www.ecosia.org/search?q=trees",
			wantSearch: true,
			wantQuery:  "trees",
		},
		{
			name:       "q takes priority over p",
			rawURL:     "https://www.google.com/search?p=second&q=first",
			wantSearch: true,
			wantQuery:  "first",
		},
		{
			name:       "search host without query parameter",
			rawURL:     "https://www.google.com/maps",
			wantSearch: false,
		},
		{
			name:       "search host with empty query",
			rawURL:     "https://www.google.com/search?q=",
			wantSearch: false,
		},
		{
			name:       "non-search host with q parameter",
			rawURL:     "https://github.com/search?q=tracker",
			wantSearch: false,
		},
		{
			name:       "plain page",
			rawURL:     "https://example.com/blog/post",
			wantSearch: false,
		},
		{
			name:       "unparsable URL treated as page visit",
			rawURL:     "http://bad host/q=x",
			wantSearch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.rawURL)
			if got.IsSearch != tt.wantSearch {
				t.Fatalf("Classify(%q).IsSearch = %v, want %v", tt.rawURL, got.IsSearch, tt.wantSearch)
			}
			if got.RawQuery != tt.wantQuery {
				t.Errorf("Classify(%q).RawQuery = %q, want %q", tt.rawURL, got.RawQuery, tt.wantQuery)
			}
		})
	}
}
