package models

import "time"

// Visit kinds.
const (
	KindSearch    = "search"
	KindPageVisit = "page_visit"
)

// Navigation triggers, matching the browser event that produced them.
const (
	TriggerPageLoad       = "page_load"
	TriggerHistoryUpdate  = "history_update"
	TriggerFragmentUpdate = "fragment_update"
)

// NavigationEvent is a raw navigation signal from the browser extension.
// Only main-frame events (FrameID == 0) are processed.
type NavigationEvent struct {
	TabID      int       `json:"tab_id"`
	URL        string    `json:"url"`
	FrameID    int       `json:"frame_id"`
	Title      string    `json:"title,omitempty"` // optional, as reported by the extension
	Trigger    string    `json:"trigger,omitempty"`
	ObservedAt time.Time `json:"observed_at,omitempty"`
}

// VisitRecord is the router's output, handed to the persistence/enrichment
// boundary. SearchQuery is the query used for repository enrichment; when
// empty, enrichment falls back to RawQuery for searches and is skipped for
// page visits.
type VisitRecord struct {
	ID                string    `json:"id"`
	URL               string    `json:"url"`
	Title             string    `json:"title,omitempty"`
	Domain            string    `json:"domain,omitempty"`
	Kind              string    `json:"kind"`
	RawQuery          string    `json:"raw_query,omitempty"`
	SearchQuery       string    `json:"search_query,omitempty"`
	ExtractedKeywords string    `json:"extracted_keywords,omitempty"`
	Trigger           string    `json:"trigger,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Visit is a persisted visit with its enrichment results attached.
type Visit struct {
	VisitRecord
	Repos []Repo `json:"repos"`
}

// SearchRecord is a row in the searches table. Search visits are
// double-written here so older dashboard clients keep working.
type SearchRecord struct {
	ID           string    `json:"id"`
	RawQuery     string    `json:"raw_query"`
	CleanedQuery string    `json:"cleaned_query,omitempty"`
	Source       string    `json:"source,omitempty"`
	URL          string    `json:"url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Repos        []Repo    `json:"repos"`
}

// Repo is a repository summary returned by the code-search provider.
type Repo struct {
	ID          string `json:"id,omitempty"`
	FullName    string `json:"full_name"`
	HTMLURL     string `json:"html_url"`
	Description string `json:"description,omitempty"`
	Stars       int    `json:"stargazers_count"`
	Language    string `json:"language,omitempty"`
}

// DomainCount is a (domain, visit count) pair for the stats endpoint.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// VisitStats summarizes accumulated history for the dashboard.
type VisitStats struct {
	TotalVisits     int           `json:"total_visits"`
	TotalSearches   int           `json:"total_searches"`
	TotalPageVisits int           `json:"total_page_visits"`
	TopDomains      []DomainCount `json:"top_domains"`
}

// OllamaRequest represents a request to the Ollama API
type OllamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

// OllamaResponse represents a response from the Ollama API
type OllamaResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
}
