// Package api exposes the tracker over HTTP: event ingestion from the
// browser extension and read endpoints for the dashboard.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zombar/tracker"
	"github.com/zombar/tracker/db"
	"github.com/zombar/tracker/enrich"
	"github.com/zombar/tracker/github"
	"github.com/zombar/tracker/metrics"
	"github.com/zombar/tracker/models"
	"github.com/zombar/tracker/ollama"
)

// Store is the subset of the database used by the read endpoints.
type Store interface {
	RecentVisits(limit int, kind string) ([]*models.Visit, error)
	RecentSearches(limit int) ([]*models.SearchRecord, error)
	VisitStats() (*models.VisitStats, error)
	CountVisits() (int, error)
}

// Server represents the API server
type Server struct {
	store       Store
	database    *db.DB
	enricher    *enrich.Enricher
	tracker     *tracker.Tracker
	gen         tracker.TextGenerator
	tabs        *tabRegistry
	addr        string
	server      *http.Server
	mux         *http.ServeMux
	corsEnabled bool
	loopCancel  context.CancelFunc
	loopDone    chan struct{}
}

// Config contains server configuration
type Config struct {
	Addr          string
	DBConfig      db.Config
	TrackerConfig tracker.Config
	GitHubConfig  github.Config
	OllamaBaseURL string
	OllamaModel   string
	EnableAI      bool
	CORSEnabled   bool
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:          ":4000",
		TrackerConfig: tracker.DefaultConfig(),
		GitHubConfig:  github.DefaultConfig(),
		OllamaBaseURL: ollama.DefaultBaseURL,
		OllamaModel:   ollama.DefaultModel,
		EnableAI:      true,
		CORSEnabled:   true,
	}
}

// NewServer creates a new API server
func NewServer(config Config) (*Server, error) {
	database, err := db.New(config.DBConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var gen tracker.TextGenerator = tracker.NoopGenerator{}
	if config.EnableAI {
		gen = ollama.NewClient(config.OllamaBaseURL, config.OllamaModel)
	}

	enricher := enrich.New(database, github.NewClient(config.GitHubConfig))

	s := newServerWith(database, enricher, gen, config.TrackerConfig, config.CORSEnabled)
	s.database = database
	s.addr = config.Addr

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      otelhttp.NewHandler(s.middleware(s.mux), "tracker-api"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// newServerWith wires the handler graph around injected collaborators.
func newServerWith(store Store, enricher *enrich.Enricher, gen tracker.TextGenerator, trackerConfig tracker.Config, corsEnabled bool) *Server {
	if gen == nil {
		gen = tracker.NoopGenerator{}
	}
	s := &Server{
		store:       store,
		enricher:    enricher,
		gen:         gen,
		tabs:        newTabRegistry(),
		mux:         http.NewServeMux(),
		corsEnabled: corsEnabled,
		loopDone:    make(chan struct{}),
	}
	s.tracker = tracker.New(trackerConfig, gen, s.tabs, enricher)
	s.registerRoutes()
	return s
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events/navigation", s.handleNavigationEvent)
	s.mux.HandleFunc("/api/events/tab-closed", s.handleTabClosed)
	s.mux.HandleFunc("/api/log-search", s.handleLogSearch)
	s.mux.HandleFunc("/api/log-visit", s.handleLogVisit)
	s.mux.HandleFunc("/api/recent-searches", s.handleRecentSearches)
	s.mux.HandleFunc("/api/recent-visits", s.handleRecentVisits)
	s.mux.HandleFunc("/api/visit-stats", s.handleVisitStats)
	s.mux.HandleFunc("/api/insights", s.handleInsights)
	s.mux.Handle("/metrics", promhttp.Handler())
}

// Start starts the event loop and the API server.
func (s *Server) Start() error {
	loopCtx, cancel := context.WithCancel(context.Background())
	s.loopCancel = cancel
	go func() {
		defer close(s.loopDone)
		s.tracker.Run(loopCtx)
	}()

	log.Printf("Starting API server on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server, drains the event loop, waits
// for in-flight enrichment, and closes the database.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}

	if s.loopCancel != nil {
		s.loopCancel()
		<-s.loopDone
	}
	s.tracker.Close()
	s.enricher.Flush()

	if s.database != nil {
		return s.database.Close()
	}
	return nil
}

// DB returns the underlying database for metrics collection.
func (s *Server) DB() *db.DB {
	return s.database
}

// UpdateDBMetrics refreshes connection-pool gauges.
func (s *Server) UpdateDBMetrics() {
	if s.database == nil {
		return
	}
	metrics.DBOpenConns.Set(float64(s.database.DB().Stats().OpenConnections))
}

// middleware applies common middleware to all routes
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsEnabled {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		// Logging (skip health checks to reduce noise)
		start := time.Now()
		if r.URL.Path != "/health" && r.URL.Path != "/metrics" {
			log.Printf("%s %s", r.Method, r.URL.Path)
		}

		next.ServeHTTP(w, r)

		if r.URL.Path != "/health" && r.URL.Path != "/metrics" {
			log.Printf("%s %s - completed in %v", r.Method, r.URL.Path, time.Since(start))
		}
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	count, err := s.store.CountVisits()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get count")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"count":  count,
		"time":   time.Now(),
	})
}

// handleNavigationEvent ingests a navigation event from the extension and
// queues it for the router. Accepts page loads, history-state updates and
// fragment updates, distinguished by the trigger field.
func (s *Server) handleNavigationEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var ev models.NavigationEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if ev.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	switch ev.Trigger {
	case "", models.TriggerPageLoad, models.TriggerHistoryUpdate, models.TriggerFragmentUpdate:
	default:
		respondError(w, http.StatusBadRequest, "unknown trigger")
		return
	}

	if ev.ObservedAt.IsZero() {
		ev.ObservedAt = time.Now()
	}

	s.tabs.Record(ev.TabID, ev.Title)
	s.tracker.HandleNavigation(ev)

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// TabClosedRequest reports a closed tab
type TabClosedRequest struct {
	TabID int `json:"tab_id"`
}

// handleTabClosed cleans up per-tab state
func (s *Server) handleTabClosed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req TabClosedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.tabs.Remove(req.TabID)
	s.tracker.HandleTabClosed(req.TabID)

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LogSearchRequest is the legacy extension payload
type LogSearchRequest struct {
	Query  string `json:"query"`
	Source string `json:"source"`
	URL    string `json:"url"`
}

// handleLogSearch logs a search directly (legacy extension endpoint)
func (s *Server) handleLogSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req LogSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	search := &models.SearchRecord{
		RawQuery:     req.Query,
		CleanedQuery: tracker.CleanQuery(req.Query),
		Source:       req.Source,
		URL:          req.URL,
	}

	if err := s.enricher.EmitSearch(context.WithoutCancel(r.Context()), search); err != nil {
		log.Printf("failed to save search: %v", err)
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"search_id": search.ID,
	})
}

// LogVisitRequest is the direct visit-logging payload
type LogVisitRequest struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Domain string `json:"domain"`
	Type   string `json:"type"`
	Query  string `json:"query"`
	Source string `json:"source"`
}

// handleLogVisit logs a pre-classified visit directly, bypassing the event
// router but reusing its query cleaning and keyword extraction rules.
func (s *Server) handleLogVisit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req LogVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	kind := req.Type
	if kind == "" {
		kind = models.KindPageVisit
	}

	v := &models.VisitRecord{
		URL:     req.URL,
		Title:   req.Title,
		Domain:  req.Domain,
		Kind:    kind,
		Trigger: req.Source,
	}

	if kind == models.KindSearch && req.Query != "" {
		v.RawQuery = req.Query
		v.ExtractedKeywords = req.Query
		v.SearchQuery = tracker.CleanQuery(req.Query)
	} else if req.Title != "" {
		keywords := tracker.ExtractKeywords(req.Title, req.Domain)
		v.ExtractedKeywords = keywords
		v.SearchQuery = keywords
	}

	s.enricher.EmitVisit(context.WithoutCancel(r.Context()), v)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"visit_id": v.ID,
		"keywords": v.ExtractedKeywords,
	})
}

// handleRecentSearches lists recent searches with their repos
func (s *Server) handleRecentSearches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := parseLimit(r, 20)

	searches, err := s.store.RecentSearches(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	if searches == nil {
		searches = []*models.SearchRecord{}
	}

	respondJSON(w, http.StatusOK, searches)
}

// handleRecentVisits lists recent visits with their repos
func (s *Server) handleRecentVisits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := parseLimit(r, 50)

	kind := r.URL.Query().Get("type")
	switch kind {
	case "", models.KindSearch, models.KindPageVisit:
	default:
		respondError(w, http.StatusBadRequest, "unknown type")
		return
	}

	visits, err := s.store.RecentVisits(limit, kind)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	if visits == nil {
		visits = []*models.Visit{}
	}

	respondJSON(w, http.StatusOK, visits)
}

// handleVisitStats returns visit totals and top domains
func (s *Server) handleVisitStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := s.store.VisitStats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// InsightsResponse carries an AI-generated summary of recent history
type InsightsResponse struct {
	Insights         string `json:"insights"`
	VisitsConsidered int    `json:"visits_considered"`
}

// handleInsights asks the text generator to summarize recent browsing
// history. Unavailable or failing providers surface as 503, never as a
// broken dashboard.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := parseLimit(r, 50)

	visits, err := s.store.RecentVisits(limit, "")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	if len(visits) == 0 {
		respondJSON(w, http.StatusOK, InsightsResponse{Insights: "No browsing history recorded yet."})
		return
	}

	insights, err := s.gen.Generate(r.Context(), insightsPrompt(visits))
	if err != nil {
		if err == tracker.ErrGeneratorUnavailable {
			respondError(w, http.StatusServiceUnavailable, "AI provider not configured")
		} else {
			log.Printf("insights generation failed: %v", err)
			respondError(w, http.StatusServiceUnavailable, "AI provider unavailable")
		}
		return
	}

	respondJSON(w, http.StatusOK, InsightsResponse{
		Insights:         strings.TrimSpace(insights),
		VisitsConsidered: len(visits),
	})
}

// insightsPrompt renders recent history into a summarization prompt.
func insightsPrompt(visits []*models.Visit) string {
	var b strings.Builder
	b.WriteString(`You are a browsing-history analyst. Summarize the recurring technical topics in the history below and suggest up to three areas worth exploring further.

Keep the summary under 150 words. Plain text only, no markdown.

History (newest first):
`)
	for _, v := range visits {
		switch {
		case v.Kind == models.KindSearch && v.RawQuery != "":
			fmt.Fprintf(&b, "- searched: %s\n", v.RawQuery)
		case v.Title != "":
			fmt.Fprintf(&b, "- visited: %s (%s)\n", v.Title, v.Domain)
		default:
			fmt.Fprintf(&b, "- visited: %s\n", v.URL)
		}
	}
	return b.String()
}

func parseLimit(r *http.Request, def int) int {
	limit := def
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		fmt.Sscanf(limitStr, "%d", &limit)
	}
	if limit < 1 {
		limit = def
	}
	if limit > 200 {
		limit = 200
	}
	return limit
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
