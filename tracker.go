// Package tracker implements the navigation-event pipeline: classifying
// browser navigations as searches or page visits, suppressing duplicate and
// rapid-fire events, extracting search-worthy keywords from page titles, and
// emitting normalized visit records to the persistence/enrichment boundary.
package tracker

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zombar/tracker/metrics"
	"github.com/zombar/tracker/models"
)

// ErrGeneratorUnavailable is returned by NoopGenerator so callers take the
// rule-based path without logging a provider failure.
var ErrGeneratorUnavailable = errors.New("text generation not configured")

// TextGenerator abstracts the AI text-generation provider. Implementations
// must be safe for concurrent use.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NoopGenerator is the TextGenerator used when no provider is configured.
type NoopGenerator struct{}

func (NoopGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", ErrGeneratorUnavailable
}

// TabInfoSource looks up the current title of a browser tab. Lookups may
// fail (tab closed mid-lookup); failures degrade to an empty title.
type TabInfoSource interface {
	TabTitle(ctx context.Context, tabID int) (string, error)
}

// VisitSink receives emitted visit records. It must accept every record
// unconditionally; the tracker does not await enrichment completion.
type VisitSink interface {
	EmitVisit(ctx context.Context, v *models.VisitRecord)
}

// Config contains tracker configuration
type Config struct {
	TitleTimeout    time.Duration // timeout for the page-title fetch fallback
	FetchTitles     bool          // fetch pages for titles when no other source has one
	SkipURLPatterns []string      // overrides the default untrackable-URL list when non-nil
	QueueSize       int           // event channel buffer
}

// DefaultConfig returns default tracker configuration
func DefaultConfig() Config {
	return Config{
		TitleTimeout: 5 * time.Second,
		FetchTitles:  true,
		QueueSize:    64,
	}
}

type event struct {
	nav      *models.NavigationEvent
	closeTab int
}

// Tracker routes navigation events through classification, deduplication and
// keyword extraction, emitting visit records to its sink. Dedup state is
// owned exclusively by the Run loop goroutine; per-event enrichment (title
// lookup, AI assist, emission) runs in its own goroutine so the loop never
// blocks on external calls.
type Tracker struct {
	config     Config
	gen        TextGenerator
	tabs       TabInfoSource
	sink       VisitSink
	httpClient *http.Client
	dedup      *deduper
	events     chan event
	wg         sync.WaitGroup
}

// New creates a new Tracker. gen and tabs may be nil; a nil gen routes all
// keyword extraction through the rule-based path.
func New(config Config, gen TextGenerator, tabs TabInfoSource, sink VisitSink) *Tracker {
	if gen == nil {
		gen = NoopGenerator{}
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if config.TitleTimeout <= 0 {
		config.TitleTimeout = DefaultConfig().TitleTimeout
	}
	return &Tracker{
		config: config,
		gen:    gen,
		tabs:   tabs,
		sink:   sink,
		httpClient: &http.Client{
			Timeout:   config.TitleTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		dedup:  newDeduper(config.SkipURLPatterns),
		events: make(chan event, config.QueueSize),
	}
}

// HandleNavigation queues a navigation event for processing. Used for page
// loads, history-state updates and fragment updates alike; the trigger label
// travels on the event.
func (t *Tracker) HandleNavigation(ev models.NavigationEvent) {
	nav := ev
	t.events <- event{nav: &nav}
}

// HandleTabClosed queues dedup-state cleanup for a closed tab.
func (t *Tracker) HandleTabClosed(tabID int) {
	t.events <- event{closeTab: tabID}
}

// Run consumes events one at a time in arrival order until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-t.events:
			if ev.nav == nil {
				t.dedup.closeTab(ev.closeTab)
				continue
			}
			t.process(ctx, *ev.nav)
		}
	}
}

// Close waits for in-flight emissions to finish. Call after Run has stopped.
func (t *Tracker) Close() {
	t.wg.Wait()
}

// process applies the deduplication gate and classification synchronously,
// then hands off to an emission goroutine. Dedup state is fully updated
// before any asynchronous work starts, so two rapidly-arriving events for
// the same tab are deduplicated even while the first is still enriching.
func (t *Tracker) process(ctx context.Context, ev models.NavigationEvent) {
	if ev.Trigger == "" {
		ev.Trigger = models.TriggerPageLoad
	}
	metrics.EventsReceived.WithLabelValues(ev.Trigger).Inc()

	if ev.FrameID != 0 {
		metrics.EventsSuppressed.WithLabelValues(metrics.ReasonSubframe).Inc()
		return
	}

	now := ev.ObservedAt
	if now.IsZero() {
		now = time.Now()
	}

	ok, reason := t.dedup.shouldEmit(ev.TabID, ev.URL, now)
	if !ok {
		metrics.EventsSuppressed.WithLabelValues(reason).Inc()
		return
	}

	cls := Classify(ev.URL)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		// Emission is allowed to complete even if the server is shutting
		// down or the tab has closed; the sink decides what to keep.
		t.emit(context.WithoutCancel(ctx), ev, cls)
	}()
}

// emit builds the visit record, running keyword extraction for page visits
// and query cleaning for searches, then hands it to the sink. Every failure
// path degrades to weaker fields; emission itself never aborts.
func (t *Tracker) emit(ctx context.Context, ev models.NavigationEvent, cls Classification) {
	v := &models.VisitRecord{
		ID:        uuid.New().String(),
		URL:       ev.URL,
		Domain:    domainOf(ev.URL),
		Trigger:   ev.Trigger,
		CreatedAt: time.Now(),
	}

	if cls.IsSearch {
		v.Kind = models.KindSearch
		v.Title = ev.Title
		v.RawQuery = cls.RawQuery
		v.ExtractedKeywords = cls.RawQuery

		// The raw query was decoded once by URL parsing; one more decode
		// unwraps queries double-encoded by the source engine. Percent
		// decoding only: a literal + in the query must survive.
		decoded, err := url.PathUnescape(cls.RawQuery)
		if err != nil {
			decoded = cls.RawQuery
		}
		v.SearchQuery = CleanQuery(decoded)
	} else {
		v.Kind = models.KindPageVisit
		v.Title = t.lookupTitle(ctx, ev)
		if v.Title != "" {
			v.ExtractedKeywords = t.extractWithAssist(ctx, v.Title, v.Domain, ev.URL)
			v.SearchQuery = t.optimizeQuery(ctx, v.ExtractedKeywords)
		}
	}

	t.sink.EmitVisit(ctx, v)
	metrics.VisitsEmitted.WithLabelValues(v.Kind).Inc()
}

// lookupTitle resolves a page title from, in order: the event itself, the
// tab registry, and a direct page fetch. Each source fails soft.
func (t *Tracker) lookupTitle(ctx context.Context, ev models.NavigationEvent) string {
	if ev.Title != "" {
		return ev.Title
	}

	if t.tabs != nil {
		title, err := t.tabs.TabTitle(ctx, ev.TabID)
		if err != nil {
			log.Printf("tab info lookup failed for tab %d: %v", ev.TabID, err)
		} else if title != "" {
			return title
		}
	}

	if t.config.FetchTitles {
		title, err := t.fetchTitle(ctx, ev.URL)
		if err != nil {
			log.Printf("title fetch failed for %s: %v", ev.URL, err)
		} else if title != "" {
			return title
		}
	}

	return ""
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
