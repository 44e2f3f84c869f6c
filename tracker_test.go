package tracker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/zombar/tracker/models"
)

// sinkRecorder collects emitted visit records. Safe for the concurrent
// emission goroutines the tracker spawns.
type sinkRecorder struct {
	mu     sync.Mutex
	visits []*models.VisitRecord
}

func (s *sinkRecorder) EmitVisit(ctx context.Context, v *models.VisitRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits = append(s.visits, v)
}

func (s *sinkRecorder) all() []*models.VisitRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.VisitRecord(nil), s.visits...)
}

// stubTabs serves tab titles from a fixed map.
type stubTabs struct {
	titles map[int]string
}

func (s stubTabs) TabTitle(ctx context.Context, tabID int) (string, error) {
	title, ok := s.titles[tabID]
	if !ok {
		return "", fmt.Errorf("tab %d not tracked", tabID)
	}
	return title, nil
}

func testConfig() Config {
	return Config{FetchTitles: false, QueueSize: 16}
}

func TestTrackerSearchNavigation(t *testing.T) {
	sink := &sinkRecorder{}
	tr := New(testConfig(), nil, nil, sink)
	ctx := context.Background()

	tr.process(ctx, models.NavigationEvent{
		TabID: 1,
		URL:   "https://www.google.com/search?q=golang%20channels",
	})
	tr.Close()

	visits := sink.all()
	if len(visits) != 1 {
		t.Fatalf("expected 1 visit, got %d", len(visits))
	}
	v := visits[0]
	if v.Kind != models.KindSearch {
		t.Errorf("Kind = %q, want %q", v.Kind, models.KindSearch)
	}
	if v.RawQuery != "golang channels" {
		t.Errorf("RawQuery = %q, want %q", v.RawQuery, "golang channels")
	}
	if v.ExtractedKeywords != "golang channels" {
		t.Errorf("ExtractedKeywords = %q, want %q", v.ExtractedKeywords, "golang channels")
	}
	if v.SearchQuery != "golang channels" {
		t.Errorf("SearchQuery = %q, want %q", v.SearchQuery, "golang channels")
	}
	if v.Domain != "www.google.com" {
		t.Errorf("Domain = %q, want %q", v.Domain, "www.google.com")
	}
	if v.Trigger != models.TriggerPageLoad {
		t.Errorf("Trigger = %q, want default %q", v.Trigger, models.TriggerPageLoad)
	}
	if v.ID == "" {
		t.Error("expected a generated visit ID")
	}
}

func TestTrackerSearchQueryCleaning(t *testing.T) {
	sink := &sinkRecorder{}
	tr := New(testConfig(), nil, nil, sink)

	tr.process(context.Background(), models.NavigationEvent{
		TabID: 1,
		URL:   "https://duckduckgo.com/?q=how+to+learn+rust+async",
	})
	tr.Close()

	visits := sink.all()
	if len(visits) != 1 {
		t.Fatalf("expected 1 visit, got %d", len(visits))
	}
	if visits[0].RawQuery != "how to learn rust async" {
		t.Errorf("RawQuery = %q", visits[0].RawQuery)
	}
	if visits[0].SearchQuery != "learn rust async" {
		t.Errorf("SearchQuery = %q, want filler phrases stripped", visits[0].SearchQuery)
	}
}

func TestTrackerSearchQueryLiteralPlus(t *testing.T) {
	sink := &sinkRecorder{}
	tr := New(testConfig(), nil, nil, sink)

	// q=c%2B%2B+threads: query parsing decodes %2B to + and + to space.
	// The extra decode must not eat the literal plus signs.
	tr.process(context.Background(), models.NavigationEvent{
		TabID: 1,
		URL:   "https://www.google.com/search?q=c%2B%2B+threads",
	})
	tr.Close()

	visits := sink.all()
	if len(visits) != 1 {
		t.Fatalf("expected 1 visit, got %d", len(visits))
	}
	if visits[0].RawQuery != "c++ threads" {
		t.Errorf("RawQuery = %q, want %q", visits[0].RawQuery, "c++ threads")
	}
	if visits[0].SearchQuery != "c++ threads" {
		t.Errorf("SearchQuery = %q, want %q", visits[0].SearchQuery, "c++ threads")
	}
}

func TestTrackerPageVisitWithTabTitle(t *testing.T) {
	sink := &sinkRecorder{}
	tabs := stubTabs{titles: map[int]string{2: "ESP32 WiFi Setup Guide - YouTube"}}
	tr := New(testConfig(), nil, tabs, sink)

	tr.process(context.Background(), models.NavigationEvent{
		TabID:   2,
		URL:     "https://youtu.be/dQw4w9WgXcQ",
		Trigger: models.TriggerPageLoad,
	})
	tr.Close()

	visits := sink.all()
	if len(visits) != 1 {
		t.Fatalf("expected 1 visit, got %d", len(visits))
	}
	v := visits[0]
	if v.Kind != models.KindPageVisit {
		t.Errorf("Kind = %q, want %q", v.Kind, models.KindPageVisit)
	}
	if v.Title != "ESP32 WiFi Setup Guide - YouTube" {
		t.Errorf("Title = %q", v.Title)
	}
	if v.ExtractedKeywords != "esp32 wifi setup guide" {
		t.Errorf("ExtractedKeywords = %q, want %q", v.ExtractedKeywords, "esp32 wifi setup guide")
	}
	if v.SearchQuery != "esp32 wifi setup guide" {
		t.Errorf("SearchQuery = %q, want keywords kept without a generator", v.SearchQuery)
	}
	if v.RawQuery != "" {
		t.Errorf("RawQuery = %q, want empty for page visit", v.RawQuery)
	}
}

func TestTrackerPageVisitTabLookupFails(t *testing.T) {
	sink := &sinkRecorder{}
	tr := New(testConfig(), nil, stubTabs{}, sink)

	tr.process(context.Background(), models.NavigationEvent{
		TabID: 9,
		URL:   "https://example.com/article",
	})
	tr.Close()

	visits := sink.all()
	if len(visits) != 1 {
		t.Fatalf("expected the visit to be emitted despite the failed lookup, got %d", len(visits))
	}
	v := visits[0]
	if v.Title != "" || v.ExtractedKeywords != "" || v.SearchQuery != "" {
		t.Errorf("expected empty title fields, got %+v", v)
	}
	if v.Kind != models.KindPageVisit {
		t.Errorf("Kind = %q, want %q", v.Kind, models.KindPageVisit)
	}
}

func TestTrackerSubframeDiscarded(t *testing.T) {
	sink := &sinkRecorder{}
	tr := New(testConfig(), nil, nil, sink)

	tr.process(context.Background(), models.NavigationEvent{
		TabID:   1,
		URL:     "https://ads.example.com/frame",
		FrameID: 3,
	})
	tr.Close()

	if n := len(sink.all()); n != 0 {
		t.Errorf("expected subframe navigation to be discarded, got %d visits", n)
	}
}

func TestTrackerDuplicateSuppressed(t *testing.T) {
	sink := &sinkRecorder{}
	tr := New(testConfig(), nil, nil, sink)
	ctx := context.Background()
	base := time.Now()

	tr.process(ctx, models.NavigationEvent{
		TabID: 1, URL: "https://example.com/page", ObservedAt: base,
	})
	tr.process(ctx, models.NavigationEvent{
		TabID: 1, URL: "https://example.com/page#fragment", ObservedAt: base.Add(100 * time.Millisecond),
	})
	// Cross-tab within the debounce window.
	tr.process(ctx, models.NavigationEvent{
		TabID: 2, URL: "https://example.com/page", ObservedAt: base.Add(200 * time.Millisecond),
	})
	tr.Close()

	if n := len(sink.all()); n != 1 {
		t.Errorf("expected 1 visit after dedup, got %d", n)
	}
}

func TestTrackerRunLoop(t *testing.T) {
	sink := &sinkRecorder{}
	tr := New(testConfig(), nil, nil, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()

	base := time.Now()
	tr.HandleNavigation(models.NavigationEvent{
		TabID: 1, URL: "https://example.com/a", ObservedAt: base,
	})
	tr.HandleTabClosed(1)
	// The tab's per-tab entry is gone; with the debounce window also
	// elapsed (injected timestamps) the same URL emits again.
	tr.HandleNavigation(models.NavigationEvent{
		TabID: 1, URL: "https://example.com/a", ObservedAt: base.Add(2 * time.Second),
	})

	deadline := time.After(2 * time.Second)
	for len(sink.all()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for visits, got %d", len(sink.all()))
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
	tr.Close()

	if n := len(sink.all()); n != 2 {
		t.Errorf("expected 2 visits, got %d", n)
	}
}

func TestTrackerEventTitlePreferred(t *testing.T) {
	sink := &sinkRecorder{}
	tabs := stubTabs{titles: map[int]string{5: "Stale Registry Title"}}
	tr := New(testConfig(), nil, tabs, sink)

	tr.process(context.Background(), models.NavigationEvent{
		TabID: 5,
		URL:   "https://example.com/post",
		Title: "Graceful Shutdown Patterns in Production",
	})
	tr.Close()

	visits := sink.all()
	if len(visits) != 1 {
		t.Fatalf("expected 1 visit, got %d", len(visits))
	}
	if visits[0].Title != "Graceful Shutdown Patterns in Production" {
		t.Errorf("Title = %q, want the event title", visits[0].Title)
	}
}
