package tracker

import (
	"strings"
	"time"

	"github.com/zombar/tracker/metrics"
)

const (
	// debounceWindow suppresses re-emission of the same normalized URL,
	// even across tabs.
	debounceWindow = 1500 * time.Millisecond

	// recentMaxAge is how long debounce entries are kept once the map
	// grows past recentPruneSize. 10x the debounce window; a heuristic
	// bound on memory, not an exact LRU.
	recentMaxAge = 10 * debounceWindow

	recentPruneSize = 100
)

// defaultSkipPatterns match URLs that are never trackable: browser-internal
// pages, extension pages, local files, and the tracker's own dashboard.
// Matched by substring against the raw URL, before normalization.
var defaultSkipPatterns = []string{
	"about:",
	"chrome://",
	"chrome-extension://",
	"moz-extension://",
	"edge://",
	"view-source:",
	"file://",
	"localhost:4000",
	"127.0.0.1:4000",
}

// deduper suppresses redundant navigation events. It tracks the last
// normalized URL per tab (SPA history churn) and a short-term debounce window
// over normalized URLs (cross-tab and rapid-refire duplicates). Not safe for
// concurrent use; it is owned exclusively by the router's event loop.
type deduper struct {
	skipPatterns    []string
	lastURLByTab    map[int]string
	recentlyEmitted map[string]time.Time
}

func newDeduper(skipPatterns []string) *deduper {
	if skipPatterns == nil {
		skipPatterns = defaultSkipPatterns
	}
	return &deduper{
		skipPatterns:    skipPatterns,
		lastURLByTab:    make(map[int]string),
		recentlyEmitted: make(map[string]time.Time),
	}
}

// shouldEmit reports whether a navigation to rawURL on tabID at time now
// represents a new visit, updating dedup state as a side effect. When the
// event is suppressed, the second return value names why.
//
// The per-tab check and the debounce check are deliberately independent: a
// genuinely new tab visiting an already-open URL passes the first but is
// still suppressed by the second.
func (d *deduper) shouldEmit(tabID int, rawURL string, now time.Time) (bool, string) {
	for _, pattern := range d.skipPatterns {
		if strings.Contains(rawURL, pattern) {
			return false, metrics.ReasonUntracked
		}
	}

	normalized := NormalizeURL(rawURL)

	if d.lastURLByTab[tabID] == normalized {
		return false, metrics.ReasonSameTabURL
	}
	d.lastURLByTab[tabID] = normalized

	if last, ok := d.recentlyEmitted[normalized]; ok && now.Sub(last) < debounceWindow {
		return false, metrics.ReasonDebounced
	}
	d.recentlyEmitted[normalized] = now

	if len(d.recentlyEmitted) > recentPruneSize {
		d.prune(now)
	}

	return true, ""
}

// closeTab drops per-tab state when the browser reports a tab closed.
func (d *deduper) closeTab(tabID int) {
	delete(d.lastURLByTab, tabID)
}

func (d *deduper) prune(now time.Time) {
	for url, last := range d.recentlyEmitted {
		if now.Sub(last) > recentMaxAge {
			delete(d.recentlyEmitted, url)
		}
	}
}
