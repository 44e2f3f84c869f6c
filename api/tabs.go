package api

import (
	"context"
	"fmt"
	"sync"
)

// tabRegistry remembers the last title reported for each browser tab. It
// implements the router's TabInfoSource; a miss means the tab closed before
// the lookup, which callers treat as "no title."
type tabRegistry struct {
	mu     sync.RWMutex
	titles map[int]string
}

func newTabRegistry() *tabRegistry {
	return &tabRegistry{titles: make(map[int]string)}
}

// Record stores the latest known title for a tab. Empty titles are ignored
// so a titleless history update doesn't clobber an earlier page-load title.
func (r *tabRegistry) Record(tabID int, title string) {
	if title == "" {
		return
	}
	r.mu.Lock()
	r.titles[tabID] = title
	r.mu.Unlock()
}

// TabTitle implements tracker.TabInfoSource.
func (r *tabRegistry) TabTitle(ctx context.Context, tabID int) (string, error) {
	r.mu.RLock()
	title, ok := r.titles[tabID]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("tab %d not tracked", tabID)
	}
	return title, nil
}

// Remove drops a tab's entry when it closes.
func (r *tabRegistry) Remove(tabID int) {
	r.mu.Lock()
	delete(r.titles, tabID)
	r.mu.Unlock()
}
