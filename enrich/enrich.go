// Package enrich implements the persistence/enrichment boundary: every
// emitted visit is stored, and visits carrying a search query are augmented
// with repository results fetched in the background.
package enrich

import (
	"context"
	"log"
	"sync"

	"github.com/zombar/tracker/models"
)

// Store is the subset of the database used by the enricher.
type Store interface {
	SaveVisit(v *models.VisitRecord) error
	SaveSearch(s *models.SearchRecord) error
	SaveVisitRepos(visitID string, repos []models.Repo) error
	SaveSearchRepos(searchID string, repos []models.Repo) error
}

// RepoSearcher is the code-repository search provider.
type RepoSearcher interface {
	SearchRepositories(ctx context.Context, query string) ([]models.Repo, error)
}

// Enricher accepts every visit record unconditionally, persists it, and
// dispatches fire-and-forget repository enrichment. Failures are logged and
// contained; nothing propagates back to the event router.
type Enricher struct {
	store Store
	repos RepoSearcher
	wg    sync.WaitGroup
}

// New creates a new Enricher. repos may be nil, which disables repository
// enrichment entirely.
func New(store Store, repos RepoSearcher) *Enricher {
	return &Enricher{store: store, repos: repos}
}

// EmitVisit implements the router's VisitSink.
func (e *Enricher) EmitVisit(ctx context.Context, v *models.VisitRecord) {
	if err := e.store.SaveVisit(v); err != nil {
		log.Printf("failed to save visit %s: %v", v.URL, err)
		return
	}

	// Search visits are double-written to the searches table so older
	// dashboard clients keep working.
	var searchID string
	if v.Kind == models.KindSearch && v.RawQuery != "" {
		search := &models.SearchRecord{
			RawQuery:     v.RawQuery,
			CleanedQuery: v.SearchQuery,
			Source:       v.Trigger,
			URL:          v.URL,
			CreatedAt:    v.CreatedAt,
		}
		if err := e.store.SaveSearch(search); err != nil {
			log.Printf("failed to save search %q: %v", v.RawQuery, err)
		} else {
			searchID = search.ID
		}
	}

	// Searches with an all-filler cleaned query fall back to the raw
	// query; a page visit without keywords skips enrichment entirely.
	query := v.SearchQuery
	if query == "" && v.Kind == models.KindSearch {
		query = v.RawQuery
	}
	if query == "" || e.repos == nil {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.enrich(ctx, v, query, searchID)
	}()
}

// EmitSearch persists a bare search (the legacy log-search path) and
// enriches it in the background.
func (e *Enricher) EmitSearch(ctx context.Context, search *models.SearchRecord) error {
	if err := e.store.SaveSearch(search); err != nil {
		return err
	}

	query := search.CleanedQuery
	if query == "" {
		query = search.RawQuery
	}
	if query == "" || e.repos == nil {
		return nil
	}

	searchID := search.ID
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		repos, err := e.repos.SearchRepositories(ctx, query)
		if err != nil {
			log.Printf("repository search failed for %q: %v", query, err)
			return
		}
		if len(repos) == 0 {
			return
		}
		if err := e.store.SaveSearchRepos(searchID, repos); err != nil {
			log.Printf("failed to save repos for search %s: %v", searchID, err)
		}
	}()
	return nil
}

// Flush waits for in-flight enrichment work. Call at shutdown.
func (e *Enricher) Flush() {
	e.wg.Wait()
}

func (e *Enricher) enrich(ctx context.Context, v *models.VisitRecord, query, searchID string) {
	repos, err := e.repos.SearchRepositories(ctx, query)
	if err != nil {
		log.Printf("repository search failed for %q: %v", query, err)
		return
	}
	if len(repos) == 0 {
		log.Printf("no repos found for %q", query)
		return
	}

	if err := e.store.SaveVisitRepos(v.ID, repos); err != nil {
		log.Printf("failed to save repos for visit %s: %v", v.ID, err)
	}

	// One provider call serves both tables for search visits.
	if searchID != "" {
		if err := e.store.SaveSearchRepos(searchID, repos); err != nil {
			log.Printf("failed to save repos for search %s: %v", searchID, err)
		}
	}
}
