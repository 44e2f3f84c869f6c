// Package db is the relational store for visits, searches and their
// enrichment results, backed by PostgreSQL.
package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/zombar/tracker/models"
)

// DB wraps the database connection and provides data access methods
type DB struct {
	conn *sql.DB
}

// Config contains database configuration
type Config struct {
	DSN string // PostgreSQL connection string
}

// New creates a new database connection
func New(config Config) (*DB, error) {
	conn, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// DB returns the underlying database connection for metrics collection
func (db *DB) DB() *sql.DB {
	return db.conn
}

// SaveVisit persists a visit record.
func (db *DB) SaveVisit(v *models.VisitRecord) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}

	_, err := db.conn.Exec(`
		INSERT INTO tracker_visits
		(id, url, title, domain, kind, raw_query, search_query, extracted_keywords, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		v.ID,
		v.URL,
		nullable(v.Title),
		nullable(v.Domain),
		v.Kind,
		nullable(v.RawQuery),
		nullable(v.SearchQuery),
		nullable(v.ExtractedKeywords),
		nullable(v.Trigger),
		v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save visit: %w", err)
	}
	return nil
}

// SaveSearch persists a row in the searches table.
func (db *DB) SaveSearch(s *models.SearchRecord) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	_, err := db.conn.Exec(`
		INSERT INTO tracker_searches (id, raw_query, cleaned_query, source, url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID,
		s.RawQuery,
		nullable(s.CleanedQuery),
		nullable(s.Source),
		nullable(s.URL),
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save search: %w", err)
	}
	return nil
}

// SaveVisitRepos attaches repository results to a visit atomically.
func (db *DB) SaveVisitRepos(visitID string, repos []models.Repo) error {
	return db.saveRepos("tracker_visit_repos", "visit_id", visitID, repos)
}

// SaveSearchRepos attaches repository results to a search atomically.
func (db *DB) SaveSearchRepos(searchID string, repos []models.Repo) error {
	return db.saveRepos("tracker_repos", "search_id", searchID, repos)
}

func (db *DB) saveRepos(table, fkColumn, parentID string, repos []models.Repo) error {
	if len(repos) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, %s, full_name, html_url, description, stargazers_count, language, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, table, fkColumn)

	now := time.Now()
	for _, repo := range repos {
		_, err := tx.Exec(query,
			uuid.New().String(),
			parentID,
			repo.FullName,
			repo.HTMLURL,
			nullable(repo.Description),
			repo.Stars,
			nullable(repo.Language),
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to save repo %s: %w", repo.FullName, err)
		}
	}

	return tx.Commit()
}

// RecentVisits returns the most recent visits, newest first, with their
// repository results attached. kind filters to "search" or "page_visit";
// empty returns all kinds.
func (db *DB) RecentVisits(limit int, kind string) ([]*models.Visit, error) {
	query := `
		SELECT id, url, title, domain, kind, raw_query, search_query, extracted_keywords, source, created_at
		FROM tracker_visits`
	args := []interface{}{}

	if kind != "" {
		query += " WHERE kind = $1"
		args = append(args, kind)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var visits []*models.Visit
	byID := make(map[string]*models.Visit)

	for rows.Next() {
		var v models.Visit
		var title, domain, rawQuery, searchQuery, keywords, source sql.NullString
		if err := rows.Scan(&v.ID, &v.URL, &title, &domain, &v.Kind,
			&rawQuery, &searchQuery, &keywords, &source, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		v.Title = title.String
		v.Domain = domain.String
		v.RawQuery = rawQuery.String
		v.SearchQuery = searchQuery.String
		v.ExtractedKeywords = keywords.String
		v.Trigger = source.String
		v.Repos = []models.Repo{}
		visits = append(visits, &v)
		byID[v.ID] = &v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read visits: %w", err)
	}

	if len(visits) == 0 {
		return visits, nil
	}

	ids := make([]string, 0, len(visits))
	for _, v := range visits {
		ids = append(ids, v.ID)
	}

	if err := db.attachRepos("tracker_visit_repos", "visit_id", ids, func(parentID string, repo models.Repo) {
		if v, ok := byID[parentID]; ok {
			v.Repos = append(v.Repos, repo)
		}
	}); err != nil {
		return nil, err
	}

	return visits, nil
}

// RecentSearches returns the most recent searches, newest first, with their
// repository results attached.
func (db *DB) RecentSearches(limit int) ([]*models.SearchRecord, error) {
	rows, err := db.conn.Query(`
		SELECT id, raw_query, cleaned_query, source, url, created_at
		FROM tracker_searches
		ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query searches: %w", err)
	}
	defer rows.Close()

	var searches []*models.SearchRecord
	byID := make(map[string]*models.SearchRecord)

	for rows.Next() {
		var s models.SearchRecord
		var cleaned, source, pageURL sql.NullString
		if err := rows.Scan(&s.ID, &s.RawQuery, &cleaned, &source, &pageURL, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan search: %w", err)
		}
		s.CleanedQuery = cleaned.String
		s.Source = source.String
		s.URL = pageURL.String
		s.Repos = []models.Repo{}
		searches = append(searches, &s)
		byID[s.ID] = &s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read searches: %w", err)
	}

	if len(searches) == 0 {
		return searches, nil
	}

	ids := make([]string, 0, len(searches))
	for _, s := range searches {
		ids = append(ids, s.ID)
	}

	if err := db.attachRepos("tracker_repos", "search_id", ids, func(parentID string, repo models.Repo) {
		if s, ok := byID[parentID]; ok {
			s.Repos = append(s.Repos, repo)
		}
	}); err != nil {
		return nil, err
	}

	return searches, nil
}

// attachRepos loads repo rows for a set of parent IDs, ordered by stars
// descending, and hands each to attach.
func (db *DB) attachRepos(table, fkColumn string, parentIDs []string, attach func(parentID string, repo models.Repo)) error {
	placeholders := make([]string, len(parentIDs))
	args := make([]interface{}, len(parentIDs))
	for i, id := range parentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, %s, full_name, html_url, description, stargazers_count, language
		FROM %s WHERE %s IN (%s)
		ORDER BY stargazers_count DESC`,
		fkColumn, table, fkColumn, strings.Join(placeholders, ","))

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return fmt.Errorf("failed to query repos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var repo models.Repo
		var parentID string
		var description, language sql.NullString
		var stars sql.NullInt64
		if err := rows.Scan(&repo.ID, &parentID, &repo.FullName, &repo.HTMLURL,
			&description, &stars, &language); err != nil {
			return fmt.Errorf("failed to scan repo: %w", err)
		}
		repo.Description = description.String
		repo.Language = language.String
		repo.Stars = int(stars.Int64)
		attach(parentID, repo)
	}
	return rows.Err()
}

// VisitStats returns totals by kind plus the ten most visited domains.
func (db *DB) VisitStats() (*models.VisitStats, error) {
	stats := &models.VisitStats{TopDomains: []models.DomainCount{}}

	err := db.conn.QueryRow(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE kind = $1),
		       COUNT(*) FILTER (WHERE kind = $2)
		FROM tracker_visits`, models.KindSearch, models.KindPageVisit).
		Scan(&stats.TotalVisits, &stats.TotalSearches, &stats.TotalPageVisits)
	if err != nil {
		return nil, fmt.Errorf("failed to count visits: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT domain, COUNT(*) AS count
		FROM tracker_visits
		WHERE domain IS NOT NULL AND domain <> ''
		GROUP BY domain ORDER BY count DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("failed to query top domains: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dc models.DomainCount
		if err := rows.Scan(&dc.Domain, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan domain count: %w", err)
		}
		stats.TopDomains = append(stats.TopDomains, dc)
	}
	return stats, rows.Err()
}

// CountVisits returns the total number of stored visits.
func (db *DB) CountVisits() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM tracker_visits").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return count, nil
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
