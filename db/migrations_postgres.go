package db

// PostgreSQL migrations for the tracker schema.

var postgresMigrations = []Migration{
	{
		Version: 1,
		Name:    "create_tracker_visits_table",
		Up: `
			CREATE TABLE IF NOT EXISTS tracker_visits (
				id TEXT PRIMARY KEY,
				url TEXT NOT NULL,
				title TEXT,
				domain TEXT,
				kind TEXT NOT NULL,
				raw_query TEXT,
				search_query TEXT,
				extracted_keywords TEXT,
				source TEXT,
				created_at TIMESTAMPTZ DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_tracker_visits_created_at ON tracker_visits(created_at);
			CREATE INDEX IF NOT EXISTS idx_tracker_visits_kind ON tracker_visits(kind);
			CREATE INDEX IF NOT EXISTS idx_tracker_visits_domain ON tracker_visits(domain);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_tracker_visits_domain;
			DROP INDEX IF EXISTS idx_tracker_visits_kind;
			DROP INDEX IF EXISTS idx_tracker_visits_created_at;
			DROP TABLE IF EXISTS tracker_visits;
		`,
	},
	{
		Version: 2,
		Name:    "create_tracker_searches_table",
		Up: `
			CREATE TABLE IF NOT EXISTS tracker_searches (
				id TEXT PRIMARY KEY,
				raw_query TEXT NOT NULL,
				cleaned_query TEXT,
				source TEXT,
				url TEXT,
				created_at TIMESTAMPTZ DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_tracker_searches_created_at ON tracker_searches(created_at);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_tracker_searches_created_at;
			DROP TABLE IF EXISTS tracker_searches;
		`,
	},
	{
		Version: 3,
		Name:    "create_tracker_repos_table",
		Up: `
			CREATE TABLE IF NOT EXISTS tracker_repos (
				id TEXT PRIMARY KEY,
				search_id TEXT NOT NULL,
				full_name TEXT NOT NULL,
				html_url TEXT NOT NULL,
				description TEXT,
				stargazers_count INTEGER,
				language TEXT,
				created_at TIMESTAMPTZ DEFAULT NOW(),
				FOREIGN KEY (search_id) REFERENCES tracker_searches(id) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_tracker_repos_search_id ON tracker_repos(search_id);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_tracker_repos_search_id;
			DROP TABLE IF EXISTS tracker_repos;
		`,
	},
	{
		Version: 4,
		Name:    "create_tracker_visit_repos_table",
		Up: `
			CREATE TABLE IF NOT EXISTS tracker_visit_repos (
				id TEXT PRIMARY KEY,
				visit_id TEXT NOT NULL,
				full_name TEXT NOT NULL,
				html_url TEXT NOT NULL,
				description TEXT,
				stargazers_count INTEGER,
				language TEXT,
				created_at TIMESTAMPTZ DEFAULT NOW(),
				FOREIGN KEY (visit_id) REFERENCES tracker_visits(id) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_tracker_visit_repos_visit_id ON tracker_visit_repos(visit_id);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_tracker_visit_repos_visit_id;
			DROP TABLE IF EXISTS tracker_visit_repos;
		`,
	},
}
