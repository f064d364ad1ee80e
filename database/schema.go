package database

import "database/sql"

// CreateSchema creates all tables if they do not exist yet. Safe to run on
// every startup.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS members (
			id SERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS candidates (
			id BIGSERIAL PRIMARY KEY,
			period_id TEXT NOT NULL,
			series_key TEXT NOT NULL,
			title TEXT NOT NULL,
			episode INT,
			air_time TIMESTAMPTZ,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			UNIQUE (period_id, title, episode)
		);

		CREATE INDEX IF NOT EXISTS idx_candidates_period ON candidates(period_id);
		CREATE INDEX IF NOT EXISTS idx_candidates_series ON candidates(series_key);

		CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			period_id TEXT NOT NULL,
			principal TEXT NOT NULL,
			member_id INT,
			cookie_id TEXT,
			ip_hash TEXT,
			blocked BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (period_id, principal)
		);

		CREATE INDEX IF NOT EXISTS idx_submissions_period ON submissions(period_id);
		CREATE INDEX IF NOT EXISTS idx_submissions_ip_hash ON submissions(ip_hash);

		CREATE TABLE IF NOT EXISTS ballots (
			submission_id TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
			candidate_id BIGINT NOT NULL REFERENCES candidates(id) ON DELETE CASCADE,
			score INT NOT NULL CHECK (score > 0),
			kind TEXT NOT NULL DEFAULT 'rank',
			PRIMARY KEY (submission_id, candidate_id)
		);

		CREATE INDEX IF NOT EXISTS idx_ballots_candidate ON ballots(candidate_id);

		CREATE TABLE IF NOT EXISTS rank_snapshots (
			period_id TEXT NOT NULL,
			candidate_id BIGINT NOT NULL,
			series_key TEXT NOT NULL,
			title TEXT NOT NULL,
			rank INT NOT NULL,
			score INT NOT NULL,
			voters INT NOT NULL,
			member_voters INT NOT NULL,
			anon_voters INT NOT NULL,
			rank_delta INT,
			streak INT NOT NULL,
			peak_rank INT NOT NULL,
			peak_date TIMESTAMPTZ NOT NULL,
			top_ten_weeks INT NOT NULL,
			PRIMARY KEY (period_id, candidate_id)
		);

		CREATE INDEX IF NOT EXISTS idx_rank_snapshots_period_rank ON rank_snapshots(period_id, rank);

		CREATE TABLE IF NOT EXISTS tally_publications (
			period_id TEXT PRIMARY KEY,
			prev_period_id TEXT,
			published_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS shadow_bans (
			ip_hash TEXT PRIMARY KEY,
			note TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}
