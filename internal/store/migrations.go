package store

import (
	"database/sql"
	"fmt"
)

// migration is one numbered, forward-only schema step.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE schema_migrations (
	version INTEGER PRIMARY KEY
);

CREATE TABLE jobs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	job_type         TEXT NOT NULL,
	status           TEXT NOT NULL,
	progress_total   INTEGER NOT NULL DEFAULT 0,
	progress_current INTEGER NOT NULL DEFAULT 0,
	error_count      INTEGER NOT NULL DEFAULT 0,
	current_filename TEXT,
	error_message    TEXT,
	created_at       TEXT NOT NULL,
	started_at       TEXT,
	completed_at     TEXT
);
CREATE INDEX idx_jobs_status ON jobs(status);

CREATE TABLE files (
	id                       INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id                   INTEGER NOT NULL REFERENCES jobs(id) ON DELETE RESTRICT,
	original_filename        TEXT NOT NULL,
	original_path            TEXT NOT NULL,
	storage_path             TEXT NOT NULL,
	size_bytes               INTEGER,
	mime_type                TEXT,
	width                    INTEGER,
	height                   INTEGER,
	sha256                   TEXT,
	perceptual_hash          TEXT,
	detected_timestamp       TEXT,
	timestamp_source         TEXT,
	final_timestamp          TEXT,
	timestamp_candidates     TEXT NOT NULL DEFAULT '[]',
	confidence               TEXT NOT NULL DEFAULT 'NONE',
	reviewed_at              TEXT,
	discarded                INTEGER NOT NULL DEFAULT 0,
	processing_error         TEXT,
	exact_group_id           TEXT,
	exact_group_confidence   TEXT,
	similar_group_id         TEXT,
	similar_group_confidence TEXT,
	similar_group_type       TEXT,
	output_path              TEXT,
	created_at               TEXT NOT NULL,
	updated_at               TEXT NOT NULL
);
CREATE INDEX idx_files_sha256 ON files(sha256);
CREATE INDEX idx_files_exact_group_id ON files(exact_group_id);
CREATE INDEX idx_files_similar_group_id ON files(similar_group_id);
CREATE INDEX idx_files_discarded ON files(discarded);
CREATE INDEX idx_files_processing_error ON files(processing_error);
CREATE INDEX idx_files_final_timestamp ON files(final_timestamp);
CREATE INDEX idx_files_job_id ON files(job_id);

CREATE TABLE tags (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	usage_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_tags_name ON tags(name);

CREATE TABLE file_tags (
	file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE RESTRICT,
	tag_id  INTEGER NOT NULL REFERENCES tags(id) ON DELETE RESTRICT,
	PRIMARY KEY (file_id, tag_id)
);

CREATE TABLE user_decisions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id        INTEGER NOT NULL REFERENCES files(id) ON DELETE RESTRICT,
	decision_type  TEXT NOT NULL,
	decision_value TEXT NOT NULL DEFAULT '{}',
	decided_at     TEXT NOT NULL
);

CREATE TABLE settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`,
	},
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("bootstrap schema_migrations: %w", err)
	}

	applied := map[int]bool{}
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := s.applyMigration(m); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *Store) applyMigration(m migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// schema_migrations itself was created eagerly above; skip the
	// duplicate CREATE TABLE embedded in migration 1's script.
	stmts := splitStatements(m.sql)
	for _, stmt := range stmts {
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			if isDuplicateTableError(err) {
				continue
			}
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
		return err
	}
	return tx.Commit()
}

func isDuplicateTableError(err error) bool {
	return err != nil && contains(err.Error(), "already exists")
}

// splitStatements is a small, newline-and-semicolon splitter; migrations
// are authored without semicolons inside string literals, so this avoids
// pulling in a full SQL parser for a fixed, developer-controlled script.
func splitStatements(script string) []string {
	var out []string
	var cur []byte
	for i := 0; i < len(script); i++ {
		c := script[i]
		cur = append(cur, c)
		if c == ';' {
			out = append(out, trimSpace(string(cur)))
			cur = cur[:0]
		}
	}
	if trimmed := trimSpace(string(cur)); trimmed != "" {
		out = append(out, trimmed)
	}
	return out
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpaceByte(s[start]) {
		start++
	}
	for end > start && isSpaceByte(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

var _ = sql.ErrNoRows
