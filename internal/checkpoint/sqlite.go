package checkpoint

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/illnessatlas/atlas-cli/internal/model"
)

// SQLite stores records as an append-only table replayed in seq order.
// Only records beyond the last persisted position are written.
type SQLite struct {
	db        *sql.DB
	persisted int
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=FULL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLite{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS outcomes (
	seq         INTEGER PRIMARY KEY,
	entity      TEXT NOT NULL UNIQUE,
	description TEXT,
	url         TEXT,
	source      TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// Migrate creates the outcomes table.
func (s *SQLite) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Load implements Backend.
func (s *SQLite) Load(ctx context.Context) ([]model.Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity, description, url, source FROM outcomes ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query outcomes")
	}
	defer rows.Close()

	var records []model.Outcome
	for rows.Next() {
		var (
			r         model.Outcome
			desc, url sql.NullString
			source    string
		)
		if err := rows.Scan(&r.Entity, &desc, &url, &source); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outcome")
		}
		if r.Source, err = model.ParseSource(source); err != nil {
			return nil, err
		}
		if desc.Valid {
			r.Description = &desc.String
		}
		if url.Valid {
			r.URL = &url.String
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate outcomes")
	}

	s.persisted = len(records)
	return records, nil
}

// Persist implements Backend.
func (s *SQLite) Persist(ctx context.Context, records []model.Outcome) error {
	if len(records) <= s.persisted {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO outcomes (seq, entity, description, url, source) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	for i := s.persisted; i < len(records); i++ {
		r := records[i]
		if _, err := stmt.ExecContext(ctx, i+1, r.Entity, r.Description, r.URL, string(r.Source)); err != nil {
			return eris.Wrapf(err, "sqlite: insert %q", r.Entity)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit")
	}
	s.persisted = len(records)
	return nil
}

// Close implements Backend.
func (s *SQLite) Close() error {
	return s.db.Close()
}
