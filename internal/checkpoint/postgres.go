package checkpoint

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/illnessatlas/atlas-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool used here, so tests can substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Postgres stores records in an append-only table, like SQLite.
type Postgres struct {
	pool      Pool
	persisted int
}

// NewPostgres creates a Postgres backend with a small connection pool.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 2
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &Postgres{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS outcomes (
	seq         BIGINT PRIMARY KEY,
	entity      TEXT NOT NULL UNIQUE,
	description TEXT,
	url         TEXT,
	source      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the outcomes table.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Load implements Backend.
func (p *Postgres) Load(ctx context.Context) ([]model.Outcome, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT entity, description, url, source FROM outcomes ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query outcomes")
	}
	defer rows.Close()

	var records []model.Outcome
	for rows.Next() {
		var (
			r      model.Outcome
			source string
		)
		if err := rows.Scan(&r.Entity, &r.Description, &r.URL, &source); err != nil {
			return nil, eris.Wrap(err, "postgres: scan outcome")
		}
		if r.Source, err = model.ParseSource(source); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate outcomes")
	}

	p.persisted = len(records)
	return records, nil
}

// Persist implements Backend.
func (p *Postgres) Persist(ctx context.Context, records []model.Outcome) error {
	if len(records) <= p.persisted {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for i := p.persisted; i < len(records); i++ {
		r := records[i]
		if _, err := tx.Exec(ctx,
			`INSERT INTO outcomes (seq, entity, description, url, source) VALUES ($1, $2, $3, $4, $5)`,
			int64(i+1), r.Entity, r.Description, r.URL, string(r.Source),
		); err != nil {
			return eris.Wrapf(err, "postgres: insert %q", r.Entity)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit")
	}
	p.persisted = len(records)
	return nil
}

// Close implements Backend.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
