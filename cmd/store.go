package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/illnessatlas/atlas-cli/internal/checkpoint"
	"github.com/illnessatlas/atlas-cli/internal/config"
)

// initBackend opens the checkpoint backend selected by store.driver and
// creates its schema where one is needed.
func initBackend(ctx context.Context, c *config.Config) (checkpoint.Backend, error) {
	switch c.Store.Driver {
	case config.DriverJSON, "":
		return checkpoint.NewJSONFile(c.Enrich.OutputPath), nil
	case config.DriverSQLite:
		s, err := checkpoint.NewSQLite(c.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
		return s, nil
	case config.DriverPostgres:
		p, err := checkpoint.NewPostgres(ctx, c.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := p.Migrate(ctx); err != nil {
			_ = p.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
		return p, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// openStore opens the backend and loads the checkpoint from it.
func openStore(ctx context.Context, c *config.Config) (*checkpoint.Store, error) {
	backend, err := initBackend(ctx, c)
	if err != nil {
		return nil, err
	}
	st, err := checkpoint.Open(ctx, backend)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return st, nil
}
