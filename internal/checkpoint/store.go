// Package checkpoint persists enrichment outcomes so an interrupted run can
// resume. The Store keeps the ordered record set in memory and writes it
// through a Backend after every append.
package checkpoint

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/illnessatlas/atlas-cli/internal/model"
)

// Backend is durable storage for the ordered record set.
type Backend interface {
	// Load returns every persisted record in append order. Absent storage
	// yields an empty slice, not an error.
	Load(ctx context.Context) ([]model.Outcome, error)
	// Persist makes records durable. records always extends what the
	// backend last loaded or persisted.
	Persist(ctx context.Context, records []model.Outcome) error
	// Close releases resources.
	Close() error
}

// Store is the in-memory view of the checkpoint.
type Store struct {
	backend Backend
	records []model.Outcome
	index   map[string]int
}

// Open loads existing records from backend.
func Open(ctx context.Context, backend Backend) (*Store, error) {
	loaded, err := backend.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: load")
	}

	s := &Store{
		backend: backend,
		records: make([]model.Outcome, 0, len(loaded)),
		index:   make(map[string]int, len(loaded)),
	}
	for _, r := range loaded {
		if _, dup := s.index[r.Entity]; dup {
			zap.L().Warn("checkpoint: dropping duplicate record", zap.String("entity", r.Entity))
			continue
		}
		s.index[r.Entity] = len(s.records)
		s.records = append(s.records, r)
	}
	return s, nil
}

// AlreadyDone reports whether entity has a record of any source.
func (s *Store) AlreadyDone(entity string) bool {
	_, ok := s.index[entity]
	return ok
}

// Append adds a record in memory. It is not durable until PersistAll.
func (s *Store) Append(rec model.Outcome) error {
	if rec.Entity == "" {
		return eris.New("checkpoint: record has no entity")
	}
	if !rec.Source.Valid() {
		return eris.Errorf("checkpoint: record %q has invalid source %q", rec.Entity, rec.Source)
	}
	if s.AlreadyDone(rec.Entity) {
		return eris.Errorf("checkpoint: %q already recorded", rec.Entity)
	}
	s.index[rec.Entity] = len(s.records)
	s.records = append(s.records, rec)
	return nil
}

// PersistAll writes the full record set through the backend.
func (s *Store) PersistAll(ctx context.Context) error {
	if err := s.backend.Persist(ctx, s.records); err != nil {
		return eris.Wrap(err, "checkpoint: persist")
	}
	return nil
}

// Records returns a copy of the records in append order.
func (s *Store) Records() []model.Outcome {
	out := make([]model.Outcome, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record for entity.
func (s *Store) Get(entity string) (model.Outcome, bool) {
	i, ok := s.index[entity]
	if !ok {
		return model.Outcome{}, false
	}
	return s.records[i], true
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
