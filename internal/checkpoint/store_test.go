package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illnessatlas/atlas-cli/internal/model"
)

// memBackend records every Persist call.
type memBackend struct {
	loaded     []model.Outcome
	loadErr    error
	persistErr error
	persisted  [][]model.Outcome
}

func (m *memBackend) Load(context.Context) ([]model.Outcome, error) {
	return m.loaded, m.loadErr
}

func (m *memBackend) Persist(_ context.Context, records []model.Outcome) error {
	if m.persistErr != nil {
		return m.persistErr
	}
	cp := make([]model.Outcome, len(records))
	copy(cp, records)
	m.persisted = append(m.persisted, cp)
	return nil
}

func (m *memBackend) Close() error { return nil }

func TestOpen_EmptyBackend(t *testing.T) {
	s, err := Open(context.Background(), &memBackend{})
	require.NoError(t, err)
	assert.Zero(t, s.Len())
	assert.False(t, s.AlreadyDone("asthma"))
	assert.Empty(t, s.Records())
}

func TestOpen_LoadError(t *testing.T) {
	_, err := Open(context.Background(), &memBackend{loadErr: errors.New("corrupt")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkpoint: load")
}

func TestOpen_DropsDuplicateRecords(t *testing.T) {
	b := &memBackend{loaded: []model.Outcome{
		model.Resolved("gout", "first.", "u1", model.SourcePrimary),
		model.Unresolved("ague"),
		model.Resolved("gout", "second.", "u2", model.SourceSearch),
	}}

	s, err := Open(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	got, ok := s.Get("gout")
	require.True(t, ok)
	assert.Equal(t, "first.", got.DescriptionOrEmpty())
}

func TestAppend_ThenPersistAll(t *testing.T) {
	b := &memBackend{loaded: []model.Outcome{model.Unresolved("ague")}}
	s, err := Open(context.Background(), b)
	require.NoError(t, err)

	require.NoError(t, s.Append(model.Resolved("gout", "Gout is arthritis.", "u", model.SourcePrimary)))
	assert.True(t, s.AlreadyDone("gout"))
	assert.Empty(t, b.persisted, "append alone must not persist")

	require.NoError(t, s.PersistAll(context.Background()))
	require.Len(t, b.persisted, 1)
	assert.Equal(t, []string{"ague", "gout"}, entities(b.persisted[0]))
}

func TestAppend_Rejects(t *testing.T) {
	s, err := Open(context.Background(), &memBackend{loaded: []model.Outcome{model.Unresolved("ague")}})
	require.NoError(t, err)

	assert.Error(t, s.Append(model.Unresolved("ague")), "duplicate entity")
	assert.Error(t, s.Append(model.Outcome{Source: model.SourceNone}), "empty entity")
	assert.Error(t, s.Append(model.Outcome{Entity: "x", Source: "wikipedia"}), "legacy source name")
	assert.Equal(t, 1, s.Len())
}

func TestPersistAll_Error(t *testing.T) {
	s, err := Open(context.Background(), &memBackend{persistErr: errors.New("disk full")})
	require.NoError(t, err)
	require.NoError(t, s.Append(model.Unresolved("ague")))

	err = s.PersistAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRecords_ReturnsCopy(t *testing.T) {
	s, err := Open(context.Background(), &memBackend{})
	require.NoError(t, err)
	require.NoError(t, s.Append(model.Unresolved("ague")))

	recs := s.Records()
	recs[0].Entity = "mutated"
	assert.True(t, s.AlreadyDone("ague"))
	got, _ := s.Get("ague")
	assert.Equal(t, "ague", got.Entity)
}

func TestStore_JSONRoundTripPreservesOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Data", "disease_metadata.json")
	ctx := context.Background()

	s, err := Open(ctx, NewJSONFile(path))
	require.NoError(t, err)
	for _, o := range []model.Outcome{
		model.Resolved("zoster", "Zoster is shingles.", "u1", model.SourcePrimary),
		model.Unresolved("ague"),
		model.Resolved("myalgia", "Myalgia is muscle pain.", "u2", model.SourceInstantAnswer),
	} {
		require.NoError(t, s.Append(o))
		require.NoError(t, s.PersistAll(ctx))
	}

	reopened, err := Open(ctx, NewJSONFile(path))
	require.NoError(t, err)
	assert.Equal(t, []string{"zoster", "ague", "myalgia"}, entities(reopened.Records()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func entities(records []model.Outcome) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Entity
	}
	return out
}
