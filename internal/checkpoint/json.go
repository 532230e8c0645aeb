package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/illnessatlas/atlas-cli/internal/model"
)

// JSONFile stores records as one indented JSON array. Every Persist
// rewrites the whole file via a temp file and rename, so a crash leaves
// either the old or the new document on disk.
type JSONFile struct {
	path string
}

// NewJSONFile returns a backend for the document at path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Path returns the document location.
func (j *JSONFile) Path() string {
	return j.path
}

// Load implements Backend.
func (j *JSONFile) Load(_ context.Context) ([]model.Outcome, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "json: read %s", j.path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []model.Outcome
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrapf(err, "json: decode %s", j.path)
	}
	return records, nil
}

// Persist implements Backend.
func (j *JSONFile) Persist(_ context.Context, records []model.Outcome) error {
	if records == nil {
		records = []model.Outcome{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return eris.Wrap(err, "json: encode records")
	}
	data = append(data, '\n')
	return writeFileAtomic(j.path, data)
}

// Close implements Backend.
func (j *JSONFile) Close() error {
	return nil
}

// WriteJSON writes records to path in the checkpoint document layout.
func WriteJSON(path string, records []model.Outcome) error {
	return NewJSONFile(path).Persist(context.Background(), records)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "json: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "json: create temp file")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "json: write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "json: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "json: close temp file")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return eris.Wrap(err, "json: chmod temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "json: rename into %s", path)
	}
	committed = true
	return nil
}
