package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/illnessatlas/atlas-cli/internal/checkpoint"
	"github.com/illnessatlas/atlas-cli/internal/config"
)

func jsonStoreConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Store.Driver = config.DriverJSON
	c.Enrich.OutputPath = filepath.Join(t.TempDir(), "Data", "disease_metadata.json")
	return c
}

func TestNewStatusReport(t *testing.T) {
	r := newStatusReport("metadata.json", testRecords())

	assert.Equal(t, 3, r.Total)
	assert.Equal(t, 2, r.Resolved)
	assert.Equal(t, 1, r.Unresolved)
	assert.Equal(t, map[string]int{"primary": 1, "search": 0, "instant_answer": 1, "none": 1}, r.BySource)
}

func TestWriteStatus_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatus(&buf, "table", newStatusReport("m.json", testRecords())))

	out := buf.String()
	assert.Contains(t, out, "store")
	assert.Contains(t, out, "m.json")
	assert.Regexp(t, `wikipedia page\s+1`, out)
	assert.Regexp(t, `wikipedia search\s+0`, out)
	assert.Regexp(t, `duckduckgo\s+1`, out)
	assert.Regexp(t, `not found\s+1`, out)
	assert.Regexp(t, `total\s+3`, out)
}

func TestWriteStatus_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatus(&buf, "json", newStatusReport("m.json", testRecords())))

	var got statusReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 1, got.BySource["instant_answer"])
}

func TestWriteStatus_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatus(&buf, "yaml", newStatusReport("m.json", testRecords())))

	var got statusReport
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 2, got.Resolved)
	assert.Equal(t, "m.json", got.Store)
}

func TestWriteStatus_UnknownFormat(t *testing.T) {
	err := writeStatus(&bytes.Buffer{}, "xml", statusReport{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestRunStatus_EmptyStore(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runStatus(context.Background(), jsonStoreConfig(t), "json", "", &buf))

	var got statusReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Zero(t, got.Total)
}

func TestRunStatus_Export(t *testing.T) {
	c := jsonStoreConfig(t)
	require.NoError(t, checkpoint.WriteJSON(c.Enrich.OutputPath, testRecords()))

	exportPath := filepath.Join(t.TempDir(), "export.json")
	var buf bytes.Buffer
	require.NoError(t, runStatus(context.Background(), c, "table", exportPath, &buf))

	exported, err := checkpoint.NewJSONFile(exportPath).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testRecords(), exported)
}
