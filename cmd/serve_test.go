package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illnessatlas/atlas-cli/internal/model"
)

type staticLoader struct {
	records []model.Outcome
	err     error
}

func (s *staticLoader) Load(context.Context) ([]model.Outcome, error) {
	return s.records, s.err
}

func testRecords() []model.Outcome {
	return []model.Outcome{
		model.Resolved("common cold", "The common cold is a viral infection.", "https://en.wikipedia.org/wiki/Common_cold", model.SourcePrimary),
		model.Resolved("ague", "Ague is a fever.", "https://duckduckgo.com/Ague", model.SourceInstantAnswer),
		model.Unresolved("xyzzy"),
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	rr := get(t, newRouter(&staticLoader{}), "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestOutcomesEndpoint(t *testing.T) {
	rr := get(t, newRouter(&staticLoader{records: testRecords()}), "/api/outcomes")
	require.Equal(t, http.StatusOK, rr.Code)

	var got []model.Outcome
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Len(t, got, 3)
	assert.Equal(t, "common cold", got[0].Entity)
	assert.Nil(t, got[2].Description)
}

func TestOutcomesEndpoint_EmptyStoreIsEmptyArray(t *testing.T) {
	rr := get(t, newRouter(&staticLoader{}), "/api/outcomes")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rr.Body.String()))
}

func TestOutcomeByEntity(t *testing.T) {
	h := newRouter(&staticLoader{records: testRecords()})

	rr := get(t, h, "/api/outcomes/common%20cold")
	require.Equal(t, http.StatusOK, rr.Code)
	var got model.Outcome
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, model.SourcePrimary, got.Source)
	assert.Equal(t, "The common cold is a viral infection.", got.DescriptionOrEmpty())

	rr = get(t, h, "/api/outcomes/scurvy")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOutcomeByEntity_SlashInName(t *testing.T) {
	h := newRouter(&staticLoader{records: append(testRecords(),
		model.Resolved("HIV/AIDS", "HIV/AIDS is a spectrum of conditions.", "https://en.wikipedia.org/wiki/HIV/AIDS", model.SourceSearch))})

	rr := get(t, h, "/api/outcomes/"+url.PathEscape("HIV/AIDS"))
	require.Equal(t, http.StatusOK, rr.Code)
	var got model.Outcome
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, "HIV/AIDS", got.Entity)
	assert.Equal(t, model.SourceSearch, got.Source)

	rr = get(t, h, "/api/outcomes/"+url.PathEscape("common cold"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = get(t, h, "/api/outcomes/"+url.PathEscape("HIV/AIDS/x"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOutcomeByEntity_MalformedEscape(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/outcomes/gout", nil)
	req.URL.RawPath = "/api/outcomes/gout%zz"
	rr := httptest.NewRecorder()
	newRouter(&staticLoader{records: testRecords()}).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatsEndpoint(t *testing.T) {
	rr := get(t, newRouter(&staticLoader{records: testRecords()}), "/api/stats")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Total    int            `json:"total"`
		Resolved int            `json:"resolved"`
		BySource map[string]int `json:"by_source"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Resolved)
	assert.Equal(t, 1, resp.BySource["primary"])
	assert.Equal(t, 0, resp.BySource["search"])
	assert.Equal(t, 1, resp.BySource["instant_answer"])
	assert.Equal(t, 1, resp.BySource["none"])
}

func TestLoadFailureReturns500(t *testing.T) {
	h := newRouter(&staticLoader{err: errors.New("disk gone")})
	for _, path := range []string{"/api/outcomes", "/api/outcomes/ague", "/api/stats"} {
		rr := get(t, h, path)
		assert.Equal(t, http.StatusInternalServerError, rr.Code, path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rr := get(t, newRouter(&staticLoader{records: testRecords()}), "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `atlas_outcomes_total{source="primary"} 1`)
	assert.Contains(t, string(body), `atlas_outcomes_total{source="none"} 1`)
}

func TestCORSHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	newRouter(&staticLoader{}).ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestServeServer_Lifecycle(t *testing.T) {
	srv := httptest.NewServer(newRouter(&staticLoader{records: testRecords()}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/outcomes/ague")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
