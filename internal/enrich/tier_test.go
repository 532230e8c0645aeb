package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illnessatlas/atlas-cli/pkg/duckduckgo"
	"github.com/illnessatlas/atlas-cli/pkg/wikipedia"
)

type fakeWiki struct {
	pages     map[string]*wikipedia.Page
	hits      []wikipedia.SearchHit
	pageErr   error
	searchErr error

	pageTitles []string
	queries    []string
}

func (f *fakeWiki) Page(_ context.Context, title string) (*wikipedia.Page, error) {
	f.pageTitles = append(f.pageTitles, title)
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	if p, ok := f.pages[title]; ok {
		return p, nil
	}
	return &wikipedia.Page{Title: title}, nil
}

func (f *fakeWiki) Search(_ context.Context, query string, limit int) ([]wikipedia.SearchHit, error) {
	f.queries = append(f.queries, query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if limit < len(f.hits) {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

type fakeDDG struct {
	answer *duckduckgo.Answer
	err    error
}

func (f *fakeDDG) InstantAnswer(context.Context, string) (*duckduckgo.Answer, error) {
	return f.answer, f.err
}

func TestPrimaryTier_UsesTitleCaseAndFirstSentence(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]*wikipedia.Page{
		"Common Cold": {
			Title:   "Common cold",
			Extract: "The common cold is a viral infection. Symptoms include cough.",
			FullURL: "https://en.wikipedia.org/wiki/Common_cold",
			Exists:  true,
		},
	}}

	res, err := (&PrimaryTier{Wiki: wiki}).Lookup(context.Background(), "common cold")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "The common cold is a viral infection.", res.Description)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Common_cold", res.URL)
	assert.Equal(t, []string{"Common Cold"}, wiki.pageTitles)
}

func TestPrimaryTier_MissingPage(t *testing.T) {
	res, err := (&PrimaryTier{Wiki: &fakeWiki{}}).Lookup(context.Background(), "zzyzx fever")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestPrimaryTier_EmptyExtractIsNotFound(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]*wikipedia.Page{
		"Gout": {Title: "Gout", Extract: "  ", FullURL: "u", Exists: true},
	}}
	res, err := (&PrimaryTier{Wiki: wiki}).Lookup(context.Background(), "gout")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestPrimaryTier_PropagatesError(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	_, err := (&PrimaryTier{Wiki: &fakeWiki{pageErr: boom}}).Lookup(context.Background(), "gout")
	assert.ErrorIs(t, err, boom)
}

func TestSearchTier_LoadsTopHit(t *testing.T) {
	wiki := &fakeWiki{
		hits: []wikipedia.SearchHit{{Title: "Myocardial infarction"}, {Title: "Cardiac arrest"}},
		pages: map[string]*wikipedia.Page{
			"Myocardial infarction": {
				Title:   "Myocardial infarction",
				Extract: "A myocardial infarction is a heart attack. It is serious.",
				FullURL: "https://en.wikipedia.org/wiki/Myocardial_infarction",
				Exists:  true,
			},
		},
	}

	res, err := (&SearchTier{Wiki: wiki}).Lookup(context.Background(), "heart attack")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "Myocardial infarction", res.Title)
	assert.Equal(t, "A myocardial infarction is a heart attack.", res.Description)
	assert.Equal(t, []string{"heart attack"}, wiki.queries)
	assert.Equal(t, []string{"Myocardial infarction"}, wiki.pageTitles)
}

func TestSearchTier_NoHits(t *testing.T) {
	wiki := &fakeWiki{}
	res, err := (&SearchTier{Wiki: wiki}).Lookup(context.Background(), "qwxzv")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Empty(t, wiki.pageTitles)
}

func TestSearchTier_HitPageMissing(t *testing.T) {
	wiki := &fakeWiki{hits: []wikipedia.SearchHit{{Title: "Deleted article"}}}
	res, err := (&SearchTier{Wiki: wiki}).Lookup(context.Background(), "thing")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestSearchTier_SearchError(t *testing.T) {
	boom := errors.New("i/o timeout")
	_, err := (&SearchTier{Wiki: &fakeWiki{searchErr: boom}}).Lookup(context.Background(), "thing")
	assert.ErrorIs(t, err, boom)
}

func TestInstantAnswerTier(t *testing.T) {
	tests := []struct {
		name      string
		answer    *duckduckgo.Answer
		wantFound bool
		wantDesc  string
	}{
		{
			name: "abstract",
			answer: &duckduckgo.Answer{
				Heading:      "Chagas disease",
				AbstractText: "Chagas disease is parasitic. It is spread by bugs.",
				AbstractURL:  "https://ddg/chagas",
			},
			wantFound: true,
			wantDesc:  "Chagas disease is parasitic.",
		},
		{name: "empty abstract", answer: &duckduckgo.Answer{Heading: "x"}},
		{name: "nil answer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := (&InstantAnswerTier{DDG: &fakeDDG{answer: tt.answer}}).Lookup(context.Background(), "q")
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, res.Found)
			assert.Equal(t, tt.wantDesc, res.Description)
		})
	}
}

func TestInstantAnswerTier_Error(t *testing.T) {
	boom := errors.New("unexpected EOF")
	_, err := (&InstantAnswerTier{DDG: &fakeDDG{err: boom}}).Lookup(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
}
