// Package enrich resolves disease names to a one-sentence description by
// walking a fixed chain of knowledge sources, and drives that resolution
// over an entity list with resumable checkpoints.
package enrich

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/illnessatlas/atlas-cli/internal/model"
	"github.com/illnessatlas/atlas-cli/pkg/duckduckgo"
	"github.com/illnessatlas/atlas-cli/pkg/wikipedia"
)

// TierResult is what a single source returned for an entity. A result with
// Found=false is a normal "nothing here", not a failure.
type TierResult struct {
	Found       bool
	Title       string
	Description string
	URL         string
}

// Tier is one knowledge source in the resolution chain.
type Tier interface {
	Lookup(ctx context.Context, entity string) (TierResult, error)
}

// TierFunc adapts a function to the Tier interface.
type TierFunc func(ctx context.Context, entity string) (TierResult, error)

// Lookup calls f(ctx, entity).
func (f TierFunc) Lookup(ctx context.Context, entity string) (TierResult, error) {
	return f(ctx, entity)
}

// TitleCase capitalises each word of name, lowering the rest, the way
// article titles for diseases are usually written.
func TitleCase(name string) string {
	return cases.Title(language.English).String(name)
}

// PrimaryTier looks up the Wikipedia article titled after the entity.
type PrimaryTier struct {
	Wiki wikipedia.Client
}

// Lookup implements Tier.
func (t *PrimaryTier) Lookup(ctx context.Context, entity string) (TierResult, error) {
	page, err := t.Wiki.Page(ctx, TitleCase(entity))
	if err != nil {
		return TierResult{}, err
	}
	return pageResult(page), nil
}

// SearchTier takes the top Wikipedia search hit for the entity and loads
// that article.
type SearchTier struct {
	Wiki wikipedia.Client
}

// Lookup implements Tier.
func (t *SearchTier) Lookup(ctx context.Context, entity string) (TierResult, error) {
	hits, err := t.Wiki.Search(ctx, entity, 1)
	if err != nil {
		return TierResult{}, err
	}
	if len(hits) == 0 {
		return TierResult{}, nil
	}
	page, err := t.Wiki.Page(ctx, hits[0].Title)
	if err != nil {
		return TierResult{}, err
	}
	return pageResult(page), nil
}

// InstantAnswerTier asks DuckDuckGo for an abstract.
type InstantAnswerTier struct {
	DDG duckduckgo.Client
}

// Lookup implements Tier.
func (t *InstantAnswerTier) Lookup(ctx context.Context, entity string) (TierResult, error) {
	answer, err := t.DDG.InstantAnswer(ctx, entity)
	if err != nil {
		return TierResult{}, err
	}
	if answer == nil || strings.TrimSpace(answer.AbstractText) == "" {
		return TierResult{}, nil
	}
	return TierResult{
		Found:       true,
		Title:       answer.Heading,
		Description: FirstSentence(answer.AbstractText),
		URL:         answer.AbstractURL,
	}, nil
}

// pageResult treats a page without intro text like a missing page so that
// every resolved record carries a description.
func pageResult(page *wikipedia.Page) TierResult {
	if page == nil || !page.Exists || strings.TrimSpace(page.Extract) == "" {
		return TierResult{}
	}
	return TierResult{
		Found:       true,
		Title:       page.Title,
		Description: FirstSentence(page.Extract),
		URL:         page.FullURL,
	}
}

// outcome converts a found result into the record for entity.
func (r TierResult) outcome(entity string, source model.Source) *model.Outcome {
	o := model.Resolved(entity, r.Description, r.URL, source)
	return &o
}
