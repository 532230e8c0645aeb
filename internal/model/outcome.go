package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Source identifies which tier produced an outcome.
type Source string

const (
	SourcePrimary       Source = "primary"        // Wikipedia page by title
	SourceSearch        Source = "search"         // Wikipedia search hit
	SourceInstantAnswer Source = "instant_answer" // DuckDuckGo abstract
	SourceNone          Source = "none"           // every tier came back empty
)

// Sources lists every source in tier order, followed by SourceNone.
var Sources = []Source{SourcePrimary, SourceSearch, SourceInstantAnswer, SourceNone}

// Valid reports whether s is one of the current source names.
func (s Source) Valid() bool {
	switch s {
	case SourcePrimary, SourceSearch, SourceInstantAnswer, SourceNone:
		return true
	}
	return false
}

// legacySources maps source names written by earlier versions of the
// metadata file onto the current names.
var legacySources = map[string]Source{
	"wikipedia":        SourcePrimary,
	"wikipedia_search": SourceSearch,
	"duckduckgo":       SourceInstantAnswer,
}

// ParseSource converts a stored source name, current or legacy, to a Source.
func ParseSource(s string) (Source, error) {
	if Source(s).Valid() {
		return Source(s), nil
	}
	if src, ok := legacySources[s]; ok {
		return src, nil
	}
	return "", eris.Errorf("model: unknown source %q", s)
}

// Outcome is the persisted result of resolving one entity.
type Outcome struct {
	Entity      string  `json:"entity"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
	Source      Source  `json:"source"`
}

// Resolved builds an outcome for an entity found by the given source.
func Resolved(entity, description, url string, source Source) Outcome {
	return Outcome{
		Entity:      entity,
		Description: &description,
		URL:         &url,
		Source:      source,
	}
}

// Unresolved builds the permanent negative outcome for an entity.
func Unresolved(entity string) Outcome {
	return Outcome{Entity: entity, Source: SourceNone}
}

// IsResolved reports whether any tier produced a description.
func (o Outcome) IsResolved() bool {
	return o.Source != SourceNone
}

// DescriptionOrEmpty returns the description, or "" when absent.
func (o Outcome) DescriptionOrEmpty() string {
	if o.Description == nil {
		return ""
	}
	return *o.Description
}

// URLOrEmpty returns the URL, or "" when absent.
func (o Outcome) URLOrEmpty() string {
	if o.URL == nil {
		return ""
	}
	return *o.URL
}

// UnmarshalJSON accepts both the current layout and the older one keyed by
// "disease" with wikipedia/duckduckgo source names. A record without a
// source field predates source tracking and only ever came from the page tier.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var raw struct {
		Entity      *string `json:"entity"`
		Disease     *string `json:"disease"`
		Description *string `json:"description"`
		URL         *string `json:"url"`
		Source      *string `json:"source"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode outcome")
	}

	switch {
	case raw.Entity != nil:
		o.Entity = *raw.Entity
	case raw.Disease != nil:
		o.Entity = *raw.Disease
	default:
		return eris.New("model: outcome has no entity")
	}

	o.Source = SourcePrimary
	if raw.Source != nil {
		src, err := ParseSource(*raw.Source)
		if err != nil {
			return err
		}
		o.Source = src
	}

	o.Description = raw.Description
	o.URL = raw.URL
	return nil
}
