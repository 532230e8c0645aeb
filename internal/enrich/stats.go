package enrich

import (
	"github.com/illnessatlas/atlas-cli/internal/model"
)

// Stats counts outcomes by source. It is seeded from the checkpoint at
// startup and only updated by the Pipeline.
type Stats struct {
	counts map[model.Source]int
}

// NewStats builds counters from existing records.
func NewStats(records []model.Outcome) *Stats {
	s := &Stats{counts: make(map[model.Source]int, len(model.Sources))}
	for _, r := range records {
		s.Record(r.Source)
	}
	return s
}

// Record counts one outcome.
func (s *Stats) Record(source model.Source) {
	s.counts[source]++
}

// Count returns the number of outcomes from source.
func (s *Stats) Count(source model.Source) int {
	return s.counts[source]
}

// Total returns the number of outcomes of any source.
func (s *Stats) Total() int {
	var n int
	for _, c := range s.counts {
		n += c
	}
	return n
}

// Resolved returns the number of outcomes that carry a description.
func (s *Stats) Resolved() int {
	return s.Total() - s.counts[model.SourceNone]
}

// Snapshot returns a copy of the counters with every known source present.
func (s *Stats) Snapshot() map[model.Source]int {
	out := make(map[model.Source]int, len(model.Sources))
	for _, src := range model.Sources {
		out[src] = s.counts[src]
	}
	return out
}
