package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/illnessatlas/atlas-cli/internal/model"
	"github.com/illnessatlas/atlas-cli/internal/resilience"
)

// Resolver turns an entity name into an outcome.
type Resolver interface {
	Resolve(ctx context.Context, entity string) (*model.Outcome, error)
}

// ResultStore is the checkpoint the Pipeline resumes from and appends to.
type ResultStore interface {
	AlreadyDone(entity string) bool
	Append(rec model.Outcome) error
	PersistAll(ctx context.Context) error
	Records() []model.Outcome
}

// Summary reports what a single Run did.
type Summary struct {
	Processed int                  `json:"processed" yaml:"processed"`
	Skipped   int                  `json:"skipped" yaml:"skipped"`
	Aborted   int                  `json:"aborted" yaml:"aborted"`
	Total     int                  `json:"total" yaml:"total"`
	BySource  map[model.Source]int `json:"by_source" yaml:"by_source"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPolitenessDelay sets the pause after each recorded entity.
func WithPolitenessDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		p.politeness = d
	}
}

// WithSleep replaces the context-aware sleep used for the politeness delay.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pipeline) {
		p.sleep = fn
	}
}

// Pipeline resolves entities one at a time, checkpointing after each.
type Pipeline struct {
	resolver   Resolver
	store      ResultStore
	stats      *Stats
	politeness time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewPipeline creates a Pipeline over an already-loaded store.
func NewPipeline(resolver Resolver, store ResultStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver:   resolver,
		store:      store,
		stats:      NewStats(store.Records()),
		politeness: 500 * time.Millisecond,
		sleep:      resilience.Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stats returns the live counters.
func (p *Pipeline) Stats() *Stats {
	return p.stats
}

// Run processes entities in order. Entities already in the store are
// skipped. A primary-tier abort is logged and left for the next run. A
// checkpoint write failure stops the run.
func (p *Pipeline) Run(ctx context.Context, entities []string) (*Summary, error) {
	sum := &Summary{}

	if done := p.stats.Total(); done > 0 {
		remaining := 0
		for _, e := range entities {
			if !p.store.AlreadyDone(e) {
				remaining++
			}
		}
		zap.L().Info("resuming from checkpoint",
			zap.Int("already_processed", done),
			zap.Int("remaining", remaining),
		)
	}

	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return p.finish(sum), eris.Wrap(err, "enrich: run cancelled")
		}

		if p.store.AlreadyDone(entity) {
			sum.Skipped++
			continue
		}

		zap.L().Info("fetching description", zap.String("entity", entity))

		outcome, err := p.resolver.Resolve(ctx, entity)
		if err != nil {
			if IsAborted(err) {
				zap.L().Warn("primary source unreachable, leaving entity for next run",
					zap.String("entity", entity),
					zap.Error(err),
				)
				sum.Aborted++
				continue
			}
			return p.finish(sum), eris.Wrapf(err, "enrich: resolve %q", entity)
		}

		if err := p.store.Append(*outcome); err != nil {
			return p.finish(sum), eris.Wrapf(err, "enrich: append %q", entity)
		}
		if err := p.store.PersistAll(ctx); err != nil {
			return p.finish(sum), eris.Wrap(err, "enrich: persist checkpoint")
		}
		p.stats.Record(outcome.Source)
		sum.Processed++

		zap.L().Debug("recorded outcome",
			zap.String("entity", entity),
			zap.String("source", string(outcome.Source)),
		)

		if err := p.sleep(ctx, p.politeness); err != nil {
			return p.finish(sum), eris.Wrap(err, "enrich: run cancelled")
		}
	}

	return p.finish(sum), nil
}

func (p *Pipeline) finish(sum *Summary) *Summary {
	sum.Total = p.stats.Total()
	sum.BySource = p.stats.Snapshot()
	return sum
}
