package enrich

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/illnessatlas/atlas-cli/internal/model"
	"github.com/illnessatlas/atlas-cli/internal/resilience"
)

// AbortError means the primary source could not be queried for an entity.
// Nothing is recorded; the entity is picked up again on the next run.
type AbortError struct {
	Entity string
	Err    error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("enrich: primary lookup for %q failed: %v", e.Entity, e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// IsAborted reports whether err is an AbortError.
func IsAborted(err error) bool {
	var ae *AbortError
	return errors.As(err, &ae)
}

// Chain queries the primary, search, and instant-answer tiers in that order
// and produces exactly one outcome per entity, or an AbortError.
//
// Failures are handled asymmetrically. If the primary tier cannot be reached
// the entity is left pending. If a fallback tier cannot be reached it counts
// as "no result", and an entity that falls through every tier is recorded as
// SourceNone for good.
type Chain struct {
	primary Tier
	search  Tier
	instant Tier
	retry   resilience.RetryConfig
}

// NewChain creates a Chain. Each tier call is wrapped in its own retry
// budget taken from retry.
func NewChain(primary, search, instant Tier, retry resilience.RetryConfig) *Chain {
	return &Chain{
		primary: primary,
		search:  search,
		instant: instant,
		retry:   retry,
	}
}

// Resolve runs the chain for one entity.
func (c *Chain) Resolve(ctx context.Context, entity string) (*model.Outcome, error) {
	log := zap.L().With(zap.String("entity", entity))

	res, err := c.lookup(ctx, model.SourcePrimary, c.primary, entity)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &AbortError{Entity: entity, Err: err}
	}
	if res.Found {
		return res.outcome(entity, model.SourcePrimary), nil
	}

	log.Info("no direct page, trying search")
	res, err = c.lookup(ctx, model.SourceSearch, c.search, entity)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("search failed, trying instant answer", zap.Error(err))
	} else if res.Found {
		log.Info("found via search", zap.String("title", res.Title))
		return res.outcome(entity, model.SourceSearch), nil
	} else {
		log.Info("search found nothing, trying instant answer")
	}

	res, err = c.lookup(ctx, model.SourceInstantAnswer, c.instant, entity)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("instant answer failed", zap.Error(err))
	} else if res.Found {
		log.Info("found via instant answer")
		return res.outcome(entity, model.SourceInstantAnswer), nil
	}

	log.Warn("no description found")
	o := model.Unresolved(entity)
	return &o, nil
}

func (c *Chain) lookup(ctx context.Context, source model.Source, tier Tier, entity string) (TierResult, error) {
	cfg := c.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(string(source), cfg.MaxAttempts)
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (TierResult, error) {
		return tier.Lookup(ctx, entity)
	})
}
