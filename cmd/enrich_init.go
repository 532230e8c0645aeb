package main

import (
	"context"
	"math"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/illnessatlas/atlas-cli/internal/checkpoint"
	"github.com/illnessatlas/atlas-cli/internal/config"
	"github.com/illnessatlas/atlas-cli/internal/enrich"
	"github.com/illnessatlas/atlas-cli/internal/resilience"
	"github.com/illnessatlas/atlas-cli/pkg/duckduckgo"
	"github.com/illnessatlas/atlas-cli/pkg/wikipedia"
)

// enrichEnv holds the opened checkpoint and the pipeline built over it.
type enrichEnv struct {
	Store    *checkpoint.Store
	Pipeline *enrich.Pipeline
}

// Close releases resources held by the environment.
func (e *enrichEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnrich validates the config, opens the store, builds the API clients
// and the resolution chain. Callers should defer env.Close().
func initEnrich(ctx context.Context, c *config.Config, opts ...enrich.Option) (*enrichEnv, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	st, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: c.HTTP.Timeout}

	wiki := wikipedia.NewClient(
		wikipedia.WithBaseURL(c.Wikipedia.BaseURL),
		wikipedia.WithHTTPClient(httpClient),
		wikipedia.WithUserAgent(c.HTTP.UserAgent),
		wikipedia.WithRateLimiter(newLimiter(c.Wikipedia.RequestsPerSecond)),
	)
	ddg := duckduckgo.NewClient(
		duckduckgo.WithBaseURL(c.DuckDuckGo.BaseURL),
		duckduckgo.WithHTTPClient(httpClient),
		duckduckgo.WithUserAgent(c.HTTP.UserAgent),
		duckduckgo.WithRateLimiter(newLimiter(c.DuckDuckGo.RequestsPerSecond)),
	)

	chain := enrich.NewChain(
		&enrich.PrimaryTier{Wiki: wiki},
		&enrich.SearchTier{Wiki: wiki},
		&enrich.InstantAnswerTier{DDG: ddg},
		resilience.FromRetryConfig(c.Enrich.MaxRetries, c.Enrich.RetryBaseDelay),
	)

	pipelineOpts := append([]enrich.Option{enrich.WithPolitenessDelay(c.Enrich.PolitenessDelay)}, opts...)

	return &enrichEnv{
		Store:    st,
		Pipeline: enrich.NewPipeline(chain, st, pipelineOpts...),
	}, nil
}

// newLimiter returns a fixed limiter with burst 1. A non-positive rate
// disables limiting.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 || math.IsInf(rps, 1) {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}
