// Package metrics exposes checkpoint contents as Prometheus metrics.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/illnessatlas/atlas-cli/internal/model"
)

var (
	outcomesDesc = prometheus.NewDesc(
		"atlas_outcomes_total",
		"Recorded enrichment outcomes by source tier",
		[]string{"source"},
		nil,
	)
	resolvedRatioDesc = prometheus.NewDesc(
		"atlas_outcomes_resolved_ratio",
		"Share of recorded entities that have a description",
		nil,
		nil,
	)
	scrapeErrorDesc = prometheus.NewDesc(
		"atlas_checkpoint_read_errors",
		"1 if the last read of the checkpoint failed",
		nil,
		nil,
	)
)

// Loader reads the current record set.
type Loader interface {
	Load(ctx context.Context) ([]model.Outcome, error)
}

// OutcomeCollector is a custom Prometheus collector that reads the
// checkpoint on each scrape.
type OutcomeCollector struct {
	loader  Loader
	timeout time.Duration
}

// NewOutcomeCollector returns a collector over loader.
func NewOutcomeCollector(loader Loader) *OutcomeCollector {
	return &OutcomeCollector{loader: loader, timeout: 5 * time.Second}
}

// Describe sends the metric descriptors to the channel.
func (c *OutcomeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- outcomesDesc
	ch <- resolvedRatioDesc
	ch <- scrapeErrorDesc
}

// Collect loads the records and emits one counter per source.
func (c *OutcomeCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	records, err := c.loader.Load(ctx)
	if err != nil {
		zap.L().Error("metrics: failed to read checkpoint", zap.Error(err))
		ch <- prometheus.MustNewConstMetric(scrapeErrorDesc, prometheus.GaugeValue, 1)
		return
	}
	ch <- prometheus.MustNewConstMetric(scrapeErrorDesc, prometheus.GaugeValue, 0)

	counts := make(map[model.Source]int, len(model.Sources))
	resolved := 0
	for _, r := range records {
		counts[r.Source]++
		if r.IsResolved() {
			resolved++
		}
	}
	for _, src := range model.Sources {
		ch <- prometheus.MustNewConstMetric(
			outcomesDesc,
			prometheus.CounterValue,
			float64(counts[src]),
			string(src),
		)
	}

	ratio := 0.0
	if len(records) > 0 {
		ratio = float64(resolved) / float64(len(records))
	}
	ch <- prometheus.MustNewConstMetric(resolvedRatioDesc, prometheus.GaugeValue, ratio)
}

// NewRegistry returns a registry holding the outcome collector plus the
// standard Go and process collectors.
func NewRegistry(loader Loader) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewOutcomeCollector(loader),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
