package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/illnessatlas/atlas-cli/internal/config"
	"github.com/illnessatlas/atlas-cli/internal/enrich"
	"github.com/illnessatlas/atlas-cli/internal/entity"
	"github.com/illnessatlas/atlas-cli/internal/model"
)

var (
	enrichInput  string
	enrichColumn string
	enrichLimit  int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fetch descriptions for every disease not yet in the checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if enrichInput != "" {
			cfg.Input.Path = enrichInput
		}
		if enrichColumn != "" {
			cfg.Input.Column = enrichColumn
		}

		_, err := runEnrich(ctx, cfg, enrichLimit, cmd.OutOrStdout())
		return err
	},
}

// runEnrich loads the entity list, runs the pipeline and prints the tally.
// The tally is printed even when the run stops early.
func runEnrich(ctx context.Context, c *config.Config, limit int, out io.Writer, opts ...enrich.Option) (*enrich.Summary, error) {
	runID := uuid.New().String()
	log := zap.L().With(zap.String("run_id", runID))
	defer zap.ReplaceGlobals(log)()

	entities, err := entity.Load(ctx, c.Input.Path, entity.Options{
		Column: c.Input.Column,
		Sheet:  c.Input.Sheet,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	env, err := initEnrich(ctx, c, opts...)
	if err != nil {
		return nil, err
	}
	defer env.Close()

	log.Info("starting enrichment",
		zap.Int("entities", len(entities)),
		zap.String("input", c.Input.Path),
		zap.String("store", c.Store.Driver),
	)

	sum, runErr := env.Pipeline.Run(ctx, entities)
	if sum != nil {
		printSummary(out, sum)
	}
	if runErr != nil {
		return sum, runErr
	}

	log.Info("enrichment complete",
		zap.Int("processed", sum.Processed),
		zap.Int("skipped", sum.Skipped),
		zap.Int("aborted", sum.Aborted),
		zap.Int("total", sum.Total),
	)
	return sum, nil
}

func printSummary(out io.Writer, sum *enrich.Summary) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "processed\t%d\n", sum.Processed)
	fmt.Fprintf(tw, "skipped\t%d\n", sum.Skipped)
	fmt.Fprintf(tw, "aborted\t%d\n", sum.Aborted)
	fmt.Fprintln(tw, "\t")
	writeSourceCounts(tw, sum.BySource, sum.Total)
	_ = tw.Flush()
}

// writeSourceCounts prints one line per source and the total.
func writeSourceCounts(w io.Writer, bySource map[model.Source]int, total int) {
	for _, src := range model.Sources {
		fmt.Fprintf(w, "%s\t%d\n", sourceLabel(src), bySource[src])
	}
	fmt.Fprintf(w, "total\t%d\n", total)
}

func sourceLabel(src model.Source) string {
	switch src {
	case model.SourcePrimary:
		return "wikipedia page"
	case model.SourceSearch:
		return "wikipedia search"
	case model.SourceInstantAnswer:
		return "duckduckgo"
	default:
		return "not found"
	}
}

func init() {
	enrichCmd.Flags().StringVar(&enrichInput, "input", "", "entity list, CSV or XLSX (default from config)")
	enrichCmd.Flags().StringVar(&enrichColumn, "column", "", "entity column header (default from config)")
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "process at most n entities from the list (0 = all)")
	rootCmd.AddCommand(enrichCmd)
}
