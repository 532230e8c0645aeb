package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/illnessatlas/atlas-cli/internal/checkpoint"
	"github.com/illnessatlas/atlas-cli/internal/config"
	"github.com/illnessatlas/atlas-cli/internal/enrich"
	"github.com/illnessatlas/atlas-cli/internal/model"
)

var (
	statusFormat string
	statusExport string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint statistics by source",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd.Context(), cfg, statusFormat, statusExport, cmd.OutOrStdout())
	},
}

// statusReport is the machine-readable form of the status output.
type statusReport struct {
	Store      string         `json:"store" yaml:"store"`
	Total      int            `json:"total" yaml:"total"`
	Resolved   int            `json:"resolved" yaml:"resolved"`
	Unresolved int            `json:"unresolved" yaml:"unresolved"`
	BySource   map[string]int `json:"by_source" yaml:"by_source"`
}

func newStatusReport(storeName string, records []model.Outcome) statusReport {
	stats := enrich.NewStats(records)
	bySource := make(map[string]int, len(model.Sources))
	for src, n := range stats.Snapshot() {
		bySource[string(src)] = n
	}
	return statusReport{
		Store:      storeName,
		Total:      stats.Total(),
		Resolved:   stats.Resolved(),
		Unresolved: stats.Count(model.SourceNone),
		BySource:   bySource,
	}
}

func runStatus(ctx context.Context, c *config.Config, format, exportPath string, out io.Writer) error {
	st, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close()

	records := st.Records()
	if err := writeStatus(out, format, newStatusReport(storeName(c), records)); err != nil {
		return err
	}

	if exportPath != "" {
		if err := checkpoint.WriteJSON(exportPath, records); err != nil {
			return eris.Wrap(err, "status: export")
		}
		zap.L().Info("exported checkpoint", zap.String("path", exportPath), zap.Int("records", len(records)))
	}
	return nil
}

func writeStatus(out io.Writer, format string, report statusReport) error {
	switch format {
	case "", "table":
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "store\t%s\n", report.Store)
		fmt.Fprintln(tw, "\t")
		counts := make(map[model.Source]int, len(report.BySource))
		for k, v := range report.BySource {
			counts[model.Source(k)] = v
		}
		writeSourceCounts(tw, counts, report.Total)
		return tw.Flush()
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return eris.Wrap(err, "status: encode yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("status: unknown format %q (want table, json or yaml)", format)
	}
}

func storeName(c *config.Config) string {
	if c.Store.Driver == config.DriverJSON || c.Store.Driver == "" {
		return c.Enrich.OutputPath
	}
	return c.Store.Driver
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "table", "output format: table, json or yaml")
	statusCmd.Flags().StringVar(&statusExport, "export", "", "also write the checkpoint as a JSON document to this path")
	rootCmd.AddCommand(statusCmd)
}
