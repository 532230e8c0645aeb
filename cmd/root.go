package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/illnessatlas/atlas-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "Disease description enrichment for the Illness Atlas",
	Long:  "Looks up a one-sentence description for every disease in the dataset (Wikipedia page, then Wikipedia search, then DuckDuckGo), checkpointing after each one so an interrupted run resumes where it stopped.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
