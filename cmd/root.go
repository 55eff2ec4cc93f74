package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/breeze-rmm/docverify/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "docverify",
	Short: "Documentation-driven conformance testing for Breeze RMM",
	Long:  "Extracts executable assertions from documentation pages via Claude, runs them against a live deployment over HTTP, SQL, and a headless browser, and reports which documented claims still hold.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
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
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
