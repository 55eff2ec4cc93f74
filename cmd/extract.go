package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/breeze-rmm/docverify/internal/extract"
	"github.com/breeze-rmm/docverify/internal/manifest"
	anthropicpkg "github.com/breeze-rmm/docverify/pkg/anthropic"
)

var (
	extractIncremental bool
	extractPage        string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Derive test assertions from documentation pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtract(cmd.Context())
	},
}

func runExtract(ctx context.Context) error {
	if cfg.Anthropic.Key == "" {
		return eris.New("extraction requires an API key, set DOCVERIFY_ANTHROPIC_KEY")
	}

	prior, err := manifest.Load(cfg.Docs.ManifestPath)
	if err != nil {
		return err
	}

	pages, err := extract.ListPages(cfg.Docs.ScopeDirs)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return eris.Errorf("no documentation pages found under %v", cfg.Docs.ScopeDirs)
	}

	selected := pages
	if extractPage != "" {
		selected = extract.FilterPages(pages, extractPage)
		if len(selected) == 0 {
			return eris.Errorf("no pages match %q", extractPage)
		}
	}

	zap.L().Info("extraction starting",
		zap.Int("pages", len(selected)),
		zap.Bool("incremental", extractIncremental),
		zap.String("model", cfg.Anthropic.Model))

	coord := extract.New(anthropicpkg.NewClient(cfg.Anthropic.Key), extract.Options{
		Model:       cfg.Anthropic.Model,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		Concurrency: cfg.Anthropic.Concurrency,
		RatePerSec:  cfg.Anthropic.RatePerSec,
	})

	fresh, err := coord.Extract(ctx, selected, prior, extractIncremental)
	if err != nil {
		return eris.Wrap(err, "extract assertions")
	}

	// A filtered extraction must not drop manifest entries for the pages it
	// skipped.
	if extractPage != "" {
		fresh = extract.MergeWithPrior(fresh, prior)
	}

	if err := manifest.Save(fresh, cfg.Docs.ManifestPath); err != nil {
		return err
	}

	zap.L().Info("extraction complete",
		zap.Int("pages", len(fresh.Pages)),
		zap.Int("assertions", fresh.TotalAssertions()))
	return nil
}

func init() {
	extractCmd.Flags().BoolVar(&extractIncremental, "incremental", false, "reuse prior assertions for pages whose content is unchanged")
	extractCmd.Flags().StringVar(&extractPage, "page", "", "only extract pages whose path contains this substring")
	rootCmd.AddCommand(extractCmd)
}
