package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/breeze-rmm/docverify/internal/executor"
	"github.com/breeze-rmm/docverify/internal/manifest"
	"github.com/breeze-rmm/docverify/internal/model"
	"github.com/breeze-rmm/docverify/internal/report"
	"github.com/breeze-rmm/docverify/internal/runner"
	"github.com/breeze-rmm/docverify/pkg/breeze"
	"github.com/breeze-rmm/docverify/pkg/browser"
)

var (
	runPage string
	runKind string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute manifest assertions against the target deployment",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAssertions(cmd.Context())
	},
}

func runAssertions(ctx context.Context) error {
	// The manifest guard runs before any seeding or browser work: a missing
	// manifest is operator error, not a reason to touch the deployment.
	m, err := loadManifestForRun(cfg.Docs.ManifestPath)
	if err != nil {
		return err
	}

	env, err := seedEnvironment(ctx)
	if err != nil {
		return eris.Wrap(err, "seed fixtures")
	}

	execs := executor.Set{
		model.KindAPI: executor.NewAPIExecutor(nil),
	}
	sqlExec, err := executor.NewSQLExecutor(ctx, cfg.Target.DatabaseURL)
	if err != nil {
		zap.L().Warn("sql executor unavailable, sql assertions will error", zap.Error(err))
	} else {
		defer sqlExec.Close()
		execs[model.KindSQL] = sqlExec
	}

	r := runner.New(execs, newBrowserFactory())
	rep, err := r.Run(ctx, m, runner.Options{
		APIBaseURL: cfg.Target.APIBaseURL,
		UIBaseURL:  cfg.Target.UIBaseURL,
		PageFilter: runPage,
		KindFilter: runKind,
		Env:        env,
	})
	if err != nil {
		return err
	}

	if err := report.SaveJSON(cfg.Report.JSONPath, rep); err != nil {
		return err
	}
	if err := report.SaveHTML(cfg.Report.HTMLPath, rep); err != nil {
		return err
	}
	report.PrintSummary(os.Stdout, rep)

	if rep.Failing() {
		return eris.Errorf("%d failed, %d errored", rep.Failed, rep.Errors)
	}
	return nil
}

// loadManifestForRun loads the manifest and turns the absent state into the
// fatal "run extract first" error.
func loadManifestForRun(path string) (*model.AssertionManifest, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, eris.Errorf("no manifest at %s, run `docverify extract` first", path)
	}
	return m, nil
}

// seedEnvironment makes sure the fixture org, site, and admin exist and
// returns their identifiers. Seeding failure is fatal: without fixtures and
// a token, fail results would mean "harness broken", not "docs wrong".
func seedEnvironment(ctx context.Context) (model.EnvContext, error) {
	client := breeze.NewClient(cfg.Target.APIBaseURL)
	return breeze.Seed(ctx, client, cfg.Target.AdminEmail, cfg.Target.AdminPassword)
}

// newBrowserFactory defers the Chrome launch until the runner meets its
// first ui assertion.
func newBrowserFactory() runner.BrowserFactory {
	return func() (executor.BrowserSession, func(), error) {
		session, err := browser.NewSession(browser.Config{
			Headless:   cfg.Browser.Headless,
			NavTimeout: time.Duration(cfg.Browser.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		release := func() {
			if err := session.Close(); err != nil {
				zap.L().Warn("browser close", zap.Error(err))
			}
		}
		return session, release, nil
	}
}

func init() {
	runCmd.Flags().StringVar(&runPage, "page", "", "only run assertions from pages whose path contains this substring")
	runCmd.Flags().StringVar(&runKind, "type", "", "only run assertions of this type (api, sql, ui)")
	rootCmd.AddCommand(runCmd)
}
