// Package runner dispatches manifest assertions to kind-specific executors
// and aggregates the outcomes into a run report.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/breeze-rmm/docverify/internal/executor"
	"github.com/breeze-rmm/docverify/internal/model"
)

// BrowserFactory opens a browser session on first use. The returned release
// func tears the session down; it is called exactly once, after the last
// assertion, on every exit path.
type BrowserFactory func() (executor.BrowserSession, func(), error)

// Options configures one run.
type Options struct {
	APIBaseURL string
	UIBaseURL  string
	PageFilter string // substring match on page source, empty selects all
	KindFilter string // exact kind match, empty selects all
	Env        model.EnvContext
}

// Runner executes assertions sequentially in manifest order. Sequential
// dispatch is deliberate: assertions share one browser session and one
// seeded environment, and interleaving would make failures order-dependent.
type Runner struct {
	executors  executor.Set
	newBrowser BrowserFactory
}

// New creates a Runner. executors carries the api and sql executors; the ui
// executor is built lazily from the browser factory only when a selected
// assertion needs it.
func New(executors executor.Set, newBrowser BrowserFactory) *Runner {
	return &Runner{executors: executors, newBrowser: newBrowser}
}

type selected struct {
	source    string
	assertion model.Assertion
}

// Run executes every selected assertion and returns the aggregated report.
// Executor failures and panics become error results; Run itself only fails
// on an empty manifest.
func (r *Runner) Run(ctx context.Context, manifest *model.AssertionManifest, opts Options) (*model.RunReport, error) {
	if manifest == nil || len(manifest.Pages) == 0 {
		return nil, fmt.Errorf("runner: manifest has no pages")
	}

	picks := selectAssertions(manifest, opts)
	zap.L().Info("run starting",
		zap.Int("selected", len(picks)),
		zap.String("page_filter", opts.PageFilter),
		zap.String("kind_filter", opts.KindFilter))

	execs := make(executor.Set, len(r.executors)+1)
	for k, e := range r.executors {
		execs[k] = e
	}

	// Chrome only launches when a ui assertion survived the filters, and
	// once launched it is shared by all of them.
	if needsBrowser(picks) && execs[model.KindUI] == nil && r.newBrowser != nil {
		session, release, err := r.newBrowser()
		if err != nil {
			zap.L().Warn("browser unavailable, ui assertions will error", zap.Error(err))
		} else {
			defer release()
			execs[model.KindUI] = executor.NewUIExecutor(session)
		}
	}

	report := &model.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	for _, pick := range picks {
		res := r.dispatch(ctx, execs, pick, opts)
		report.Add(res)
		logResult(pick.source, res)
	}

	report.CompletedAt = time.Now().UTC()
	zap.L().Info("run complete",
		zap.String("run_id", report.RunID),
		zap.Int("total", report.Total),
		zap.Int("passed", report.Passed),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors))
	return report, nil
}

// dispatch runs one assertion, converting executor panics into error
// results so a single broken assertion cannot take down the run.
func (r *Runner) dispatch(ctx context.Context, execs executor.Set, pick selected, opts Options) (res model.AssertionResult) {
	a := pick.assertion
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			zap.L().Error("executor panicked",
				zap.String("assertion", a.ID),
				zap.Any("panic", p))
			res = model.AssertionResult{
				ID:     a.ID,
				Kind:   a.Kind,
				Claim:  a.Claim,
				Status: model.StatusError,
				Reason: fmt.Sprintf("executor panic: %v", p),
			}
		}
		res.DurationMs = time.Since(start).Milliseconds()
	}()

	exec := execs[a.Kind]
	if exec == nil {
		return model.AssertionResult{
			ID:     a.ID,
			Kind:   a.Kind,
			Claim:  a.Claim,
			Status: model.StatusError,
			Reason: fmt.Sprintf("no executor for kind %q", a.Kind),
		}
	}

	target := opts.APIBaseURL
	if a.Kind == model.KindUI {
		target = opts.UIBaseURL
	}
	return exec.Execute(ctx, a, target, opts.Env.Clone())
}

// selectAssertions flattens the manifest in page order, applying filters.
func selectAssertions(manifest *model.AssertionManifest, opts Options) []selected {
	var picks []selected
	for _, page := range manifest.Pages {
		if opts.PageFilter != "" && !strings.Contains(page.Source, opts.PageFilter) {
			continue
		}
		for _, a := range page.Assertions {
			if opts.KindFilter != "" && string(a.Kind) != opts.KindFilter {
				continue
			}
			picks = append(picks, selected{source: page.Source, assertion: a})
		}
	}
	return picks
}

func needsBrowser(picks []selected) bool {
	for _, p := range picks {
		if p.assertion.Kind == model.KindUI {
			return true
		}
	}
	return false
}

func logResult(source string, res model.AssertionResult) {
	fields := []zap.Field{
		zap.String("assertion", res.ID),
		zap.String("kind", string(res.Kind)),
		zap.String("claim", truncateClaim(res.Claim)),
		zap.String("page", source),
		zap.Int64("duration_ms", res.DurationMs),
	}
	switch res.Status {
	case model.StatusPass:
		zap.L().Info("pass", fields...)
	case model.StatusSkip:
		zap.L().Info("skip", append(fields, zap.String("reason", res.Reason))...)
	case model.StatusFail:
		zap.L().Warn("fail", append(fields, zap.String("reason", res.Reason))...)
	case model.StatusError:
		zap.L().Error("error", append(fields, zap.String("reason", res.Reason))...)
	}
}

const maxLoggedClaim = 80

// truncateClaim keeps log lines single-screen; the full claim is always in
// the persisted report.
func truncateClaim(claim string) string {
	if len(claim) <= maxLoggedClaim {
		return claim
	}
	return claim[:maxLoggedClaim-3] + "..."
}
