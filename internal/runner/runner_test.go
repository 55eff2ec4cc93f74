package runner

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze-rmm/docverify/internal/executor"
	"github.com/breeze-rmm/docverify/internal/model"
)

// stubExecutor returns a fixed status and records dispatch order.
type stubExecutor struct {
	status model.Status
	reason string
	seen   *[]string
}

func (s *stubExecutor) Execute(ctx context.Context, a model.Assertion, target string, env model.EnvContext) model.AssertionResult {
	if s.seen != nil {
		*s.seen = append(*s.seen, a.ID)
	}
	return model.AssertionResult{ID: a.ID, Kind: a.Kind, Claim: a.Claim, Status: s.status, Reason: s.reason}
}

// panicExecutor panics on every call.
type panicExecutor struct{}

func (panicExecutor) Execute(ctx context.Context, a model.Assertion, target string, env model.EnvContext) model.AssertionResult {
	panic("nil pointer in expectation check")
}

// stubSession satisfies executor.BrowserSession for ui dispatch.
type stubSession struct{ text string }

func (s *stubSession) Visit(ctx context.Context, url string) error { return nil }
func (s *stubSession) Text(ctx context.Context) (string, error) { return s.text, nil }
func (s *stubSession) ClickText(ctx context.Context, label string) error { return nil }

func assertion(id string, kind model.Kind) model.Assertion {
	a := model.Assertion{ID: id, Claim: "claim " + id, Severity: model.SeverityInfo, Kind: kind}
	switch kind {
	case model.KindAPI:
		a.Test = model.APITest{Path: "/api/v1/health", Expect: model.APIExpect{Status: 200}}
	case model.KindSQL:
		a.Test = model.SQLTest{Query: "count organizations", Expect: "at least one row"}
	case model.KindUI:
		a.Test = model.UITest{Navigate: "/devices", Verify: `"Devices"`}
	}
	return a
}

func manifest(pages ...model.PageAssertions) *model.AssertionManifest {
	return &model.AssertionManifest{Version: model.ManifestVersion, Pages: pages}
}

func TestRun_ManifestOrderPreserved(t *testing.T) {
	var seen []string
	execs := executor.Set{
		model.KindAPI: &stubExecutor{status: model.StatusPass, seen: &seen},
		model.KindSQL: &stubExecutor{status: model.StatusPass, seen: &seen},
	}
	m := manifest(
		model.PageAssertions{Source: "guides/alerts.md", Assertions: []model.Assertion{
			assertion("a1", model.KindAPI), assertion("s1", model.KindSQL),
		}},
		model.PageAssertions{Source: "guides/devices.md", Assertions: []model.Assertion{
			assertion("a2", model.KindAPI),
		}},
	)

	report, err := New(execs, nil).Run(context.Background(), m, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a1", "s1", "a2"}, seen)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 3, report.Passed)
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.CompletedAt.Before(report.StartedAt))
}

func TestRun_PanicBecomesErrorResult(t *testing.T) {
	var seen []string
	execs := executor.Set{
		model.KindAPI: panicExecutor{},
		model.KindSQL: &stubExecutor{status: model.StatusPass, seen: &seen},
	}
	m := manifest(model.PageAssertions{Source: "p.md", Assertions: []model.Assertion{
		assertion("a1", model.KindAPI), assertion("s1", model.KindSQL),
	}})

	report, err := New(execs, nil).Run(context.Background(), m, Options{})
	require.NoError(t, err)

	// The panic is contained and the next assertion still runs.
	assert.Equal(t, []string{"s1"}, seen)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.Passed)
	assert.Contains(t, report.Results[0].Reason, "executor panic")
}

func TestRun_Filters(t *testing.T) {
	execs := executor.Set{
		model.KindAPI: &stubExecutor{status: model.StatusPass},
		model.KindSQL: &stubExecutor{status: model.StatusPass},
	}
	m := manifest(
		model.PageAssertions{Source: "guides/alerts.md", Assertions: []model.Assertion{
			assertion("a1", model.KindAPI), assertion("s1", model.KindSQL),
		}},
		model.PageAssertions{Source: "reference/api.md", Assertions: []model.Assertion{
			assertion("a2", model.KindAPI),
		}},
	)

	byPage, err := New(execs, nil).Run(context.Background(), m, Options{PageFilter: "alerts"})
	require.NoError(t, err)
	assert.Equal(t, 2, byPage.Total)

	byKind, err := New(execs, nil).Run(context.Background(), m, Options{KindFilter: "api"})
	require.NoError(t, err)
	assert.Equal(t, 2, byKind.Total)
	for _, res := range byKind.Results {
		assert.Equal(t, model.KindAPI, res.Kind)
	}
}

func TestRun_BrowserOnlyWhenUISelected(t *testing.T) {
	launches := 0
	released := false
	factory := func() (executor.BrowserSession, func(), error) {
		launches++
		return &stubSession{text: "Devices"}, func() { released = true }, nil
	}
	execs := executor.Set{model.KindAPI: &stubExecutor{status: model.StatusPass}}

	apiOnly := manifest(model.PageAssertions{Source: "p.md", Assertions: []model.Assertion{
		assertion("a1", model.KindAPI),
	}})
	_, err := New(execs, factory).Run(context.Background(), apiOnly, Options{})
	require.NoError(t, err)
	assert.Zero(t, launches)

	withUI := manifest(model.PageAssertions{Source: "p.md", Assertions: []model.Assertion{
		assertion("a1", model.KindAPI),
		assertion("u1", model.KindUI),
		assertion("u2", model.KindUI),
	}})
	report, err := New(execs, factory).Run(context.Background(), withUI, Options{UIBaseURL: "http://localhost:4321"})
	require.NoError(t, err)

	// One launch covers both ui assertions, and the session is released.
	assert.Equal(t, 1, launches)
	assert.True(t, released)
	assert.Equal(t, 3, report.Passed)
}

func TestRun_BrowserLaunchFailureErrorsUIOnly(t *testing.T) {
	factory := func() (executor.BrowserSession, func(), error) {
		return nil, nil, assert.AnError
	}
	execs := executor.Set{model.KindAPI: &stubExecutor{status: model.StatusPass}}

	m := manifest(model.PageAssertions{Source: "p.md", Assertions: []model.Assertion{
		assertion("a1", model.KindAPI),
		assertion("u1", model.KindUI),
	}})
	report, err := New(execs, factory).Run(context.Background(), m, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 1, report.Errors)
}

func TestRun_MissingExecutorKind(t *testing.T) {
	execs := executor.Set{model.KindAPI: &stubExecutor{status: model.StatusPass}}
	m := manifest(model.PageAssertions{Source: "p.md", Assertions: []model.Assertion{
		assertion("s1", model.KindSQL),
	}})

	report, err := New(execs, nil).Run(context.Background(), m, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errors)
	assert.Contains(t, report.Results[0].Reason, `no executor for kind "sql"`)
}

func TestRun_EmptyManifest(t *testing.T) {
	_, err := New(executor.Set{}, nil).Run(context.Background(), manifest(), Options{})
	require.Error(t, err)
}

func TestTruncateClaim(t *testing.T) {
	short := "Agents enroll with a site key."
	assert.Equal(t, short, truncateClaim(short))

	long := strings.Repeat("devices stay online ", 10)
	got := truncateClaim(long)
	assert.Len(t, got, 80)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, long[:77], got[:77])
}
