package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/breeze-rmm/docverify/internal/model"
)

// BrowserSession is the slice of the browser session the ui executor drives.
// Satisfied by *browser.Session.
type BrowserSession interface {
	Visit(ctx context.Context, url string) error
	Text(ctx context.Context) (string, error)
	ClickText(ctx context.Context, label string) error
}

// UIExecutor drives a shared browser session through a ui-kind assertion:
// navigate, perform the listed steps, then check the verification condition
// against the rendered page text.
type UIExecutor struct {
	session BrowserSession
}

// NewUIExecutor wraps an already-started browser session. The executor does
// not own the session's lifecycle; the runner opens and closes it.
func NewUIExecutor(session BrowserSession) *UIExecutor {
	return &UIExecutor{session: session}
}

// Execute implements Executor. target is the UI base URL.
func (e *UIExecutor) Execute(ctx context.Context, a model.Assertion, target string, env model.EnvContext) model.AssertionResult {
	test, ok := a.Test.(model.UITest)
	if !ok {
		return result(a, model.StatusError, fmt.Sprintf("assertion %s: test is not ui-shaped", a.ID))
	}
	if e.session == nil {
		return result(a, model.StatusError, "no browser session available")
	}

	url := strings.TrimSuffix(target, "/") + test.Navigate
	if err := e.session.Visit(ctx, url); err != nil {
		return result(a, model.StatusError, fmt.Sprintf("visit %s: %v", test.Navigate, err))
	}

	for _, step := range test.Steps {
		if err := e.performStep(ctx, step); err != nil {
			return result(a, model.StatusError, fmt.Sprintf("step %q: %v", step, err))
		}
	}

	text, err := e.session.Text(ctx)
	if err != nil {
		return result(a, model.StatusError, "read page text: "+err.Error())
	}

	if reason := checkVerify(test.Verify, text); reason != "" {
		return result(a, model.StatusFail, reason)
	}
	return result(a, model.StatusPass, "")
}

var clickStepRe = regexp.MustCompile(`(?i)^click\s+"([^"]+)"$`)

// performStep executes one interaction step. The extraction instruction
// constrains steps to the click grammar; anything else is an error so the
// assertion surfaces as broken rather than silently passing.
func (e *UIExecutor) performStep(ctx context.Context, step string) error {
	if m := clickStepRe.FindStringSubmatch(strings.TrimSpace(step)); m != nil {
		return e.session.ClickText(ctx, m[1])
	}
	return fmt.Errorf("unrecognized step grammar")
}

var quotedRe = regexp.MustCompile(`"([^"]+)"`)

// checkVerify checks a verification description against the page text.
// Quoted phrases in the description must each appear verbatim; with no
// quoted phrases, the description's significant words must all appear. The
// second mode is lossy but matches how extracted descriptions name visible
// labels and headings.
func checkVerify(verify, pageText string) string {
	lower := strings.ToLower(pageText)

	if quoted := quotedRe.FindAllStringSubmatch(verify, -1); quoted != nil {
		for _, m := range quoted {
			if !strings.Contains(lower, strings.ToLower(m[1])) {
				return fmt.Sprintf("page missing %q", m[1])
			}
		}
		return ""
	}

	for _, word := range significantWords(verify) {
		if !strings.Contains(lower, word) {
			return fmt.Sprintf("page missing %q (from verification %q)", word, verify)
		}
	}
	return ""
}

// uiStopwords are connective words stripped from unquoted verifications.
var uiStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"page": true, "shows": true, "show": true, "showing": true, "displays": true,
	"display": true, "displayed": true, "contains": true, "contain": true,
	"visible": true, "with": true, "and": true, "or": true, "of": true,
	"in": true, "on": true, "for": true, "to": true, "at": true, "should": true,
	"appears": true, "appear": true, "present": true, "text": true,
	"heading": true, "header": true, "button": true, "label": true, "list": true,
}

func significantWords(s string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, `.,:;!?()"'`)
		if w == "" || uiStopwords[w] {
			continue
		}
		words = append(words, w)
	}
	return words
}
