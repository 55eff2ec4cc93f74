// Package executor holds the kind-specific strategies that run one assertion
// against a live target and produce a result.
package executor

import (
	"context"

	"github.com/breeze-rmm/docverify/internal/model"
)

// Executor runs one assertion against a target location. Implementations
// must treat env as read-only: no execution may mutate shared state in a way
// visible to a later assertion.
type Executor interface {
	Execute(ctx context.Context, a model.Assertion, target string, env model.EnvContext) model.AssertionResult
}

// Set maps each assertion kind to its executor.
type Set map[model.Kind]Executor

// result builds an AssertionResult for a; the runner stamps the duration.
func result(a model.Assertion, status model.Status, reason string) model.AssertionResult {
	return model.AssertionResult{
		ID:     a.ID,
		Kind:   a.Kind,
		Claim:  a.Claim,
		Status: status,
		Reason: reason,
	}
}
