package model

import "time"

// Status is the outcome of one executed assertion.
type Status string

const (
	// StatusPass means the expectation was met.
	StatusPass Status = "pass"
	// StatusFail means the executor ran and determined the expectation was
	// not met: a product regression.
	StatusFail Status = "fail"
	// StatusSkip means filters or an unsatisfiable precondition excluded the
	// assertion.
	StatusSkip Status = "skip"
	// StatusError means the executor itself failed unexpectedly (network,
	// parse, panic): a harness problem, not a product regression.
	StatusError Status = "error"
)

// AssertionResult is one executed outcome. Claim is copied in so the report
// is self-contained.
type AssertionResult struct {
	ID         string `json:"id"`
	Kind       Kind   `json:"kind"`
	Claim      string `json:"claim"`
	Status     Status `json:"status"`
	Reason     string `json:"reason,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// EnvContext is the shared environment threaded into every assertion's
// execution: seeded resource identifiers and credentials. Built once per
// run; executors receive it read-only.
type EnvContext map[string]string

// Well-known EnvContext keys.
const (
	EnvOrgID         = "org_id"
	EnvSiteID        = "site_id"
	EnvEnrollmentKey = "enrollment_key"
	EnvAdminEmail    = "admin_email"
	EnvAdminPassword = "admin_password"
	EnvAuthToken     = "auth_token"
)

// Clone returns a copy so callers can hand out a view that cannot mutate
// the run's context.
func (e EnvContext) Clone() EnvContext {
	out := make(EnvContext, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// RunReport aggregates a single execution.
// Invariant: Total == Passed+Failed+Skipped+Errors == len(Results).
type RunReport struct {
	RunID       string            `json:"run_id"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
	Total       int               `json:"total"`
	Passed      int               `json:"passed"`
	Failed      int               `json:"failed"`
	Skipped     int               `json:"skipped"`
	Errors      int               `json:"errors"`
	Results     []AssertionResult `json:"results"`
}

// Add appends a result and updates the counters.
func (r *RunReport) Add(res AssertionResult) {
	r.Results = append(r.Results, res)
	r.Total++
	switch res.Status {
	case StatusPass:
		r.Passed++
	case StatusFail:
		r.Failed++
	case StatusSkip:
		r.Skipped++
	case StatusError:
		r.Errors++
	}
}

// Failing reports whether the run should terminate the process with a
// nonzero exit. Skips never affect exit status.
func (r *RunReport) Failing() bool {
	return r.Failed > 0 || r.Errors > 0
}

// PassRate returns the fraction of executed (non-skipped) assertions that
// passed, in [0,1]. Returns 1 when nothing was executed.
func (r *RunReport) PassRate() float64 {
	executed := r.Total - r.Skipped
	if executed <= 0 {
		return 1
	}
	return float64(r.Passed) / float64(executed)
}
