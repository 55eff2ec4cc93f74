package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind selects the execution strategy for an assertion.
type Kind string

const (
	KindAPI Kind = "api"
	KindSQL Kind = "sql"
	KindUI  Kind = "ui"
)

// AllKinds returns the defined assertion kinds.
func AllKinds() []Kind {
	return []Kind{KindAPI, KindSQL, KindUI}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAPI, KindSQL, KindUI:
		return true
	}
	return false
}

// Severity grades how important a documented claim is. Informational only:
// it does not affect execution but is carried into reports.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// TestSpec is the kind-specific test definition. Exactly one concrete shape
// exists per Kind; the closed set gives the dispatch site exhaustiveness.
type TestSpec interface {
	Kind() Kind
}

// APITest describes an HTTP call against the product API and its expectations.
type APITest struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Body    json.RawMessage   `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Expect  APIExpect         `json:"expect"`
}

// APIExpect holds the checks applied to an API response.
type APIExpect struct {
	Status          int      `json:"status,omitempty"`
	BodyContains    []string `json:"body_contains,omitempty"`
	BodyNotContains []string `json:"body_not_contains,omitempty"`
	ContentType     string   `json:"content_type,omitempty"`
}

// Kind implements TestSpec.
func (APITest) Kind() Kind { return KindAPI }

// SQLTest carries an informal query description and an expected-result
// description. Resolution against the database is the executor's concern.
type SQLTest struct {
	Query  string `json:"query"`
	Expect string `json:"expect"`
}

// Kind implements TestSpec.
func (SQLTest) Kind() Kind { return KindSQL }

// UITest describes a browser navigation target, optional setup steps, and a
// natural-language verification instruction.
type UITest struct {
	Navigate string   `json:"navigate"`
	Steps    []string `json:"steps,omitempty"`
	Verify   string   `json:"verify"`
}

// Kind implements TestSpec.
func (UITest) Kind() Kind { return KindUI }

// Assertion is one structured, executable claim derived from a documentation
// page.
type Assertion struct {
	ID       string
	Claim    string
	Severity Severity
	Kind     Kind
	Test     TestSpec
}

// assertionJSON is the wire envelope: the kind tag selects the test payload
// shape on both marshal and unmarshal.
type assertionJSON struct {
	ID       string          `json:"id"`
	Claim    string          `json:"claim"`
	Severity Severity        `json:"severity"`
	Kind     Kind            `json:"kind"`
	Test     json.RawMessage `json:"test"`
}

// MarshalJSON implements json.Marshaler.
func (a Assertion) MarshalJSON() ([]byte, error) {
	if a.Test != nil && a.Test.Kind() != a.Kind {
		return nil, fmt.Errorf("assertion %s: kind %q does not match test shape %q", a.ID, a.Kind, a.Test.Kind())
	}

	env := assertionJSON{
		ID:       a.ID,
		Claim:    a.Claim,
		Severity: a.Severity,
		Kind:     a.Kind,
	}
	if a.Test != nil {
		raw, err := json.Marshal(a.Test)
		if err != nil {
			return nil, err
		}
		env.Test = raw
	}
	return json.Marshal(env)
}

// UnmarshalJSON implements json.Unmarshaler. A test payload that does not
// decode as the shape named by kind is a parse error, never a silently
// mis-shaped assertion.
func (a *Assertion) UnmarshalJSON(data []byte) error {
	var env assertionJSON
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if !env.Kind.Valid() {
		return fmt.Errorf("assertion %s: unknown kind %q", env.ID, env.Kind)
	}

	a.ID = env.ID
	a.Claim = env.Claim
	a.Severity = env.Severity
	a.Kind = env.Kind

	if len(env.Test) == 0 {
		return fmt.Errorf("assertion %s: missing test definition", env.ID)
	}

	dec := json.NewDecoder(bytes.NewReader(env.Test))
	dec.DisallowUnknownFields()

	switch env.Kind {
	case KindAPI:
		var t APITest
		if err := dec.Decode(&t); err != nil {
			return fmt.Errorf("assertion %s: api test: %w", env.ID, err)
		}
		a.Test = t
	case KindSQL:
		var t SQLTest
		if err := dec.Decode(&t); err != nil {
			return fmt.Errorf("assertion %s: sql test: %w", env.ID, err)
		}
		a.Test = t
	case KindUI:
		var t UITest
		if err := dec.Decode(&t); err != nil {
			return fmt.Errorf("assertion %s: ui test: %w", env.ID, err)
		}
		a.Test = t
	}
	return nil
}
