package model

import "time"

// ManifestVersion is the current manifest format version.
const ManifestVersion = 1

// PageAssertions is one documentation page's extraction result. ContentHash
// is a pure function of the page's current text; when two extraction runs
// observe the same hash for the same Source, the prior assertion list is
// reused unchanged. That contract keeps assertion ids stable across runs.
type PageAssertions struct {
	Source      string      `json:"source"`
	ContentHash string      `json:"contentHash"`
	Assertions  []Assertion `json:"assertions"`
}

// AssertionManifest is the durable root: all assertions grouped by source
// page. It is mutated page-by-page during extraction, persisted in full, and
// read-only during a run.
type AssertionManifest struct {
	Version     int              `json:"version"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Pages       []PageAssertions `json:"pages"`
}

// Page returns the entry for source, or nil.
func (m *AssertionManifest) Page(source string) *PageAssertions {
	if m == nil {
		return nil
	}
	for i := range m.Pages {
		if m.Pages[i].Source == source {
			return &m.Pages[i]
		}
	}
	return nil
}

// TotalAssertions counts assertions across all pages.
func (m *AssertionManifest) TotalAssertions() int {
	if m == nil {
		return 0
	}
	n := 0
	for _, p := range m.Pages {
		n += len(p.Assertions)
	}
	return n
}
