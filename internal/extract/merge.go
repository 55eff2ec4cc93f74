package extract

import (
	"strings"

	"github.com/breeze-rmm/docverify/internal/model"
)

// FilterPages returns pages whose Source contains substr. Empty substr
// selects everything.
func FilterPages(pages []Page, substr string) []Page {
	if substr == "" {
		return pages
	}
	var out []Page
	for _, p := range pages {
		if strings.Contains(p.Source, substr) {
			out = append(out, p)
		}
	}
	return out
}

// MergeWithPrior combines a freshly extracted manifest with the prior one.
// Fresh entries win; prior entries for pages outside the extraction scope
// are carried through unchanged, in their prior order, so a filtered extract
// never loses manifest data. The manifest is always persisted in full.
func MergeWithPrior(fresh, prior *model.AssertionManifest) *model.AssertionManifest {
	if prior == nil {
		return fresh
	}
	seen := make(map[string]bool, len(fresh.Pages))
	for _, p := range fresh.Pages {
		seen[p.Source] = true
	}
	for _, p := range prior.Pages {
		if !seen[p.Source] {
			fresh.Pages = append(fresh.Pages, p)
		}
	}
	return fresh
}
