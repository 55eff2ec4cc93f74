// Package extract turns documentation pages into structured assertions,
// re-invoking the extraction service only for pages whose content changed.
package extract

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Page is one documentation source file within the fixed scope.
type Page struct {
	// Source identifies the page in the manifest: path relative to the
	// scope directory, forward slashes.
	Source string
	// Path is the absolute (or caller-relative) filesystem path.
	Path string
}

// ListPages enumerates documentation files under the scope directories in
// directory-then-filename order. The order is stable for an unchanged
// filesystem, which is what makes content-hash comparisons meaningful
// across runs.
func ListPages(scopeDirs []string) ([]Page, error) {
	var pages []Page
	for _, dir := range scopeDirs {
		info, err := os.Stat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, eris.Wrap(err, "extract: stat scope dir")
		}
		if !info.IsDir() {
			continue
		}

		// WalkDir visits entries in lexical order per directory, so the
		// enumeration is deterministic.
		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".md" && ext != ".mdx" {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			pages = append(pages, Page{
				Source: filepath.ToSlash(rel),
				Path:   path,
			})
			return nil
		})
		if err != nil {
			return nil, eris.Wrap(err, "extract: walk scope dir")
		}
	}
	return pages, nil
}
