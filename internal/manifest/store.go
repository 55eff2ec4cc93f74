// Package manifest persists the assertion manifest as a single
// human-diffable JSON document, intended to be checked into version control
// between extraction runs.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/breeze-rmm/docverify/internal/model"
)

// Load deserializes the manifest at path. A missing file returns (nil, nil):
// "no manifest yet" is a normal first-run state, and the caller decides
// whether that is fatal.
func Load(path string) (*model.AssertionManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "manifest: read")
	}

	var m model.AssertionManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "manifest: parse")
	}
	return &m, nil
}

// Save serializes the full manifest, replacing any prior content atomically:
// write to a temp file in the same directory, then rename. A concurrent
// reader sees either the old manifest or the new one, never a partial write.
func Save(m *model.AssertionManifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return eris.Wrap(err, "manifest: marshal")
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "manifest: create temp")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrap(err, "manifest: write temp")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "manifest: close temp")
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "manifest: rename")
	}

	zap.L().Info("manifest saved",
		zap.String("path", path),
		zap.Int("pages", len(m.Pages)),
		zap.Int("assertions", m.TotalAssertions()),
	)
	return nil
}
