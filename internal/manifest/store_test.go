package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze-rmm/docverify/internal/model"
)

func sampleManifest() *model.AssertionManifest {
	return &model.AssertionManifest{
		Version:     model.ManifestVersion,
		GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Pages: []model.PageAssertions{
			{
				Source:      "agents/intro.mdx",
				ContentHash: "sha256:abc",
				Assertions: []model.Assertion{
					{
						ID:       "agents-001",
						Claim:    "Agents appear in the devices list after enrollment",
						Severity: model.SeverityCritical,
						Kind:     model.KindAPI,
						Test: model.APITest{
							Method: "GET",
							Path:   "/api/v1/agents",
							Expect: model.APIExpect{Status: 200},
						},
					},
				},
			},
		},
	}
}

func TestLoad_AbsentIsNotError(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "assertions.json"))
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assertions.json")

	require.NoError(t, Save(sampleManifest(), path))

	got, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ManifestVersion, got.Version)
	require.Len(t, got.Pages, 1)
	assert.Equal(t, "sha256:abc", got.Pages[0].ContentHash)
	require.Len(t, got.Pages[0].Assertions, 1)

	api, ok := got.Pages[0].Assertions[0].Test.(model.APITest)
	require.True(t, ok)
	assert.Equal(t, "/api/v1/agents", api.Path)
}

func TestSave_OverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assertions.json")

	require.NoError(t, Save(sampleManifest(), path))

	second := sampleManifest()
	second.Pages[0].ContentHash = "sha256:def"
	require.NoError(t, Save(second, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sha256:def", got.Pages[0].ContentHash)

	// No temp file debris left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "assertions.json", entries[0].Name())
}

func TestLoad_CorruptFileIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assertions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
