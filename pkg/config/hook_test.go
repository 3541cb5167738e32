package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codysoyland/precommit/pkg/hook"
)

func TestLoadManifest(t *testing.T) {
	m, err := LoadManifest(filepath.Join("testdata", "manifest.yaml"))
	require.NoError(t, err)
	require.Len(t, m, 2)

	black, ok := m.Lookup("black")
	require.True(t, ok)
	assert.Equal(t, "python", black.Language)
	assert.True(t, black.RequireSerial)

	_, ok = m.Lookup("flake8")
	assert.False(t, ok)
}

func TestManifestValidate(t *testing.T) {
	m, err := ParseManifest([]byte("- id: black\n  entry: black\n"))
	require.NoError(t, err)

	err = m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[0]: name is required")
	assert.Contains(t, err.Error(), "[0]: language is required")

	empty, err := ParseManifest([]byte("[]"))
	require.NoError(t, err)
	assert.ErrorIs(t, empty.Validate(), ErrInvalidConfig)

	_, err = ParseManifest([]byte("id: black"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestMerge(t *testing.T) {
	m, err := LoadManifest(filepath.Join("testdata", "manifest.yaml"))
	require.NoError(t, err)
	cfg, err := Load(filepath.Join("testdata", "screenpy.yaml"))
	require.NoError(t, err)

	manifestHook, _ := m.Lookup("black")
	merged := Merge(manifestHook, cfg.Repos[0].Hooks[0])

	assert.Equal(t, "black", merged.ID)
	assert.Equal(t, "black", merged.Entry)
	assert.Equal(t, "python3.8", merged.LanguageVersion, "config overrides manifest")
	assert.Equal(t, []string{"python"}, merged.Types, "unset keys keep manifest value")
	assert.True(t, merged.RequireSerial)
	assert.True(t, merged.IsSet("language_version"))
	assert.True(t, merged.IsSet("require_serial"))
}

func TestMergeCanDisableFlags(t *testing.T) {
	manifest, err := ParseManifest([]byte("- id: x\n  name: x\n  entry: x\n  language: system\n  pass_filenames: true\n  always_run: true\n"))
	require.NoError(t, err)

	cfg, err := Parse([]byte("repos:\n- repo: https://example.com/x\n  rev: v1\n  hooks:\n  - id: x\n    pass_filenames: false\n    args: [--fix]\n"))
	require.NoError(t, err)

	merged := Merge(manifest[0], cfg.Repos[0].Hooks[0])
	assert.False(t, merged.PassFilenames)
	assert.True(t, merged.AlwaysRun)
	assert.Equal(t, []string{"--fix"}, merged.Args)
}

func TestWithDefaults(t *testing.T) {
	t.Run("bare hook", func(t *testing.T) {
		h := Hook{ID: "flake8", Language: "python"}.WithDefaults(nil)

		assert.Equal(t, "flake8", h.Name)
		assert.Equal(t, "^$", h.Exclude)
		assert.Equal(t, []string{"file"}, h.Types)
		assert.True(t, h.PassFilenames)
		assert.Equal(t, "default", h.LanguageVersion)
		assert.Len(t, h.Stages, len(hook.AllStages))
		assert.True(t, h.RunsAt(hook.StagePreCommit))
		assert.True(t, h.RunsAt(hook.StageManual))
	})

	t.Run("config defaults", func(t *testing.T) {
		cfg := &Config{
			DefaultStages:          []string{"commit", "push"},
			DefaultLanguageVersion: map[string]string{"python": "python3.8"},
		}
		h := Hook{ID: "mypy", Language: "python"}.WithDefaults(cfg)

		assert.Equal(t, "python3.8", h.LanguageVersion)
		assert.True(t, h.RunsAt(hook.StagePreCommit))
		assert.True(t, h.RunsAt(hook.StagePrePush))
		assert.False(t, h.RunsAt(hook.StageManual))
	})

	t.Run("explicit values are kept", func(t *testing.T) {
		cfg, err := Parse([]byte("repos:\n- repo: local\n  hooks:\n  - id: pylint\n    name: PyLint\n    entry: pylint\n    language: system\n    types: [python]\n    pass_filenames: false\n    stages: [manual]\n"))
		require.NoError(t, err)

		h := cfg.Repos[0].Hooks[0].WithDefaults(cfg)
		assert.Equal(t, "PyLint", h.Name)
		assert.Equal(t, []string{"python"}, h.Types)
		assert.False(t, h.PassFilenames)
		assert.Equal(t, []string{"manual"}, h.Stages)
		assert.False(t, h.RunsAt(hook.StagePreCommit))
	})
}

func TestHookMatches(t *testing.T) {
	h := Hook{ID: "black", Alias: "fmt"}
	assert.True(t, h.Matches("black"))
	assert.True(t, h.Matches("fmt"))
	assert.False(t, h.Matches("isort"))
	assert.False(t, Hook{ID: "black"}.Matches(""))
}
