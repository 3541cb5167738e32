package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codysoyland/precommit/pkg/config"
	"github.com/codysoyland/precommit/pkg/git"
	"github.com/codysoyland/precommit/pkg/hook"
	"github.com/codysoyland/precommit/pkg/runner"
	"github.com/codysoyland/precommit/pkg/store"
)

// execute runs the CLI with args and returns stdout and stderr
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// newWorkTree creates a git repository with a staged python file and makes
// it the working directory
func newWorkTree(t *testing.T) string {
	t.Helper()
	if !git.Available() {
		t.Skip("git not available")
	}
	t.Setenv(store.HomeEnv, t.TempDir())
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "--quiet"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	writeFile(t, dir, "screenpy/pacing.py", "def beat():\n    pass\n")
	cmd := exec.Command("git", "add", ".")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))

	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "precommit dev\n", stdout)
}

func TestSampleConfigCommand(t *testing.T) {
	stdout, _, err := execute(t, "sample-config")
	require.NoError(t, err)
	assert.Equal(t, config.SampleConfig, stdout)
}

func TestInvalidColorFlag(t *testing.T) {
	_, _, err := execute(t, "--color", "sometimes", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid color mode")
}

func TestValidateConfigCommand(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join("..", "..", "pkg", "config", "testdata", "screenpy.yaml")
	invalid := filepath.Join(dir, "invalid.yaml")
	writeFile(t, dir, "invalid.yaml", `repos:
-   repo: https://github.com/psf/black
    hooks:
    -   id: black
-   repo: local
    hooks:
    -   name: pylint
        entry: pylint
        language: system
`)

	_, stderr, err := execute(t, "validate-config", valid)
	require.NoError(t, err)
	assert.Empty(t, stderr)

	_, stderr, err = execute(t, "validate-config", valid, invalid)
	require.ErrorIs(t, err, errInvalidFiles)
	assert.Contains(t, stderr, invalid+": repos[0]: rev is required\n")
	assert.Contains(t, stderr, invalid+": repos[1].hooks[0]: id is required\n")
	assert.NotContains(t, stderr, "screenpy.yaml")

	_, stderr, err = execute(t, "validate-config", filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, errInvalidFiles)
	assert.Contains(t, stderr, "missing.yaml")
}

func TestValidateManifestCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", "- id: black\n")

	_, _, err := execute(t, "validate-manifest", filepath.Join("..", "..", "pkg", "config", "testdata", "manifest.yaml"))
	require.NoError(t, err)

	_, stderr, err := execute(t, "validate-manifest", filepath.Join(dir, "bad.yaml"))
	require.ErrorIs(t, err, errInvalidFiles)
	assert.Contains(t, stderr, "[0]")
}

func TestSkipFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected []string
	}{
		{name: "unset", value: "", expected: nil},
		{name: "single", value: "black", expected: []string{"black"}},
		{name: "spaces and empties", value: " black, ,mypy ,", expected: []string{"black", "mypy"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SKIP", tt.value)
			assert.Equal(t, tt.expected, skipFromEnv())
		})
	}
}

func TestHookArgs(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		stage    hook.Stage
		args     []string
		options  int
		ok       bool
		errorMsg string
	}{
		{name: "pre-commit uses staged files", stage: hook.StagePreCommit, ok: true},
		{name: "commit-msg passes the message file", stage: hook.StageCommitMsg, args: []string{".git/COMMIT_EDITMSG"}, options: 1, ok: true},
		{name: "commit-msg without file", stage: hook.StageCommitMsg, errorMsg: "commit message file"},
		{name: "post-checkout diffs the checkout", stage: hook.StagePostCheckout, args: []string{"abc", "def", "1"}, options: 1, ok: true},
		{name: "post-checkout after clone", stage: hook.StagePostCheckout, args: []string{git.ZeroSHA, "def", "1"}, ok: true},
		{name: "pre-push without remote", stage: hook.StagePrePush, errorMsg: "remote name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, ok, err := hookArgs(ctx, tt.stage, tt.args, strings.NewReader(""))
			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Len(t, opts, tt.options)
		})
	}
}

func TestPushRange(t *testing.T) {
	ctx := context.Background()
	local := strings.Repeat("a", 40)
	remote := strings.Repeat("b", 40)

	t.Run("deleted refs are ignored", func(t *testing.T) {
		stdin := strings.NewReader("(delete) " + git.ZeroSHA + " refs/heads/old " + remote + "\n")
		opts, ok, err := pushRange(ctx, nil, "origin", stdin)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, opts)
	})

	t.Run("existing branch diffs against the remote", func(t *testing.T) {
		stdin := strings.NewReader("refs/heads/main " + local + " refs/heads/main " + remote + "\n")
		opts, ok, err := pushRange(ctx, nil, "origin", stdin)
		require.NoError(t, err)
		assert.True(t, ok)
		require.Len(t, opts, 1)

		var cfg runner.Config
		require.NoError(t, opts[0](&cfg))
		assert.Equal(t, remote, cfg.FromRef)
		assert.Equal(t, local, cfg.ToRef)
	})

	t.Run("new branch with only new history checks all files", func(t *testing.T) {
		newWorkTree(t)
		cmd := exec.Command("git", "commit", "--quiet", "-m", "initial")
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
		head, err := exec.Command("git", "rev-parse", "HEAD").Output()
		require.NoError(t, err)

		repo, err := git.Open(ctx, ".")
		require.NoError(t, err)
		stdin := strings.NewReader("refs/heads/main " + strings.TrimSpace(string(head)) + " refs/heads/main " + git.ZeroSHA + "\n")
		opts, ok, err := pushRange(ctx, repo, "origin", stdin)
		require.NoError(t, err)
		assert.True(t, ok)
		require.Len(t, opts, 1)

		var cfg runner.Config
		require.NoError(t, opts[0](&cfg))
		assert.True(t, cfg.AllFiles)
	})
}

func TestRunCommand(t *testing.T) {
	dir := newWorkTree(t)
	writeFile(t, dir, config.ConfigFile, `repos:
-   repo: local
    hooks:
    -   id: check-true
        name: always passes
        entry: "true"
        language: system
        types: [python]
    -   id: no-print
        name: no print statements
        entry: print\(
        language: pygrep
    -   id: forbidden
        name: forbidden files
        entry: do not commit python files
        language: fail
        files: \.py$
`)

	t.Run("failing hook exits with failure", func(t *testing.T) {
		stdout, _, err := execute(t, "--color", "never", "run", "--all-files")
		require.ErrorIs(t, err, runner.ErrHooksFailed)
		assert.Contains(t, stdout, "always passes")
		assert.Contains(t, stdout, "Passed")
		assert.Contains(t, stdout, "- hook id: forbidden")
		assert.Contains(t, stdout, "do not commit python files")
	})

	t.Run("skip env var", func(t *testing.T) {
		t.Setenv("SKIP", "forbidden")
		stdout, _, err := execute(t, "--color", "never", "run", "--files", "screenpy/pacing.py")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Skipped")
	})

	t.Run("single hook", func(t *testing.T) {
		stdout, _, err := execute(t, "--color", "never", "run", "check-true")
		require.NoError(t, err)
		assert.Contains(t, stdout, "always passes")
		assert.NotContains(t, stdout, "forbidden files")
	})

	t.Run("unknown hook", func(t *testing.T) {
		_, _, err := execute(t, "run", "nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no hook with id `nope`")
	})

	t.Run("from-ref needs to-ref", func(t *testing.T) {
		_, _, err := execute(t, "run", "--from-ref", "HEAD")
		require.Error(t, err)
	})
}

func TestRunFromSubdirectory(t *testing.T) {
	dir := newWorkTree(t)
	writeFile(t, dir, config.ConfigFile, `repos:
-   repo: meta
    hooks:
    -   id: identity
-   repo: local
    hooks:
    -   id: check
        name: repository script
        entry: ./scripts/check.sh
        language: system
`)
	writeFile(t, dir, "scripts/check.sh", "#!/bin/sh\nexit 0\n")
	require.NoError(t, os.Chmod(filepath.Join(dir, "scripts", "check.sh"), 0o755))
	t.Chdir(filepath.Join(dir, "screenpy"))

	stdout, _, err := execute(t, "--color", "never", "run", "--files", "pacing.py")
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "screenpy/pacing.py")
	assert.Contains(t, stdout, "repository script")
	assert.NotContains(t, stdout, "not found")
}

func TestRunMissingConfig(t *testing.T) {
	newWorkTree(t)

	_, _, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .pre-commit-config.yaml file was found")

	stdout, _, err := execute(t, "hook-impl", "--hook-type=pre-commit", "--skip-on-missing-config", "--")
	require.NoError(t, err)
	assert.Contains(t, stdout, "config file not found. Skipping")

	t.Setenv(allowNoConfigEnv, "1")
	_, _, err = execute(t, "hook-impl", "--hook-type=pre-commit", "--")
	require.NoError(t, err)
}

func TestInstallCommands(t *testing.T) {
	dir := newWorkTree(t)
	hookPath := filepath.Join(dir, ".git", "hooks", "pre-commit")

	stdout, _, err := execute(t, "install", "-t", "pre-commit", "-t", "commit-msg")
	require.NoError(t, err)
	assert.Contains(t, stdout, "precommit installed at")
	assert.FileExists(t, hookPath)
	assert.FileExists(t, filepath.Join(dir, ".git", "hooks", "commit-msg"))

	data, err := os.ReadFile(hookPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hook-impl '--config=.pre-commit-config.yaml' '--hook-type=pre-commit'")

	_, _, err = execute(t, "install", "-t", "manual")
	require.Error(t, err)

	stdout, _, err = execute(t, "uninstall")
	require.NoError(t, err)
	assert.Equal(t, "pre-commit uninstalled\n", stdout)
	assert.NoFileExists(t, hookPath)
}

func TestCacheCommands(t *testing.T) {
	home := filepath.Join(t.TempDir(), "cache")
	t.Setenv(store.HomeEnv, home)

	stdout, _, err := execute(t, "list-cache")
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.DirExists(t, home)

	stdout, _, err = execute(t, "clean")
	require.NoError(t, err)
	assert.Equal(t, "Cleaned "+home+".\n", stdout)
	assert.NoDirExists(t, home)
}
