package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClone writes a manifest instead of talking to git and counts calls
type fakeClone struct {
	calls int
	fail  bool
}

func (f *fakeClone) clone(_ context.Context, url, rev, dest string) error {
	f.calls++
	if f.fail {
		return errors.New("remote hung up")
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dest, ".pre-commit-hooks.yaml"), []byte("# "+url+"@"+rev+"\n"), 0o644)
}

func TestRepoClonesOnce(t *testing.T) {
	ctx := context.Background()
	fc := &fakeClone{}
	s, err := Open(t.TempDir(), WithCloneFunc(fc.clone))
	require.NoError(t, err)
	defer s.Close()

	path, err := s.Repo(ctx, "https://github.com/psf/black", "19.10b0")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "repo"))
	assert.FileExists(t, filepath.Join(path, ".pre-commit-hooks.yaml"))

	again, err := s.Repo(ctx, "https://github.com/psf/black", "19.10b0")
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, 1, fc.calls)

	other, err := s.Repo(ctx, "https://github.com/psf/black", "22.3.0")
	require.NoError(t, err)
	assert.NotEqual(t, path, other)
	assert.Equal(t, 2, fc.calls)

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Repo: "https://github.com/psf/black", Ref: "19.10b0", Path: path}, entries[0])
}

func TestRepoRecloneWhenMissing(t *testing.T) {
	ctx := context.Background()
	fc := &fakeClone{}
	s, err := Open(t.TempDir(), WithCloneFunc(fc.clone))
	require.NoError(t, err)
	defer s.Close()

	path, err := s.Repo(ctx, "https://gitlab.com/pycqa/flake8", "3.7.9")
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(path))

	again, err := s.Repo(ctx, "https://gitlab.com/pycqa/flake8", "3.7.9")
	require.NoError(t, err)
	assert.DirExists(t, again)
	assert.Equal(t, 2, fc.calls)

	entries, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRepoCloneFailure(t *testing.T) {
	s, err := Open(t.TempDir(), WithCloneFunc((&fakeClone{fail: true}).clone))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Repo(context.Background(), "https://github.com/pre-commit/mirrors-mypy", "v0.761")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to clone https://github.com/pre-commit/mirrors-mypy@v0.761")

	entries, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fc := &fakeClone{}

	s, err := Open(dir, WithCloneFunc(fc.clone))
	require.NoError(t, err)
	path, err := s.Repo(ctx, "https://github.com/psf/black", "19.10b0")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dir, WithCloneFunc(fc.clone))
	require.NoError(t, err)
	defer s.Close()
	again, err := s.Repo(ctx, "https://github.com/psf/black", "19.10b0")
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, 1, fc.calls)
}

func TestClean(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	s, err := Open(dir, WithCloneFunc((&fakeClone{}).clone))
	require.NoError(t, err)

	_, err = s.Repo(context.Background(), "https://github.com/psf/black", "19.10b0")
	require.NoError(t, err)

	require.NoError(t, s.Clean())
	assert.NoDirExists(t, dir)
}

func TestDefaultDir(t *testing.T) {
	t.Run("explicit home", func(t *testing.T) {
		t.Setenv(HomeEnv, "/tmp/precommit-home")
		dir, err := DefaultDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/precommit-home", dir)
	})

	t.Run("xdg cache", func(t *testing.T) {
		t.Setenv(HomeEnv, "")
		t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
		dir, err := DefaultDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/xdg/precommit", dir)
	})

	t.Run("home fallback", func(t *testing.T) {
		t.Setenv(HomeEnv, "")
		t.Setenv("XDG_CACHE_HOME", "")
		t.Setenv("HOME", "/tmp/home")
		dir, err := DefaultDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/home/.cache/precommit", dir)
	})
}
