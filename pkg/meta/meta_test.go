package meta

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codysoyland/precommit/pkg/config"
	"github.com/codysoyland/precommit/pkg/filter"
	"github.com/codysoyland/precommit/pkg/hook"
)

func newEnv(t *testing.T, cfg *config.Config, hooks ...config.Hook) Env {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		".pre-commit-config.yaml":        "repos: []\n",
		"screenpy/pacing.py":             "x = 1\n",
		"screenpy/narration/narrator.py": "y = 2\n",
		"docs/index.rst":                 "screenpy\n",
	}
	var paths []string
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		paths = append(paths, name)
	}

	for i := range hooks {
		hooks[i] = hooks[i].WithDefaults(cfg)
	}
	return Env{Config: cfg, Hooks: hooks, Classifier: filter.NewClassifier(root, paths)}
}

func run(t *testing.T, id string, env Env, files ...string) *hook.Response {
	t.Helper()
	def, ok := Definition(id)
	require.True(t, ok)
	h := New(def.WithDefaults(env.Config), env)
	assert.Equal(t, id, h.ID())
	assert.NotEmpty(t, h.Name())

	resp, err := h.Run(context.Background(), &hook.Request{Files: files})
	require.NoError(t, err)
	return resp
}

func TestDefinitions(t *testing.T) {
	for _, id := range config.MetaHooks {
		def, ok := Definition(id)
		require.True(t, ok, id)
		assert.Equal(t, id, def.ID)
	}
	_, ok := Definition("check-everything")
	assert.False(t, ok)

	def, _ := Definition(CheckHooksApply)
	p := filter.MustCompile(def.Files)
	assert.True(t, p.Match(".pre-commit-config.yaml"))
	assert.False(t, p.Match("sub/.pre-commit-config.yaml"))
}

func TestIdentity(t *testing.T) {
	env := newEnv(t, &config.Config{Exclude: "^$"})
	resp := run(t, Identity, env, "screenpy/pacing.py", "docs/index.rst")
	assert.Equal(t, 0, resp.ExitCode)
	assert.Equal(t, "screenpy/pacing.py\ndocs/index.rst\n", string(resp.Output))

	def, _ := Definition(Identity)
	assert.True(t, def.Verbose)
}

func TestCheckHooksApply(t *testing.T) {
	cfg := &config.Config{Files: "^screenpy/"}
	env := newEnv(t, cfg,
		config.Hook{ID: "pylint", Types: []string{"python"}},
		config.Hook{ID: "rstcheck", Types: []string{"rst"}},
		config.Hook{ID: "always", Files: "^nothing$", AlwaysRun: true},
		config.Hook{ID: "no-rej-files", Files: `\.rej$`, Language: "fail"},
	)

	resp := run(t, CheckHooksApply, env, ".pre-commit-config.yaml")
	assert.Equal(t, 1, resp.ExitCode)
	assert.Equal(t, "rstcheck does not apply to this repository\n", string(resp.Output))
}

func TestCheckHooksApplyPasses(t *testing.T) {
	env := newEnv(t, &config.Config{}, config.Hook{ID: "pylint", Types: []string{"python"}})
	resp := run(t, CheckHooksApply, env)
	assert.Equal(t, 0, resp.ExitCode)
	assert.Empty(t, resp.Output)
}

func TestCheckUselessExcludes(t *testing.T) {
	t.Run("global exclude matches nothing", func(t *testing.T) {
		env := newEnv(t, &config.Config{Exclude: "^build/"})
		resp := run(t, CheckUselessExcludes, env)
		assert.Equal(t, 1, resp.ExitCode)
		assert.Equal(t, "The global exclude pattern \"^build/\" does not match any files\n", string(resp.Output))
	})

	t.Run("hook exclude outside its files", func(t *testing.T) {
		env := newEnv(t, &config.Config{Exclude: "^docs/"},
			config.Hook{ID: "pylint", Types: []string{"python"}, Exclude: "narration/"},
			config.Hook{ID: "mypy", Types: []string{"python"}, Exclude: "index"},
		)
		// WithDefaults resets exclude unless it was decoded, so set it afterwards
		env.Hooks[0].Exclude = "narration/"
		env.Hooks[1].Exclude = "index"

		resp := run(t, CheckUselessExcludes, env)
		assert.Equal(t, 1, resp.ExitCode)
		assert.Equal(t, "The exclude pattern \"index\" for mypy does not match any files\n", string(resp.Output))
	})

	t.Run("useful excludes pass", func(t *testing.T) {
		env := newEnv(t, &config.Config{Exclude: "^docs/"})
		resp := run(t, CheckUselessExcludes, env)
		assert.Equal(t, 0, resp.ExitCode)
	})
}

func TestSelect(t *testing.T) {
	env := newEnv(t, &config.Config{Files: "^screenpy/", Exclude: "narration"}, config.Hook{ID: "pylint", Types: []string{"python"}})
	files, err := Select(env, env.Hooks[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"screenpy/pacing.py"}, files)
}

func TestUnknownMetaHook(t *testing.T) {
	env := newEnv(t, &config.Config{Exclude: "^$"})
	h := New(config.Hook{ID: "bogus"}, env)
	_, err := h.Run(context.Background(), &hook.Request{})
	assert.Error(t, err)
}
