// Package git runs the git binary for the queries the hook runner needs:
// locating the repository, listing files and fetching hook repositories.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ZeroSHA is what git passes for a ref that does not exist yet
const ZeroSHA = "0000000000000000000000000000000000000000"

// Repo is a git working tree
type Repo struct {
	Dir string
}

// Open returns the repository containing dir
func Open(ctx context.Context, dir string) (*Repo, error) {
	out, err := run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}
	return &Repo{Dir: strings.TrimSpace(string(out))}, nil
}

// HooksDir returns the directory git runs hooks from, honoring core.hooksPath
func (r *Repo) HooksDir(ctx context.Context) (string, error) {
	out, err := run(ctx, r.Dir, "rev-parse", "--git-path", "hooks")
	if err != nil {
		return "", err
	}
	dir := strings.TrimSpace(string(out))
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.Dir, dir)
	}
	return dir, nil
}

// StagedFiles returns the paths added, copied, modified or renamed in the index
func (r *Repo) StagedFiles(ctx context.Context) ([]string, error) {
	out, err := run(ctx, r.Dir, "diff", "--staged", "--name-only", "--no-ext-diff", "-z", "--diff-filter=ACMRTUXB")
	if err != nil {
		return nil, err
	}
	return splitZ(out), nil
}

// AllFiles returns every tracked path
func (r *Repo) AllFiles(ctx context.Context) ([]string, error) {
	out, err := run(ctx, r.Dir, "ls-files", "-z")
	if err != nil {
		return nil, err
	}
	return splitZ(out), nil
}

// ChangedFiles returns the paths changed between from and to
func (r *Repo) ChangedFiles(ctx context.Context, from, to string) ([]string, error) {
	out, err := run(ctx, r.Dir, "diff", "--name-only", "--no-ext-diff", "-z", "--diff-filter=ACMRTUXB", from+"..."+to)
	if err != nil {
		return nil, err
	}
	return splitZ(out), nil
}

// FirstUnpushed returns the oldest commit reachable from sha that no ref of
// remote contains, or "" when every commit is already on the remote
func (r *Repo) FirstUnpushed(ctx context.Context, sha, remote string) (string, error) {
	out, err := run(ctx, r.Dir, "rev-list", sha, "--topo-order", "--reverse", "--not", "--remotes="+remote)
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(first), nil
}

// IsRoot reports whether sha is a commit without parents
func (r *Repo) IsRoot(ctx context.Context, sha string) (bool, error) {
	out, err := run(ctx, r.Dir, "rev-list", "--max-parents=0", sha)
	if err != nil {
		return false, err
	}
	for _, line := range strings.Fields(string(out)) {
		if line == sha {
			return true, nil
		}
	}
	return false, nil
}

// Diff returns the unstaged working tree diff, used to detect files a hook
// rewrote
func (r *Repo) Diff(ctx context.Context) ([]byte, error) {
	return run(ctx, r.Dir, "diff", "--no-ext-diff", "--no-color", "--ignore-submodules")
}

// Clone fetches rev of url into dest with a shallow fetch, falling back to
// a full fetch for revs that cannot be fetched directly
func Clone(ctx context.Context, url, rev, dest string) error {
	if _, err := run(ctx, "", "init", "--quiet", dest); err != nil {
		return err
	}
	if _, err := run(ctx, dest, "remote", "add", "origin", url); err != nil {
		return err
	}
	if _, err := run(ctx, dest, "fetch", "--quiet", "--depth=1", "origin", rev); err == nil {
		_, err = run(ctx, dest, "checkout", "--quiet", "FETCH_HEAD")
		return err
	}
	if _, err := run(ctx, dest, "fetch", "--quiet", "--tags", "origin"); err != nil {
		return err
	}
	_, err := run(ctx, dest, "checkout", "--quiet", rev)
	return err
}

// Available reports whether a git binary is on PATH
func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

func run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("git %s: %s", args[0], msg)
	}
	return stdout.Bytes(), nil
}

func splitZ(out []byte) []string {
	var paths []string
	for _, p := range bytes.Split(out, []byte{0}) {
		if len(p) > 0 {
			paths = append(paths, string(p))
		}
	}
	return paths
}
