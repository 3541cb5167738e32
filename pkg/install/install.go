// Package install writes and removes the git hook scripts that invoke the
// hook runner.
package install

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codysoyland/precommit/pkg/hook"
)

// marker identifies scripts written by Install
const marker = "# File generated by precommit install"

// ErrNotManaged is returned when a hook script exists that Install did not write
var ErrNotManaged = errors.New("hook script is not managed by precommit")

// Options describe the hook script to write
type Options struct {
	HooksDir   string
	HookType   hook.Stage
	ConfigPath string
	// Command is the executable and leading arguments the script runs,
	// e.g. ["/usr/local/bin/precommit"]
	Command []string
	// Overwrite replaces an existing unmanaged script instead of keeping it
	// as <hook>.legacy
	Overwrite bool
}

// Install writes the hook script. An existing unmanaged script is moved to
// <hook>.legacy and still runs first, unless Overwrite is set.
func Install(opts Options) (string, error) {
	if len(opts.Command) == 0 {
		return "", fmt.Errorf("command cannot be empty")
	}
	if opts.HookType == hook.StageManual {
		return "", fmt.Errorf("cannot install a hook for stage %q", opts.HookType)
	}
	if _, err := hook.ParseStage(string(opts.HookType)); err != nil {
		return "", err
	}
	if err := os.MkdirAll(opts.HooksDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create hooks directory: %w", err)
	}

	path := filepath.Join(opts.HooksDir, string(opts.HookType))
	legacy := path + ".legacy"

	if managed, exists, err := isManaged(path); err != nil {
		return "", err
	} else if exists && !managed {
		if opts.Overwrite {
			if err := os.Remove(path); err != nil {
				return "", fmt.Errorf("failed to remove existing hook: %w", err)
			}
		} else if err := os.Rename(path, legacy); err != nil {
			return "", fmt.Errorf("failed to keep existing hook as %s: %w", legacy, err)
		}
	}
	if opts.Overwrite {
		if err := os.Remove(legacy); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to remove legacy hook: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(script(opts)), 0o600); err != nil {
		return "", err
	}
	// Make hook executable
	if err := os.Chmod(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Uninstall removes a managed hook script and restores a legacy one
func Uninstall(hooksDir string, hookType hook.Stage) error {
	path := filepath.Join(hooksDir, string(hookType))
	managed, exists, err := isManaged(path)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if !managed {
		return fmt.Errorf("%s: %w", path, ErrNotManaged)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove hook: %w", err)
	}

	legacy := path + ".legacy"
	if _, err := os.Stat(legacy); err == nil {
		if err := os.Rename(legacy, path); err != nil {
			return fmt.Errorf("failed to restore legacy hook: %w", err)
		}
	}
	return nil
}

// IsInstalled reports whether a managed script is installed for hookType
func IsInstalled(hooksDir string, hookType hook.Stage) (bool, error) {
	managed, _, err := isManaged(filepath.Join(hooksDir, string(hookType)))
	return managed, err
}

func isManaged(path string) (managed, exists bool, err error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return bytes.Contains(data, []byte(marker)), true, nil
}

// stdinHooks are the hook types git feeds input on stdin
var stdinHooks = map[hook.Stage]bool{
	hook.StagePrePush:     true,
	hook.StagePostRewrite: true,
}

// script builds the hook script. The legacy hook, if any, runs first and
// its failure aborts the commit; then the runner takes over via exec. For
// hooks that read stdin, the input is saved once and replayed to both.
func script(opts Options) string {
	quoted := make([]string, 0, len(opts.Command)+3)
	for _, part := range opts.Command {
		quoted = append(quoted, shellQuote(part))
	}
	quoted = append(quoted,
		"hook-impl",
		shellQuote("--config="+opts.ConfigPath),
		shellQuote("--hook-type="+string(opts.HookType)),
	)
	cmd := strings.Join(quoted, " ")

	legacy := fmt.Sprintf(`    "$HERE/%s.legacy" "$@" || exit $?`, opts.HookType)
	if stdinHooks[opts.HookType] {
		legacy = fmt.Sprintf(`    STDIN="$(mktemp)"
    trap 'rm -f "$STDIN"' EXIT
    cat > "$STDIN"
    "$HERE/%s.legacy" "$@" < "$STDIN" || exit $?
    %s -- "$@" < "$STDIN"
    exit $?`, opts.HookType, cmd)
	}

	return fmt.Sprintf(`#!/usr/bin/env bash
%s
# precommit hook for %s

HERE="$(cd "$(dirname "$0")" && pwd)"
if [ -x "$HERE/%s.legacy" ]; then
%s
fi

exec %s -- "$@"
`, marker, opts.HookType, opts.HookType, legacy, cmd)
}

// shellQuote returns a shell-safe single-quoted string. Existing single
// quotes are closed, escaped and reopened:
//
//	it's -> 'it'\''s'
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	// Replace every single quote ' with '\''
	// This closes the existing quote, inserts an escaped single quote, and reopens the quote.
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
