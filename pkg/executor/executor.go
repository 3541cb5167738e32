// Package executor runs configured hooks: it builds the command line from a
// hook's entry, args and matched files, batches files to stay under the
// platform argument limit, and runs batches in their own process groups.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/codysoyland/precommit/pkg/config"
	"github.com/codysoyland/precommit/pkg/hook"
)

const (
	// DefaultMaxLength bounds the byte length of one command line
	DefaultMaxLength = 1 << 17

	// gracePeriod is how long a process group gets between SIGTERM and SIGKILL
	gracePeriod = 5 * time.Second
)

// Executor runs one hook definition
type Executor struct {
	def       config.Hook
	repoDir   string // checkout of the hook's repository; empty for local hooks
	jobs      int
	maxLength int
	logger    *zap.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithRepoDir sets the checkout the hook was defined in
func WithRepoDir(dir string) Option {
	return func(e *Executor) {
		e.repoDir = dir
	}
}

// WithJobs bounds how many batches run at once
func WithJobs(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.jobs = n
		}
	}
}

// WithMaxLength overrides the command line length limit
func WithMaxLength(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxLength = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// New creates an executor for def, which must already have defaults applied
func New(def config.Hook, opts ...Option) *Executor {
	e := &Executor{
		def:       def,
		jobs:      runtime.NumCPU(),
		maxLength: DefaultMaxLength,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ID returns the hook id
func (e *Executor) ID() string {
	return e.def.ID
}

// Name returns the hook name
func (e *Executor) Name() string {
	return e.def.Name
}

// Definition returns the hook definition being executed
func (e *Executor) Definition() config.Hook {
	return e.def
}

// Run executes the hook against req.Files
func (e *Executor) Run(ctx context.Context, req *hook.Request) (*hook.Response, error) {
	switch e.def.Language {
	case "fail":
		return e.runFail(req), nil
	case "pygrep":
		return e.runPygrep(ctx, req)
	default:
		return e.runCommand(ctx, req)
	}
}

// runFail reports the entry as the failure message, followed by the files
func (e *Executor) runFail(req *hook.Request) *hook.Response {
	var out bytes.Buffer
	out.WriteString(e.def.Entry)
	out.WriteString("\n\n")
	for _, f := range req.Files {
		out.WriteString(f)
		out.WriteString("\n")
	}
	return &hook.Response{ExitCode: 1, Output: out.Bytes()}
}

// command returns the argv prefix for the hook: entry words then args
func (e *Executor) command(dir string) ([]string, error) {
	argv, err := shellwords.Parse(e.def.Entry)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entry %q: %w", e.def.Entry, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("entry is empty")
	}
	if e.def.Language == "script" {
		base := e.repoDir
		if base == "" {
			base = dir
		}
		argv[0] = filepath.Join(base, argv[0])
	}
	return append(argv, e.def.Args...), nil
}

func (e *Executor) runCommand(ctx context.Context, req *hook.Request) (*hook.Response, error) {
	argv, err := e.command(req.Dir)
	if err != nil {
		return nil, err
	}

	// paths in the entry are relative to the repository, not to our cwd
	if !filepath.IsAbs(argv[0]) && strings.ContainsRune(argv[0], '/') {
		argv[0] = filepath.Join(req.Dir, argv[0])
	}
	exe, err := exec.LookPath(argv[0])
	if err != nil {
		msg := fmt.Sprintf("Executable `%s` not found", argv[0])
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return &hook.Response{ExitCode: 1, Output: []byte(msg)}, nil
		}
		return &hook.Response{ExitCode: 1, Output: []byte(msg + ": " + err.Error())}, nil
	}
	argv[0] = exe

	var batches [][]string
	if e.def.PassFilenames {
		jobs := e.jobs
		if e.def.RequireSerial {
			jobs = 1
		}
		batches = partition(argv, req.Files, jobs, e.maxLength)
	} else {
		batches = [][]string{argv}
	}

	e.logger.Debug("Running hook",
		zap.String("id", e.def.ID),
		zap.Strings("command", argv),
		zap.Int("files", len(req.Files)),
		zap.Int("batches", len(batches)))

	codes := make([]int, len(batches))
	outputs := make([][]byte, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	if e.def.RequireSerial {
		g.SetLimit(1)
	} else {
		g.SetLimit(e.jobs)
	}
	for i, batch := range batches {
		g.Go(func() error {
			code, out, err := e.execute(gctx, req.Dir, batch)
			codes[i] = code
			outputs[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := &hook.Response{}
	for i := range batches {
		if codes[i] > resp.ExitCode {
			resp.ExitCode = codes[i]
		}
		resp.Output = append(resp.Output, outputs[i]...)
	}
	return resp, nil
}

// execute runs one command line in its own process group and returns its
// exit code and combined output
func (e *Executor) execute(ctx context.Context, dir string, argv []string) (int, []byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = e.environ(os.Environ())
	cmd.Stdin = nil

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	// Set up process group for proper tree killing
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	cmd.Cancel = func() error {
		return killProcessTree(cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = gracePeriod

	err := cmd.Run()
	if ctx.Err() != nil {
		if cmd.Process != nil {
			_ = killProcessTree(cmd.Process.Pid, syscall.SIGKILL)
		}
		return 1, out.Bytes(), ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), out.Bytes(), nil
		}
		return 1, out.Bytes(), fmt.Errorf("failed to execute %s: %w", argv[0], err)
	}
	return 0, out.Bytes(), nil
}

// environ marks the environment as running under the hook runner and
// prepends the hook repository to PATH so repository-shipped executables
// resolve
func (e *Executor) environ(env []string) []string {
	out := make([]string, 0, len(env)+2)
	found := false
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") && e.repoDir != "" {
			kv = "PATH=" + e.repoDir + string(os.PathListSeparator) + strings.TrimPrefix(kv, "PATH=")
			found = true
		}
		out = append(out, kv)
	}
	if !found && e.repoDir != "" {
		out = append(out, "PATH="+e.repoDir+string(os.PathListSeparator)+"/usr/bin:/bin:/usr/local/bin")
	}
	return append(out, "PRE_COMMIT=1")
}

// killProcessTree signals the whole process group led by pid, falling back
// to the leader alone
func killProcessTree(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(-pid, sig); err != nil {
		if killErr := syscall.Kill(pid, sig); killErr != nil && !errors.Is(killErr, syscall.ESRCH) {
			return fmt.Errorf("failed to signal process %d: %w", pid, killErr)
		}
	}
	return nil
}
