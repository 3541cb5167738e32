package executor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dlclark/regexp2"

	"github.com/codysoyland/precommit/pkg/hook"
)

type pygrepOptions struct {
	ignoreCase bool
	multiline  bool
	negate     bool
}

func parsePygrepArgs(args []string) (pygrepOptions, error) {
	var opts pygrepOptions
	for _, a := range args {
		switch a {
		case "-i", "--ignore-case":
			opts.ignoreCase = true
		case "--multiline":
			opts.multiline = true
		case "--negate":
			opts.negate = true
		default:
			return opts, fmt.Errorf("unknown pygrep argument %q", a)
		}
	}
	return opts, nil
}

// runPygrep searches files for the entry pattern in-process. Matches fail
// the hook; with --negate, files without a match fail it.
func (e *Executor) runPygrep(ctx context.Context, req *hook.Request) (*hook.Response, error) {
	opts, err := parsePygrepArgs(e.def.Args)
	if err != nil {
		return nil, err
	}

	reOpts := regexp2.None
	if opts.ignoreCase {
		reOpts |= regexp2.IgnoreCase
	}
	if opts.multiline {
		reOpts |= regexp2.Multiline
	}
	re, err := regexp2.Compile(e.def.Entry, reOpts)
	if err != nil {
		return nil, fmt.Errorf("invalid pygrep pattern %q: %w", e.def.Entry, err)
	}

	var out bytes.Buffer
	for _, f := range req.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(req.Dir, f))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}

		var matched bool
		if opts.multiline {
			matched, err = grepMultiline(&out, re, f, data, !opts.negate)
		} else {
			matched, err = grepLines(&out, re, f, data, !opts.negate)
		}
		if err != nil {
			return nil, err
		}
		if opts.negate && !matched {
			fmt.Fprintln(&out, f)
		}
	}

	resp := &hook.Response{Output: out.Bytes()}
	if out.Len() > 0 {
		resp.ExitCode = 1
	}
	return resp, nil
}

// grepLines reports matching lines as file:line:text
func grepLines(out *bytes.Buffer, re *regexp2.Regexp, name string, data []byte, report bool) (bool, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	matched := false
	for lineno := 1; scanner.Scan(); lineno++ {
		line := scanner.Text()
		ok, err := re.MatchString(line)
		if err != nil {
			return false, fmt.Errorf("pygrep %s: %w", name, err)
		}
		if !ok {
			continue
		}
		matched = true
		if !report {
			return true, nil
		}
		fmt.Fprintf(out, "%s:%d:%s\n", name, lineno, line)
	}
	return matched, scanner.Err()
}

// grepMultiline matches against the whole file and reports each match from
// the line it starts on
func grepMultiline(out *bytes.Buffer, re *regexp2.Regexp, name string, data []byte, report bool) (bool, error) {
	text := string(data)
	m, err := re.FindStringMatch(text)
	if err != nil {
		return false, fmt.Errorf("pygrep %s: %w", name, err)
	}
	matched := false
	runes := []rune(text)
	for m != nil {
		matched = true
		if !report {
			return true, nil
		}
		lineno := 1 + countNewlines(runes[:m.Index])
		fmt.Fprintf(out, "%s:%d:%s\n", name, lineno, m.String())

		m, err = re.FindNextMatch(m)
		if err != nil {
			return false, fmt.Errorf("pygrep %s: %w", name, err)
		}
	}
	return matched, nil
}

func countNewlines(runes []rune) int {
	n := 0
	for _, r := range runes {
		if r == '\n' {
			n++
		}
	}
	return n
}
