package hook

import (
	"fmt"
	"time"
)

// Stage is the git hook (or manual invocation) a hook runs for
type Stage string

const (
	StagePreCommit        Stage = "pre-commit"
	StagePreMergeCommit   Stage = "pre-merge-commit"
	StagePrePush          Stage = "pre-push"
	StagePrepareCommitMsg Stage = "prepare-commit-msg"
	StageCommitMsg        Stage = "commit-msg"
	StagePostCheckout     Stage = "post-checkout"
	StagePostCommit       Stage = "post-commit"
	StagePostMerge        Stage = "post-merge"
	StagePostRewrite      Stage = "post-rewrite"
	StageManual           Stage = "manual"
)

// AllStages lists every stage in the order git documents them
var AllStages = []Stage{
	StagePreCommit,
	StagePreMergeCommit,
	StagePrePush,
	StagePrepareCommitMsg,
	StageCommitMsg,
	StagePostCheckout,
	StagePostCommit,
	StagePostMerge,
	StagePostRewrite,
	StageManual,
}

// legacyStages maps the old short stage names onto their git hook names
var legacyStages = map[string]Stage{
	"commit":       StagePreCommit,
	"merge-commit": StagePreMergeCommit,
	"push":         StagePrePush,
}

// ParseStage resolves a stage name, accepting the legacy short aliases
func ParseStage(s string) (Stage, error) {
	if st, ok := legacyStages[s]; ok {
		return st, nil
	}
	for _, st := range AllStages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Status is the outcome of a single hook
type Status string

const (
	StatusPassed  Status = "Passed"
	StatusFailed  Status = "Failed"
	StatusSkipped Status = "Skipped"
)

// Request carries everything a hook needs for one run
type Request struct {
	Stage Stage    `json:"stage"`
	Files []string `json:"files"` // Relative to Dir
	Dir   string   `json:"dir"`   // Repository root; hooks run from here
}

// Response is what a hook reports back after running
type Response struct {
	ExitCode int    `json:"exit_code"`
	Output   []byte `json:"output,omitempty"` // Combined stdout and stderr
}

// Result is the reported outcome of a hook within a run
type Result struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Reason   string        `json:"reason,omitempty"` // Why a hook was skipped
	ExitCode int           `json:"exit_code,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Output   []byte        `json:"output,omitempty"`
	Modified bool          `json:"modified,omitempty"` // Files changed on disk while running
	Verbose  bool          `json:"verbose,omitempty"`  // Show output even when passing
}

// Failed reports whether the result counts against the run
func (r *Result) Failed() bool {
	return r.Status == StatusFailed
}
