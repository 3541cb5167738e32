// Package hook defines the runtime contract shared by everything the runner
// can execute: command hooks, pygrep hooks and the built-in meta hooks.
package hook

import (
	"context"
)

// Hook is a single check applied to a set of files
type Hook interface {
	// ID returns the identifier used in the config and in SKIP
	ID() string

	// Name returns the human-readable name shown in the report
	Name() string

	// Run applies the hook to the files carried by req
	Run(ctx context.Context, req *Request) (*Response, error)
}
