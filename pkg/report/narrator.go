package report

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/codysoyland/precommit/pkg/hook"
)

// Adapter receives every hook result of a run as it finishes
type Adapter interface {
	Result(res *hook.Result)
}

// Narrator hands each result to all of its adapters in order
type Narrator struct {
	adapters []Adapter
}

// NewNarrator returns a narrator for the given adapters; nil adapters are
// dropped
func NewNarrator(adapters ...Adapter) *Narrator {
	n := &Narrator{}
	for _, a := range adapters {
		if a != nil {
			n.adapters = append(n.adapters, a)
		}
	}
	return n
}

// Result passes res to every adapter
func (n *Narrator) Result(res *hook.Result) {
	for _, a := range n.adapters {
		a.Result(res)
	}
}

// LogAdapter records hook results as structured log entries. Failures are
// logged at info, everything else at debug.
type LogAdapter struct {
	logger *zap.Logger
}

// NewLogAdapter returns an adapter writing to logger
func NewLogAdapter(logger *zap.Logger) *LogAdapter {
	return &LogAdapter{logger: logger}
}

func (l *LogAdapter) Result(res *hook.Result) {
	level := zapcore.DebugLevel
	if res.Failed() {
		level = zapcore.InfoLevel
	}
	fields := []zap.Field{
		zap.String("id", res.ID),
		zap.String("status", string(res.Status)),
		zap.Duration("duration", res.Duration),
	}
	if res.ExitCode != 0 {
		fields = append(fields, zap.Int("exit_code", res.ExitCode))
	}
	if res.Modified {
		fields = append(fields, zap.Bool("modified", true))
	}
	if res.Reason != "" {
		fields = append(fields, zap.String("reason", res.Reason))
	}
	l.logger.Log(level, "Hook finished", fields...)
}
