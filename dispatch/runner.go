package dispatch

import (
	"context"
	"os/exec"
)

// Runner starts the executor. Implementations must not involve a shell.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (output []byte, err error)
}

// ExecRunner runs the executor as a child process and collects combined output.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
