// Package cargo drives the Rust toolchain: manifest parsing, workspace
// resolution, rustdoc JSON generation, dependency metadata and module
// structure analysis.
package cargo

import (
	"context"
	"errors"
	osexec "os/exec"
	"strings"

	"github.com/fwojciec/cratedoc"
	"github.com/jmgilman/go/exec"
)

// DefaultToolchain is the nightly channel whose rustdoc JSON format the
// converter understands.
const DefaultToolchain = "nightly-2025-06-23"

// Runner runs toolchain commands through an exec.Executor.
type Runner struct {
	exec exec.Executor
}

// NewRunner returns a Runner using e, or a new executor inheriting the
// process environment when e is nil.
func NewRunner(e exec.Executor) *Runner {
	if e == nil {
		e = exec.New(exec.WithInheritEnv(), exec.WithDisableColors())
	}
	return &Runner{exec: e}
}

// run executes args in dir. The base executor is cloned per call because
// local settings are reset by each run.
func (r *Runner) run(ctx context.Context, dir string, env map[string]string, args ...string) (*exec.Result, error) {
	cmd := r.exec.Clone().WithContext(ctx)
	if dir != "" {
		cmd = cmd.WithDir(dir)
	}
	if len(env) > 0 {
		cmd = cmd.WithEnv(env)
	}
	res, err := cmd.Run(args...)
	if res == nil {
		res = &exec.Result{}
	}
	return res, err
}

// isMissingBinary reports whether err means the executable was not found.
func isMissingBinary(err error) bool {
	return errors.Is(err, osexec.ErrNotFound)
}

// stderrOf returns the diagnostic output of a failed command.
func stderrOf(res *exec.Result, err error) string {
	var ee *exec.ExecError
	if errors.As(err, &ee) && ee.Stderr != "" {
		return strings.TrimSpace(ee.Stderr)
	}
	if res != nil {
		return strings.TrimSpace(res.Stderr)
	}
	return ""
}

// contextError returns the context's error when the command was cut short
// by cancellation.
func contextError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// toolchainHint is appended to errors caused by a missing toolchain.
func toolchainHint(channel string) string {
	return "install it with: rustup toolchain install " + channel
}

func missingToolchain(channel string, err error) error {
	return cratedoc.WrapError(cratedoc.ETOOLCHAIN, err, "Rust toolchain %s is not available; %s", channel, toolchainHint(channel))
}
