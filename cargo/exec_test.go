package cargo_test

import (
	"context"
	"io"
	"sync"

	"github.com/jmgilman/go/exec"
)

var _ exec.Executor = (*fakeExecutor)(nil)

// call records one command run through a fakeExecutor.
type call struct {
	Dir  string
	Env  map[string]string
	Args []string
}

// fakeExecutor answers commands with RunFn and records every call.
type fakeExecutor struct {
	RunFn func(c call) (*exec.Result, error)

	mu    *sync.Mutex
	calls *[]call
	cur   call
}

func newFakeExecutor(run func(c call) (*exec.Result, error)) *fakeExecutor {
	return &fakeExecutor{RunFn: run, mu: &sync.Mutex{}, calls: &[]call{}}
}

func (f *fakeExecutor) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), *f.calls...)
}

func (f *fakeExecutor) WithEnv(env map[string]string) exec.Executor {
	f.cur.Env = env
	return f
}

func (f *fakeExecutor) WithDir(dir string) exec.Executor {
	f.cur.Dir = dir
	return f
}

func (f *fakeExecutor) WithContext(context.Context) exec.Executor { return f }
func (f *fakeExecutor) WithDisableColors() exec.Executor          { return f }
func (f *fakeExecutor) WithTimeout(string) exec.Executor          { return f }
func (f *fakeExecutor) WithInheritEnv() exec.Executor             { return f }
func (f *fakeExecutor) WithStdout(io.Writer) exec.Executor        { return f }
func (f *fakeExecutor) WithStderr(io.Writer) exec.Executor        { return f }
func (f *fakeExecutor) WithPassthrough() exec.Executor            { return f }

func (f *fakeExecutor) Run(args ...string) (*exec.Result, error) {
	c := f.cur
	c.Args = args
	f.mu.Lock()
	*f.calls = append(*f.calls, c)
	f.mu.Unlock()
	return f.RunFn(c)
}

func (f *fakeExecutor) Clone() exec.Executor {
	return &fakeExecutor{RunFn: f.RunFn, mu: f.mu, calls: f.calls}
}

// failed builds the error the executor returns for a non-zero exit.
func failed(args []string, stderr string) (*exec.Result, error) {
	res := &exec.Result{Stderr: stderr, Combined: stderr, ExitCode: 101}
	return res, &exec.ExecError{Command: args, ExitCode: 101, Stderr: stderr}
}
