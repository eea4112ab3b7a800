package launcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

//go:generate mockgen -source=runner.go -destination=../../mocks/mocklauncher/runner_mock.gen.go -package mocklauncher

// DefaultSettleTimeout is the time to wait for a started application
// before it is considered launched.
const DefaultSettleTimeout = 2 * time.Second

// maxStderr is the limit of stderr output kept in the Result
const maxStderr = 4096

// Runner starts commands
type Runner interface {
	// Start starts the command without waiting for it to exit.
	Start(ctx context.Context, cmd Command) (Task, error)
}

// Task is a started command
type Task interface {
	// Wait waits for the command to exit, or for the settle window to pass.
	// A command still running after the settle window is reported as Running.
	Wait(ctx context.Context, settle time.Duration) *Result
}

// Result is the outcome of a launch
type Result struct {
	Command  string `json:"command"`
	Started  bool   `json:"started"`
	Running  bool   `json:"running"`
	ExitCode int    `json:"exit_code"`
	Stderr   string `json:"stderr,omitempty"`
	Err      error  `json:"-"`
}

// Launched returns true if the application was started:
// it is still running, or exited with zero code and no error output.
func (r *Result) Launched() bool {
	if !r.Started || r.Err != nil {
		return false
	}
	if r.Running {
		return true
	}
	return r.ExitCode == 0 && r.Stderr == ""
}

// Failure returns nil if the application was launched,
// otherwise an error that matches ErrLaunchFailed.
func (r *Result) Failure() error {
	if r.Launched() {
		return nil
	}

	var detail []string
	if r.Err != nil {
		detail = append(detail, r.Err.Error())
	}
	if r.Started && !r.Running {
		detail = append(detail, fmt.Sprintf("exit code %d", r.ExitCode))
	}
	if r.Stderr != "" {
		detail = append(detail, "stderr: "+r.Stderr)
	}
	return errors.Mark(errors.Newf("failed to launch %s: %s", r.Command, strings.Join(detail, ", ")), ErrLaunchFailed)
}

// ExecRunner starts commands as child processes of the host OS
type ExecRunner struct {
	// Env overrides environment variables (nil = inherit from parent)
	Env []string
}

var removeFile = os.Remove

// NewExecRunner returns Runner based on os/exec
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Start starts the command.
// The process is not bound to ctx, as the application must outlive the call.
func (r *ExecRunner) Start(_ context.Context, c Command) (Task, error) {
	// stderr goes to a file, so the application does not get SIGPIPE
	// when it writes after this process exits
	stderr, err := os.CreateTemp("", "localagent-*.stderr")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create stderr file")
	}

	cmd := exec.Command(c.Name, c.Args...)
	if r.Env != nil {
		cmd.Env = r.Env
	}
	cmd.Stderr = stderr

	err = cmd.Start()
	// the child holds its own descriptor, the file is read through ours.
	// Windows does not allow to remove an open file, then it is removed after Close.
	var stderrPath string
	if removeFile(stderr.Name()) != nil {
		stderrPath = stderr.Name()
	}
	if err != nil {
		_ = stderr.Close()
		if stderrPath != "" {
			_ = removeFile(stderrPath)
		}
		return nil, errors.Wrapf(err, "failed to start %s", c.String())
	}

	t := &execTask{
		command:    c.String(),
		cmd:        cmd,
		stderr:     stderr,
		stderrPath: stderrPath,
		done:       make(chan struct{}),
	}
	go t.reap()
	return t, nil
}

type execTask struct {
	command string
	cmd     *exec.Cmd
	stderr  *os.File
	// stderrPath is set when the file was not removed on Start
	stderrPath string
	done       chan struct{}
	err        error
}

func (t *execTask) reap() {
	t.err = t.cmd.Wait()
	close(t.done)
}

func (t *execTask) Wait(ctx context.Context, settle time.Duration) *Result {
	if settle <= 0 {
		settle = DefaultSettleTimeout
	}
	timer := time.NewTimer(settle)
	defer timer.Stop()

	res := &Result{
		Command: t.command,
		Started: true,
	}

	select {
	case <-t.done:
		res.ExitCode = t.cmd.ProcessState.ExitCode()
		var exitErr *exec.ExitError
		if t.err != nil && !errors.As(t.err, &exitErr) {
			res.Err = t.err
		}
	case <-timer.C:
		res.Running = true
		res.ExitCode = -1
	case <-ctx.Done():
		res.Running = true
		res.ExitCode = -1
		res.Err = ctx.Err()
	}

	res.Stderr = readStderr(t.stderr)
	_ = t.stderr.Close()
	if t.stderrPath != "" {
		_ = removeFile(t.stderrPath)
	}
	return res
}

func readStderr(f *os.File) string {
	buf := make([]byte, maxStderr)
	n, _ := f.ReadAt(buf, 0)
	return strings.TrimSpace(string(buf[:n]))
}
