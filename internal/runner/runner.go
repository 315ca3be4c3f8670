// Package runner owns the lifecycle of a launched application process:
// start, exit observation and termination of its whole process group.
package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// DefaultWaitDelay bounds how long Wait keeps copying output after the
// process has exited, in case a grandchild still holds the pipe.
const DefaultWaitDelay = 2 * time.Second

// Options configures a launched process.
type Options struct {
	Args      []string
	Dir       string
	Env       []string  // nil inherits the current environment
	Stdout    io.Writer // nil discards
	Stderr    io.Writer // nil discards
	WaitDelay time.Duration
}

// Process is a running child. It is owned by whoever called Start, and
// must be released with Terminate.
type Process struct {
	ID string // unique identifier for this launch

	cmd    *exec.Cmd
	done   chan struct{}
	status ExitStatus
}

// Start launches path in its own process group and begins observing its
// exit.
func Start(path string, opts Options) (*Process, error) {
	cmd := exec.Command(path, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	cmd.WaitDelay = opts.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}
	configureProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", path, err)
	}

	p := &Process{
		ID:   uuid.New().String(),
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go p.wait()
	return p, nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.status = exitStatus(p.cmd.ProcessState, err)
	close(p.done)
}

// Pid returns the operating system process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} { return p.done }

// Running reports whether the process has not exited yet.
func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Status returns the exit status. It is only meaningful after Done is closed.
func (p *Process) Status() ExitStatus {
	<-p.done
	return p.status
}

// Terminate asks the process group to stop, waits up to grace, then kills
// it. It returns once the process has been reaped. Calling it on an exited
// process is a no-op.
func (p *Process) Terminate(grace time.Duration) error {
	if !p.Running() {
		return nil
	}

	var errs []error
	if err := signalTerminate(p.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		errs = append(errs, fmt.Errorf("terminating pid %d: %w", p.Pid(), err))
	}

	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-p.done:
		return errors.Join(errs...)
	case <-t.C:
	}

	if err := signalKill(p.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		errs = append(errs, fmt.Errorf("killing pid %d: %w", p.Pid(), err))
	}
	<-p.done
	return errors.Join(errs...)
}
