// Package verify launches a packaged application and confirms it started
// by watching a well-known loopback port become occupied.
//
// A verification races three event sources in a single select: a poll
// ticker driving the port probe, the child's exit notification and an
// overall deadline. Whichever fires first decides the outcome; the others
// are disarmed and the child is terminated before Verify returns, on every
// path including cancellation of the caller's context.
package verify

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/deixis/appverify/internal/runner"
)

// Defaults shared with the application under test.
const (
	DefaultPort         = 9138
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = time.Second
	DefaultGrace        = 5 * time.Second
)

// Outcome is the terminal state of a verification.
type Outcome string

const (
	// Started means the port became occupied before the deadline.
	Started Outcome = "started"
	// TimedOut means the deadline elapsed with the port still free.
	TimedOut Outcome = "timed_out"
	// ExitedEarly means the process ended, or never launched, before the
	// port was seen occupied.
	ExitedEarly Outcome = "exited_early"
	// NotFound means the executable path does not exist.
	NotFound Outcome = "not_found"
	// Interrupted means the caller cancelled the verification.
	Interrupted Outcome = "interrupted"
)

// Result is produced exactly once per Verify call.
type Result struct {
	Outcome  Outcome
	RunID    string        // process launch id; empty if nothing was launched
	Path     string        // executable verified
	Port     int           // port probed
	ExitCode *int          // set when the process exited with a known code
	Signal   string        // terminating signal on early exit
	Elapsed  time.Duration // from launch to outcome
	Err      error         // launch or lookup failure
}

// OK reports whether the application started.
func (r *Result) OK() bool { return r.Outcome == Started }

// Message is a one-line human readable summary.
func (r *Result) Message() string {
	switch r.Outcome {
	case Started:
		return fmt.Sprintf("port %d is in use after %s (app is running)", r.Port, r.Elapsed.Round(time.Millisecond))
	case TimedOut:
		return fmt.Sprintf("timeout: port %d did not become available within %s", r.Port, r.Elapsed.Round(time.Second))
	case ExitedEarly:
		switch {
		case r.Err != nil:
			return fmt.Sprintf("launch failed: %v", r.Err)
		case r.Signal != "":
			return fmt.Sprintf("app exited early on signal %s", r.Signal)
		case r.ExitCode != nil:
			return fmt.Sprintf("app exited early with code %d", *r.ExitCode)
		}
		return "app exited early"
	case NotFound:
		return fmt.Sprintf("executable not found: %s", r.Path)
	case Interrupted:
		return "verification interrupted"
	}
	return string(r.Outcome)
}

// Verifier launches an executable and waits for it to occupy Port.
// Zero fields take the package defaults.
type Verifier struct {
	Port         int
	Timeout      time.Duration
	PollInterval time.Duration
	Grace        time.Duration

	// Diagnostics receives the child's stderr, minus Suppress matches.
	Diagnostics io.Writer
	Suppress    []string

	// Probe overrides the loopback port probe.
	Probe func(port int) (bool, error)

	Log *log.Logger // optional
}

// Verify launches path with args and reports whether it started. The
// launched process never outlives the call.
func (v *Verifier) Verify(ctx context.Context, path string, args ...string) *Result {
	port := v.port()
	res := &Result{Path: path, Port: port}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		res.Outcome = NotFound
		res.Err = err
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Outcome = Interrupted
		res.Err = err
		return res
	}

	stderr := &runner.LineFilter{W: v.Diagnostics, Prefix: "stderr: ", Suppress: v.Suppress}
	defer stderr.Flush()

	// Launching.
	start := time.Now()
	proc, err := runner.Start(path, runner.Options{Args: args, Stderr: stderr})
	if err != nil {
		res.Outcome = ExitedEarly
		res.Err = err
		return res
	}
	res.RunID = proc.ID
	v.logf("launched %s (pid %d)", path, proc.Pid())

	// Deferred in this order so that the timers are disarmed first and the
	// process is reaped before stderr is flushed.
	defer func() {
		if err := proc.Terminate(v.grace()); err != nil {
			v.logf("cleanup: %v", err)
		}
	}()
	poll := time.NewTicker(v.interval())
	defer poll.Stop()
	deadline := time.NewTimer(v.timeout())
	defer deadline.Stop()

	// Polling.
	probe := v.Probe
	if probe == nil {
		probe = ProbePort
	}
	for {
		select {
		case <-poll.C:
			inUse, err := probe(port)
			if err != nil {
				v.logf("probe port %d: %v", port, err)
			}
			if inUse {
				res.Outcome = Started
				res.Elapsed = time.Since(start)
				return res
			}

		case <-proc.Done():
			st := proc.Status()
			res.Outcome = ExitedEarly
			res.Elapsed = time.Since(start)
			res.Signal = st.Signal
			if st.Code >= 0 {
				code := st.Code
				res.ExitCode = &code
			}
			return res

		case <-deadline.C:
			res.Outcome = TimedOut
			res.Elapsed = time.Since(start)
			return res

		case <-ctx.Done():
			res.Outcome = Interrupted
			res.Elapsed = time.Since(start)
			res.Err = ctx.Err()
			return res
		}
	}
}

func (v *Verifier) port() int {
	if v.Port > 0 {
		return v.Port
	}
	return DefaultPort
}

func (v *Verifier) timeout() time.Duration {
	if v.Timeout > 0 {
		return v.Timeout
	}
	return DefaultTimeout
}

func (v *Verifier) interval() time.Duration {
	if v.PollInterval > 0 {
		return v.PollInterval
	}
	return DefaultPollInterval
}

func (v *Verifier) grace() time.Duration {
	if v.Grace > 0 {
		return v.Grace
	}
	return DefaultGrace
}

func (v *Verifier) logf(format string, args ...any) {
	if v.Log != nil {
		v.Log.Printf(format, args...)
	}
}
