package runner

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ExitStatus describes how a process ended.
type ExitStatus struct {
	Code   int    // exit code; -1 when killed by a signal or unknown
	Signal string // terminating signal, if any
	Err    error  // wait error other than a non-zero exit
}

func (s ExitStatus) String() string {
	switch {
	case s.Signal != "":
		return "signal " + s.Signal
	case s.Err != nil:
		return s.Err.Error()
	}
	return fmt.Sprintf("exit code %d", s.Code)
}

func exitStatus(ps *os.ProcessState, err error) ExitStatus {
	if ps == nil {
		return ExitStatus{Code: -1, Err: err}
	}
	s := ExitStatus{Code: ps.ExitCode(), Signal: exitSignal(ps)}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) && !errors.Is(err, exec.ErrWaitDelay) {
		s.Err = err
	}
	return s
}
