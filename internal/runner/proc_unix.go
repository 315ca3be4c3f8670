//go:build !windows

package runner

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalTerminate(cmd *exec.Cmd) error { return signalGroup(cmd, unix.SIGTERM) }

func signalKill(cmd *exec.Cmd) error { return signalGroup(cmd, unix.SIGKILL) }

// signalGroup signals the child's whole process group, falling back to the
// child alone when the group is gone.
func signalGroup(cmd *exec.Cmd, sig unix.Signal) error {
	pid := cmd.Process.Pid
	if pgid, err := unix.Getpgid(pid); err == nil && pgid > 0 {
		// Negative PGID targets the full process group.
		if err := unix.Kill(-pgid, sig); err == nil || err != unix.ESRCH {
			return err
		}
	}
	return cmd.Process.Signal(sig)
}

func exitSignal(ps *os.ProcessState) string {
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}
	return unix.SignalName(ws.Signal())
}
