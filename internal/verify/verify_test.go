package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const helperEnv = "APPVERIFY_TEST_HELPER"

// TestHelperProcess is not a real test. It is re-executed by the tests
// below to stand in for a packaged application.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "no helper mode")
		os.Exit(2)
	}

	switch args[0] {
	case "listen":
		// listen <port> <delay>
		delay, _ := time.ParseDuration(args[2])
		time.Sleep(delay)
		ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", args[1]))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(4)
		}
		defer ln.Close()
		time.Sleep(time.Minute)
	case "exit":
		// exit <code>
		code, _ := strconv.Atoi(args[1])
		fmt.Fprintln(os.Stderr, "(app:1): Gtk-WARNING **: theme parsing error")
		fmt.Fprintln(os.Stderr, "fatal: boom")
		os.Exit(code)
	case "hang":
		// hang [pidfile]
		if len(args) > 1 {
			_ = os.WriteFile(args[1], []byte(strconv.Itoa(os.Getpid())), 0o644)
		}
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

func helper(t *testing.T, mode string, args ...string) (string, []string) {
	t.Helper()
	t.Setenv(helperEnv, "1")
	return os.Args[0], append([]string{"-test.run=^TestHelperProcess$", "--", mode}, args...)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

// syncBuffer is a bytes.Buffer safe for the relay goroutine.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestVerify_Started(t *testing.T) {
	port := freePort(t)
	path, args := helper(t, "listen", strconv.Itoa(port), "300ms")

	v := &Verifier{Port: port, Timeout: 20 * time.Second, PollInterval: 100 * time.Millisecond}
	res := v.Verify(context.Background(), path, args...)
	if res.Outcome != Started {
		t.Fatalf("Outcome = %s (%s), want started", res.Outcome, res.Message())
	}
	if !res.OK() {
		t.Error("OK() = false")
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}
	if res.Elapsed < 300*time.Millisecond {
		t.Errorf("Elapsed = %v, want >= 300ms", res.Elapsed)
	}
}

func TestVerify_StartedOnNextTick(t *testing.T) {
	path, args := helper(t, "hang")

	var launched time.Time
	var once sync.Once
	probe := func(int) (bool, error) {
		once.Do(func() { launched = time.Now().Add(-100 * time.Millisecond) })
		// The port is bound 230ms after launch.
		return time.Since(launched) >= 230*time.Millisecond, nil
	}

	v := &Verifier{Timeout: 5 * time.Second, PollInterval: 100 * time.Millisecond, Probe: probe}
	res := v.Verify(context.Background(), path, args...)
	if res.Outcome != Started {
		t.Fatalf("Outcome = %s (%s), want started", res.Outcome, res.Message())
	}
	// Bound at 230ms, seen no later than the 300ms tick.
	if res.Elapsed < 200*time.Millisecond || res.Elapsed > time.Second {
		t.Errorf("Elapsed = %v, want about 300ms", res.Elapsed)
	}
}

func TestVerify_TimedOut(t *testing.T) {
	path, args := helper(t, "hang")

	v := &Verifier{
		Port:         freePort(t),
		Timeout:      500 * time.Millisecond,
		PollInterval: 100 * time.Millisecond,
	}
	begin := time.Now()
	res := v.Verify(context.Background(), path, args...)
	if res.Outcome != TimedOut {
		t.Fatalf("Outcome = %s (%s), want timed_out", res.Outcome, res.Message())
	}
	if res.Elapsed < 500*time.Millisecond {
		t.Errorf("Elapsed = %v, want >= 500ms", res.Elapsed)
	}
	// Deadline plus one poll interval plus termination of a cooperative child.
	if total := time.Since(begin); total > 3*time.Second {
		t.Errorf("Verify took %v, want close to the 500ms deadline", total)
	}
	if !strings.Contains(res.Message(), "timeout") {
		t.Errorf("Message() = %q", res.Message())
	}
}

func TestVerify_ExitedEarlyNonZero(t *testing.T) {
	path, args := helper(t, "exit", "3")
	diag := &syncBuffer{}

	v := &Verifier{
		Port:         freePort(t),
		Timeout:      20 * time.Second,
		PollInterval: 100 * time.Millisecond,
		Diagnostics:  diag,
		Suppress:     []string{"Gtk", "libnotify"},
	}
	res := v.Verify(context.Background(), path, args...)
	if res.Outcome != ExitedEarly {
		t.Fatalf("Outcome = %s (%s), want exited_early", res.Outcome, res.Message())
	}
	if res.ExitCode == nil || *res.ExitCode != 3 {
		t.Errorf("ExitCode = %v, want 3", res.ExitCode)
	}

	out := diag.String()
	if !strings.Contains(out, "stderr: fatal: boom") {
		t.Errorf("diagnostics = %q, want relayed stderr", out)
	}
	if strings.Contains(out, "Gtk") {
		t.Errorf("diagnostics = %q, want Gtk warning suppressed", out)
	}
}

func TestVerify_ExitedEarlyZero(t *testing.T) {
	path, args := helper(t, "exit", "0")

	v := &Verifier{Port: freePort(t), Timeout: 20 * time.Second, PollInterval: 100 * time.Millisecond}
	res := v.Verify(context.Background(), path, args...)
	if res.Outcome != ExitedEarly {
		t.Fatalf("Outcome = %s, want exited_early for a clean exit", res.Outcome)
	}
	if res.ExitCode == nil || *res.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", res.ExitCode)
	}
	if !strings.Contains(res.Message(), "code 0") {
		t.Errorf("Message() = %q", res.Message())
	}
}

func TestVerify_NotFound(t *testing.T) {
	v := &Verifier{}
	missing := filepath.Join(t.TempDir(), "seedit")
	res := v.Verify(context.Background(), missing)
	if res.Outcome != NotFound {
		t.Fatalf("Outcome = %s, want not_found", res.Outcome)
	}
	if res.RunID != "" {
		t.Error("RunID set although nothing was launched")
	}
	if !strings.Contains(res.Message(), missing) {
		t.Errorf("Message() = %q, want the path", res.Message())
	}
}

func TestVerify_Directory(t *testing.T) {
	v := &Verifier{}
	res := v.Verify(context.Background(), t.TempDir())
	if res.Outcome != NotFound {
		t.Fatalf("Outcome = %s, want not_found for a directory", res.Outcome)
	}
}

func TestVerify_Interrupted(t *testing.T) {
	path, args := helper(t, "hang")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	v := &Verifier{Port: freePort(t), Timeout: 20 * time.Second, PollInterval: 50 * time.Millisecond}
	res := v.Verify(ctx, path, args...)
	if res.Outcome != Interrupted {
		t.Fatalf("Outcome = %s, want interrupted", res.Outcome)
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", res.Err)
	}
}

func TestVerify_CancelledBeforeLaunch(t *testing.T) {
	path, args := helper(t, "hang")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := &Verifier{Port: freePort(t), Timeout: 20 * time.Second, PollInterval: 50 * time.Millisecond}
	res := v.Verify(ctx, path, args...)
	if res.Outcome != Interrupted {
		t.Fatalf("Outcome = %s, want interrupted", res.Outcome)
	}
	if res.RunID != "" {
		t.Errorf("RunID = %q, want no launch", res.RunID)
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", res.Err)
	}
}

func TestProbePort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	inUse, err := ProbePort(port)
	if err != nil {
		t.Fatalf("ProbePort: %v", err)
	}
	if !inUse {
		t.Error("ProbePort = false while a listener holds the port")
	}

	_ = ln.Close()
	inUse, err = ProbePort(port)
	if err != nil {
		t.Fatalf("ProbePort: %v", err)
	}
	if inUse {
		t.Error("ProbePort = true after the listener closed")
	}
	// The probe must release the port it bound.
	again, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("port still held after probe: %v", err)
	}
	_ = again.Close()
}
