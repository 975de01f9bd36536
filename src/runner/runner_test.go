package runner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("runner tests use /bin/sh")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

func sh(script string) Command {
	return Command{Path: "/bin/sh", Args: []string{"-c", script}}
}

func TestRunStreamsCombinedOutputInOrder(t *testing.T) {
	requireShell(t)

	var out bytes.Buffer
	r := New(&out, false)
	res := r.Run(context.Background(), sh("echo one; echo two 1>&2; echo three"))

	if !res.OK() {
		t.Fatalf("Run failed: exit=%d err=%v", res.ExitCode, res.Err)
	}
	want := "one\ntwo\nthree\n"
	if out.String() != want {
		t.Errorf("streamed = %q, want %q", out.String(), want)
	}
	if res.Output != want {
		t.Errorf("Output = %q, want %q", res.Output, want)
	}
}

// stampWriter records when each write arrives.
type stampWriter struct {
	mu     sync.Mutex
	writes []time.Time
	buf    strings.Builder
}

func (w *stampWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, time.Now())
	return w.buf.Write(p)
}

func TestRunStreamsBeforeExit(t *testing.T) {
	requireShell(t)

	const pause = time.Second
	w := &stampWriter{}
	start := time.Now()
	res := New(w, false).Run(context.Background(), sh("echo early; sleep 1; echo late"))
	end := time.Now()

	if !res.OK() {
		t.Fatalf("Run failed: exit=%d err=%v", res.ExitCode, res.Err)
	}
	if end.Sub(start) < pause {
		t.Fatalf("Run returned after %v, before the child could have finished", end.Sub(start))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.writes) == 0 || !strings.HasPrefix(w.buf.String(), "early\n") {
		t.Fatalf("writes = %d, output = %q", len(w.writes), w.buf.String())
	}
	if first := w.writes[0]; end.Sub(first) < pause/2 {
		t.Errorf("first line arrived %v before exit, want it relayed while the child was still running", end.Sub(first))
	}
}

func TestRunTerminatesLastLine(t *testing.T) {
	requireShell(t)

	var out bytes.Buffer
	res := New(&out, false).Run(context.Background(), sh("printf 'no newline'"))
	if res.Output != "no newline\n" {
		t.Errorf("Output = %q, want trailing newline added", res.Output)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	requireShell(t)

	res := New(nil, false).Run(context.Background(), sh("echo broken; exit 3"))
	if res.OK() {
		t.Fatal("OK() = true for exit 3")
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if res.Err != nil {
		t.Errorf("Err = %v, want nil for a plain non-zero exit", res.Err)
	}
	if !strings.Contains(res.Output, "broken") {
		t.Errorf("Output = %q, want captured text", res.Output)
	}
}

func TestRunLaunchFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-tool")
	res := New(nil, false).Run(context.Background(), Command{Path: missing})
	if res.Err == nil {
		t.Fatal("Err = nil for a missing executable")
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
}

func TestRunWorkingDirectory(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	cmd := sh("pwd")
	cmd.Dir = dir
	res := New(nil, false).Run(context.Background(), cmd)
	if !res.OK() {
		t.Fatalf("Run failed: %v", res.Err)
	}
	got := strings.TrimSpace(res.Output)
	want, _ := filepath.EvalSymlinks(dir)
	if gotReal, _ := filepath.EvalSymlinks(got); gotReal != want {
		t.Errorf("pwd = %q, want %q", got, want)
	}
}

func TestRunVerboseEchoesCommand(t *testing.T) {
	requireShell(t)

	var out bytes.Buffer
	New(&out, true).Run(context.Background(), sh("true"))
	if !strings.HasPrefix(out.String(), "exec: /bin/sh -c true\n") {
		t.Errorf("verbose output = %q", out.String())
	}
}

func TestCommandString(t *testing.T) {
	c := Command{Path: "lib.exe", Args: []string{"/OUT:x.lib", "a.lib"}}
	if got := c.String(); got != "lib.exe /OUT:x.lib a.lib" {
		t.Errorf("String = %q", got)
	}
}
