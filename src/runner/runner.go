// Package runner starts external tools one at a time and relays their
// combined output, line by line, to a writer as it arrives.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// Command is one external tool invocation.
type Command struct {
	Path string
	Args []string
	Dir  string // working directory; empty means the current one
}

// String renders the command line for logs and plans.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Path
	}
	return c.Path + " " + strings.Join(c.Args, " ")
}

// StepResult captures the outcome of one invocation.
type StepResult struct {
	Command  Command
	ExitCode int    // -1 when the process never started
	Output   string // combined stdout and stderr, in arrival order
	Err      error  // launch or I/O failure; nil for a plain non-zero exit
	Duration time.Duration
}

// OK reports whether the tool launched and exited zero.
func (r StepResult) OK() bool { return r.Err == nil && r.ExitCode == 0 }

// Executor runs a command to completion.
type Executor interface {
	Run(ctx context.Context, cmd Command) StepResult
}

// Runner executes commands as child processes.
type Runner struct {
	// Out receives every output line as it is read.
	Out     io.Writer
	Verbose bool
}

// New creates a Runner streaming to out.
func New(out io.Writer, verbose bool) *Runner {
	return &Runner{Out: out, Verbose: verbose}
}

// Run starts cmd, streams its output, and blocks until it exits.
func (r *Runner) Run(ctx context.Context, cmd Command) StepResult {
	start := time.Now()
	result := StepResult{Command: cmd, ExitCode: -1}
	out := r.Out
	if out == nil {
		out = io.Discard
	}

	if r.Verbose {
		fmt.Fprintf(out, "exec: %s\n", cmd)
		if cmd.Dir != "" {
			fmt.Fprintf(out, "  in %s\n", cmd.Dir)
		}
	}

	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	pipe, err := c.StdoutPipe()
	if err != nil {
		result.Err = fmt.Errorf("creating output pipe: %w", err)
		result.Duration = time.Since(start)
		return result
	}
	c.Stderr = c.Stdout

	if err := c.Start(); err != nil {
		result.Err = fmt.Errorf("starting %s: %w", cmd.Path, err)
		result.Duration = time.Since(start)
		return result
	}

	var captured strings.Builder
	readErr := relay(pipe, out, &captured)
	waitErr := c.Wait()

	result.Output = captured.String()
	result.Duration = time.Since(start)
	result.ExitCode = exitCode(waitErr)

	var exitErr *exec.ExitError
	switch {
	case waitErr != nil && !errors.As(waitErr, &exitErr):
		result.Err = fmt.Errorf("waiting for %s: %w", cmd.Path, waitErr)
	case readErr != nil:
		result.Err = fmt.Errorf("reading output of %s: %w", cmd.Path, readErr)
	}
	return result
}

// relay copies src to both dst and captured one line at a time.
// A final line without a newline is terminated so log lines stay whole.
// The source is always drained, even after dst fails, so the child never
// blocks on a full pipe.
func relay(src io.Reader, dst io.Writer, captured *strings.Builder) error {
	br := bufio.NewReader(src)
	var writeErr error
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			if !strings.HasSuffix(line, "\n") {
				line += "\n"
			}
			captured.WriteString(line)
			if writeErr == nil {
				_, writeErr = io.WriteString(dst, line)
			}
		}
		if err == io.EOF {
			return writeErr
		}
		if err != nil {
			return err
		}
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
