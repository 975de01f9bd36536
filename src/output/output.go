package output

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
)

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// UseColor returns true if colored output should be used.
// Respects NO_COLOR env, TERM=dumb, and terminal detection.
func UseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal() || IsCI()
}

// Outcome prints the one-line run verdict that follows the summary.
func Outcome(w io.Writer, status, logPath string, color bool) {
	verdict := "BUILD SUCCEEDED"
	c := colorGreen
	if status != "success" {
		verdict = "BUILD FAILED"
		c = colorRed
	}
	if color {
		verdict = colorBold + c + verdict + colorReset
	}
	if logPath != "" {
		fmt.Fprintf(w, "\n    %s  (log: %s)\n", verdict, logPath)
		return
	}
	fmt.Fprintf(w, "\n    %s\n", verdict)
}

// PlanRow writes one numbered dry-run line inside a section.
func PlanRow(sec *Section, n int, stage, target, action string) {
	if target == "" {
		target = "-"
	}
	sec.Row("%3d  %-8s %-16s %s", n, stage, target, action)
}

// CheckRow writes one preflight result inside a section.
func CheckRow(sec *Section, name, path string, ok bool, color bool) {
	status := "success"
	if !ok {
		status = "failed"
	}
	sec.Row("%-18s%s  %s", name, StatusIcon(status, color), path)
}

// Warn prints a warning line, yellow when color is enabled.
func Warn(w io.Writer, color bool, format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	if color {
		fmt.Fprintf(w, "    %swarning:%s %s\n", colorYellow, colorReset, msg)
		return
	}
	fmt.Fprintf(w, "    warning: %s\n", msg)
}
