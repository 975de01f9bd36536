package output

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// CI environment detection.

func IsCI() bool {
	return os.Getenv("CI") == "true"
}

func IsGitLabCI() bool {
	return os.Getenv("GITLAB_CI") == "true"
}

// GitLab collapsible section helpers.

func SectionStart(w io.Writer, id, name string) {
	if !IsGitLabCI() {
		return
	}
	ts := time.Now().Unix()
	fmt.Fprintf(w, "\033[0Ksection_start:%d:%s\r\033[0K%s\n", ts, id, name)
}

func SectionEnd(w io.Writer, id string) {
	if !IsGitLabCI() {
		return
	}
	ts := time.Now().Unix()
	fmt.Fprintf(w, "\033[0Ksection_end:%d:%s\r\033[0K\n", ts, id)
}

// JUnit XML types for CI test reporting.

type JUnitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// StageCase is one executed stage as reported to CI.
type StageCase struct {
	Suite   string // grouping, e.g. the target or "run"
	Name    string
	Status  string // "success", "failed", "skipped"
	Detail  string
	Elapsed time.Duration
}

// WriteStageJUnit writes stage outcomes as JUnit XML to path, atomically.
// Each suite groups the cases sharing a Suite value, in first-seen order.
func WriteStageJUnit(path, name string, cases []StageCase, elapsed time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}

	var order []string
	bySuite := map[string]*JUnitTestSuite{}
	durations := map[string]time.Duration{}

	root := JUnitTestSuites{
		Name: name,
		Time: fmt.Sprintf("%.3f", elapsed.Seconds()),
	}

	for _, c := range cases {
		suite, ok := bySuite[c.Suite]
		if !ok {
			suite = &JUnitTestSuite{Name: name + "/" + c.Suite}
			bySuite[c.Suite] = suite
			order = append(order, c.Suite)
		}

		tc := JUnitTestCase{
			Name:      c.Name,
			Classname: name + "." + strings.ReplaceAll(c.Suite, "/", "."),
			Time:      fmt.Sprintf("%.3f", c.Elapsed.Seconds()),
		}
		switch c.Status {
		case "failed":
			tc.Failure = &JUnitFailure{
				Message: c.Name + " failed",
				Type:    "failed",
				Body:    c.Detail,
			}
			suite.Failures++
			root.Failures++
		case "skipped":
			tc.Skipped = &JUnitSkipped{Message: c.Detail}
			suite.Skipped++
			root.Skipped++
		}

		suite.Cases = append(suite.Cases, tc)
		suite.Tests++
		root.Tests++
		durations[c.Suite] += c.Elapsed
	}

	for _, s := range order {
		suite := bySuite[s]
		suite.Time = fmt.Sprintf("%.3f", durations[s].Seconds())
		root.Suites = append(root.Suites, *suite)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encoding junit xml: %w", err)
	}
	buf.WriteString("\n")

	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// CIHeader prints a compact pipeline context block at the start of a CI run.
func CIHeader(w io.Writer) {
	if !IsCI() {
		return
	}
	parts := []string{}
	if tag := os.Getenv("CI_COMMIT_TAG"); tag != "" {
		parts = append(parts, fmt.Sprintf("tag=%s", tag))
	}
	if sha := os.Getenv("CI_COMMIT_SHORT_SHA"); sha != "" {
		parts = append(parts, fmt.Sprintf("sha=%s", sha))
	} else if sha := os.Getenv("CI_COMMIT_SHA"); sha != "" && len(sha) >= 8 {
		parts = append(parts, fmt.Sprintf("sha=%s", sha[:8]))
	}
	if pipe := os.Getenv("CI_PIPELINE_ID"); pipe != "" {
		parts = append(parts, fmt.Sprintf("pipeline=%s", pipe))
	}
	if runner := os.Getenv("CI_RUNNER_DESCRIPTION"); runner != "" {
		parts = append(parts, fmt.Sprintf("runner=%s", runner))
	}
	if len(parts) > 0 {
		fmt.Fprintf(w, "    ci: %s\n", strings.Join(parts, "  "))
	}
}
