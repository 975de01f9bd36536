package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dglib/buildpipe/src/config"
	"github.com/dglib/buildpipe/src/runner"
)

// fakeExec records every command and lets tests script outcomes.
type fakeExec struct {
	calls  []runner.Command
	onRun  func(cmd runner.Command)
	result func(cmd runner.Command) (runner.StepResult, bool)
}

func (f *fakeExec) Run(_ context.Context, cmd runner.Command) runner.StepResult {
	f.calls = append(f.calls, cmd)
	if f.onRun != nil {
		f.onRun(cmd)
	}
	if f.result != nil {
		if r, ok := f.result(cmd); ok {
			r.Command = cmd
			return r
		}
	}
	return runner.StepResult{Command: cmd}
}

// kind classifies a fake command by tool and solution.
func kind(cmd runner.Command) string {
	switch filepath.Base(cmd.Path) {
	case "build-tool":
		if len(cmd.Args) > 0 && strings.HasSuffix(cmd.Args[0], "Samples.sln") {
			return "samples"
		}
		return "compile"
	case "Tests.exe":
		return "test"
	case "archiver":
		return "archive"
	case "docgen":
		return "docs"
	}
	return "unknown:" + cmd.Path
}

// target returns the platform/configuration a fake command was built for.
func target(cmd runner.Command) string {
	var platform, configuration string
	for _, a := range cmd.Args {
		if v, ok := strings.CutPrefix(a, "/property:Platform="); ok {
			platform = v
		}
		if v, ok := strings.CutPrefix(a, "/property:Configuration="); ok {
			configuration = v
		}
	}
	if platform == "" {
		// test executables and archiver outputs carry the target in their paths
		for _, s := range append([]string{cmd.Path}, cmd.Args...) {
			parts := strings.Split(filepath.ToSlash(s), "/")
			for i := 0; i+1 < len(parts); i++ {
				if parts[i] == "x64" || parts[i] == "Win32" {
					return parts[i] + "/" + parts[i+1]
				}
			}
		}
		return ""
	}
	return platform + "/" + configuration
}

func describe(calls []runner.Command) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		if tg := target(c); tg != "" {
			out[i] = kind(c) + " " + tg
		} else {
			out[i] = kind(c)
		}
	}
	return out
}

// newTestConfig returns a config rooted in a temp dir with module libraries
// and headers in place for every target.
func newTestConfig(t *testing.T, platforms, configurations []string) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Defaults(root)
	cfg.Platforms = platforms
	cfg.Configurations = configurations
	cfg.Tools = config.ToolsConfig{Build: "build-tool", Archiver: "archiver", Docs: "docgen"}

	for _, p := range platforms {
		for _, c := range configurations {
			for _, m := range cfg.Modules {
				touch(t, filepath.Join(root, "output", m, p, c, m+".lib"), "lib")
			}
		}
	}
	touch(t, filepath.Join(root, "src", "core", "public", "Engine", "Engine.h"), "#pragma once\n")
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

func touch(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// docsLog makes the fake doc generator write content to its error log.
func docsLog(cfg *config.Config, content string) func(runner.Command) {
	return func(cmd runner.Command) {
		if kind(cmd) != "docs" {
			return
		}
		path := filepath.Join(cfg.Resolve(cfg.Docs.Dir), cfg.Docs.ErrorLog)
		os.MkdirAll(filepath.Dir(path), 0o755)
		os.WriteFile(path, []byte(content), 0o644)
	}
}

func TestRunOrderAndConditionalPackage(t *testing.T) {
	cfg := newTestConfig(t, []string{"x64"}, []string{"Debug", "Release"})
	fx := &fakeExec{onRun: docsLog(cfg, "")}
	var log bytes.Buffer

	res := New(cfg, fx, &log).Run(context.Background())
	if res.Err != nil {
		t.Fatalf("Run: %v\n%s", res.Err, log.String())
	}

	want := []string{
		"compile x64/Debug",
		"test x64/Debug",
		"archive x64/Debug",
		"compile x64/Release",
		"test x64/Release",
		"archive x64/Release",
		"samples x64/Release",
		"docs",
	}
	if got := describe(fx.calls); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls:\n got %v\nwant %v", got, want)
	}

	var packages []StageRecord
	for _, r := range res.Stages {
		if r.Stage == StagePackage {
			packages = append(packages, r)
		}
	}
	if len(packages) != 1 || packages[0].Target.Configuration != "Release" {
		t.Fatalf("package records = %+v, want one for Release", packages)
	}

	if len(res.Libraries) != 2 {
		t.Errorf("Libraries = %d, want 2", len(res.Libraries))
	}
	if _, err := os.Stat(filepath.Join(cfg.DeployRoot(), "include", "Engine", "Engine.h")); err != nil {
		t.Errorf("headers not copied: %v", err)
	}
	if !strings.HasPrefix(log.String(), "Build Started!\n") {
		t.Errorf("log does not start with Build Started!: %q", log.String()[:40])
	}
	if !strings.HasSuffix(log.String(), "Build Succeeded!\n") {
		t.Errorf("log does not end with Build Succeeded!")
	}
}

func TestCompileFailureStopsRun(t *testing.T) {
	tests := []struct {
		name     string
		failOn   string
		wantCall []string
	}{
		{
			name:     "first target",
			failOn:   "Win32/Release",
			wantCall: []string{"compile Win32/Release"},
		},
		{
			name:   "later target",
			failOn: "x64/Release",
			wantCall: []string{
				"compile Win32/Release",
				"test Win32/Release",
				"archive Win32/Release",
				"samples Win32/Release",
				"compile x64/Release",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t, []string{"Win32", "x64"}, []string{"Release"})
			fx := &fakeExec{
				onRun: docsLog(cfg, ""),
				result: func(cmd runner.Command) (runner.StepResult, bool) {
					if kind(cmd) == "compile" && target(cmd) == tt.failOn {
						return runner.StepResult{ExitCode: 1, Output: "error C2065\n"}, true
					}
					return runner.StepResult{}, false
				},
			}
			var log bytes.Buffer

			res := New(cfg, fx, &log).Run(context.Background())
			if got := describe(fx.calls); !reflect.DeepEqual(got, tt.wantCall) {
				t.Fatalf("calls:\n got %v\nwant %v", got, tt.wantCall)
			}

			if !errors.Is(res.Err, ErrStageFailed) {
				t.Fatalf("Err = %v, want ErrStageFailed", res.Err)
			}
			var se *StageError
			if !errors.As(res.Err, &se) {
				t.Fatalf("Err is %T, want *StageError", res.Err)
			}
			if se.Stage != StageCompile || se.Target.String() != tt.failOn {
				t.Errorf("StageError = %s %s, want compile %s", se.Stage, se.Target, tt.failOn)
			}
			if se.Result == nil || se.Result.ExitCode != 1 {
				t.Errorf("StageError.Result = %+v, want exit code 1", se.Result)
			}

			if _, err := os.Stat(filepath.Join(cfg.DeployRoot(), "include")); !os.IsNotExist(err) {
				t.Errorf("headers copied after failure: %v", err)
			}
			if !strings.Contains(log.String(), "Build failed! Exiting...\n") {
				t.Errorf("log missing compile failure message")
			}
			if !strings.HasSuffix(log.String(), "Build Failed\n") {
				t.Errorf("log does not end with Build Failed")
			}
			last := res.Stages[len(res.Stages)-1]
			if last.Status != StatusFailed || last.Stage != StageCompile {
				t.Errorf("last record = %+v, want failed compile", last)
			}
		})
	}
}

func TestLaunchFailureIsStageFailure(t *testing.T) {
	cfg := newTestConfig(t, []string{"x64"}, []string{"Release"})
	fx := &fakeExec{
		result: func(cmd runner.Command) (runner.StepResult, bool) {
			if kind(cmd) == "test" {
				return runner.StepResult{ExitCode: -1, Err: os.ErrNotExist}, true
			}
			return runner.StepResult{}, false
		},
	}
	var log bytes.Buffer

	res := New(cfg, fx, &log).Run(context.Background())
	if !errors.Is(res.Err, ErrStageFailed) {
		t.Fatalf("Err = %v, want ErrStageFailed", res.Err)
	}
	if got := describe(fx.calls); len(got) != 2 {
		t.Fatalf("calls = %v, want compile then test only", got)
	}
	if !strings.Contains(log.String(), "OSError") {
		t.Errorf("log missing OSError line:\n%s", log.String())
	}
	if !strings.Contains(log.String(), "One or more tests failed!") {
		t.Errorf("log missing test failure message")
	}
}

func TestDocsErrors(t *testing.T) {
	tests := []struct {
		name         string
		failOnErrors bool
		errorLog     string
		wantErr      bool
	}{
		{name: "fatal with errors", failOnErrors: true, errorLog: "warning: undocumented\n", wantErr: true},
		{name: "fatal without errors", failOnErrors: true, errorLog: "", wantErr: false},
		{name: "lenient with errors", failOnErrors: false, errorLog: "warning: undocumented\n", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t, []string{"x64"}, []string{"Release"})
			cfg.Docs.FailOnErrors = tt.failOnErrors
			fx := &fakeExec{onRun: docsLog(cfg, tt.errorLog)}
			var log bytes.Buffer

			res := New(cfg, fx, &log).Run(context.Background())
			if tt.wantErr {
				if !errors.Is(res.Err, ErrDocsContainErrors) {
					t.Fatalf("Err = %v, want ErrDocsContainErrors", res.Err)
				}
				if !strings.Contains(log.String(), "Documentation contains errors. Exiting...") {
					t.Errorf("log missing docs failure message")
				}
				return
			}
			if res.Err != nil {
				t.Fatalf("Err = %v, want success", res.Err)
			}
		})
	}
}

func TestDocsMissingErrorLog(t *testing.T) {
	cfg := newTestConfig(t, []string{"x64"}, []string{"Release"})
	fx := &fakeExec{}

	res := New(cfg, fx, nil).Run(context.Background())
	if !errors.Is(res.Err, ErrDocsContainErrors) {
		t.Fatalf("Err = %v, want ErrDocsContainErrors", res.Err)
	}

	cfg.Docs.FailOnErrors = false
	res = New(cfg, &fakeExec{}, nil).Run(context.Background())
	if res.Err != nil {
		t.Fatalf("lenient Err = %v, want success", res.Err)
	}
}

func TestDocsDisabled(t *testing.T) {
	cfg := newTestConfig(t, []string{"x64"}, []string{"Release"})
	cfg.Docs.Enabled = false
	fx := &fakeExec{}

	res := New(cfg, fx, nil).Run(context.Background())
	if res.Err != nil {
		t.Fatalf("Run: %v", res.Err)
	}
	for _, c := range fx.calls {
		if kind(c) == "docs" {
			t.Fatal("doc generator ran while disabled")
		}
	}
	last := res.Stages[len(res.Stages)-1]
	if last.Stage != StageDocs || last.Status != StatusSkipped {
		t.Errorf("last record = %+v, want skipped docs", last)
	}
}

func TestMissingArtifactFailsBeforeArchiver(t *testing.T) {
	cfg := newTestConfig(t, []string{"x64"}, []string{"Release"})
	missing := filepath.Join(cfg.Root, "output", "Math", "x64", "Release", "Math.lib")
	if err := os.Remove(missing); err != nil {
		t.Fatal(err)
	}
	fx := &fakeExec{}

	res := New(cfg, fx, nil).Run(context.Background())
	if !errors.Is(res.Err, ErrMissingArtifact) {
		t.Fatalf("Err = %v, want ErrMissingArtifact", res.Err)
	}
	if !strings.Contains(res.Err.Error(), missing) {
		t.Errorf("Err = %v, want it to name %s", res.Err, missing)
	}
	for _, c := range fx.calls {
		if kind(c) == "archive" {
			t.Fatal("archiver ran with a missing input")
		}
	}
	if len(res.Libraries) != 0 {
		t.Errorf("Libraries = %v, want none", res.Libraries)
	}
}

func TestArchiveInputsInModuleOrder(t *testing.T) {
	cfg := newTestConfig(t, []string{"x64"}, []string{"Release"})
	fx := &fakeExec{onRun: docsLog(cfg, "")}

	if res := New(cfg, fx, nil).Run(context.Background()); res.Err != nil {
		t.Fatalf("Run: %v", res.Err)
	}

	var archive runner.Command
	for _, c := range fx.calls {
		if kind(c) == "archive" {
			archive = c
		}
	}
	out := filepath.Join(cfg.DeployRoot(), "lib", "x64", "Release", "DgLib.lib")
	want := []string{"/OUT:" + out}
	for _, m := range cfg.Modules {
		want = append(want, filepath.Join(cfg.Root, "output", m, "x64", "Release", m+".lib"))
	}
	if !reflect.DeepEqual(archive.Args, want) {
		t.Errorf("archive args:\n got %v\nwant %v", archive.Args, want)
	}
}

func TestDeployDirIsCleanBeforeFirstStage(t *testing.T) {
	cfg := newTestConfig(t, []string{"x64"}, []string{"Release"})
	stale := filepath.Join(cfg.Resolve(cfg.Paths.Deploy), "stale.txt")
	staleLib := filepath.Join(cfg.DeployRoot(), "lib", "old", "DgLib.lib")
	touch(t, stale, "old")
	touch(t, staleLib, "old")

	checked := false
	fx := &fakeExec{
		onRun: func(cmd runner.Command) {
			if checked {
				return
			}
			checked = true
			for _, p := range []string{stale, staleLib} {
				if _, err := os.Stat(p); !os.IsNotExist(err) {
					t.Errorf("%s survived deployment recreation", p)
				}
			}
			for _, sub := range cfg.Paths.Skeleton {
				entries, err := os.ReadDir(filepath.Join(cfg.DeployRoot(), sub))
				if err != nil {
					t.Errorf("skeleton dir %s: %v", sub, err)
				} else if len(entries) != 0 {
					t.Errorf("skeleton dir %s not empty: %v", sub, entries)
				}
			}
		},
	}

	New(cfg, fx, nil).Run(context.Background())
	if !checked {
		t.Fatal("no stage ran")
	}
}

func TestPackageCopiesFiles(t *testing.T) {
	cfg := newTestConfig(t, []string{"x64"}, []string{"Release"})
	cfg.Package.Samples.Enabled = false
	cfg.Package.Files = []config.CopyRule{
		{From: "{output}/Engine/{platform}/{configuration}/Engine.pdb", To: "lib/{platform}/{configuration}/Engine.pdb"},
	}
	touch(t, filepath.Join(cfg.Root, "output", "Engine", "x64", "Release", "Engine.pdb"), "pdb")
	fx := &fakeExec{onRun: docsLog(cfg, "")}

	res := New(cfg, fx, nil).Run(context.Background())
	if res.Err != nil {
		t.Fatalf("Run: %v", res.Err)
	}
	dst := filepath.Join(cfg.DeployRoot(), "lib", "x64", "Release", "Engine.pdb")
	if data, err := os.ReadFile(dst); err != nil || string(data) != "pdb" {
		t.Errorf("copied file = %q, %v", data, err)
	}
	for _, c := range fx.calls {
		if kind(c) == "samples" {
			t.Error("samples built while disabled")
		}
	}
}

func TestPackageMissingFile(t *testing.T) {
	cfg := newTestConfig(t, []string{"x64"}, []string{"Release"})
	cfg.Package.Files = []config.CopyRule{{From: "nope.txt", To: "nope.txt"}}

	res := New(cfg, &fakeExec{}, nil).Run(context.Background())
	if !errors.Is(res.Err, ErrMissingArtifact) {
		t.Fatalf("Err = %v, want ErrMissingArtifact", res.Err)
	}
	var se *StageError
	if !errors.As(res.Err, &se) || se.Stage != StagePackage {
		t.Errorf("Err = %v, want package StageError", res.Err)
	}
}

func TestPlanMatchesRun(t *testing.T) {
	cfg := newTestConfig(t, []string{"Win32", "x64"}, []string{"Debug", "Release"})
	cfg.Tools.Archivers = map[string]string{"Win32": "archiver"}
	fx := &fakeExec{onRun: docsLog(cfg, "")}
	p := New(cfg, fx, nil)

	plan, err := p.Plan()
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if _, err := os.Stat(cfg.DeployRoot()); !os.IsNotExist(err) {
		t.Fatalf("Plan touched the filesystem: %v", err)
	}

	var planned []runner.Command
	for _, s := range plan {
		if s.Command != nil {
			planned = append(planned, *s.Command)
		}
	}

	if res := p.Run(context.Background()); res.Err != nil {
		t.Fatalf("Run: %v", res.Err)
	}
	if !reflect.DeepEqual(planned, fx.calls) {
		t.Errorf("plan and run differ:\nplan %v\n run %v", describe(planned), describe(fx.calls))
	}
	if plan[0].Stage != StagePrepare || plan[len(plan)-1].Stage != StageDocs {
		t.Errorf("plan bounds = %s..%s", plan[0].Stage, plan[len(plan)-1].Stage)
	}
}

func TestTargetsPlatformMajor(t *testing.T) {
	cfg := config.Defaults(t.TempDir())
	cfg.Platforms = []string{"Win32", "x64"}
	cfg.Configurations = []string{"Debug", "Release"}

	var got []string
	for _, tg := range Targets(cfg) {
		got = append(got, tg.String())
	}
	want := []string{"Win32/Debug", "Win32/Release", "x64/Debug", "x64/Release"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Targets = %v, want %v", got, want)
	}
}

func TestTargetID(t *testing.T) {
	if got := (Target{Platform: "x64", Configuration: "Release Static"}).ID(); got != "x64_release_static" {
		t.Errorf("ID = %q", got)
	}
}

func TestUnexpandableArgsFailTheStage(t *testing.T) {
	cfg := newTestConfig(t, []string{"x64"}, []string{"Release"})
	cfg.Archive.Args = []string{"/OUT:{out}", "/IN:{inputs}"}
	fx := &fakeExec{}

	res := New(cfg, fx, nil).Run(context.Background())
	if !errors.Is(res.Err, ErrStageFailed) || !errors.Is(res.Err, config.ErrTemplate) {
		t.Fatalf("Err = %v, want ErrStageFailed wrapping ErrTemplate", res.Err)
	}
	var se *StageError
	if !errors.As(res.Err, &se) || se.Stage != StageArchive {
		t.Errorf("Err = %v, want archive StageError", res.Err)
	}
	for _, c := range fx.calls {
		if kind(c) == "archive" {
			t.Fatal("archiver ran with unexpandable arguments")
		}
	}
}

func TestPackageCopiesDirectory(t *testing.T) {
	cfg := newTestConfig(t, []string{"x64"}, []string{"Release"})
	cfg.Package.Samples.Enabled = false
	cfg.Package.Files = []config.CopyRule{{From: "extras", To: "3rd party/extras"}}
	touch(t, filepath.Join(cfg.Root, "extras", "LICENSE.txt"), "license")
	touch(t, filepath.Join(cfg.Root, "extras", "nested", "NOTICE.txt"), "notice")

	if res := New(cfg, &fakeExec{onRun: docsLog(cfg, "")}, nil).Run(context.Background()); res.Err != nil {
		t.Fatalf("Run: %v", res.Err)
	}
	for rel, want := range map[string]string{"LICENSE.txt": "license", "nested/NOTICE.txt": "notice"} {
		path := filepath.Join(cfg.DeployRoot(), "3rd party", "extras", filepath.FromSlash(rel))
		if data, err := os.ReadFile(path); err != nil || string(data) != want {
			t.Errorf("%s = %q, %v", rel, data, err)
		}
	}
}
