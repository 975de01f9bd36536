// Package pipeline runs the build matrix: for each platform and
// configuration it compiles, tests, archives and optionally packages, then
// copies the public headers and generates documentation. The first failing
// stage ends the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dglib/buildpipe/src/config"
	"github.com/dglib/buildpipe/src/output"
	"github.com/dglib/buildpipe/src/runner"
)

// Pipeline executes one run against a validated configuration.
type Pipeline struct {
	cfg  *config.Config
	exec runner.Executor
	log  io.Writer

	// RunID identifies the run in the manifest and reports.
	RunID string

	now func() time.Time
}

// New creates a pipeline writing progress to log. The executor should
// stream tool output into the same log.
func New(cfg *config.Config, exec runner.Executor, log io.Writer) *Pipeline {
	if log == nil {
		log = io.Discard
	}
	return &Pipeline{
		cfg:   cfg,
		exec:  exec,
		log:   log,
		RunID: uuid.NewString(),
		now:   time.Now,
	}
}

// Run executes the full sequence and returns its result. Result.Err is the
// *StageError of the stage that failed, or nil.
func (p *Pipeline) Run(ctx context.Context) *Result {
	res := &Result{RunID: p.RunID, Started: p.now()}

	p.printf("Build Started!\n")
	err := p.run(ctx, res)
	res.Finished = p.now()
	res.Err = err

	if err != nil {
		p.printf("Build Failed\n")
	} else {
		p.printf("\nBuild Succeeded!\n")
	}
	return res
}

func (p *Pipeline) run(ctx context.Context, res *Result) error {
	if err := p.stage(res, StagePrepare, nil, p.prepare); err != nil {
		return err
	}

	for _, t := range Targets(p.cfg) {
		if err := p.runTarget(ctx, res, t); err != nil {
			return err
		}
	}

	if err := p.stage(res, StageHeaders, nil, p.copyHeaders); err != nil {
		return err
	}

	if !p.cfg.Docs.Enabled {
		res.Stages = append(res.Stages, StageRecord{Stage: StageDocs, Status: StatusSkipped, Detail: "disabled"})
		return nil
	}
	return p.stage(res, StageDocs, nil, func() (string, *runner.StepResult, error) {
		return p.docs(ctx)
	})
}

func (p *Pipeline) runTarget(ctx context.Context, res *Result, t Target) error {
	output.SectionStart(p.log, "target_"+t.ID(), "Target "+t.String())
	defer output.SectionEnd(p.log, "target_"+t.ID())

	target := t
	steps := []targetStep{
		{StageCompile, func() (string, *runner.StepResult, error) { return p.compile(ctx, t) }},
		{StageTest, func() (string, *runner.StepResult, error) { return p.test(ctx, t) }},
		{StageArchive, func() (string, *runner.StepResult, error) { return p.archive(ctx, res, t) }},
	}
	if p.cfg.Package.Packages(t.Configuration) {
		steps = append(steps, targetStep{StagePackage, func() (string, *runner.StepResult, error) { return p.pack(ctx, t) }})
	}

	for _, s := range steps {
		if err := p.stage(res, s.stage, &target, s.fn); err != nil {
			return err
		}
	}
	return nil
}

type stageFunc func() (detail string, step *runner.StepResult, err error)

type targetStep struct {
	stage Stage
	fn    stageFunc
}

// stage runs fn and records its outcome. A failure becomes a *StageError.
func (p *Pipeline) stage(res *Result, s Stage, t *Target, fn stageFunc) error {
	start := time.Now()
	detail, step, err := fn()
	rec := StageRecord{Stage: s, Target: t, Status: StatusSuccess, Duration: time.Since(start), Detail: detail}
	if err != nil {
		rec.Status = StatusFailed
		rec.Detail = err.Error()
		res.Stages = append(res.Stages, rec)
		return &StageError{Stage: s, Target: t, Result: step, Err: err}
	}
	res.Stages = append(res.Stages, rec)
	return nil
}

// execute runs cmd and maps a launch failure or non-zero exit to ErrStageFailed.
func (p *Pipeline) execute(ctx context.Context, cmd runner.Command) (*runner.StepResult, error) {
	step := p.exec.Run(ctx, cmd)
	switch {
	case step.OK():
		return &step, nil
	case step.Err != nil:
		p.printf("OSError: %v\n", step.Err)
		return &step, fmt.Errorf("%w: %v", ErrStageFailed, step.Err)
	default:
		return &step, fmt.Errorf("%w: %s exited with code %d", ErrStageFailed, filepath.Base(cmd.Path), step.ExitCode)
	}
}

// ── Run-level stages ──────────────────────────────────────────────────────

func (p *Pipeline) prepare() (string, *runner.StepResult, error) {
	deploy := p.cfg.Resolve(p.cfg.Paths.Deploy)

	p.printf("\nRemoving old deployment dir...\n")
	if err := os.RemoveAll(deploy); err != nil {
		return "", nil, fmt.Errorf("%w: removing %s: %v", ErrFileSystem, deploy, err)
	}
	p.printf("Done!\n")

	p.printf("\nCreating new deployment dir structure...\n")
	root := p.cfg.DeployRoot()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", nil, fmt.Errorf("%w: creating %s: %v", ErrFileSystem, root, err)
	}
	for _, sub := range p.cfg.Paths.Skeleton {
		dir := filepath.Join(root, sub)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, fmt.Errorf("%w: creating %s: %v", ErrFileSystem, dir, err)
		}
	}
	if p.cfg.Paths.TestResults != "" {
		dir := p.cfg.Resolve(p.cfg.Paths.TestResults)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, fmt.Errorf("%w: creating %s: %v", ErrFileSystem, dir, err)
		}
	}
	p.printf("Done!\n")
	return root, nil, nil
}

func (p *Pipeline) copyHeaders() (string, *runner.StepResult, error) {
	src := p.cfg.Resolve(p.cfg.Paths.Headers)
	dst := p.headersDest()

	p.printf("\nCopying source code...\n")
	if err := copyTree(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.printf("\nHeader directory %s is missing. Exiting...\n", src)
			return "", nil, fmt.Errorf("%w: %s", ErrMissingArtifact, src)
		}
		p.printf("\nFailed to copy headers. Exiting...\n")
		return "", nil, fmt.Errorf("%w: copying headers: %v", ErrFileSystem, err)
	}
	p.printf("Done!\n")
	return dst, nil, nil
}

func (p *Pipeline) docs(ctx context.Context) (string, *runner.StepResult, error) {
	cmd, errLog, err := p.docsCommand()
	if err != nil {
		return "", nil, err
	}

	p.printf("\nCreating documentation...\n\n")
	step, err := p.execute(ctx, cmd)
	if err != nil {
		p.printf("\nFailed to run the documentation generator. Exiting...\n")
		return "", step, err
	}

	if errLog == "" {
		return "generated", step, nil
	}
	info, statErr := os.Stat(errLog)
	switch {
	case statErr != nil && p.cfg.Docs.FailOnErrors:
		p.printf("\nDocumentation error log %s is missing. Exiting...\n", errLog)
		return "", step, fmt.Errorf("%w: error log %s: %v", ErrDocsContainErrors, errLog, statErr)
	case statErr != nil:
		return "generated", step, nil
	case info.Size() > 0 && p.cfg.Docs.FailOnErrors:
		p.printf("\nDocumentation contains errors. Exiting...\n")
		return "", step, fmt.Errorf("%w: see %s", ErrDocsContainErrors, errLog)
	case info.Size() > 0:
		p.printf("Documentation contains errors, see %s\n", errLog)
		return "generated with errors", step, nil
	}
	return "generated", step, nil
}

// ── Per-target stages ─────────────────────────────────────────────────────

func (p *Pipeline) compile(ctx context.Context, t Target) (string, *runner.StepResult, error) {
	cmd, err := p.compileCommand(t, p.cfg.Compile.Solution)
	if err != nil {
		return "", nil, err
	}

	p.printf("\nBuilding %s %s...\n\n", t.Platform, t.Configuration)
	step, err := p.execute(ctx, cmd)
	if err != nil {
		p.printf("\nBuild failed! Exiting...\n")
		return "", step, err
	}
	p.printf("\nBuild complete!\n")
	return filepath.Base(p.cfg.Compile.Solution), step, nil
}

func (p *Pipeline) test(ctx context.Context, t Target) (string, *runner.StepResult, error) {
	cmd, report, err := p.testCommand(t)
	if err != nil {
		return "", nil, err
	}

	p.printf("\nRunning tests...\n")
	step, err := p.execute(ctx, cmd)
	if err != nil {
		if report != "" {
			p.printf("\nOne or more tests failed! See test results in %s. Exiting...\n", report)
		} else {
			p.printf("\nOne or more tests failed! Exiting...\n")
		}
		return "", step, err
	}
	p.printf("All tests passed!\n")
	return "all tests passed", step, nil
}

func (p *Pipeline) archive(ctx context.Context, res *Result, t Target) (string, *runner.StepResult, error) {
	inputs, err := p.artifactSet(t)
	if err != nil {
		return "", nil, err
	}
	out, err := p.archiveOutput(t)
	if err != nil {
		return "", nil, err
	}
	cmd, err := p.archiveCommand(t, inputs, out)
	if err != nil {
		return "", nil, err
	}

	p.printf("\nCombining libraries...\n\n")

	libDir := filepath.Dir(out)
	if err := recreateDir(libDir); err != nil {
		p.printf("\nFailed to create lib directory. Exiting...\n")
		return "", nil, fmt.Errorf("%w: %v", ErrFileSystem, err)
	}

	for _, in := range inputs {
		if _, err := os.Stat(in); err != nil {
			p.printf("\nMissing library %s. Exiting...\n", in)
			return "", nil, fmt.Errorf("%w: %s", ErrMissingArtifact, in)
		}
	}

	step, err := p.execute(ctx, cmd)
	if err != nil {
		p.printf("\nFailed to create lib file. Exiting...\n")
		return "", step, err
	}
	p.printf("Finished combining libs!\n")

	res.Libraries = append(res.Libraries, LibraryArtifact{Target: t, Path: out})
	return filepath.Base(out), step, nil
}

func (p *Pipeline) pack(ctx context.Context, t Target) (string, *runner.StepResult, error) {
	var step *runner.StepResult

	if p.cfg.Package.Samples.Enabled {
		cmd, err := p.compileCommand(t, p.cfg.Package.Samples.Solution)
		if err != nil {
			return "", nil, err
		}

		p.printf("\nBuilding samples. Platform: %s, Configuration: %s\n\n", t.Platform, t.Configuration)
		step, err = p.execute(ctx, cmd)
		if err != nil {
			p.printf("\nBuild failed! Exiting...\n")
			return "", step, err
		}
		p.printf("\nBuild complete!\n")
	}

	pairs, err := p.packageCopies(t)
	if err != nil {
		return "", step, err
	}
	if len(pairs) > 0 {
		p.printf("\nCopying package files...\n")
	}
	for _, pair := range pairs {
		from, to := pair[0], pair[1]
		if err := copyFile(from, to); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				p.printf("\nMissing package file %s. Exiting...\n", from)
				return "", step, fmt.Errorf("%w: %s", ErrMissingArtifact, from)
			}
			p.printf("\nFailed to copy %s. Exiting...\n", from)
			return "", step, fmt.Errorf("%w: copying %s: %v", ErrFileSystem, from, err)
		}
	}
	if len(pairs) > 0 {
		p.printf("Done!\n")
	}

	switch {
	case p.cfg.Package.Samples.Enabled && len(pairs) > 0:
		return fmt.Sprintf("samples built, %d file(s) copied", len(pairs)), step, nil
	case p.cfg.Package.Samples.Enabled:
		return "samples built", step, nil
	default:
		return fmt.Sprintf("%d file(s) copied", len(pairs)), step, nil
	}
}

func (p *Pipeline) printf(format string, args ...any) {
	fmt.Fprintf(p.log, format, args...)
}
