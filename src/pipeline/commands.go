package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/dglib/buildpipe/src/config"
	"github.com/dglib/buildpipe/src/runner"
)

// runVars returns the template variables available to every stage.
func (p *Pipeline) runVars() config.Vars {
	return config.Vars{
		"library":      p.cfg.Library,
		"output":       p.cfg.Resolve(p.cfg.Paths.Output),
		"deploy":       p.cfg.Resolve(p.cfg.Paths.Deploy),
		"test_results": p.cfg.Resolve(p.cfg.Paths.TestResults),
	}
}

// targetVars adds the target's platform and configuration to the run vars.
func (p *Pipeline) targetVars(t Target) config.Vars {
	return p.runVars().
		With("platform", t.Platform).
		With("configuration", t.Configuration)
}

// compileCommand builds solution for t with the compile contract.
func (p *Pipeline) compileCommand(t Target, solution string) (runner.Command, error) {
	vars := p.targetVars(t).With("solution", p.cfg.Resolve(solution))
	args, err := config.ExpandArgs(p.cfg.Compile.Args, vars, nil)
	if err != nil {
		return runner.Command{}, expandError("compile args", err)
	}
	return runner.Command{Path: p.cfg.ResolveTool(p.cfg.Tools.Build), Args: args}, nil
}

// testCommand runs the test executable for t in its own directory.
// Returns the command and the report path.
func (p *Pipeline) testCommand(t Target) (runner.Command, string, error) {
	vars := p.targetVars(t)
	exe, err := config.Expand(p.cfg.Test.Executable, vars)
	if err != nil {
		return runner.Command{}, "", expandError("test executable", err)
	}
	exe = p.cfg.Resolve(exe)

	var report string
	if p.cfg.Test.Report != "" {
		if report, err = config.Expand(p.cfg.Test.Report, vars); err != nil {
			return runner.Command{}, "", expandError("test report", err)
		}
		report = p.cfg.Resolve(report)
	}

	args, err := config.ExpandArgs(p.cfg.Test.Args, vars.With("report", report), nil)
	if err != nil {
		return runner.Command{}, "", expandError("test args", err)
	}
	return runner.Command{Path: exe, Args: args, Dir: filepath.Dir(exe)}, report, nil
}

// artifactSet returns t's per-module libraries in module order.
func (p *Pipeline) artifactSet(t Target) ([]string, error) {
	vars := p.targetVars(t)
	inputs := make([]string, 0, len(p.cfg.Modules))
	for _, m := range p.cfg.Modules {
		path, err := config.Expand(p.cfg.Archive.ArtifactPattern, vars.With("module", m))
		if err != nil {
			return nil, expandError("artifact pattern", err)
		}
		inputs = append(inputs, p.cfg.Resolve(path))
	}
	return inputs, nil
}

// archiveOutput returns the combined library path for t.
func (p *Pipeline) archiveOutput(t Target) (string, error) {
	out, err := config.Expand(p.cfg.Archive.Output, p.targetVars(t))
	if err != nil {
		return "", expandError("archive output", err)
	}
	return p.cfg.Resolve(out), nil
}

// archiveCommand merges inputs into out with t's platform archiver.
func (p *Pipeline) archiveCommand(t Target, inputs []string, out string) (runner.Command, error) {
	vars := p.targetVars(t).With("out", out)
	args, err := config.ExpandArgs(p.cfg.Archive.Args, vars, inputs)
	if err != nil {
		return runner.Command{}, expandError("archive args", err)
	}
	return runner.Command{Path: p.cfg.ResolveTool(p.cfg.Tools.ArchiverFor(t.Platform)), Args: args}, nil
}

// packageCopies resolves the package file rules for t into source and
// destination pairs. Relative destinations land under the deployment root.
func (p *Pipeline) packageCopies(t Target) ([][2]string, error) {
	vars := p.targetVars(t)
	pairs := make([][2]string, 0, len(p.cfg.Package.Files))
	for _, rule := range p.cfg.Package.Files {
		from, err := config.Expand(rule.From, vars)
		if err != nil {
			return nil, expandError("package file", err)
		}
		to, err := config.Expand(rule.To, vars)
		if err != nil {
			return nil, expandError("package file", err)
		}
		if !filepath.IsAbs(to) {
			to = filepath.Join(p.cfg.DeployRoot(), to)
		}
		pairs = append(pairs, [2]string{p.cfg.Resolve(from), to})
	}
	return pairs, nil
}

// docsCommand runs the documentation generator in the docs directory.
// Returns the command and the error log path.
func (p *Pipeline) docsCommand() (runner.Command, string, error) {
	dir := p.cfg.Resolve(p.cfg.Docs.Dir)
	vars := p.runVars().With("docs_config", filepath.Join(dir, p.cfg.Docs.Config))
	args, err := config.ExpandArgs(p.cfg.Docs.Args, vars, nil)
	if err != nil {
		return runner.Command{}, "", expandError("docs args", err)
	}
	errLog := ""
	if p.cfg.Docs.ErrorLog != "" {
		errLog = filepath.Join(dir, p.cfg.Docs.ErrorLog)
	}
	return runner.Command{Path: p.cfg.ResolveTool(p.cfg.Tools.Docs), Args: args, Dir: dir}, errLog, nil
}

// headersDest is where the public header tree is copied.
func (p *Pipeline) headersDest() string {
	return filepath.Join(p.cfg.DeployRoot(), "include")
}

// expandError reports a template that could not be expanded for a stage.
// The command was never launched, so it counts as a stage failure.
func expandError(what string, err error) error {
	return fmt.Errorf("%w: expanding %s: %w", ErrStageFailed, what, err)
}
