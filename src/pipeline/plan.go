package pipeline

import (
	"fmt"
	"strings"

	"github.com/dglib/buildpipe/src/runner"
)

// PlannedStep is one action a run would take, in execution order.
type PlannedStep struct {
	Stage   Stage
	Target  *Target
	Action  string          // human-readable description
	Command *runner.Command // nil for filesystem actions
}

// Plan lists every action Run would take without executing anything or
// touching the filesystem.
func (p *Pipeline) Plan() ([]PlannedStep, error) {
	var steps []PlannedStep
	add := func(s Stage, t *Target, action string, cmd *runner.Command) {
		steps = append(steps, PlannedStep{Stage: s, Target: t, Action: action, Command: cmd})
	}

	skeleton := strings.Join(p.cfg.Paths.Skeleton, ", ")
	add(StagePrepare, nil, "recreate "+p.cfg.DeployRoot()+" ["+skeleton+"]", nil)

	for _, t := range Targets(p.cfg) {
		target := t

		cmd, err := p.compileCommand(t, p.cfg.Compile.Solution)
		if err != nil {
			return nil, err
		}
		add(StageCompile, &target, cmd.String(), &cmd)

		testCmd, _, err := p.testCommand(t)
		if err != nil {
			return nil, err
		}
		add(StageTest, &target, testCmd.String(), &testCmd)

		inputs, err := p.artifactSet(t)
		if err != nil {
			return nil, err
		}
		out, err := p.archiveOutput(t)
		if err != nil {
			return nil, err
		}
		archCmd, err := p.archiveCommand(t, inputs, out)
		if err != nil {
			return nil, err
		}
		add(StageArchive, &target, archCmd.String(), &archCmd)

		if !p.cfg.Package.Packages(t.Configuration) {
			continue
		}
		if p.cfg.Package.Samples.Enabled {
			samples, err := p.compileCommand(t, p.cfg.Package.Samples.Solution)
			if err != nil {
				return nil, err
			}
			add(StagePackage, &target, samples.String(), &samples)
		}
		pairs, err := p.packageCopies(t)
		if err != nil {
			return nil, err
		}
		for _, pair := range pairs {
			add(StagePackage, &target, fmt.Sprintf("copy %s -> %s", pair[0], pair[1]), nil)
		}
	}

	add(StageHeaders, nil, fmt.Sprintf("copy %s -> %s", p.cfg.Resolve(p.cfg.Paths.Headers), p.headersDest()), nil)

	if p.cfg.Docs.Enabled {
		docs, errLog, err := p.docsCommand()
		if err != nil {
			return nil, err
		}
		add(StageDocs, nil, docs.String(), &docs)
		if p.cfg.Docs.FailOnErrors && errLog != "" {
			add(StageDocs, nil, "fail if "+errLog+" is not empty", nil)
		}
	}
	return steps, nil
}
