package pipeline

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// RequirementKind says how a requirement is checked.
type RequirementKind int

const (
	KindTool RequirementKind = iota // executable, looked up on PATH when bare
	KindFile
	KindDir
)

// Requirement is an input that must exist before a run starts.
type Requirement struct {
	Name string
	Path string
	Kind RequirementKind
}

// Requirements lists the tools and source inputs the configured run needs.
// Build outputs such as test executables and module libraries are not
// included; they only exist once compile has run.
func (p *Pipeline) Requirements() []Requirement {
	reqs := []Requirement{
		{Name: "build tool", Path: p.cfg.ResolveTool(p.cfg.Tools.Build), Kind: KindTool},
	}

	seen := map[string]bool{}
	for _, platform := range p.cfg.Platforms {
		path := p.cfg.ResolveTool(p.cfg.Tools.ArchiverFor(platform))
		if seen[path] {
			continue
		}
		seen[path] = true
		reqs = append(reqs, Requirement{Name: "archiver " + platform, Path: path, Kind: KindTool})
	}

	reqs = append(reqs, Requirement{Name: "solution", Path: p.cfg.Resolve(p.cfg.Compile.Solution), Kind: KindFile})

	if p.cfg.Package.Samples.Enabled && p.packagesAny() {
		reqs = append(reqs, Requirement{Name: "samples solution", Path: p.cfg.Resolve(p.cfg.Package.Samples.Solution), Kind: KindFile})
	}

	reqs = append(reqs, Requirement{Name: "headers", Path: p.cfg.Resolve(p.cfg.Paths.Headers), Kind: KindDir})

	if p.cfg.Docs.Enabled {
		dir := p.cfg.Resolve(p.cfg.Docs.Dir)
		reqs = append(reqs,
			Requirement{Name: "docs tool", Path: p.cfg.ResolveTool(p.cfg.Tools.Docs), Kind: KindTool},
			Requirement{Name: "docs config", Path: filepath.Join(dir, p.cfg.Docs.Config), Kind: KindFile},
		)
	}
	return reqs
}

func (p *Pipeline) packagesAny() bool {
	for _, c := range p.cfg.Configurations {
		if p.cfg.Package.Packages(c) {
			return true
		}
	}
	return false
}

// Check reports whether r is satisfied.
func (r Requirement) Check() error {
	if r.Kind == KindTool && !strings.ContainsAny(r.Path, `/\`) {
		if _, err := exec.LookPath(r.Path); err != nil {
			return fmt.Errorf("%s: %s not found on PATH", r.Name, r.Path)
		}
		return nil
	}

	info, err := os.Stat(r.Path)
	if err != nil {
		return fmt.Errorf("%s: %w", r.Name, err)
	}
	switch r.Kind {
	case KindDir:
		if !info.IsDir() {
			return fmt.Errorf("%s: %s is not a directory", r.Name, r.Path)
		}
	default:
		if info.IsDir() {
			return fmt.Errorf("%s: %s is a directory", r.Name, r.Path)
		}
	}
	return nil
}
