package config

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Validate checks structural invariants of a loaded Config.
// Returns a single error joining every problem found.
func Validate(cfg *Config) error {
	var errs []string

	if strings.TrimSpace(cfg.Library) == "" {
		errs = append(errs, "library: is required")
	}

	if cfg.Version != "" {
		if _, err := semver.NewVersion(cfg.Version); err != nil {
			errs = append(errs, fmt.Sprintf("version: %q is not a semantic version: %v", cfg.Version, err))
		}
	}

	// ── Matrix ────────────────────────────────────────────────────────────

	errs = append(errs, validateList("platforms", cfg.Platforms)...)
	errs = append(errs, validateList("configurations", cfg.Configurations)...)
	errs = append(errs, validateList("modules", cfg.Modules)...)

	known := make(map[string]bool, len(cfg.Configurations))
	for _, c := range cfg.Configurations {
		known[c] = true
	}
	for i, c := range cfg.Package.Configurations {
		if !known[c] {
			errs = append(errs, fmt.Sprintf("package.configurations[%d]: %q is not in configurations", i, c))
		}
	}

	// ── Tools ─────────────────────────────────────────────────────────────

	if cfg.Tools.Build == "" {
		errs = append(errs, "tools.build: is required")
	}
	for _, p := range cfg.Platforms {
		if cfg.Tools.ArchiverFor(p) == "" {
			errs = append(errs, fmt.Sprintf("tools.archiver: no archiver for platform %q", p))
		}
	}
	if cfg.Docs.Enabled && cfg.Tools.Docs == "" {
		errs = append(errs, "tools.docs: is required when docs are enabled")
	}

	// ── Paths ─────────────────────────────────────────────────────────────

	if cfg.Paths.Deploy == "" {
		errs = append(errs, "paths.deploy: is required")
	}
	if cfg.Paths.Logs == "" {
		errs = append(errs, "paths.logs: is required")
	}

	// ── Templates ─────────────────────────────────────────────────────────

	templates := map[string][]string{
		"compile.args":             cfg.Compile.Args,
		"test.args":                cfg.Test.Args,
		"archive.args":             cfg.Archive.Args,
		"docs.args":                cfg.Docs.Args,
		"test.executable":          {cfg.Test.Executable},
		"test.report":              {cfg.Test.Report},
		"archive.artifact_pattern": {cfg.Archive.ArtifactPattern},
		"archive.output":           {cfg.Archive.Output},
	}
	for i, f := range cfg.Package.Files {
		templates[fmt.Sprintf("package.files[%d]", i)] = []string{f.From, f.To}
	}
	for _, field := range sortedKeys(templates) {
		for _, tmpl := range templates[field] {
			for _, name := range unknownVars(tmpl) {
				errs = append(errs, fmt.Sprintf("%s: unknown template variable {%s}", field, name))
			}
			if misplacedInputs(field, tmpl) {
				errs = append(errs, fmt.Sprintf("%s: {inputs} must be a whole argument of archive.args", field))
			}
		}
	}
	if cfg.Archive.ArtifactPattern == "" {
		errs = append(errs, "archive.artifact_pattern: is required")
	}
	if cfg.Archive.Output == "" {
		errs = append(errs, "archive.output: is required")
	}
	if cfg.Test.Executable == "" {
		errs = append(errs, "test.executable: is required")
	}
	for i, f := range cfg.Package.Files {
		if f.From == "" || f.To == "" {
			errs = append(errs, fmt.Sprintf("package.files[%d]: from and to are required", i))
			continue
		}
		if insideHeaders(f.To) {
			errs = append(errs, fmt.Sprintf("package.files[%d]: to %q is inside include/, which holds the copied headers", i, f.To))
		}
	}

	r := cfg.LogRetention
	if r.KeepLast < 0 || r.KeepDaily < 0 || r.KeepWeekly < 0 || r.KeepMonthly < 0 {
		errs = append(errs, "log_retention: counts must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// validateList rejects empty lists, blank entries, and duplicates.
func validateList(field string, items []string) []string {
	if len(items) == 0 {
		return []string{fmt.Sprintf("%s: at least one entry is required", field)}
	}
	var errs []string
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		switch {
		case strings.TrimSpace(item) == "":
			errs = append(errs, fmt.Sprintf("%s[%d]: is empty", field, i))
		case seen[item]:
			errs = append(errs, fmt.Sprintf("%s[%d]: duplicate entry %q", field, i, item))
		}
		seen[item] = true
	}
	return errs
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// insideHeaders reports whether a package destination lands in the
// deployment's include/ tree, written by the headers stage.
func insideHeaders(to string) bool {
	to = filepath.ToSlash(to)
	to = strings.TrimPrefix(to, "{deploy}/{library}/")
	if path.IsAbs(to) || strings.HasPrefix(to, "{") {
		return false
	}
	first, _, _ := strings.Cut(path.Clean(to), "/")
	return first == "include"
}
