package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Default config file names, tried in order when no path is given.
var defaultConfigFiles = []string{"buildpipe.yml", "buildpipe.yaml", "buildpipe.toml"}

// Config is the top-level buildpipe configuration.
type Config struct {
	// Library is the name of the combined output library and of the
	// top-level directory inside the deployment tree.
	Library string `yaml:"library" toml:"library"`

	// Version is the package version recorded in the manifest. Must be
	// semver when set; otherwise it is derived from the git tag at HEAD.
	Version string `yaml:"version,omitempty" toml:"version,omitempty"`

	// Platforms and Configurations form the build matrix, iterated
	// platform-major in the order given.
	Platforms      []string `yaml:"platforms" toml:"platforms"`
	Configurations []string `yaml:"configurations" toml:"configurations"`

	// Modules lists the per-module libraries merged by the archive stage.
	Modules []string `yaml:"modules" toml:"modules"`

	Paths   PathsConfig   `yaml:"paths" toml:"paths"`
	Tools   ToolsConfig   `yaml:"tools" toml:"tools"`
	Compile CompileConfig `yaml:"compile" toml:"compile"`
	Test    TestConfig    `yaml:"test" toml:"test"`
	Archive ArchiveConfig `yaml:"archive" toml:"archive"`
	Package PackageConfig `yaml:"package" toml:"package"`
	Docs    DocsConfig    `yaml:"docs" toml:"docs"`
	Badge   BadgeConfig   `yaml:"badge" toml:"badge"`

	// LogRetention prunes old build logs after the current one is opened.
	// The zero policy keeps every log.
	LogRetention RetentionPolicy `yaml:"log_retention" toml:"log_retention"`

	// Root is the directory relative paths resolve against: the directory
	// holding the config file, or the working directory without one.
	Root string `yaml:"-" toml:"-"`

	// Source is the config file that was loaded, empty for defaults.
	Source string `yaml:"-" toml:"-"`
}

// PathsConfig holds the fixed directory layout consumed and produced by a run.
type PathsConfig struct {
	Logs        string   `yaml:"logs" toml:"logs"`
	TestResults string   `yaml:"test_results" toml:"test_results"`
	Deploy      string   `yaml:"deploy" toml:"deploy"`
	Output      string   `yaml:"output" toml:"output"`
	Headers     string   `yaml:"headers" toml:"headers"`
	Skeleton    []string `yaml:"skeleton" toml:"skeleton"` // subdirectories created under <deploy>/<library>
}

// Load reads configuration from a YAML or TOML file, picked by extension.
// If path is empty, it tries the default files in the working directory.
// Returns defaults rooted at the working directory if none exist.
func Load(path string) (*Config, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		for _, name := range defaultConfigFiles {
			candidate := filepath.Join(wd, name)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg := defaults()
			cfg.Root = wd
			return cfg, nil
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s does not exist", path)
		}
		return nil, err
	}

	cfg, err := Parse(data, formatFor(abs))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Root = filepath.Dir(abs)
	cfg.Source = abs
	return cfg, nil
}

// Format is a config file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func formatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes data over the defaults. Fields absent from data keep their
// default values; lists present in data replace the default list.
//
// The built-in per-platform archivers only apply while tools.archiver keeps
// its default; decoders merge maps, so they are filled in after decoding.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := defaults()
	cfg.Tools.Archivers = nil
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Tools.Archivers == nil && cfg.Tools.Archiver == DefaultToolsConfig().Archiver {
		cfg.Tools.Archivers = DefaultToolsConfig().Archivers
	}
	return cfg, nil
}

// Resolve returns p as an absolute path, joining relative paths onto Root.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// ResolveTool returns the executable path for a configured tool. Bare names
// without a path separator are left for PATH lookup at exec time.
func (c *Config) ResolveTool(p string) string {
	if p == "" || filepath.IsAbs(p) || !strings.ContainsAny(p, `/\`) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// DeployRoot returns <deploy>/<library>, the directory every packaged file lands in.
func (c *Config) DeployRoot() string {
	return filepath.Join(c.Resolve(c.Paths.Deploy), c.Library)
}

func defaults() *Config {
	return &Config{
		Library:        "DgLib",
		Platforms:      []string{"Win32", "x64"},
		Configurations: []string{"Release"},
		Modules:        []string{"Engine", "Math", "Utility"},
		Paths:          DefaultPathsConfig(),
		Tools:          DefaultToolsConfig(),
		Compile:        DefaultCompileConfig(),
		Test:           DefaultTestConfig(),
		Archive:        DefaultArchiveConfig(),
		Package:        DefaultPackageConfig(),
		Docs:           DefaultDocsConfig(),
		Badge:          DefaultBadgeConfig(),
	}
}

// Defaults returns the built-in configuration rooted at root.
func Defaults(root string) *Config {
	cfg := defaults()
	cfg.Root = root
	return cfg
}

// DefaultPathsConfig returns the directory layout of the original build tree.
func DefaultPathsConfig() PathsConfig {
	return PathsConfig{
		Logs:        "build/logs",
		TestResults: "build/test_results",
		Deploy:      "deploy",
		Output:      "output",
		Headers:     "src/core/public",
		Skeleton:    []string{"3rd party", "docs", "lib", "samples"},
	}
}
