package config

// ToolsConfig holds the paths of the external executables a run invokes.
type ToolsConfig struct {
	// Build is the multi-project build front end (e.g. MSBuild).
	Build string `yaml:"build" toml:"build"`

	// Archiver merges static libraries (e.g. lib.exe). Archivers overrides
	// it per platform, since the x86 and x64 archivers are distinct binaries.
	Archiver  string            `yaml:"archiver" toml:"archiver"`
	Archivers map[string]string `yaml:"archivers,omitempty" toml:"archivers,omitempty"`

	// Docs is the documentation generator (e.g. doxygen).
	Docs string `yaml:"docs" toml:"docs"`
}

// ArchiverFor returns the archiver configured for platform.
func (t ToolsConfig) ArchiverFor(platform string) string {
	if p, ok := t.Archivers[platform]; ok && p != "" {
		return p
	}
	return t.Archiver
}

// CompileConfig describes the compile contract shared by the library and
// samples builds.
type CompileConfig struct {
	Solution string   `yaml:"solution" toml:"solution"`
	Args     []string `yaml:"args" toml:"args"`
}

// TestConfig describes the test runner invocation.
type TestConfig struct {
	// Executable is a path template; the runner starts in its directory.
	Executable string   `yaml:"executable" toml:"executable"`
	Report     string   `yaml:"report" toml:"report"`
	Args       []string `yaml:"args" toml:"args"`
}

// ArchiveConfig describes how per-module artifacts are merged.
type ArchiveConfig struct {
	// ArtifactPattern locates one module's library for a target.
	ArtifactPattern string `yaml:"artifact_pattern" toml:"artifact_pattern"`

	// Output is the combined library path. Its directory is recreated
	// immediately before the archiver runs.
	Output string   `yaml:"output" toml:"output"`
	Args   []string `yaml:"args" toml:"args"`
}

// PackageConfig controls the conditional package stage.
type PackageConfig struct {
	// Configurations lists the build configurations that get packaged.
	Configurations []string      `yaml:"configurations" toml:"configurations"`
	Samples        SamplesConfig `yaml:"samples" toml:"samples"`

	// Files are copied into the deployment tree for each packaged target.
	Files []CopyRule `yaml:"files,omitempty" toml:"files,omitempty"`
}

// SamplesConfig is the secondary samples project built with the compile contract.
type SamplesConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Solution string `yaml:"solution" toml:"solution"`
}

// CopyRule copies one file or directory. Both sides are templates; To is
// relative to <deploy>/<library> unless absolute. To may not point into
// include/, which the headers stage fills after packaging.
type CopyRule struct {
	From string `yaml:"from" toml:"from"`
	To   string `yaml:"to" toml:"to"`
}

// Packages reports whether configuration is listed for packaging.
func (p PackageConfig) Packages(configuration string) bool {
	for _, c := range p.Configurations {
		if c == configuration {
			return true
		}
	}
	return false
}

// DocsConfig controls the documentation step that runs after all targets.
type DocsConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Dir is the generator's working directory; Config and ErrorLog are
	// relative to it.
	Dir      string   `yaml:"dir" toml:"dir"`
	Config   string   `yaml:"config" toml:"config"`
	ErrorLog string   `yaml:"error_log" toml:"error_log"`
	Args     []string `yaml:"args" toml:"args"`

	// FailOnErrors fails the run when the error log is non-empty.
	FailOnErrors bool `yaml:"fail_on_errors" toml:"fail_on_errors"`
}

// DefaultToolsConfig returns the tool locations of the original build tree.
func DefaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		Build:    "3rd_party/MSBuild/MSBuild.exe",
		Archiver: "3rd_party/lib.exe/x64/lib.exe",
		Archivers: map[string]string{
			"Win32": "3rd_party/lib.exe/x86/lib.exe",
		},
		Docs: "3rd_party/doxygen/doxygen.exe",
	}
}

// DefaultCompileConfig returns MSBuild rebuild arguments.
func DefaultCompileConfig() CompileConfig {
	return CompileConfig{
		Solution: "DgLib.sln",
		Args: []string{
			"{solution}",
			"/property:Configuration={configuration}",
			"/property:Platform={platform}",
			"/t:Rebuild",
		},
	}
}

// DefaultTestConfig returns the test runner invocation.
func DefaultTestConfig() TestConfig {
	return TestConfig{
		Executable: "{output}/Tests/{platform}/{configuration}/Tests.exe",
		Report:     "{test_results}/unit-test-results-{platform}-{configuration}.txt",
		Args:       []string{"-out", "{report}"},
	}
}

// DefaultArchiveConfig returns lib.exe style archiver arguments.
func DefaultArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		ArtifactPattern: "{output}/{module}/{platform}/{configuration}/{module}.lib",
		Output:          "{deploy}/{library}/lib/{platform}/{configuration}/{library}.lib",
		Args:            []string{"/OUT:{out}", "{inputs}"},
	}
}

// DefaultPackageConfig packages Release builds and checks that samples build.
func DefaultPackageConfig() PackageConfig {
	return PackageConfig{
		Configurations: []string{"Release"},
		Samples: SamplesConfig{
			Enabled:  true,
			Solution: "src/samples/Samples.sln",
		},
	}
}

// DefaultDocsConfig returns the doxygen setup of the original build tree.
func DefaultDocsConfig() DocsConfig {
	return DocsConfig{
		Enabled:      true,
		Dir:          "build/doxygen",
		Config:       "Doxyfile",
		ErrorLog:     "doxygen-error-log.txt",
		Args:         []string{"{docs_config}"},
		FailOnErrors: true,
	}
}
