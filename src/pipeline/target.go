package pipeline

import "github.com/dglib/buildpipe/src/config"

// Target is one (platform, configuration) pair.
type Target struct {
	Platform      string
	Configuration string
}

// String renders the target as platform/configuration.
func (t Target) String() string {
	return t.Platform + "/" + t.Configuration
}

// ID is a section-safe identifier, e.g. "x64_release".
func (t Target) ID() string {
	b := []byte(t.Platform + "_" + t.Configuration)
	for i, c := range b {
		switch {
		case c >= 'A' && c <= 'Z':
			b[i] = c + ('a' - 'A')
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}

// Targets returns the platform-major cross product of the configured matrix.
func Targets(cfg *config.Config) []Target {
	targets := make([]Target, 0, len(cfg.Platforms)*len(cfg.Configurations))
	for _, p := range cfg.Platforms {
		for _, c := range cfg.Configurations {
			targets = append(targets, Target{Platform: p, Configuration: c})
		}
	}
	return targets
}
