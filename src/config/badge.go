package config

// BadgeConfig holds build-status badge configuration.
type BadgeConfig struct {
	Enabled  bool    `yaml:"enabled" toml:"enabled"`
	Path     string  `yaml:"path" toml:"path"`           // output file (default: <logs>/build-status.svg)
	Label    string  `yaml:"label" toml:"label"`         // left side text
	FontSize float64 `yaml:"font_size" toml:"font_size"` // pixel size (default: 11)

	// Font is an optional TTF/OTF path; Go Regular is used when empty.
	Font string `yaml:"font,omitempty" toml:"font,omitempty"`
}

// DefaultBadgeConfig returns sensible defaults for the status badge.
func DefaultBadgeConfig() BadgeConfig {
	return BadgeConfig{
		Enabled:  true,
		Path:     "build/logs/build-status.svg",
		Label:    "build",
		FontSize: 11,
	}
}
