package config

// Overrides carries command-line values that take precedence over the file.
// Zero values leave the loaded configuration untouched.
type Overrides struct {
	Platforms      []string
	Configurations []string
	NoDocs         bool
	NoSamples      bool
	DocsLenient    bool
}

// Apply merges o into cfg. Package configurations not selected by a
// --configuration override are dropped so validation still holds.
func (o Overrides) Apply(cfg *Config) {
	if len(o.Platforms) > 0 {
		cfg.Platforms = append([]string(nil), o.Platforms...)
	}
	if len(o.Configurations) > 0 {
		cfg.Configurations = append([]string(nil), o.Configurations...)

		selected := make(map[string]bool, len(o.Configurations))
		for _, c := range o.Configurations {
			selected[c] = true
		}
		var kept []string
		for _, c := range cfg.Package.Configurations {
			if selected[c] {
				kept = append(kept, c)
			}
		}
		cfg.Package.Configurations = kept
	}
	if o.NoDocs {
		cfg.Docs.Enabled = false
	}
	if o.NoSamples {
		cfg.Package.Samples.Enabled = false
	}
	if o.DocsLenient {
		cfg.Docs.FailOnErrors = false
	}
}
