package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// RetentionPolicy decides how many old build logs survive a run.
// Rules are additive: a log is kept if any rule wants it.
type RetentionPolicy struct {
	KeepLast    int `yaml:"keep_last" toml:"keep_last"`       // the N most recent logs
	KeepDaily   int `yaml:"keep_daily" toml:"keep_daily"`     // one per day for the last N days
	KeepWeekly  int `yaml:"keep_weekly" toml:"keep_weekly"`   // one per week for the last N weeks
	KeepMonthly int `yaml:"keep_monthly" toml:"keep_monthly"` // one per month for the last N months
}

// Active reports whether any rule is set. An inactive policy keeps everything.
func (r RetentionPolicy) Active() bool {
	return r.KeepLast > 0 || r.KeepDaily > 0 || r.KeepWeekly > 0 || r.KeepMonthly > 0
}

// UnmarshalYAML accepts both forms:
//
//	log_retention: 10          → RetentionPolicy{KeepLast: 10}
//	log_retention:
//	  keep_last: 3
//	  keep_daily: 7            → RetentionPolicy{KeepLast: 3, KeepDaily: 7}
func (r *RetentionPolicy) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var n int
		if err := value.Decode(&n); err != nil {
			return fmt.Errorf("log_retention: expected integer or policy map, got %q", value.Value)
		}
		*r = RetentionPolicy{KeepLast: n}
		return nil
	case yaml.MappingNode:
		type policyAlias RetentionPolicy
		var alias policyAlias
		if err := value.Decode(&alias); err != nil {
			return fmt.Errorf("log_retention: %w", err)
		}
		*r = RetentionPolicy(alias)
		return nil
	}
	return fmt.Errorf("log_retention: expected integer or map, got YAML kind %d", value.Kind)
}
