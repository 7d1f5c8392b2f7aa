package model

import "time"

// Config is the optional .retest.yaml configuration. All fields have
// working defaults; a project without a config file runs with defaults.
type Config struct {
	Run        RunConfig        `yaml:"run"`
	Policy     PolicyConfig     `yaml:"policy"`
	Watch      WatchConfig      `yaml:"watch"`
	Ecosystems EcosystemsConfig `yaml:"ecosystems"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type RunConfig struct {
	TimeoutSec   int `yaml:"timeout_sec"`   // per-target subprocess budget
	Workers      int `yaml:"workers"`       // bounded execution pool size
	ExcerptLines int `yaml:"excerpt_lines"` // failure output lines kept in the summary
}

type PolicyConfig struct {
	// FailOnNoTests promotes "no related tests" skips to a blocking verdict.
	FailOnNoTests bool `yaml:"fail_on_no_tests"`
}

type WatchConfig struct {
	DebounceMs int      `yaml:"debounce_ms"`
	Ignore     []string `yaml:"ignore"` // directory basenames never watched
}

type EcosystemsConfig struct {
	Disabled []string `yaml:"disabled"` // ecosystem tags excluded from runs
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Timeout returns the per-target budget as a duration.
func (c RunConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// EcosystemEnabled reports whether eco participates in runs.
func (c Config) EcosystemEnabled(eco Ecosystem) bool {
	for _, d := range c.Ecosystems.Disabled {
		if Ecosystem(d) == eco {
			return false
		}
	}
	return true
}
