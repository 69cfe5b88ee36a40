package extension

import "time"

// Config holds the stock ledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.stockledger" or
// "stockledger" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Branches replaces the built-in branch list when non-empty.
	Branches []string `json:"branches" mapstructure:"branches" yaml:"branches"`

	// Timezone decides which calendar day "today" is for expiry checks
	// (default: "Asia/Kolkata").
	Timezone string `json:"timezone" mapstructure:"timezone" yaml:"timezone"`

	// MaxWriteRetries bounds how often a write that lost a version race
	// is redone (default: 3).
	MaxWriteRetries int `json:"max_write_retries" mapstructure:"max_write_retries" yaml:"max_write_retries"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timezone:        "Asia/Kolkata",
		MaxWriteRetries: 3,
		PluginTimeout:   5 * time.Second,
	}
}
