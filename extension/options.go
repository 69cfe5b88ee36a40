package extension

import (
	"time"

	"github.com/sukino/stockledger"
	"github.com/sukino/stockledger/plugin"
	"github.com/sukino/stockledger/store"
)

// Option configures the stock ledger Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedgerOption passes a stockledger.Option through to the ledger.
func WithLedgerOption(opt stockledger.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, stockledger.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBranches replaces the built-in branch list.
func WithBranches(names ...string) Option {
	return func(e *Extension) { e.config.Branches = names }
}

// WithTimezone sets the IANA zone used for expiry checks.
func WithTimezone(name string) Option {
	return func(e *Extension) { e.config.Timezone = name }
}

// WithMaxWriteRetries sets the version-conflict retry budget.
func WithMaxWriteRetries(n int) Option {
	return func(e *Extension) { e.config.MaxWriteRetries = n }
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
