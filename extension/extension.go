// Package extension provides the Forge extension adapter for the stock
// ledger.
//
// It implements the forge.Extension interface to integrate the ledger
// into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.stockledger" or
// "stockledger" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/sukino/stockledger"
	"github.com/sukino/stockledger/store"
	"github.com/sukino/stockledger/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "stockledger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Multi-branch purchase and consumption stock ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the stock ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	ledger     *stockledger.Ledger
	store      store.Store
	ledgerOpts []stockledger.Option
}

// New creates a new stock ledger Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ledger returns the underlying ledger.
// This is nil until Register is called.
func (e *Extension) Ledger() *stockledger.Ledger { return e.ledger }

// Register implements [forge.Extension]. It loads configuration,
// builds the ledger, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		e.store = memory.New()
	}

	opts, err := e.buildLedgerOpts()
	if err != nil {
		return err
	}
	e.ledger = stockledger.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*stockledger.Ledger, error) {
		return e.ledger, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.ledger == nil {
		return errors.New("stockledger: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.ledger.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	defer e.MarkStopped()
	if e.ledger != nil {
		return e.ledger.Stop()
	}
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.ledger == nil {
		return errors.New("stockledger: ledger not initialized")
	}
	return e.ledger.Ping(ctx)
}

// buildLedgerOpts turns the resolved config into ledger options.
// Pass-through options come last so they win.
func (e *Extension) buildLedgerOpts() ([]stockledger.Option, error) {
	opts := make([]stockledger.Option, 0, len(e.ledgerOpts)+4)

	loc, err := time.LoadLocation(e.config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("stockledger: timezone %q: %w", e.config.Timezone, err)
	}
	opts = append(opts,
		stockledger.WithLocation(loc),
		stockledger.WithMaxWriteRetries(e.config.MaxWriteRetries),
		stockledger.WithPluginTimeout(e.config.PluginTimeout),
	)
	if len(e.config.Branches) > 0 {
		opts = append(opts, stockledger.WithBranches(e.config.Branches...))
	}

	return append(opts, e.ledgerOpts...), nil
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("stockledger: configuration is required but not found in config files; " +
				"ensure 'extensions.stockledger' or 'stockledger' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("stockledger: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("branches", len(e.config.Branches)),
		forge.F("timezone", e.config.Timezone),
		forge.F("max_write_retries", e.config.MaxWriteRetries),
		forge.F("plugin_timeout", e.config.PluginTimeout),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.stockledger", "stockledger"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("stockledger: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("stockledger: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Timezone == "" {
		cfg.Timezone = defaults.Timezone
	}
	if cfg.MaxWriteRetries == 0 {
		cfg.MaxWriteRetries = defaults.MaxWriteRetries
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if len(yamlConfig.Branches) == 0 && len(programmaticConfig.Branches) > 0 {
		yamlConfig.Branches = programmaticConfig.Branches
	}
	if yamlConfig.Timezone == "" {
		yamlConfig.Timezone = programmaticConfig.Timezone
	}
	if yamlConfig.MaxWriteRetries == 0 {
		yamlConfig.MaxWriteRetries = programmaticConfig.MaxWriteRetries
	}
	if yamlConfig.PluginTimeout == 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}

	return mergeWithDefaults(yamlConfig)
}
