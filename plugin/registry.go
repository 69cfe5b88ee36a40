package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/types"
)

// DefaultTimeout bounds a single plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and dispatches events to them.
// Hook lists are cached per interface at registration time.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit                []OnInit
	onShutdown            []OnShutdown
	onPurchaseRecorded    []OnPurchaseRecorded
	onConsumptionRecorded []OnConsumptionRecorded
	onConsumptionRejected []OnConsumptionRejected
	onAggregateEdited     []OnAggregateEdited
	onAggregateDeleted    []OnAggregateDeleted
	onDuplicatesMerged    []OnDuplicatesMerged
	onLookupFallback      []OnLookupFallback
	onWriteConflict       []OnWriteConflict
	onStoreError          []OnStoreError
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnPurchaseRecorded); ok {
		r.onPurchaseRecorded = append(r.onPurchaseRecorded, v)
	}
	if v, ok := p.(OnConsumptionRecorded); ok {
		r.onConsumptionRecorded = append(r.onConsumptionRecorded, v)
	}
	if v, ok := p.(OnConsumptionRejected); ok {
		r.onConsumptionRejected = append(r.onConsumptionRejected, v)
	}
	if v, ok := p.(OnAggregateEdited); ok {
		r.onAggregateEdited = append(r.onAggregateEdited, v)
	}
	if v, ok := p.(OnAggregateDeleted); ok {
		r.onAggregateDeleted = append(r.onAggregateDeleted, v)
	}
	if v, ok := p.(OnDuplicatesMerged); ok {
		r.onDuplicatesMerged = append(r.onDuplicatesMerged, v)
	}
	if v, ok := p.(OnLookupFallback); ok {
		r.onLookupFallback = append(r.onLookupFallback, v)
	}
	if v, ok := p.(OnWriteConflict); ok {
		r.onWriteConflict = append(r.onWriteConflict, v)
	}
	if v, ok := p.(OnStoreError); ok {
		r.onStoreError = append(r.onStoreError, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	t    reflect.Type
	name string
}{
	{reflect.TypeFor[OnInit](), "OnInit"},
	{reflect.TypeFor[OnShutdown](), "OnShutdown"},
	{reflect.TypeFor[OnPurchaseRecorded](), "OnPurchaseRecorded"},
	{reflect.TypeFor[OnConsumptionRecorded](), "OnConsumptionRecorded"},
	{reflect.TypeFor[OnConsumptionRejected](), "OnConsumptionRejected"},
	{reflect.TypeFor[OnAggregateEdited](), "OnAggregateEdited"},
	{reflect.TypeFor[OnAggregateDeleted](), "OnAggregateDeleted"},
	{reflect.TypeFor[OnDuplicatesMerged](), "OnDuplicatesMerged"},
	{reflect.TypeFor[OnLookupFallback](), "OnLookupFallback"},
	{reflect.TypeFor[OnWriteConflict](), "OnWriteConflict"},
	{reflect.TypeFor[OnStoreError](), "OnStoreError"},
}

// implementedInterfaces lists the hook interfaces p implements.
func implementedInterfaces(p Plugin) []string {
	var out []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.t) {
			out = append(out, h.name)
		}
	}
	return out
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit calls fn for every plugin in hooks, logging failures.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, hooks []T, fn func(T) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return fn(p) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

func snapshot[T any](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger interface{}) {
	emit(ctx, r, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, ledger)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitPurchaseRecorded emits a purchase recorded event.
func (r *Registry) EmitPurchaseRecorded(ctx context.Context, a *purchase.Aggregate) {
	emit(ctx, r, "OnPurchaseRecorded", snapshot(r, &r.onPurchaseRecorded), func(p OnPurchaseRecorded) error {
		return p.OnPurchaseRecorded(ctx, a)
	})
}

// EmitConsumptionRecorded emits a consumption recorded event.
func (r *Registry) EmitConsumptionRecorded(ctx context.Context, a *consumption.Aggregate) {
	emit(ctx, r, "OnConsumptionRecorded", snapshot(r, &r.onConsumptionRecorded), func(p OnConsumptionRecorded) error {
		return p.OnConsumptionRecorded(ctx, a)
	})
}

// EmitConsumptionRejected emits an insufficient stock event.
func (r *Registry) EmitConsumptionRejected(ctx context.Context, branch, description string, attempted, available decimal.Decimal) {
	emit(ctx, r, "OnConsumptionRejected", snapshot(r, &r.onConsumptionRejected), func(p OnConsumptionRejected) error {
		return p.OnConsumptionRejected(ctx, branch, description, attempted, available)
	})
}

// EmitAggregateEdited emits an edit event.
func (r *Registry) EmitAggregateEdited(ctx context.Context, kind types.Kind, branch string, aggregateID id.ID) {
	emit(ctx, r, "OnAggregateEdited", snapshot(r, &r.onAggregateEdited), func(p OnAggregateEdited) error {
		return p.OnAggregateEdited(ctx, kind, branch, aggregateID)
	})
}

// EmitAggregateDeleted emits a delete event.
func (r *Registry) EmitAggregateDeleted(ctx context.Context, kind types.Kind, branch string, aggregateID id.ID) {
	emit(ctx, r, "OnAggregateDeleted", snapshot(r, &r.onAggregateDeleted), func(p OnAggregateDeleted) error {
		return p.OnAggregateDeleted(ctx, kind, branch, aggregateID)
	})
}

// EmitDuplicatesMerged emits a merge summary.
func (r *Registry) EmitDuplicatesMerged(ctx context.Context, summary MergeSummary) {
	emit(ctx, r, "OnDuplicatesMerged", snapshot(r, &r.onDuplicatesMerged), func(p OnDuplicatesMerged) error {
		return p.OnDuplicatesMerged(ctx, summary)
	})
}

// EmitLookupFallback emits a lookup fallback event.
func (r *Registry) EmitLookupFallback(ctx context.Context, kind types.Kind, branch, normalized string, cause error) {
	emit(ctx, r, "OnLookupFallback", snapshot(r, &r.onLookupFallback), func(p OnLookupFallback) error {
		return p.OnLookupFallback(ctx, kind, branch, normalized, cause)
	})
}

// EmitWriteConflict emits a version conflict event.
func (r *Registry) EmitWriteConflict(ctx context.Context, kind types.Kind, branch, normalized string, attempt int) {
	emit(ctx, r, "OnWriteConflict", snapshot(r, &r.onWriteConflict), func(p OnWriteConflict) error {
		return p.OnWriteConflict(ctx, kind, branch, normalized, attempt)
	})
}

// EmitStoreError emits a store failure event.
func (r *Registry) EmitStoreError(ctx context.Context, op string, err error) {
	emit(ctx, r, "OnStoreError", snapshot(r, &r.onStoreError), func(p OnStoreError) error {
		return p.OnStoreError(ctx, op, err)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins never hold up a write.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
