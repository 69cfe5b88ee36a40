package stockledger

import (
	"cmp"
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/types"
)

// finder is the pair of store reads an item lookup is built from: the
// indexed query on the normalized field, and a full branch scan.
type finder[T any] struct {
	kind    types.Kind
	byItem  func(ctx context.Context, branch, normalized string) ([]T, error)
	scan    func(ctx context.Context, branch string) ([]T, error)
	key     func(T) string
	updated func(T) time.Time
}

// lookup returns the rows of one item in one branch, newest first.
//
// The indexed query misses rows written before the normalized field
// existed, so when it fails or returns nothing the branch is scanned and
// matched on each row's key instead.
func lookup[T any](ctx context.Context, l *Ledger, f finder[T], branchName, key string) ([]T, error) {
	rows, err := f.byItem(ctx, branchName, key)
	if err == nil && len(rows) > 0 {
		sortNewest(rows, f.updated)
		return rows, nil
	}
	if err != nil {
		l.logger.Warn("indexed item lookup failed, scanning branch",
			"kind", f.kind,
			"branch", branchName,
			"item", key,
			"error", err,
		)
	}

	all, scanErr := f.scan(ctx, branchName)
	if scanErr != nil {
		return nil, l.fail(ctx, "scan "+string(f.kind)+"s", scanErr)
	}
	matches := make([]T, 0, 1)
	for _, r := range all {
		if f.key(r) == key {
			matches = append(matches, r)
		}
	}
	if err != nil || len(matches) > 0 {
		l.plugins.EmitLookupFallback(ctx, f.kind, branchName, key, err)
	}
	sortNewest(matches, f.updated)
	return matches, nil
}

func sortNewest[T any](rows []T, updated func(T) time.Time) {
	sort.SliceStable(rows, func(i, j int) bool {
		return updated(rows[i]).After(updated(rows[j]))
	})
}

func (l *Ledger) purchaseFinder() finder[*purchase.Aggregate] {
	return finder[*purchase.Aggregate]{
		kind:   types.KindPurchase,
		byItem: l.store.FindPurchasesByItem,
		scan: func(ctx context.Context, b string) ([]*purchase.Aggregate, error) {
			return l.store.ListPurchases(ctx, b, purchase.ListOpts{})
		},
		key:     (*purchase.Aggregate).Key,
		updated: func(a *purchase.Aggregate) time.Time { return a.UpdatedAt },
	}
}

func (l *Ledger) consumptionFinder() finder[*consumption.Aggregate] {
	return finder[*consumption.Aggregate]{
		kind:   types.KindConsumption,
		byItem: l.store.FindConsumptionsByItem,
		scan: func(ctx context.Context, b string) ([]*consumption.Aggregate, error) {
			return l.store.ListConsumptions(ctx, b, consumption.ListOpts{})
		},
		key:     (*consumption.Aggregate).Key,
		updated: func(a *consumption.Aggregate) time.Time { return a.UpdatedAt },
	}
}

func (l *Ledger) lookupPurchases(ctx context.Context, branchName, key string) ([]*purchase.Aggregate, error) {
	return lookup(ctx, l, l.purchaseFinder(), branchName, key)
}

func (l *Ledger) lookupConsumptions(ctx context.Context, branchName, key string) ([]*consumption.Aggregate, error) {
	return lookup(ctx, l, l.consumptionFinder(), branchName, key)
}

// itemNames returns the distinct display names across both collections,
// keeping the newest spelling of each item.
func itemNames(purchases []*purchase.Aggregate, consumptions []*consumption.Aggregate) []string {
	type seen struct {
		name string
		at   time.Time
	}
	byKey := make(map[string]seen)
	add := func(key, name string, at time.Time) {
		if key == "" {
			return
		}
		if s, ok := byKey[key]; !ok || at.After(s.at) {
			byKey[key] = seen{name: name, at: at}
		}
	}
	for _, p := range purchases {
		add(p.Key(), p.Description, p.UpdatedAt)
	}
	for _, c := range consumptions {
		add(c.Key(), c.Description, c.UpdatedAt)
	}

	names := make([]string, 0, len(byKey))
	for _, s := range byKey {
		names = append(names, s.name)
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Or(
			strings.Compare(types.Normalize(a), types.Normalize(b)),
			strings.Compare(a, b),
		)
	})
	return names
}
