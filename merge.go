package stockledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/sukino/stockledger/access"
	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/history"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/plugin"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/types"
)

// MergeGroup is the outcome for one item that had duplicate rows.
type MergeGroup struct {
	Key           string          `json:"key"`
	Rows          int             `json:"rows"`
	ReplacementID id.ID           `json:"replacement_id,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Error         string          `json:"error,omitempty"`
}

// MergeReport summarizes a MergeDuplicates run.
type MergeReport struct {
	Branch       string       `json:"branch"`
	Kind         types.Kind   `json:"kind"`
	GroupsMerged int          `json:"groups_merged"`
	RowsMoved    int          `json:"rows_moved"`
	GroupsFailed int          `json:"groups_failed"`
	Groups       []MergeGroup `json:"groups"`
}

// MergeDuplicates collapses every item in the branch that has more than
// one aggregate row of the given kind into a single row.
//
// For each group the replacement is inserted first, then every original is
// copied into history with action "merged" and deleted. A failing group is
// reported and the remaining groups still run; the returned error then
// wraps ErrMergePartial.
func (l *Ledger) MergeDuplicates(ctx context.Context, branchName string, kind types.Kind) (*MergeReport, error) {
	who := access.FromContext(ctx)
	if err := authorize(who, access.PermMerge, "", "Only admin can merge duplicates"); err != nil {
		return nil, err
	}
	if err := l.checkBranch(branchName); err != nil {
		return nil, err
	}

	report := &MergeReport{Branch: branchName, Kind: kind}
	var errs error

	switch kind {
	case types.KindPurchase:
		rows, err := l.store.ListPurchases(ctx, branchName, purchase.ListOpts{})
		if err != nil {
			return nil, l.fail(ctx, "list purchases", err)
		}
		groups := groupByKey(rows, (*purchase.Aggregate).Key)
		for _, key := range sortedKeys(groups) {
			g := MergeGroup{Key: key, Rows: len(groups[key])}
			err := l.withItemLock(ctx, branchName, key, func() error {
				return l.mergePurchases(ctx, groups[key], who.Actor(), &g)
			})
			errs = l.tally(report, g, err, errs)
		}

	case types.KindConsumption:
		rows, err := l.store.ListConsumptions(ctx, branchName, consumption.ListOpts{})
		if err != nil {
			return nil, l.fail(ctx, "list consumptions", err)
		}
		groups := groupByKey(rows, (*consumption.Aggregate).Key)
		for _, key := range sortedKeys(groups) {
			g := MergeGroup{Key: key, Rows: len(groups[key])}
			err := l.withItemLock(ctx, branchName, key, func() error {
				purchases, err := l.lookupPurchases(ctx, branchName, key)
				if err != nil {
					return err
				}
				return l.mergeConsumptions(ctx, groups[key], PurchasedTotal(purchases, key), who.Actor(), &g)
			})
			errs = l.tally(report, g, err, errs)
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	l.logger.Info("duplicates merged",
		"branch", branchName,
		"kind", kind,
		"groups", report.GroupsMerged,
		"rows", report.RowsMoved,
		"failed", report.GroupsFailed,
	)
	l.plugins.EmitDuplicatesMerged(ctx, plugin.MergeSummary{
		Branch:       branchName,
		Kind:         kind,
		GroupsMerged: report.GroupsMerged,
		RowsMoved:    report.RowsMoved,
		GroupsFailed: report.GroupsFailed,
	})

	if errs != nil {
		return report, fmt.Errorf("%w: %w", ErrMergePartial, errs)
	}
	return report, nil
}

func (l *Ledger) tally(r *MergeReport, g MergeGroup, err, errs error) error {
	if err != nil {
		g.Error = err.Error()
		r.GroupsFailed++
		l.logger.Warn("merge group failed", "branch", r.Branch, "kind", r.Kind, "item", g.Key, "error", err)
		errs = multierr.Append(errs, fmt.Errorf("merge %q: %w", g.Key, err))
	} else {
		r.GroupsMerged++
		r.RowsMoved += g.Rows
	}
	r.Groups = append(r.Groups, g)
	return errs
}

func (l *Ledger) mergePurchases(ctx context.Context, rows []*purchase.Aggregate, by string, g *MergeGroup) error {
	sortNewest(rows, func(a *purchase.Aggregate) time.Time { return a.UpdatedAt })
	template := rows[0]

	winning := decimal.Zero
	for _, r := range rows {
		if r.NewTotal.GreaterThan(winning) {
			winning = r.NewTotal
		}
	}

	// Keep NewTotal = PreviousTotal + Qty on the replacement.
	repl := template.Clone()
	repl.ID = id.NewPurchaseID()
	repl.Version = 0
	repl.NormalizedDescription = template.Key()
	if repl.Qty.GreaterThan(winning) {
		repl.Qty = winning
	}
	repl.PreviousTotal = winning.Sub(repl.Qty)
	repl.NewTotal = winning
	repl.RecordedBy = by

	if err := l.store.InsertPurchase(ctx, repl); err != nil {
		return l.fail(ctx, "insert merged purchase", err)
	}
	g.ReplacementID = repl.ID
	g.Total = winning

	now := l.now()
	for _, orig := range rows {
		rec := history.FromPurchase(orig, history.ActionMerged, by).Moved(orig.Entity, now)
		if err := l.store.AppendPurchaseHistory(ctx, rec); err != nil {
			return l.fail(ctx, "append merged purchase history", err)
		}
		if err := l.store.DeletePurchase(ctx, orig.ID); err != nil {
			return l.fail(ctx, "delete merged purchase", err)
		}
	}
	return nil
}

func (l *Ledger) mergeConsumptions(ctx context.Context, rows []*consumption.Aggregate, purchased decimal.Decimal, by string, g *MergeGroup) error {
	sortNewest(rows, func(a *consumption.Aggregate) time.Time { return a.UpdatedAt })
	template := rows[0]

	winning := decimal.Zero
	for _, r := range rows {
		if r.TotalConsumed.GreaterThan(winning) {
			winning = r.TotalConsumed
		}
	}

	repl := template.Clone()
	repl.ID = id.NewConsumptionID()
	repl.Version = 0
	repl.NormalizedDescription = template.Key()
	repl.TotalConsumed = winning
	repl.Balance = AvailableFrom(purchased, winning)
	repl.RecordedBy = by

	if err := l.store.InsertConsumption(ctx, repl); err != nil {
		return l.fail(ctx, "insert merged consumption", err)
	}
	g.ReplacementID = repl.ID
	g.Total = winning

	now := l.now()
	for _, orig := range rows {
		rec := history.FromConsumption(orig, history.ActionMerged, by).Moved(orig.Entity, now)
		if err := l.store.AppendConsumptionHistory(ctx, rec); err != nil {
			return l.fail(ctx, "append merged consumption history", err)
		}
		if err := l.store.DeleteConsumption(ctx, orig.ID); err != nil {
			return l.fail(ctx, "delete merged consumption", err)
		}
	}
	return nil
}

// groupByKey keeps only keys with more than one row.
func groupByKey[T any](rows []T, key func(T) string) map[string][]T {
	all := make(map[string][]T)
	for _, r := range rows {
		k := key(r)
		if k == "" {
			continue
		}
		all[k] = append(all[k], r)
	}
	for k, g := range all {
		if len(g) < 2 {
			delete(all, k)
		}
	}
	return all
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (l *Ledger) withItemLock(ctx context.Context, branchName, key string, fn func() error) error {
	unlock, err := l.lockItem(ctx, branchName, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}
