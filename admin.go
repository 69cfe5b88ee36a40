package stockledger

import (
	"context"
	"strings"

	"github.com/sukino/stockledger/access"
	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/history"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/types"
)

const (
	msgEditRequired    = "Edited fields cannot be blank."
	msgEditNumeric     = "Bill amount must be a number"
	msgEditRenamesItem = "Description can only change letter case or spacing. Record a new purchase for a different item."
)

// ──────────────────────────────────────────────────
// Delete
// ──────────────────────────────────────────────────

// DeleteAggregate removes one aggregate row. History is left untouched.
func (l *Ledger) DeleteAggregate(ctx context.Context, branchName string, kind types.Kind, aggregateID id.ID) error {
	who := access.FromContext(ctx)
	if err := authorize(who, access.PermDelete, "", "Only admin can delete rows"); err != nil {
		return err
	}
	if err := l.checkBranch(branchName); err != nil {
		return err
	}

	switch kind {
	case types.KindPurchase:
		row, err := l.getPurchase(ctx, branchName, aggregateID)
		if err != nil {
			return err
		}
		err = l.withItemLock(ctx, branchName, row.Key(), func() error {
			return l.fail(ctx, "delete purchase", l.store.DeletePurchase(ctx, row.ID))
		})
		if err != nil {
			return err
		}
	case types.KindConsumption:
		row, err := l.getConsumption(ctx, branchName, aggregateID)
		if err != nil {
			return err
		}
		err = l.withItemLock(ctx, branchName, row.Key(), func() error {
			return l.fail(ctx, "delete consumption", l.store.DeleteConsumption(ctx, row.ID))
		})
		if err != nil {
			return err
		}
	default:
		return ErrUnknownKind
	}

	l.logger.Info("aggregate deleted", "kind", kind, "branch", branchName, "id", aggregateID.String())
	l.plugins.EmitAggregateDeleted(ctx, kind, branchName, aggregateID)
	return nil
}

// ──────────────────────────────────────────────────
// Edit
// ──────────────────────────────────────────────────

// EditPurchase changes display fields of a purchase row and records an
// "edit" history entry. Quantities and totals cannot be edited, and the
// description may only change in ways that keep the same item key.
func (l *Ledger) EditPurchase(ctx context.Context, branchName string, aggregateID id.PurchaseID, in PurchaseEdit) (*purchase.Aggregate, error) {
	who := access.FromContext(ctx)
	if err := authorize(who, access.PermEdit, "", "Only admin can edit rows"); err != nil {
		return nil, err
	}
	if err := l.checkBranch(branchName); err != nil {
		return nil, err
	}
	if err := checkStruct(in, msgEditRequired, msgEditNumeric); err != nil {
		return nil, err
	}

	current, err := l.getPurchase(ctx, branchName, aggregateID)
	if err != nil {
		return nil, err
	}
	key := current.Key()
	if in.Description != nil && types.Normalize(*in.Description) != key {
		return nil, ValidationError{Field: "description", Message: msgEditRenamesItem}
	}
	var expiry *string
	if in.ExpiryDate != nil {
		e, err := l.checkExpiry(*in.ExpiryDate)
		if err != nil {
			return nil, err
		}
		expiry = &e
	}

	var out *purchase.Aggregate
	err = l.withItemLock(ctx, branchName, key, func() error {
		return l.withRetry(ctx, types.KindPurchase, branchName, key, func() error {
			row, err := l.getPurchase(ctx, branchName, aggregateID)
			if err != nil {
				return err
			}
			agg := row.Clone()
			if in.Description != nil {
				agg.Description = strings.TrimSpace(*in.Description)
			}
			if in.Vendor != nil {
				agg.Vendor = strings.TrimSpace(*in.Vendor)
			}
			if in.BillNo != nil {
				agg.BillNo = strings.TrimSpace(*in.BillNo)
			}
			if in.BillAmount != nil {
				amount, _ := types.ParseDecimal(*in.BillAmount)
				if amount.IsNegative() {
					return ValidationError{Field: "bill_amount", Message: msgBillAmountNegative}
				}
				agg.BillAmount = amount
			}
			if in.UnitOfMeasure != nil {
				agg.UnitOfMeasure = strings.TrimSpace(*in.UnitOfMeasure)
			}
			if expiry != nil {
				agg.ExpiryDate = *expiry
			}
			agg.NormalizedDescription = key
			if err := l.store.UpdatePurchase(ctx, agg); err != nil {
				return l.fail(ctx, "update purchase", err)
			}
			out = agg
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if err := l.store.AppendPurchaseHistory(ctx, history.FromPurchase(out, history.ActionEdit, who.Actor())); err != nil {
		return out, l.fail(ctx, "append purchase history", err)
	}
	l.logger.Info("purchase edited", "branch", branchName, "id", out.ID.String())
	l.plugins.EmitAggregateEdited(ctx, types.KindPurchase, branchName, out.ID)
	return out, nil
}

// EditConsumption changes the description of a consumption row. Only
// letter case and spacing may change.
func (l *Ledger) EditConsumption(ctx context.Context, branchName string, aggregateID id.ConsumptionID, in ConsumptionEdit) (*consumption.Aggregate, error) {
	who := access.FromContext(ctx)
	if err := authorize(who, access.PermEdit, "", "Only admin can edit rows"); err != nil {
		return nil, err
	}
	if err := l.checkBranch(branchName); err != nil {
		return nil, err
	}
	if err := checkStruct(in, msgEditRequired, msgEditRequired); err != nil {
		return nil, err
	}

	current, err := l.getConsumption(ctx, branchName, aggregateID)
	if err != nil {
		return nil, err
	}
	key := current.Key()
	if in.Description != nil && types.Normalize(*in.Description) != key {
		return nil, ValidationError{Field: "description", Message: msgEditRenamesItem}
	}

	var out *consumption.Aggregate
	err = l.withItemLock(ctx, branchName, key, func() error {
		return l.withRetry(ctx, types.KindConsumption, branchName, key, func() error {
			row, err := l.getConsumption(ctx, branchName, aggregateID)
			if err != nil {
				return err
			}
			agg := row.Clone()
			if in.Description != nil {
				agg.Description = strings.TrimSpace(*in.Description)
			}
			agg.NormalizedDescription = key
			if err := l.store.UpdateConsumption(ctx, agg); err != nil {
				return l.fail(ctx, "update consumption", err)
			}
			out = agg
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if err := l.store.AppendConsumptionHistory(ctx, history.FromConsumption(out, history.ActionEdit, who.Actor())); err != nil {
		return out, l.fail(ctx, "append consumption history", err)
	}
	l.logger.Info("consumption edited", "branch", branchName, "id", out.ID.String())
	l.plugins.EmitAggregateEdited(ctx, types.KindConsumption, branchName, out.ID)
	return out, nil
}

// ──────────────────────────────────────────────────
// Snapshot
// ──────────────────────────────────────────────────

// Snapshot is every live aggregate row of a branch, used for exports.
type Snapshot struct {
	Branch       string
	Purchases    []*purchase.Aggregate
	Consumptions []*consumption.Aggregate
}

// Snapshot returns all aggregate rows of a branch. Admin only.
func (l *Ledger) Snapshot(ctx context.Context, branchName string) (*Snapshot, error) {
	if err := authorize(access.FromContext(ctx), access.PermExport, "", "Only admin can export"); err != nil {
		return nil, err
	}
	purchases, err := l.ListPurchases(ctx, branchName, purchase.ListOpts{})
	if err != nil {
		return nil, err
	}
	consumptions, err := l.ListConsumptions(ctx, branchName, consumption.ListOpts{})
	if err != nil {
		return nil, err
	}
	return &Snapshot{Branch: branchName, Purchases: purchases, Consumptions: consumptions}, nil
}

// ──────────────────────────────────────────────────
// Row access
// ──────────────────────────────────────────────────

// getPurchase loads a row and requires it to belong to branchName.
func (l *Ledger) getPurchase(ctx context.Context, branchName string, aggregateID id.ID) (*purchase.Aggregate, error) {
	row, err := l.store.GetPurchase(ctx, aggregateID)
	if err != nil {
		return nil, l.fail(ctx, "get purchase", err)
	}
	if row.Branch != branchName {
		return nil, storeErr("get purchase", ErrNotFound)
	}
	return row, nil
}

func (l *Ledger) getConsumption(ctx context.Context, branchName string, aggregateID id.ID) (*consumption.Aggregate, error) {
	row, err := l.store.GetConsumption(ctx, aggregateID)
	if err != nil {
		return nil, l.fail(ctx, "get consumption", err)
	}
	if row.Branch != branchName {
		return nil, storeErr("get consumption", ErrNotFound)
	}
	return row, nil
}
