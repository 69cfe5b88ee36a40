package stockledger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sukino/stockledger"
	"github.com/sukino/stockledger/access"
	"github.com/sukino/stockledger/branch"
	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/history"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/plugin"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/store"
	"github.com/sukino/stockledger/store/memory"
	"github.com/sukino/stockledger/types"
)

var ist = time.FixedZone("IST", 5*60*60+30*60)

// 2025-06-10 09:00 in IST.
var fixedNow = time.Date(2025, 6, 10, 9, 0, 0, 0, ist)

var (
	admin   = access.Principal{UserID: "u-admin", Name: "Asha", Role: access.RoleAdmin}
	manager = access.Principal{UserID: "u-mgr", Name: "Ravi", Role: access.RoleBranchManager, Branch: branch.Koramangala}
	floater = access.Principal{UserID: "u-float", Name: "Meera", Role: access.RoleBranchManager}
	viewer  = access.Principal{UserID: "u-view", Name: "Kiran", Role: access.RoleUser}
)

type recorder struct {
	mu        sync.Mutex
	fallbacks int
	conflicts int
	rejected  int
	merged    []plugin.MergeSummary
	deleted   []id.ID
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnLookupFallback(context.Context, types.Kind, string, string, error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks++
	return nil
}

func (r *recorder) OnWriteConflict(context.Context, types.Kind, string, string, int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts++
	return nil
}

func (r *recorder) OnConsumptionRejected(context.Context, string, string, decimal.Decimal, decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected++
	return nil
}

func (r *recorder) OnDuplicatesMerged(_ context.Context, s plugin.MergeSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merged = append(r.merged, s)
	return nil
}

func (r *recorder) OnAggregateDeleted(_ context.Context, _ types.Kind, _ string, aggregateID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, aggregateID)
	return nil
}

type fixture struct {
	l   *stockledger.Ledger
	s   *memory.Store
	rec *recorder
}

func newFixture(t *testing.T, opts ...stockledger.Option) *fixture {
	t.Helper()
	s := memory.New()
	return newFixtureWith(t, s, s, opts...)
}

func newFixtureWith(t *testing.T, mem *memory.Store, st store.Store, opts ...stockledger.Option) *fixture {
	t.Helper()
	rec := &recorder{}
	base := []stockledger.Option{
		stockledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		stockledger.WithLocation(ist),
		stockledger.WithClock(func() time.Time { return fixedNow }),
		stockledger.WithPlugin(rec),
	}
	l := stockledger.New(st, append(base, opts...)...)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })
	return &fixture{l: l, s: mem, rec: rec}
}

func as(p access.Principal) context.Context {
	return access.WithPrincipal(context.Background(), p)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func purchaseIn(b, desc, qty string) stockledger.PurchaseInput {
	return stockledger.PurchaseInput{
		Branch:        b,
		Description:   desc,
		Vendor:        "Metro",
		BillNo:        "B-17",
		BillAmount:    "1450",
		Qty:           qty,
		UnitOfMeasure: "kg",
	}
}

func consumeIn(b, desc, qty string) stockledger.ConsumptionInput {
	return stockledger.ConsumptionInput{Branch: b, Description: desc, Qty: qty}
}

// ──────────────────────────────────────────────────
// Scenarios
// ──────────────────────────────────────────────────

func TestPurchaseAccumulatesIntoOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := as(admin)

	first, err := f.l.RecordPurchase(ctx, purchaseIn(branch.Koramangala, "Toor Dal", "10"))
	require.NoError(t, err)
	assert.True(t, first.PreviousTotal.IsZero())
	assert.True(t, dec("10").Equal(first.NewTotal))
	assert.Equal(t, "toor dal", first.NormalizedDescription)
	assert.Equal(t, "Asha", first.RecordedBy)

	second, err := f.l.RecordPurchase(ctx, purchaseIn(branch.Koramangala, "  toor DAL ", "5.5"))
	require.NoError(t, err)
	assert.Equal(t, first.ID.String(), second.ID.String(), "same item updates the same row")
	assert.True(t, dec("10").Equal(second.PreviousTotal))
	assert.True(t, dec("15.5").Equal(second.NewTotal))
	assert.True(t, second.NewTotal.Equal(second.PreviousTotal.Add(second.Qty)))
	assert.Equal(t, "toor DAL", second.Description)

	rows, err := f.l.ListPurchases(ctx, branch.Koramangala, purchase.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	recs, err := f.l.PurchaseHistory(ctx, branch.Koramangala, history.ListOpts{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, history.ActionPurchase, recs[0].Action)
	assert.True(t, dec("15.5").Equal(recs[0].NewTotal))
	assert.True(t, dec("10").Equal(recs[1].NewTotal))

	// Other branches are separate ledgers.
	other, err := f.l.RecordPurchase(ctx, purchaseIn(branch.Cochin, "Toor Dal", "2"))
	require.NoError(t, err)
	assert.True(t, dec("2").Equal(other.NewTotal))
}

func TestConsumptionTracksBalanceAndRejectsOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := as(admin)

	_, err := f.l.RecordPurchase(ctx, purchaseIn(branch.Koramangala, "Toor Dal", "15"))
	require.NoError(t, err)

	c, err := f.l.RecordConsumption(ctx, consumeIn(branch.Koramangala, "toor dal", "4"))
	require.NoError(t, err)
	assert.True(t, dec("4").Equal(c.TotalConsumed))
	assert.True(t, dec("11").Equal(c.Balance))

	_, err = f.l.RecordConsumption(ctx, consumeIn(branch.Koramangala, "Toor Dal", "12"))
	require.Error(t, err)
	assert.ErrorIs(t, err, stockledger.ErrInsufficientStock)
	assert.Equal(t, `Cannot consume 12. Available stock for "Toor Dal" is 11.`, err.Error())

	var ise stockledger.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.True(t, dec("11").Equal(ise.Available))
	assert.Equal(t, 1, f.rec.rejected)

	// Nothing was written for the rejected attempt.
	recs, err := f.l.ConsumptionHistory(ctx, branch.Koramangala, history.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	c, err = f.l.RecordConsumption(ctx, consumeIn(branch.Koramangala, "Toor Dal", "11"))
	require.NoError(t, err)
	assert.True(t, dec("15").Equal(c.TotalConsumed))
	assert.True(t, c.Balance.IsZero())

	avail, err := f.l.Available(ctx, branch.Koramangala, "TOOR DAL")
	require.NoError(t, err)
	assert.True(t, avail.IsZero())
}

func TestConsumeUnknownItemIsRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.l.RecordConsumption(as(admin), consumeIn(branch.Cochin, "Saffron", "1"))
	assert.ErrorIs(t, err, stockledger.ErrInsufficientStock)
	assert.Equal(t, `Cannot consume 1. Available stock for "Saffron" is 0.`, err.Error())
}

func TestLegacyRowsAreFoundByScan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	legacy := &purchase.Aggregate{
		ID:            id.NewPurchaseID(),
		Branch:        branch.Whitefield,
		Description:   "Basmati Rice ",
		Qty:           dec("20"),
		NewTotal:      dec("20"),
		UnitOfMeasure: "kg",
	}
	require.NoError(t, f.s.InsertPurchase(ctx, legacy))

	got, err := f.l.RecordPurchase(as(admin), purchaseIn(branch.Whitefield, "basmati rice", "5"))
	require.NoError(t, err)
	assert.Equal(t, legacy.ID.String(), got.ID.String())
	assert.True(t, dec("20").Equal(got.PreviousTotal))
	assert.True(t, dec("25").Equal(got.NewTotal))
	assert.Equal(t, "basmati rice", got.NormalizedDescription, "key is backfilled on write")
	assert.Equal(t, 1, f.rec.fallbacks)

	// Now indexed, so no further scan is needed.
	_, err = f.l.Stock(as(viewer), branch.Whitefield, "Basmati Rice")
	require.NoError(t, err)
	assert.Equal(t, 1, f.rec.fallbacks)
}

type failingFind struct {
	*memory.Store
}

func (failingFind) FindPurchasesByItem(context.Context, string, string) ([]*purchase.Aggregate, error) {
	return nil, errors.New("index missing")
}

func TestIndexedLookupFailureFallsBack(t *testing.T) {
	mem := memory.New()
	f := newFixtureWith(t, mem, failingFind{mem})
	ctx := as(admin)

	_, err := f.l.RecordPurchase(ctx, purchaseIn(branch.Cochin, "Jaggery", "3"))
	require.NoError(t, err)
	got, err := f.l.RecordPurchase(ctx, purchaseIn(branch.Cochin, "jaggery", "4"))
	require.NoError(t, err)
	assert.True(t, dec("7").Equal(got.NewTotal))
	assert.Equal(t, 2, f.rec.fallbacks)
}

func TestDuplicatesUseLargestTotalAndMerge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, total := range []string{"10", "14"} {
		require.NoError(t, f.s.InsertPurchase(ctx, &purchase.Aggregate{
			ID:                    id.NewPurchaseID(),
			Branch:                branch.HSRLayout,
			Description:           "Sugar",
			NormalizedDescription: "sugar",
			Qty:                   dec("2"),
			PreviousTotal:         dec(total).Sub(dec("2")),
			NewTotal:              dec(total),
		}))
		time.Sleep(2 * time.Millisecond)
	}
	for _, consumed := range []string{"3", "1"} {
		require.NoError(t, f.s.InsertConsumption(ctx, &consumption.Aggregate{
			ID:                    id.NewConsumptionID(),
			Branch:                branch.HSRLayout,
			Description:           "sugar",
			NormalizedDescription: "sugar",
			Qty:                   dec("1"),
			TotalConsumed:         dec(consumed),
		}))
		time.Sleep(2 * time.Millisecond)
	}

	level, err := f.l.Stock(as(viewer), branch.HSRLayout, "Sugar")
	require.NoError(t, err)
	assert.True(t, dec("14").Equal(level.Purchased))
	assert.True(t, dec("3").Equal(level.Consumed))
	assert.True(t, dec("11").Equal(level.Available))

	_, err = f.l.MergeDuplicates(as(manager), branch.HSRLayout, types.KindPurchase)
	assert.ErrorIs(t, err, stockledger.ErrForbidden)

	report, err := f.l.MergeDuplicates(as(admin), branch.HSRLayout, types.KindPurchase)
	require.NoError(t, err)
	assert.Equal(t, 1, report.GroupsMerged)
	assert.Equal(t, 2, report.RowsMoved)
	require.Len(t, report.Groups, 1)
	assert.True(t, dec("14").Equal(report.Groups[0].Total))

	rows, err := f.l.ListPurchases(ctx, branch.HSRLayout, purchase.ListOpts{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, dec("14").Equal(rows[0].NewTotal))
	assert.True(t, rows[0].NewTotal.Equal(rows[0].PreviousTotal.Add(rows[0].Qty)))

	recs, err := f.l.PurchaseHistory(ctx, branch.HSRLayout, history.ListOpts{Action: history.ActionMerged})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.NotNil(t, r.MovedAt)
	}

	report, err = f.l.MergeDuplicates(as(admin), branch.HSRLayout, types.KindConsumption)
	require.NoError(t, err)
	assert.Equal(t, 1, report.GroupsMerged)

	crows, err := f.l.ListConsumptions(ctx, branch.HSRLayout, consumption.ListOpts{})
	require.NoError(t, err)
	require.Len(t, crows, 1)
	assert.True(t, dec("3").Equal(crows[0].TotalConsumed))
	assert.True(t, dec("11").Equal(crows[0].Balance))

	require.Len(t, f.rec.merged, 2)
	assert.Equal(t, types.KindConsumption, f.rec.merged[1].Kind)

	// A second run finds nothing to do.
	report, err = f.l.MergeDuplicates(as(admin), branch.HSRLayout, types.KindPurchase)
	require.NoError(t, err)
	assert.Zero(t, report.GroupsMerged)
}

func TestMergeUnknownKind(t *testing.T) {
	f := newFixture(t)
	_, err := f.l.MergeDuplicates(as(admin), branch.Cochin, types.Kind("refund"))
	assert.ErrorIs(t, err, stockledger.ErrUnknownKind)
}

// ──────────────────────────────────────────────────
// Validation
// ──────────────────────────────────────────────────

func TestPurchaseValidation(t *testing.T) {
	f := newFixture(t)
	ctx := as(admin)

	tests := []struct {
		name   string
		mutate func(*stockledger.PurchaseInput)
		msg    string
	}{
		{"missing branch", func(in *stockledger.PurchaseInput) { in.Branch = "" }, "Please select a branch first"},
		{"unknown branch", func(in *stockledger.PurchaseInput) { in.Branch = "Mysore" }, `Unknown branch "Mysore"`},
		{"blank description", func(in *stockledger.PurchaseInput) { in.Description = "  " }, "Please fill all required fields (including MOU)."},
		{"missing unit", func(in *stockledger.PurchaseInput) { in.UnitOfMeasure = "" }, "Please fill all required fields (including MOU)."},
		{"text qty", func(in *stockledger.PurchaseInput) { in.Qty = "ten" }, "Numeric fields must be numbers"},
		{"text amount", func(in *stockledger.PurchaseInput) { in.BillAmount = "1.2.3" }, "Numeric fields must be numbers"},
		{"zero qty", func(in *stockledger.PurchaseInput) { in.Qty = "0" }, "Quantity must be greater than zero."},
		{"negative amount", func(in *stockledger.PurchaseInput) { in.BillAmount = "-1" }, "Bill amount cannot be negative."},
		{"expiry today", func(in *stockledger.PurchaseInput) { in.ExpiryDate = "2025-06-10" }, "Expiry date must be a future date."},
		{"expiry past", func(in *stockledger.PurchaseInput) { in.ExpiryDate = "2024-01-01" }, "Expiry date must be a future date."},
		{"expiry garbage", func(in *stockledger.PurchaseInput) { in.ExpiryDate = "10/06/2026" }, "Expiry date must be a date (YYYY-MM-DD)."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := purchaseIn(branch.Koramangala, "Toor Dal", "1")
			tt.mutate(&in)
			_, err := f.l.RecordPurchase(ctx, in)
			require.Error(t, err)
			assert.ErrorIs(t, err, stockledger.ErrInvalidInput)
			assert.Equal(t, tt.msg, err.Error())
		})
	}

	rows, err := f.l.ListPurchases(ctx, branch.Koramangala, purchase.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPurchaseAcceptsFormattedNumbersAndFutureExpiry(t *testing.T) {
	f := newFixture(t)

	in := purchaseIn(branch.Koramangala, "Ghee", " 1,250.5 ")
	in.BillAmount = "0"
	in.ExpiryDate = "2025-06-11"
	got, err := f.l.RecordPurchase(as(admin), in)
	require.NoError(t, err)
	assert.True(t, dec("1250.5").Equal(got.Qty))
	assert.Equal(t, "2025-06-11", got.ExpiryDate)
}

func TestConsumptionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := as(admin)

	_, err := f.l.RecordConsumption(ctx, consumeIn(branch.Cochin, "", "1"))
	assert.EqualError(t, err, "Please fill all fields")
	_, err = f.l.RecordConsumption(ctx, consumeIn(branch.Cochin, "Salt", "lots"))
	assert.EqualError(t, err, "Consumption quantity must be a number")
	_, err = f.l.RecordConsumption(ctx, consumeIn("", "Salt", "1"))
	assert.EqualError(t, err, "Please select a branch first")
	_, err = f.l.RecordConsumption(ctx, consumeIn(branch.Cochin, "Salt", "-2"))
	assert.EqualError(t, err, "Quantity must be greater than zero.")
}

// ──────────────────────────────────────────────────
// Roles
// ──────────────────────────────────────────────────

func TestRoles(t *testing.T) {
	f := newFixture(t)

	_, err := f.l.RecordPurchase(as(viewer), purchaseIn(branch.Koramangala, "Salt", "1"))
	assert.ErrorIs(t, err, stockledger.ErrForbidden)
	assert.EqualError(t, err, "You are not allowed to add purchases")

	_, err = f.l.RecordPurchase(context.Background(), purchaseIn(branch.Koramangala, "Salt", "1"))
	assert.ErrorIs(t, err, stockledger.ErrForbidden, "no principal reads only")

	_, err = f.l.RecordConsumption(as(viewer), consumeIn(branch.Koramangala, "Salt", "1"))
	assert.EqualError(t, err, "You are not allowed to add consumption")

	_, err = f.l.RecordPurchase(as(manager), purchaseIn(branch.Cochin, "Salt", "1"))
	assert.ErrorIs(t, err, stockledger.ErrForbidden, "manager confined to assigned branch")

	_, err = f.l.RecordPurchase(as(floater), purchaseIn(branch.Cochin, "Salt", "1"))
	assert.NoError(t, err, "manager without a branch may write anywhere")

	got, err := f.l.RecordPurchase(as(manager), purchaseIn("", "Salt", "2"))
	require.NoError(t, err)
	assert.Equal(t, branch.Koramangala, got.Branch, "manager defaults to assigned branch")

	err = f.l.DeleteAggregate(as(manager), branch.Koramangala, types.KindPurchase, got.ID)
	assert.EqualError(t, err, "Only admin can delete rows")

	_, err = f.l.Snapshot(as(manager), branch.Koramangala)
	assert.ErrorIs(t, err, stockledger.ErrForbidden)

	level, err := f.l.Stock(as(viewer), branch.Koramangala, "salt")
	require.NoError(t, err)
	assert.True(t, dec("2").Equal(level.Available))
}

// ──────────────────────────────────────────────────
// Admin operations
// ──────────────────────────────────────────────────

func TestDeleteLeavesHistory(t *testing.T) {
	f := newFixture(t)
	ctx := as(admin)

	p, err := f.l.RecordPurchase(ctx, purchaseIn(branch.BGRoad, "Oil", "4"))
	require.NoError(t, err)

	err = f.l.DeleteAggregate(ctx, branch.Cochin, types.KindPurchase, p.ID)
	assert.ErrorIs(t, err, stockledger.ErrNotFound, "row belongs to another branch")

	require.NoError(t, f.l.DeleteAggregate(ctx, branch.BGRoad, types.KindPurchase, p.ID))
	assert.Len(t, f.rec.deleted, 1)

	rows, err := f.l.ListPurchases(ctx, branch.BGRoad, purchase.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, rows)

	recs, err := f.l.PurchaseHistory(ctx, branch.BGRoad, history.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	err = f.l.DeleteAggregate(ctx, branch.BGRoad, types.KindPurchase, p.ID)
	assert.ErrorIs(t, err, stockledger.ErrNotFound)
}

func TestEditPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := as(admin)

	p, err := f.l.RecordPurchase(ctx, purchaseIn(branch.BGRoad, "Oil", "4"))
	require.NoError(t, err)

	vendor, desc := "Reliance", "OIL"
	got, err := f.l.EditPurchase(ctx, branch.BGRoad, p.ID, stockledger.PurchaseEdit{Vendor: &vendor, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Reliance", got.Vendor)
	assert.Equal(t, "OIL", got.Description)
	assert.True(t, dec("4").Equal(got.NewTotal), "totals untouched")
	assert.Equal(t, p.Version+1, got.Version)

	other := "Sunflower Oil"
	_, err = f.l.EditPurchase(ctx, branch.BGRoad, p.ID, stockledger.PurchaseEdit{Description: &other})
	assert.ErrorIs(t, err, stockledger.ErrInvalidInput)

	_, err = f.l.EditPurchase(as(manager), branch.BGRoad, p.ID, stockledger.PurchaseEdit{Vendor: &vendor})
	assert.EqualError(t, err, "Only admin can edit rows")

	recs, err := f.l.PurchaseHistory(ctx, branch.BGRoad, history.ListOpts{Action: history.ActionEdit})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Reliance", recs[0].Vendor)
}

func TestEditConsumption(t *testing.T) {
	f := newFixture(t)
	ctx := as(admin)

	_, err := f.l.RecordPurchase(ctx, purchaseIn(branch.BGRoad, "Oil", "4"))
	require.NoError(t, err)
	c, err := f.l.RecordConsumption(ctx, consumeIn(branch.BGRoad, "oil", "1"))
	require.NoError(t, err)

	desc := "Oil"
	got, err := f.l.EditConsumption(ctx, branch.BGRoad, c.ID, stockledger.ConsumptionEdit{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Oil", got.Description)
	assert.True(t, dec("3").Equal(got.Balance))
}

// ──────────────────────────────────────────────────
// Concurrency
// ──────────────────────────────────────────────────

type conflictingStore struct {
	*memory.Store
	mu        sync.Mutex
	conflicts int
}

func (s *conflictingStore) UpdatePurchase(ctx context.Context, a *purchase.Aggregate) error {
	s.mu.Lock()
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return stockledger.ErrConflict
	}
	s.mu.Unlock()
	return s.Store.UpdatePurchase(ctx, a)
}

func TestWriteConflictIsRetried(t *testing.T) {
	mem := memory.New()
	cs := &conflictingStore{Store: mem}
	f := newFixtureWith(t, mem, cs)
	ctx := as(admin)

	_, err := f.l.RecordPurchase(ctx, purchaseIn(branch.Cochin, "Rice", "1"))
	require.NoError(t, err)

	cs.conflicts = 2
	got, err := f.l.RecordPurchase(ctx, purchaseIn(branch.Cochin, "Rice", "1"))
	require.NoError(t, err)
	assert.True(t, dec("2").Equal(got.NewTotal))
	assert.Equal(t, 2, f.rec.conflicts)

	cs.conflicts = 10
	_, err = f.l.RecordPurchase(ctx, purchaseIn(branch.Cochin, "Rice", "1"))
	assert.ErrorIs(t, err, stockledger.ErrConflict)
	assert.True(t, stockledger.IsRetryable(err))
}

func TestConcurrentPurchasesDoNotLoseUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := as(admin)

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.l.RecordPurchase(ctx, purchaseIn(branch.Coimbatore, "Rava", "1"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rows, err := f.l.ListPurchases(ctx, branch.Coimbatore, purchase.ListOpts{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, dec("25").Equal(rows[0].NewTotal), rows[0].NewTotal.String())

	recs, err := f.l.PurchaseHistory(ctx, branch.Coimbatore, history.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, recs, n)
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

func TestPreviewsAndItemNames(t *testing.T) {
	f := newFixture(t)
	ctx := as(admin)

	_, err := f.l.RecordPurchase(ctx, purchaseIn(branch.Cochin, "Toor Dal", "10"))
	require.NoError(t, err)
	_, err = f.l.RecordPurchase(ctx, purchaseIn(branch.Cochin, "atta", "3"))
	require.NoError(t, err)
	_, err = f.l.RecordConsumption(ctx, consumeIn(branch.Cochin, "toor dal", "4"))
	require.NoError(t, err)

	pp, err := f.l.PreviewPurchase(ctx, branch.Cochin, "TOOR DAL", dec("2"))
	require.NoError(t, err)
	assert.True(t, dec("10").Equal(pp.PreviousTotal))
	assert.True(t, dec("12").Equal(pp.NewTotal))

	cp, err := f.l.PreviewConsumption(ctx, branch.Cochin, "toor dal", dec("7"))
	require.NoError(t, err)
	assert.False(t, cp.Allowed)
	assert.True(t, dec("6").Equal(cp.Available))

	names, err := f.l.ItemNames(ctx, branch.Cochin)
	require.NoError(t, err)
	assert.Equal(t, []string{"atta", "toor dal"}, names)

	assert.Equal(t, branch.All(), f.l.Branches())
}

func TestCustomBranches(t *testing.T) {
	f := newFixture(t, stockledger.WithBranches("Mysore"))

	_, err := f.l.RecordPurchase(as(admin), purchaseIn("Mysore", "Salt", "1"))
	require.NoError(t, err)
	_, err = f.l.RecordPurchase(as(admin), purchaseIn(branch.Cochin, "Salt", "1"))
	assert.ErrorIs(t, err, stockledger.ErrInvalidInput)
}
