package stockledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sukino/stockledger/access"
	"github.com/sukino/stockledger/branch"
	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/history"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/plugin"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/store"
	"github.com/sukino/stockledger/types"
)

// Ledger is the inventory ledger engine. It validates stock movements,
// keeps one running aggregate per (branch, item) and writes history.
type Ledger struct {
	store    store.Store
	plugins  *plugin.Registry
	logger   *slog.Logger
	locker   Locker
	branches branch.Set
	location *time.Location
	clock    func() time.Time

	maxWriteRetries int
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:           s,
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		locker:          NewLocalLocker(),
		location:        time.Local,
		clock:           time.Now,
		maxWriteRetries: 3,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		if err := l.plugins.Register(p); err != nil {
			l.logger.Warn("plugin registration skipped", "plugin", p.Name(), "error", err)
		}
	}
}

// WithPluginTimeout bounds each plugin call.
func WithPluginTimeout(d time.Duration) Option {
	return func(l *Ledger) { l.plugins.WithTimeout(d) }
}

// WithLocker replaces the in-process item lock, e.g. with a Redis lock
// when several processes write to the same store.
func WithLocker(lk Locker) Option {
	return func(l *Ledger) {
		if lk != nil {
			l.locker = lk
		}
	}
}

// WithBranches overrides the allowed branch list.
func WithBranches(names ...string) Option {
	return func(l *Ledger) { l.branches = branch.NewSet(names...) }
}

// WithLocation sets the time zone that decides what "today" is for
// expiry checks.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.location = loc
		}
	}
}

// WithClock sets the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.clock = now
		}
	}
}

// WithMaxWriteRetries sets how many times a write that lost a version
// race is redone before giving up.
func WithMaxWriteRetries(n int) Option {
	return func(l *Ledger) {
		if n >= 0 {
			l.maxWriteRetries = n
		}
	}
}

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return storeErr("migrate", err)
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("stock ledger started",
		"branches", len(l.branches.Names()),
		"location", l.location.String(),
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// Ping checks the store.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.store.Ping(ctx)
}

// Branches returns the allowed branches in display order.
func (l *Ledger) Branches() []string {
	return l.branches.Names()
}

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// ──────────────────────────────────────────────────
// Purchases
// ──────────────────────────────────────────────────

// RecordPurchase adds qty to the item's running purchased total and
// appends a "purchase" history record.
func (l *Ledger) RecordPurchase(ctx context.Context, in PurchaseInput) (*purchase.Aggregate, error) {
	who := access.FromContext(ctx)
	in.Branch = who.DefaultBranch(in.Branch)

	if err := authorize(who, access.PermRecordPurchase, "", "You are not allowed to add purchases"); err != nil {
		return nil, err
	}
	pin, err := l.parsePurchase(in)
	if err != nil {
		return nil, err
	}
	if err := authorize(who, access.PermRecordPurchase, pin.Branch, ""); err != nil {
		return nil, err
	}

	unlock, err := l.lockItem(ctx, pin.Branch, pin.key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out *purchase.Aggregate
	err = l.withRetry(ctx, types.KindPurchase, pin.Branch, pin.key, func() error {
		matches, err := l.lookupPurchases(ctx, pin.Branch, pin.key)
		if err != nil {
			return err
		}

		prev := PurchasedTotal(matches, pin.key)
		var agg *purchase.Aggregate
		if len(matches) > 0 {
			agg = matches[0].Clone()
		} else {
			agg = &purchase.Aggregate{ID: id.NewPurchaseID()}
		}
		agg.Branch = pin.Branch
		agg.Description = pin.Description
		agg.NormalizedDescription = pin.key
		agg.Vendor = pin.Vendor
		agg.BillNo = pin.BillNo
		agg.BillAmount = pin.billAmount
		agg.Qty = pin.qty
		agg.UnitOfMeasure = pin.UnitOfMeasure
		agg.ExpiryDate = pin.ExpiryDate
		agg.PreviousTotal = prev
		agg.NewTotal = prev.Add(pin.qty)
		agg.RecordedBy = who.Actor()

		if len(matches) > 0 {
			if err := l.store.UpdatePurchase(ctx, agg); err != nil {
				return l.fail(ctx, "update purchase", err)
			}
		} else if err := l.store.InsertPurchase(ctx, agg); err != nil {
			return l.fail(ctx, "insert purchase", err)
		}
		out = agg
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := l.store.AppendPurchaseHistory(ctx, history.FromPurchase(out, history.ActionPurchase, who.Actor())); err != nil {
		return out, l.fail(ctx, "append purchase history", err)
	}

	l.logger.Info("purchase recorded",
		"branch", out.Branch,
		"item", out.NormalizedDescription,
		"qty", out.Qty.String(),
		"total", out.NewTotal.String(),
	)
	l.plugins.EmitPurchaseRecorded(ctx, out)
	return out, nil
}

// ListPurchases returns a branch's purchase rows, newest first.
func (l *Ledger) ListPurchases(ctx context.Context, branchName string, opts purchase.ListOpts) ([]*purchase.Aggregate, error) {
	if err := l.checkBranch(branchName); err != nil {
		return nil, err
	}
	rows, err := l.store.ListPurchases(ctx, branchName, opts)
	if err != nil {
		return nil, l.fail(ctx, "list purchases", err)
	}
	return rows, nil
}

// PurchaseHistory returns a branch's purchase history, newest first.
func (l *Ledger) PurchaseHistory(ctx context.Context, branchName string, opts history.ListOpts) ([]*history.Record, error) {
	if err := l.checkBranch(branchName); err != nil {
		return nil, err
	}
	recs, err := l.store.ListPurchaseHistory(ctx, branchName, opts)
	if err != nil {
		return nil, l.fail(ctx, "list purchase history", err)
	}
	return recs, nil
}

// ──────────────────────────────────────────────────
// Consumption
// ──────────────────────────────────────────────────

// RecordConsumption adds qty to the item's consumed total. It is rejected
// with InsufficientStockError, writing nothing, when qty exceeds what is
// available.
func (l *Ledger) RecordConsumption(ctx context.Context, in ConsumptionInput) (*consumption.Aggregate, error) {
	who := access.FromContext(ctx)
	in.Branch = who.DefaultBranch(in.Branch)

	if err := authorize(who, access.PermRecordConsumption, "", "You are not allowed to add consumption"); err != nil {
		return nil, err
	}
	cin, err := l.parseConsumption(in)
	if err != nil {
		return nil, err
	}
	if err := authorize(who, access.PermRecordConsumption, cin.Branch, ""); err != nil {
		return nil, err
	}

	unlock, err := l.lockItem(ctx, cin.Branch, cin.key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		out      *consumption.Aggregate
		rejected *InsufficientStockError
	)
	err = l.withRetry(ctx, types.KindConsumption, cin.Branch, cin.key, func() error {
		purchases, err := l.lookupPurchases(ctx, cin.Branch, cin.key)
		if err != nil {
			return err
		}
		matches, err := l.lookupConsumptions(ctx, cin.Branch, cin.key)
		if err != nil {
			return err
		}

		purchased := PurchasedTotal(purchases, cin.key)
		consumed := ConsumedTotal(matches, cin.key)
		available := AvailableFrom(purchased, consumed)
		if cin.qty.GreaterThan(available) {
			rejected = &InsufficientStockError{
				Description: cin.Description,
				Attempted:   cin.qty,
				Available:   available,
			}
			return rejected
		}

		var agg *consumption.Aggregate
		if len(matches) > 0 {
			agg = matches[0].Clone()
		} else {
			agg = &consumption.Aggregate{ID: id.NewConsumptionID()}
		}
		newConsumed := consumed.Add(cin.qty)
		agg.Branch = cin.Branch
		agg.Description = cin.Description
		agg.NormalizedDescription = cin.key
		agg.Qty = cin.qty
		agg.TotalConsumed = newConsumed
		agg.Balance = AvailableFrom(purchased, newConsumed)
		agg.RecordedBy = who.Actor()

		if len(matches) > 0 {
			if err := l.store.UpdateConsumption(ctx, agg); err != nil {
				return l.fail(ctx, "update consumption", err)
			}
		} else if err := l.store.InsertConsumption(ctx, agg); err != nil {
			return l.fail(ctx, "insert consumption", err)
		}
		out = agg
		return nil
	})
	if rejected != nil {
		l.logger.Info("consumption rejected",
			"branch", cin.Branch,
			"item", cin.key,
			"attempted", rejected.Attempted.String(),
			"available", rejected.Available.String(),
		)
		l.plugins.EmitConsumptionRejected(ctx, cin.Branch, cin.Description, rejected.Attempted, rejected.Available)
		return nil, *rejected
	}
	if err != nil {
		return nil, err
	}

	if err := l.store.AppendConsumptionHistory(ctx, history.FromConsumption(out, history.ActionConsume, who.Actor())); err != nil {
		return out, l.fail(ctx, "append consumption history", err)
	}

	l.logger.Info("consumption recorded",
		"branch", out.Branch,
		"item", out.NormalizedDescription,
		"qty", out.Qty.String(),
		"total", out.TotalConsumed.String(),
		"balance", out.Balance.String(),
	)
	l.plugins.EmitConsumptionRecorded(ctx, out)
	return out, nil
}

// ListConsumptions returns a branch's consumption rows, newest first.
func (l *Ledger) ListConsumptions(ctx context.Context, branchName string, opts consumption.ListOpts) ([]*consumption.Aggregate, error) {
	if err := l.checkBranch(branchName); err != nil {
		return nil, err
	}
	rows, err := l.store.ListConsumptions(ctx, branchName, opts)
	if err != nil {
		return nil, l.fail(ctx, "list consumptions", err)
	}
	return rows, nil
}

// ConsumptionHistory returns a branch's consumption history, newest first.
func (l *Ledger) ConsumptionHistory(ctx context.Context, branchName string, opts history.ListOpts) ([]*history.Record, error) {
	if err := l.checkBranch(branchName); err != nil {
		return nil, err
	}
	recs, err := l.store.ListConsumptionHistory(ctx, branchName, opts)
	if err != nil {
		return nil, l.fail(ctx, "list consumption history", err)
	}
	return recs, nil
}

// ──────────────────────────────────────────────────
// Stock queries
// ──────────────────────────────────────────────────

// StockLevel is the current position of one item in one branch.
type StockLevel struct {
	Branch      string          `json:"branch"`
	Description string          `json:"description"`
	Purchased   decimal.Decimal `json:"purchased"`
	Consumed    decimal.Decimal `json:"consumed"`
	Available   decimal.Decimal `json:"available"`
}

// Stock loads the item's aggregates and computes its totals.
func (l *Ledger) Stock(ctx context.Context, branchName, description string) (*StockLevel, error) {
	if err := l.checkBranch(branchName); err != nil {
		return nil, err
	}
	key := types.Normalize(description)
	if key == "" {
		return nil, ValidationError{Field: "description", Message: "Please enter an item"}
	}
	purchases, err := l.lookupPurchases(ctx, branchName, key)
	if err != nil {
		return nil, err
	}
	consumptions, err := l.lookupConsumptions(ctx, branchName, key)
	if err != nil {
		return nil, err
	}
	purchased := PurchasedTotal(purchases, key)
	consumed := ConsumedTotal(consumptions, key)
	return &StockLevel{
		Branch:      branchName,
		Description: description,
		Purchased:   purchased,
		Consumed:    consumed,
		Available:   AvailableFrom(purchased, consumed),
	}, nil
}

// PurchasedTotal returns the item's purchased total in the branch.
func (l *Ledger) PurchasedTotal(ctx context.Context, branchName, description string) (decimal.Decimal, error) {
	s, err := l.Stock(ctx, branchName, description)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Purchased, nil
}

// ConsumedTotal returns the item's consumed total in the branch.
func (l *Ledger) ConsumedTotal(ctx context.Context, branchName, description string) (decimal.Decimal, error) {
	s, err := l.Stock(ctx, branchName, description)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Consumed, nil
}

// Available returns the item's on-hand quantity in the branch. It is
// never negative.
func (l *Ledger) Available(ctx context.Context, branchName, description string) (decimal.Decimal, error) {
	s, err := l.Stock(ctx, branchName, description)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Available, nil
}

// PreviewPurchase shows the totals a purchase of qty would produce.
func (l *Ledger) PreviewPurchase(ctx context.Context, branchName, description string, qty decimal.Decimal) (PurchasePreview, error) {
	s, err := l.Stock(ctx, branchName, description)
	if err != nil {
		return PurchasePreview{}, err
	}
	return PurchasePreview{PreviousTotal: s.Purchased, NewTotal: s.Purchased.Add(qty)}, nil
}

// PreviewConsumption shows what a consumption of qty would do.
func (l *Ledger) PreviewConsumption(ctx context.Context, branchName, description string, qty decimal.Decimal) (ConsumptionPreview, error) {
	if err := l.checkBranch(branchName); err != nil {
		return ConsumptionPreview{}, err
	}
	key := types.Normalize(description)
	purchases, err := l.lookupPurchases(ctx, branchName, key)
	if err != nil {
		return ConsumptionPreview{}, err
	}
	consumptions, err := l.lookupConsumptions(ctx, branchName, key)
	if err != nil {
		return ConsumptionPreview{}, err
	}
	return PreviewConsumption(purchases, consumptions, key, qty), nil
}

// ItemNames returns the distinct item descriptions seen in a branch,
// sorted, for suggestion lists.
func (l *Ledger) ItemNames(ctx context.Context, branchName string) ([]string, error) {
	purchases, err := l.ListPurchases(ctx, branchName, purchase.ListOpts{})
	if err != nil {
		return nil, err
	}
	consumptions, err := l.ListConsumptions(ctx, branchName, consumption.ListOpts{})
	if err != nil {
		return nil, err
	}
	return itemNames(purchases, consumptions), nil
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// authorize checks perm, and when branchName is set, that the principal
// may write there. msg overrides the message of a role denial.
func authorize(who access.Principal, perm access.Permission, branchName, msg string) error {
	if !who.Can(perm) {
		return NotPermittedError{Role: string(who.Role), Action: perm.String(), Message: msg}
	}
	if branchName != "" && !who.CanWriteBranch(branchName) {
		return NotPermittedError{
			Role:    string(who.Role),
			Action:  perm.String(),
			Branch:  branchName,
			Message: "You are not allowed to make entries for " + branchName,
		}
	}
	return nil
}

func (l *Ledger) lockItem(ctx context.Context, branchName, key string) (func(), error) {
	unlock, err := l.locker.Lock(ctx, itemKey(branchName, key))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, storeErr("lock item", errors.Join(ErrLockNotHeld, err))
	}
	return unlock, nil
}

// withRetry runs fn, redoing it while it loses version races.
func (l *Ledger) withRetry(ctx context.Context, kind types.Kind, branchName, key string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if !errors.Is(err, ErrConflict) || attempt > l.maxWriteRetries {
			return err
		}
		l.logger.Debug("write conflict, retrying",
			"kind", kind,
			"branch", branchName,
			"item", key,
			"attempt", attempt,
		)
		l.plugins.EmitWriteConflict(ctx, kind, branchName, key, attempt)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
}

// fail wraps a store error and reports unexpected ones to plugins.
func (l *Ledger) fail(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrNotFound) {
		l.logger.Error("store operation failed", "op", op, "error", err)
		l.plugins.EmitStoreError(ctx, op, err)
	}
	return storeErr(op, err)
}

func (l *Ledger) now() time.Time { return l.clock().UTC() }
