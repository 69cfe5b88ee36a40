// Package sqlstore implements store.Store on any SQL database gorm
// supports. The postgres and sqlite packages open a connection and hand
// it to New with their dialect.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/sukino/stockledger"
	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/history"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using gorm.
type Store struct {
	db      *gorm.DB
	dialect Dialect
}

// New wraps an open gorm connection.
func New(db *gorm.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB returns the underlying gorm handle for direct access.
func (s *Store) DB() *gorm.DB { return s.db }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("stockledger/sql: ping: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("stockledger/sql: close: %w", err)
	}
	return sqlDB.Close()
}

// ==================== Purchase Store ====================

func (s *Store) FindPurchasesByItem(ctx context.Context, branch, normalized string) ([]*purchase.Aggregate, error) {
	var models []purchaseModel
	err := s.db.WithContext(ctx).
		Where("branch = ? AND normalized_description = ?", branch, normalized).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("stockledger/sql: find purchases: %w", err)
	}
	return convertPurchases(models)
}

func (s *Store) ListPurchases(ctx context.Context, branch string, opts purchase.ListOpts) ([]*purchase.Aggregate, error) {
	var models []purchaseModel
	q := s.db.WithContext(ctx).
		Where("branch = ?", branch).
		Order("updated_at DESC, id DESC")
	if err := paginate(q, opts.Limit, opts.Offset).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("stockledger/sql: list purchases: %w", err)
	}
	return convertPurchases(models)
}

func (s *Store) GetPurchase(ctx context.Context, purchaseID id.PurchaseID) (*purchase.Aggregate, error) {
	var m purchaseModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", purchaseID.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, stockledger.ErrNotFound
		}
		return nil, fmt.Errorf("stockledger/sql: get purchase: %w", err)
	}
	return fromPurchaseModel(&m)
}

func (s *Store) InsertPurchase(ctx context.Context, a *purchase.Aggregate) error {
	now := stamp()
	m := toPurchaseModel(a)
	m.CreatedAt, m.UpdatedAt, m.Version = now, now, 1
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("stockledger/sql: insert purchase: %w", err)
	}
	a.CreatedAt, a.UpdatedAt, a.Version = now, now, 1
	return nil
}

func (s *Store) UpdatePurchase(ctx context.Context, a *purchase.Aggregate) error {
	now := stamp()
	res := s.db.WithContext(ctx).
		Model(&purchaseModel{}).
		Where("id = ? AND version = ?", a.ID.String(), a.Version).
		Updates(map[string]any{
			"description":            a.Description,
			"normalized_description": a.NormalizedDescription,
			"vendor":                 a.Vendor,
			"bill_no":                a.BillNo,
			"bill_amount":            a.BillAmount,
			"qty":                    a.Qty,
			"unit_of_measure":        a.UnitOfMeasure,
			"expiry_date":            a.ExpiryDate,
			"previous_total":         a.PreviousTotal,
			"new_total":              a.NewTotal,
			"recorded_by":            a.RecordedBy,
			"version":                a.Version + 1,
			"updated_at":             now,
		})
	if res.Error != nil {
		return fmt.Errorf("stockledger/sql: update purchase: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.missOrConflict(ctx, &purchaseModel{}, a.ID)
	}
	a.UpdatedAt = now
	a.Version++
	return nil
}

func (s *Store) DeletePurchase(ctx context.Context, purchaseID id.PurchaseID) error {
	res := s.db.WithContext(ctx).Delete(&purchaseModel{}, "id = ?", purchaseID.String())
	if res.Error != nil {
		return fmt.Errorf("stockledger/sql: delete purchase: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return stockledger.ErrNotFound
	}
	return nil
}

// ==================== Consumption Store ====================

func (s *Store) FindConsumptionsByItem(ctx context.Context, branch, normalized string) ([]*consumption.Aggregate, error) {
	var models []consumptionModel
	err := s.db.WithContext(ctx).
		Where("branch = ? AND normalized_description = ?", branch, normalized).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("stockledger/sql: find consumptions: %w", err)
	}
	return convertConsumptions(models)
}

func (s *Store) ListConsumptions(ctx context.Context, branch string, opts consumption.ListOpts) ([]*consumption.Aggregate, error) {
	var models []consumptionModel
	q := s.db.WithContext(ctx).
		Where("branch = ?", branch).
		Order("updated_at DESC, id DESC")
	if err := paginate(q, opts.Limit, opts.Offset).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("stockledger/sql: list consumptions: %w", err)
	}
	return convertConsumptions(models)
}

func (s *Store) GetConsumption(ctx context.Context, consumptionID id.ConsumptionID) (*consumption.Aggregate, error) {
	var m consumptionModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", consumptionID.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, stockledger.ErrNotFound
		}
		return nil, fmt.Errorf("stockledger/sql: get consumption: %w", err)
	}
	return fromConsumptionModel(&m)
}

func (s *Store) InsertConsumption(ctx context.Context, a *consumption.Aggregate) error {
	now := stamp()
	m := toConsumptionModel(a)
	m.CreatedAt, m.UpdatedAt, m.Version = now, now, 1
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("stockledger/sql: insert consumption: %w", err)
	}
	a.CreatedAt, a.UpdatedAt, a.Version = now, now, 1
	return nil
}

func (s *Store) UpdateConsumption(ctx context.Context, a *consumption.Aggregate) error {
	now := stamp()
	res := s.db.WithContext(ctx).
		Model(&consumptionModel{}).
		Where("id = ? AND version = ?", a.ID.String(), a.Version).
		Updates(map[string]any{
			"description":            a.Description,
			"normalized_description": a.NormalizedDescription,
			"qty":                    a.Qty,
			"total_consumed":         a.TotalConsumed,
			"balance":                a.Balance,
			"recorded_by":            a.RecordedBy,
			"version":                a.Version + 1,
			"updated_at":             now,
		})
	if res.Error != nil {
		return fmt.Errorf("stockledger/sql: update consumption: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.missOrConflict(ctx, &consumptionModel{}, a.ID)
	}
	a.UpdatedAt = now
	a.Version++
	return nil
}

func (s *Store) DeleteConsumption(ctx context.Context, consumptionID id.ConsumptionID) error {
	res := s.db.WithContext(ctx).Delete(&consumptionModel{}, "id = ?", consumptionID.String())
	if res.Error != nil {
		return fmt.Errorf("stockledger/sql: delete consumption: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return stockledger.ErrNotFound
	}
	return nil
}

// ==================== History Store ====================

func (s *Store) AppendPurchaseHistory(ctx context.Context, r *history.Record) error {
	return s.appendHistory(ctx, tablePurchaseHistory, r)
}

func (s *Store) ListPurchaseHistory(ctx context.Context, branch string, opts history.ListOpts) ([]*history.Record, error) {
	return s.listHistory(ctx, tablePurchaseHistory, branch, opts)
}

func (s *Store) AppendConsumptionHistory(ctx context.Context, r *history.Record) error {
	return s.appendHistory(ctx, tableConsumptionHistory, r)
}

func (s *Store) ListConsumptionHistory(ctx context.Context, branch string, opts history.ListOpts) ([]*history.Record, error) {
	return s.listHistory(ctx, tableConsumptionHistory, branch, opts)
}

func (s *Store) appendHistory(ctx context.Context, table string, r *history.Record) error {
	if r.CreatedAt.IsZero() {
		now := stamp()
		r.CreatedAt, r.UpdatedAt = now, now
	}
	if err := s.db.WithContext(ctx).Table(table).Create(toHistoryModel(r)).Error; err != nil {
		return fmt.Errorf("stockledger/sql: append %s: %w", table, err)
	}
	return nil
}

func (s *Store) listHistory(ctx context.Context, table, branch string, opts history.ListOpts) ([]*history.Record, error) {
	var models []historyModel
	q := s.db.WithContext(ctx).Table(table).Where("branch = ?", branch)
	if opts.Action != "" {
		q = q.Where("action = ?", string(opts.Action))
	}
	q = paginate(q.Order("seq DESC"), opts.Limit, opts.Offset)
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("stockledger/sql: list %s: %w", table, err)
	}

	out := make([]*history.Record, 0, len(models))
	for i := range models {
		r, err := fromHistoryModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("stockledger/sql: list %s: %w", table, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// ==================== Helpers ====================

// stamp is the store clock, truncated to what every supported database
// keeps.
func stamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// paginate applies limit and offset. SQLite needs a LIMIT before OFFSET.
func paginate(q *gorm.DB, limit, offset int) *gorm.DB {
	if limit <= 0 && offset > 0 {
		limit = math.MaxInt32
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

// missOrConflict tells a stale version from a missing row after an
// update matched nothing.
func (s *Store) missOrConflict(ctx context.Context, model any, rowID id.ID) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(model).Where("id = ?", rowID.String()).Count(&n).Error; err != nil {
		return fmt.Errorf("stockledger/sql: check row: %w", err)
	}
	if n == 0 {
		return stockledger.ErrNotFound
	}
	return stockledger.ErrConflict
}

func convertPurchases(models []purchaseModel) ([]*purchase.Aggregate, error) {
	out := make([]*purchase.Aggregate, 0, len(models))
	for i := range models {
		a, err := fromPurchaseModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("stockledger/sql: decode purchase: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

func convertConsumptions(models []consumptionModel) ([]*consumption.Aggregate, error) {
	out := make([]*consumption.Aggregate, 0, len(models))
	for i := range models {
		a, err := fromConsumptionModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("stockledger/sql: decode consumption: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}
