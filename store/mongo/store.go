// Package mongo implements store.Store on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sukino/stockledger"
	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/history"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/purchase"
	ledgerstore "github.com/sukino/stockledger/store"
)

// Collection name constants.
const (
	colPurchases          = "stockledger_purchases"
	colConsumptions       = "stockledger_consumptions"
	colPurchaseHistory    = "stockledger_purchase_history"
	colConsumptionHistory = "stockledger_consumption_history"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using the MongoDB driver.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New wraps a database handle. Close disconnects its client.
func New(db *mongo.Database) *Store {
	return &Store{client: db.Client(), db: db}
}

// Open connects to uri and uses database name.
func Open(ctx context.Context, uri, name string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("stockledger/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("stockledger/mongo: ping: %w", err)
	}
	return New(client.Database(name)), nil
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *mongo.Database { return s.db }

// Migrate creates indexes for all stock ledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("stockledger/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ==================== Purchase Store ====================

func (s *Store) FindPurchasesByItem(ctx context.Context, branch, normalized string) ([]*purchase.Aggregate, error) {
	var models []purchaseModel
	err := s.findAll(ctx, colPurchases, bson.M{"branch": branch, "normalized_description": normalized}, nil, &models)
	if err != nil {
		return nil, fmt.Errorf("stockledger/mongo: find purchases: %w", err)
	}
	return convert(models, fromPurchaseModel)
}

func (s *Store) ListPurchases(ctx context.Context, branch string, opts purchase.ListOpts) ([]*purchase.Aggregate, error) {
	var models []purchaseModel
	err := s.findAll(ctx, colPurchases, bson.M{"branch": branch}, listOptions(opts.Limit, opts.Offset, "updated_at"), &models)
	if err != nil {
		return nil, fmt.Errorf("stockledger/mongo: list purchases: %w", err)
	}
	return convert(models, fromPurchaseModel)
}

func (s *Store) GetPurchase(ctx context.Context, purchaseID id.PurchaseID) (*purchase.Aggregate, error) {
	var m purchaseModel
	err := s.db.Collection(colPurchases).FindOne(ctx, bson.M{"_id": purchaseID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, stockledger.ErrNotFound
		}
		return nil, fmt.Errorf("stockledger/mongo: get purchase: %w", err)
	}
	return fromPurchaseModel(&m)
}

func (s *Store) InsertPurchase(ctx context.Context, a *purchase.Aggregate) error {
	t := now()
	m := toPurchaseModel(a)
	m.CreatedAt, m.UpdatedAt, m.Version = t, t, 1
	if _, err := s.db.Collection(colPurchases).InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return stockledger.ErrConflict
		}
		return fmt.Errorf("stockledger/mongo: insert purchase: %w", err)
	}
	a.CreatedAt, a.UpdatedAt, a.Version = t, t, 1
	return nil
}

func (s *Store) UpdatePurchase(ctx context.Context, a *purchase.Aggregate) error {
	t := now()
	m := toPurchaseModel(a)
	update := bson.M{"$set": bson.M{
		"description":            m.Description,
		"normalized_description": m.NormalizedDescription,
		"vendor":                 m.Vendor,
		"bill_no":                m.BillNo,
		"bill_amount":            m.BillAmount,
		"qty":                    m.Qty,
		"unit_of_measure":        m.UnitOfMeasure,
		"expiry_date":            m.ExpiryDate,
		"previous_total":         m.PreviousTotal,
		"new_total":              m.NewTotal,
		"recorded_by":            m.RecordedBy,
		"version":                a.Version + 1,
		"updated_at":             t,
	}}
	if err := s.casUpdate(ctx, colPurchases, a.ID, a.Version, update); err != nil {
		return err
	}
	a.UpdatedAt = t
	a.Version++
	return nil
}

func (s *Store) DeletePurchase(ctx context.Context, purchaseID id.PurchaseID) error {
	return s.deleteOne(ctx, colPurchases, purchaseID)
}

// ==================== Consumption Store ====================

func (s *Store) FindConsumptionsByItem(ctx context.Context, branch, normalized string) ([]*consumption.Aggregate, error) {
	var models []consumptionModel
	err := s.findAll(ctx, colConsumptions, bson.M{"branch": branch, "normalized_description": normalized}, nil, &models)
	if err != nil {
		return nil, fmt.Errorf("stockledger/mongo: find consumptions: %w", err)
	}
	return convert(models, fromConsumptionModel)
}

func (s *Store) ListConsumptions(ctx context.Context, branch string, opts consumption.ListOpts) ([]*consumption.Aggregate, error) {
	var models []consumptionModel
	err := s.findAll(ctx, colConsumptions, bson.M{"branch": branch}, listOptions(opts.Limit, opts.Offset, "updated_at"), &models)
	if err != nil {
		return nil, fmt.Errorf("stockledger/mongo: list consumptions: %w", err)
	}
	return convert(models, fromConsumptionModel)
}

func (s *Store) GetConsumption(ctx context.Context, consumptionID id.ConsumptionID) (*consumption.Aggregate, error) {
	var m consumptionModel
	err := s.db.Collection(colConsumptions).FindOne(ctx, bson.M{"_id": consumptionID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, stockledger.ErrNotFound
		}
		return nil, fmt.Errorf("stockledger/mongo: get consumption: %w", err)
	}
	return fromConsumptionModel(&m)
}

func (s *Store) InsertConsumption(ctx context.Context, a *consumption.Aggregate) error {
	t := now()
	m := toConsumptionModel(a)
	m.CreatedAt, m.UpdatedAt, m.Version = t, t, 1
	if _, err := s.db.Collection(colConsumptions).InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return stockledger.ErrConflict
		}
		return fmt.Errorf("stockledger/mongo: insert consumption: %w", err)
	}
	a.CreatedAt, a.UpdatedAt, a.Version = t, t, 1
	return nil
}

func (s *Store) UpdateConsumption(ctx context.Context, a *consumption.Aggregate) error {
	t := now()
	m := toConsumptionModel(a)
	update := bson.M{"$set": bson.M{
		"description":            m.Description,
		"normalized_description": m.NormalizedDescription,
		"qty":                    m.Qty,
		"total_consumed":         m.TotalConsumed,
		"balance":                m.Balance,
		"recorded_by":            m.RecordedBy,
		"version":                a.Version + 1,
		"updated_at":             t,
	}}
	if err := s.casUpdate(ctx, colConsumptions, a.ID, a.Version, update); err != nil {
		return err
	}
	a.UpdatedAt = t
	a.Version++
	return nil
}

func (s *Store) DeleteConsumption(ctx context.Context, consumptionID id.ConsumptionID) error {
	return s.deleteOne(ctx, colConsumptions, consumptionID)
}

// ==================== History Store ====================

func (s *Store) AppendPurchaseHistory(ctx context.Context, r *history.Record) error {
	return s.appendHistory(ctx, colPurchaseHistory, r)
}

func (s *Store) ListPurchaseHistory(ctx context.Context, branch string, opts history.ListOpts) ([]*history.Record, error) {
	return s.listHistory(ctx, colPurchaseHistory, branch, opts)
}

func (s *Store) AppendConsumptionHistory(ctx context.Context, r *history.Record) error {
	return s.appendHistory(ctx, colConsumptionHistory, r)
}

func (s *Store) ListConsumptionHistory(ctx context.Context, branch string, opts history.ListOpts) ([]*history.Record, error) {
	return s.listHistory(ctx, colConsumptionHistory, branch, opts)
}

func (s *Store) appendHistory(ctx context.Context, col string, r *history.Record) error {
	t := now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt, r.UpdatedAt = t, t
	}
	if _, err := s.db.Collection(col).InsertOne(ctx, toHistoryModel(r, t)); err != nil {
		return fmt.Errorf("stockledger/mongo: append %s: %w", col, err)
	}
	return nil
}

func (s *Store) listHistory(ctx context.Context, col, branch string, opts history.ListOpts) ([]*history.Record, error) {
	filter := bson.M{"branch": branch}
	if opts.Action != "" {
		filter["action"] = string(opts.Action)
	}
	var models []historyModel
	if err := s.findAll(ctx, col, filter, listOptions(opts.Limit, opts.Offset, "appended_at"), &models); err != nil {
		return nil, fmt.Errorf("stockledger/mongo: list %s: %w", col, err)
	}
	return convert(models, fromHistoryModel)
}

// ==================== Helpers ====================

// now returns the current UTC time at the millisecond precision BSON keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func (s *Store) findAll(ctx context.Context, col string, filter bson.M, opts *options.FindOptionsBuilder, out any) error {
	if opts == nil {
		opts = options.Find()
	}
	cur, err := s.db.Collection(col).Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

// listOptions sorts newest first by field, with _id as a tiebreaker.
func listOptions(limit, offset int, field string) *options.FindOptionsBuilder {
	o := options.Find().SetSort(bson.D{{Key: field, Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		o.SetLimit(int64(limit))
	}
	if offset > 0 {
		o.SetSkip(int64(offset))
	}
	return o
}

// casUpdate applies update only when the stored version matches.
func (s *Store) casUpdate(ctx context.Context, col string, rowID id.ID, version int64, update bson.M) error {
	res, err := s.db.Collection(col).UpdateOne(ctx, bson.M{"_id": rowID.String(), "version": version}, update)
	if err != nil {
		return fmt.Errorf("stockledger/mongo: update %s: %w", col, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := s.db.Collection(col).CountDocuments(ctx, bson.M{"_id": rowID.String()})
	if err != nil {
		return fmt.Errorf("stockledger/mongo: check %s: %w", col, err)
	}
	if n == 0 {
		return stockledger.ErrNotFound
	}
	return stockledger.ErrConflict
}

func (s *Store) deleteOne(ctx context.Context, col string, rowID id.ID) error {
	res, err := s.db.Collection(col).DeleteOne(ctx, bson.M{"_id": rowID.String()})
	if err != nil {
		return fmt.Errorf("stockledger/mongo: delete from %s: %w", col, err)
	}
	if res.DeletedCount == 0 {
		return stockledger.ErrNotFound
	}
	return nil
}

func convert[M, T any](models []M, from func(*M) (T, error)) ([]T, error) {
	out := make([]T, 0, len(models))
	for i := range models {
		v, err := from(&models[i])
		if err != nil {
			return nil, fmt.Errorf("stockledger/mongo: decode: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	item := bson.D{{Key: "branch", Value: 1}, {Key: "normalized_description", Value: 1}}
	recent := bson.D{{Key: "branch", Value: 1}, {Key: "updated_at", Value: -1}}
	appended := bson.D{{Key: "branch", Value: 1}, {Key: "appended_at", Value: -1}}
	return map[string][]mongo.IndexModel{
		colPurchases:          {{Keys: item}, {Keys: recent}},
		colConsumptions:       {{Keys: item}, {Keys: recent}},
		colPurchaseHistory:    {{Keys: appended}, {Keys: bson.D{{Key: "aggregate_id", Value: 1}}}},
		colConsumptionHistory: {{Keys: appended}, {Keys: bson.D{{Key: "aggregate_id", Value: 1}}}},
	}
}
