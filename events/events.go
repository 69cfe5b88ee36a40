// Package events publishes stock ledger changes to Google Cloud Pub/Sub so
// downstream systems (reorder alerts, reporting) can follow stock movement
// without polling the store.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/shopspring/decimal"

	"github.com/sukino/stockledger/access"
	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/plugin"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/types"
)

// Event types.
const (
	TypePurchaseRecorded    = "stock.purchase.recorded"
	TypeConsumptionRecorded = "stock.consumption.recorded"
	TypeConsumptionRejected = "stock.consumption.rejected"
	TypeRowEdited           = "stock.row.edited"
	TypeRowDeleted          = "stock.row.deleted"
	TypeDuplicatesMerged    = "stock.duplicates.merged"
)

// Event is the JSON payload of every published message.
type Event struct {
	Type        string           `json:"type"`
	Branch      string           `json:"branch"`
	Kind        types.Kind       `json:"kind,omitempty"`
	AggregateID string           `json:"aggregate_id,omitempty"`
	Description string           `json:"description,omitempty"`
	Qty         *decimal.Decimal `json:"qty,omitempty"`
	Total       *decimal.Decimal `json:"total,omitempty"`
	Available   *decimal.Decimal `json:"available,omitempty"`
	Merged      *MergeCounts     `json:"merged,omitempty"`
	Actor       string           `json:"actor,omitempty"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

// MergeCounts summarizes a merge run.
type MergeCounts struct {
	Groups int `json:"groups"`
	Rows   int `json:"rows"`
	Failed int `json:"failed"`
}

// Topic is the part of *pubsub.Topic the publisher needs.
type Topic interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Publisher)(nil)
	_ plugin.OnPurchaseRecorded    = (*Publisher)(nil)
	_ plugin.OnConsumptionRecorded = (*Publisher)(nil)
	_ plugin.OnConsumptionRejected = (*Publisher)(nil)
	_ plugin.OnAggregateEdited     = (*Publisher)(nil)
	_ plugin.OnAggregateDeleted    = (*Publisher)(nil)
	_ plugin.OnDuplicatesMerged    = (*Publisher)(nil)
	_ plugin.OnShutdown            = (*Publisher)(nil)
)

// Publisher is a ledger plugin that publishes one message per change.
// Each message carries "type" and "branch" attributes for subscription
// filters and uses the branch as ordering key when ordering is enabled.
type Publisher struct {
	topic    Topic
	ordered  bool
	clock    func() time.Time
	shutdown func()
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithOrdering sets the branch as the message ordering key. The topic must
// have message ordering enabled.
func WithOrdering() Option { return func(p *Publisher) { p.ordered = true } }

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option { return func(p *Publisher) { p.clock = now } }

// New returns a Publisher writing to topic.
func New(topic Topic, opts ...Option) *Publisher {
	p := &Publisher{topic: topic, clock: time.Now}
	for _, o := range opts {
		o(p)
	}
	if t, ok := topic.(*pubsub.Topic); ok {
		if p.ordered {
			t.EnableMessageOrdering = true
		}
		p.shutdown = t.Stop
	}
	return p
}

// Name implements plugin.Plugin.
func (p *Publisher) Name() string { return "pubsub-events" }

// OnPurchaseRecorded implements plugin.OnPurchaseRecorded.
func (p *Publisher) OnPurchaseRecorded(ctx context.Context, a *purchase.Aggregate) error {
	return p.publish(ctx, Event{
		Type:        TypePurchaseRecorded,
		Branch:      a.Branch,
		Kind:        types.KindPurchase,
		AggregateID: a.ID.String(),
		Description: a.Description,
		Qty:         &a.Qty,
		Total:       &a.NewTotal,
	})
}

// OnConsumptionRecorded implements plugin.OnConsumptionRecorded.
func (p *Publisher) OnConsumptionRecorded(ctx context.Context, a *consumption.Aggregate) error {
	return p.publish(ctx, Event{
		Type:        TypeConsumptionRecorded,
		Branch:      a.Branch,
		Kind:        types.KindConsumption,
		AggregateID: a.ID.String(),
		Description: a.Description,
		Qty:         &a.Qty,
		Total:       &a.TotalConsumed,
		Available:   &a.Balance,
	})
}

// OnConsumptionRejected implements plugin.OnConsumptionRejected.
func (p *Publisher) OnConsumptionRejected(ctx context.Context, branch, description string, attempted, available decimal.Decimal) error {
	return p.publish(ctx, Event{
		Type:        TypeConsumptionRejected,
		Branch:      branch,
		Kind:        types.KindConsumption,
		Description: description,
		Qty:         &attempted,
		Available:   &available,
	})
}

// OnAggregateEdited implements plugin.OnAggregateEdited.
func (p *Publisher) OnAggregateEdited(ctx context.Context, kind types.Kind, branch string, aggregateID id.ID) error {
	return p.publish(ctx, Event{Type: TypeRowEdited, Branch: branch, Kind: kind, AggregateID: aggregateID.String()})
}

// OnAggregateDeleted implements plugin.OnAggregateDeleted.
func (p *Publisher) OnAggregateDeleted(ctx context.Context, kind types.Kind, branch string, aggregateID id.ID) error {
	return p.publish(ctx, Event{Type: TypeRowDeleted, Branch: branch, Kind: kind, AggregateID: aggregateID.String()})
}

// OnDuplicatesMerged implements plugin.OnDuplicatesMerged. Runs that
// merged nothing are not published.
func (p *Publisher) OnDuplicatesMerged(ctx context.Context, s plugin.MergeSummary) error {
	if s.GroupsMerged == 0 && s.GroupsFailed == 0 {
		return nil
	}
	return p.publish(ctx, Event{
		Type:   TypeDuplicatesMerged,
		Branch: s.Branch,
		Kind:   s.Kind,
		Merged: &MergeCounts{Groups: s.GroupsMerged, Rows: s.RowsMoved, Failed: s.GroupsFailed},
	})
}

// OnShutdown flushes pending messages.
func (p *Publisher) OnShutdown(context.Context) error {
	if p.shutdown != nil {
		p.shutdown()
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, ev Event) error {
	ev.OccurredAt = p.clock().UTC()
	if ev.Actor == "" {
		ev.Actor = access.FromContext(ctx).Actor()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", ev.Type, err)
	}

	msg := &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"type": ev.Type, "branch": ev.Branch},
	}
	if p.ordered {
		msg.OrderingKey = ev.Branch
	}

	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		if t, ok := p.topic.(*pubsub.Topic); ok && p.ordered {
			t.ResumePublish(ev.Branch)
		}
		return fmt.Errorf("events: publish %s: %w", ev.Type, err)
	}
	return nil
}
