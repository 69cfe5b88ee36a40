// Package audithook bridges stock ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the ledger does not depend on
// any particular audit sink. SlogRecorder writes events to a logger.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/sukino/stockledger/access"
	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/plugin"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnPurchaseRecorded    = (*Extension)(nil)
	_ plugin.OnConsumptionRecorded = (*Extension)(nil)
	_ plugin.OnConsumptionRejected = (*Extension)(nil)
	_ plugin.OnAggregateEdited     = (*Extension)(nil)
	_ plugin.OnAggregateDeleted    = (*Extension)(nil)
	_ plugin.OnDuplicatesMerged    = (*Extension)(nil)
	_ plugin.OnStoreError          = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audited change.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Branch     string         `json:"branch,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Role       access.Role    `json:"role,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// SlogRecorder logs every event at a level matching its severity.
func SlogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, evt *AuditEvent) error {
		level := slog.LevelInfo
		switch evt.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityError, SeverityCritical:
			level = slog.LevelError
		}
		logger.Log(ctx, level, "audit",
			"action", evt.Action,
			"resource", evt.Resource,
			"resource_id", evt.ResourceID,
			"branch", evt.Branch,
			"actor", evt.Actor,
			"outcome", evt.Outcome,
			"metadata", evt.Metadata,
		)
		return nil
	})
}

// Extension bridges stock ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Stock movement hooks
// ──────────────────────────────────────────────────

// OnPurchaseRecorded implements plugin.OnPurchaseRecorded.
func (e *Extension) OnPurchaseRecorded(ctx context.Context, a *purchase.Aggregate) error {
	return e.record(ctx, ActionPurchaseRecorded, SeverityInfo, OutcomeSuccess,
		ResourcePurchase, a.ID.String(), a.Branch, CategoryStock, nil,
		"description", a.Description,
		"qty", a.Qty.String(),
		"new_total", a.NewTotal.String(),
		"vendor", a.Vendor,
		"bill_no", a.BillNo,
	)
}

// OnConsumptionRecorded implements plugin.OnConsumptionRecorded.
func (e *Extension) OnConsumptionRecorded(ctx context.Context, a *consumption.Aggregate) error {
	return e.record(ctx, ActionConsumptionRecorded, SeverityInfo, OutcomeSuccess,
		ResourceConsumption, a.ID.String(), a.Branch, CategoryStock, nil,
		"description", a.Description,
		"qty", a.Qty.String(),
		"total_consumed", a.TotalConsumed.String(),
		"balance", a.Balance.String(),
	)
}

// OnConsumptionRejected implements plugin.OnConsumptionRejected.
func (e *Extension) OnConsumptionRejected(ctx context.Context, branch, description string, attempted, available decimal.Decimal) error {
	return e.record(ctx, ActionConsumptionRejected, SeverityWarning, OutcomeFailure,
		ResourceConsumption, "", branch, CategoryStock, nil,
		"description", description,
		"attempted", attempted.String(),
		"available", available.String(),
	)
}

// ──────────────────────────────────────────────────
// Administrative hooks
// ──────────────────────────────────────────────────

// OnAggregateEdited implements plugin.OnAggregateEdited.
func (e *Extension) OnAggregateEdited(ctx context.Context, kind types.Kind, branch string, aggregateID id.ID) error {
	return e.record(ctx, ActionRowEdited, SeverityInfo, OutcomeSuccess,
		string(kind), aggregateID.String(), branch, CategoryAdmin, nil,
	)
}

// OnAggregateDeleted implements plugin.OnAggregateDeleted.
func (e *Extension) OnAggregateDeleted(ctx context.Context, kind types.Kind, branch string, aggregateID id.ID) error {
	return e.record(ctx, ActionRowDeleted, SeverityWarning, OutcomeSuccess,
		string(kind), aggregateID.String(), branch, CategoryAdmin, nil,
	)
}

// OnDuplicatesMerged implements plugin.OnDuplicatesMerged.
func (e *Extension) OnDuplicatesMerged(ctx context.Context, s plugin.MergeSummary) error {
	outcome := OutcomeSuccess
	severity := SeverityInfo
	if s.GroupsFailed > 0 {
		outcome, severity = OutcomePartial, SeverityWarning
		if s.GroupsMerged == 0 {
			outcome = OutcomeFailure
		}
	}
	return e.record(ctx, ActionDuplicatesMerged, severity, outcome,
		string(s.Kind), "", s.Branch, CategoryAdmin, nil,
		"groups_merged", s.GroupsMerged,
		"rows_moved", s.RowsMoved,
		"groups_failed", s.GroupsFailed,
	)
}

// ──────────────────────────────────────────────────
// Store hooks
// ──────────────────────────────────────────────────

// OnStoreError implements plugin.OnStoreError.
func (e *Extension) OnStoreError(ctx context.Context, op string, err error) error {
	return e.record(ctx, ActionStoreError, SeverityError, OutcomeFailure,
		ResourceStore, "", "", CategorySystem, err,
		"op", op,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, branch, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	who := access.FromContext(ctx)
	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Branch:     branch,
		Actor:      who.Actor(),
		Role:       who.Role,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
