package audithook

// Action constants for audit events.
const (
	// Stock movement actions
	ActionPurchaseRecorded    = "purchase.recorded"
	ActionConsumptionRecorded = "consumption.recorded"
	ActionConsumptionRejected = "consumption.rejected"

	// Admin actions
	ActionRowEdited        = "row.edited"
	ActionRowDeleted       = "row.deleted"
	ActionDuplicatesMerged = "duplicates.merged"

	// Store actions
	ActionStoreError = "store.error"
)

// Resource constants for audit events.
const (
	ResourcePurchase    = "purchase"
	ResourceConsumption = "consumption"
	ResourceStore       = "store"
)

// Category constants for audit events.
const (
	CategoryStock  = "stock"
	CategoryAdmin  = "admin"
	CategorySystem = "system"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
