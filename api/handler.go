package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/sukino/stockledger"
	"github.com/sukino/stockledger/access"
	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/export"
	"github.com/sukino/stockledger/history"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/types"
)

var validate = validator.New()

// Handler serves the stock ledger over HTTP.
type Handler struct {
	ledger   *stockledger.Ledger
	logger   *slog.Logger
	location *time.Location
	clock    func() time.Time
}

// bindJSON decodes the body. It writes a 400 and returns false on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, newError("Invalid JSON: "+err.Error()))
		return false
	}
	return true
}

// bindQuery decodes and validates query parameters. It writes a 422 and
// returns false on failure.
func bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, newError("Invalid query: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			c.JSON(http.StatusUnprocessableEntity, FieldError{
				Detail: "Invalid value for " + fe.Field() + " (" + fe.Tag() + ")",
				Field:  fe.Field(),
			})
			return false
		}
		c.JSON(http.StatusUnprocessableEntity, newError(err.Error()))
		return false
	}
	return true
}

// branchParam resolves the branch path segment. "-" means the caller's
// assigned branch.
func branchParam(c *gin.Context) string {
	b := c.Param("branch")
	if b == "-" {
		b = ""
	}
	return access.FromContext(c.Request.Context()).DefaultBranch(b)
}

func (h *Handler) error(c *gin.Context, err error) {
	writeError(c, h.logger, err)
}

// ──────────────────────────────────────────────────
// Branches
// ──────────────────────────────────────────────────

func (h *Handler) listBranches(c *gin.Context) {
	who := access.FromContext(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"branches": h.ledger.Branches(),
		"assigned": who.Branch,
		"role":     who.Role,
		"label":    who.Role.DisplayName(),
	})
}

// ──────────────────────────────────────────────────
// Purchases
// ──────────────────────────────────────────────────

func (h *Handler) listPurchases(c *gin.Context) {
	var q PageQuery
	if !bindQuery(c, &q) {
		return
	}
	rows, err := h.ledger.ListPurchases(c.Request.Context(), branchParam(c), purchase.ListOpts{Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		h.error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": rows})
}

func (h *Handler) recordPurchase(c *gin.Context) {
	var req PurchaseRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.ledger.RecordPurchase(c.Request.Context(), req.input(branchParam(c)))
	if err != nil {
		h.error(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) editPurchase(c *gin.Context) {
	rowID, err := id.ParsePurchaseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, newError(msgBadID))
		return
	}
	var req PurchaseEditRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.ledger.EditPurchase(c.Request.Context(), branchParam(c), rowID, req.edit())
	if err != nil {
		h.error(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) deletePurchase(c *gin.Context) {
	h.deleteRow(c, types.KindPurchase, id.ParsePurchaseID)
}

func (h *Handler) purchaseHistory(c *gin.Context) {
	var q PageQuery
	if !bindQuery(c, &q) {
		return
	}
	rows, err := h.ledger.PurchaseHistory(c.Request.Context(), branchParam(c), historyOpts(q))
	if err != nil {
		h.error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": rows})
}

// ──────────────────────────────────────────────────
// Consumptions
// ──────────────────────────────────────────────────

func (h *Handler) listConsumptions(c *gin.Context) {
	var q PageQuery
	if !bindQuery(c, &q) {
		return
	}
	rows, err := h.ledger.ListConsumptions(c.Request.Context(), branchParam(c), consumption.ListOpts{Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		h.error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consumptions": rows})
}

func (h *Handler) recordConsumption(c *gin.Context) {
	var req ConsumptionRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.ledger.RecordConsumption(c.Request.Context(), req.input(branchParam(c)))
	if err != nil {
		h.error(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) editConsumption(c *gin.Context) {
	rowID, err := id.ParseConsumptionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, newError(msgBadID))
		return
	}
	var req ConsumptionEditRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.ledger.EditConsumption(c.Request.Context(), branchParam(c), rowID, stockledger.ConsumptionEdit{Description: req.Description})
	if err != nil {
		h.error(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) deleteConsumption(c *gin.Context) {
	h.deleteRow(c, types.KindConsumption, id.ParseConsumptionID)
}

func (h *Handler) consumptionHistory(c *gin.Context) {
	var q PageQuery
	if !bindQuery(c, &q) {
		return
	}
	rows, err := h.ledger.ConsumptionHistory(c.Request.Context(), branchParam(c), historyOpts(q))
	if err != nil {
		h.error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": rows})
}

// ──────────────────────────────────────────────────
// Shared
// ──────────────────────────────────────────────────

func (h *Handler) deleteRow(c *gin.Context, kind types.Kind, parse func(string) (id.ID, error)) {
	rowID, err := parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, newError(msgBadID))
		return
	}
	if err := h.ledger.DeleteAggregate(c.Request.Context(), branchParam(c), kind, rowID); err != nil {
		h.error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func historyOpts(q PageQuery) history.ListOpts {
	return history.ListOpts{Action: history.Action(q.Action), Limit: q.Limit, Offset: q.Offset}
}

func (h *Handler) stock(c *gin.Context) {
	var q StockQuery
	if !bindQuery(c, &q) {
		return
	}
	level, err := h.ledger.Stock(c.Request.Context(), branchParam(c), q.Item)
	if err != nil {
		h.error(c, err)
		return
	}
	c.JSON(http.StatusOK, level)
}

func (h *Handler) preview(c *gin.Context) {
	var q PreviewQuery
	if !bindQuery(c, &q) {
		return
	}
	qty, err := stockledger.ParseDecimal(q.Qty)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, FieldError{Detail: "Quantity must be a number", Field: "qty"})
		return
	}
	ctx, branchName := c.Request.Context(), branchParam(c)
	if q.Kind == string(types.KindPurchase) {
		p, err := h.ledger.PreviewPurchase(ctx, branchName, q.Item, qty)
		if err != nil {
			h.error(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
		return
	}
	p, err := h.ledger.PreviewConsumption(ctx, branchName, q.Item, qty)
	if err != nil {
		h.error(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) itemNames(c *gin.Context) {
	names, err := h.ledger.ItemNames(c.Request.Context(), branchParam(c))
	if err != nil {
		h.error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": names})
}

func (h *Handler) merge(c *gin.Context) {
	kind, ok := types.ParseKind(c.Query("kind"))
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, FieldError{Detail: "kind must be purchase or consumption", Field: "kind"})
		return
	}
	report, err := h.ledger.MergeDuplicates(c.Request.Context(), branchParam(c), kind)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, report)
	case errors.Is(err, stockledger.ErrMergePartial) && report != nil:
		h.logger.Warn("merge partially applied",
			"request_id", c.GetString(RequestIDKey),
			"branch", report.Branch,
			"kind", report.Kind,
			"error", err,
		)
		c.JSON(http.StatusMultiStatus, report)
	default:
		h.error(c, err)
	}
}

func (h *Handler) export(c *gin.Context) {
	var q ExportQuery
	if !bindQuery(c, &q) {
		return
	}
	format, _ := export.ParseFormat(q.Format)
	scope, _ := export.ParseScope(q.Type)

	snap, err := h.ledger.Snapshot(c.Request.Context(), branchParam(c))
	if err != nil {
		h.error(c, err)
		return
	}

	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(format, scope, h.clock())+`"`)
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, format, snap, export.Options{Scope: scope, Location: h.location}); err != nil {
		h.logger.Error("export failed",
			"request_id", c.GetString(RequestIDKey),
			"error", err,
		)
	}
}
