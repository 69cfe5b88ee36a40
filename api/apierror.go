package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sukino/stockledger"
)

// APIError is the error envelope for every 4xx/5xx response.
type APIError struct {
	Detail string `json:"detail"`
}

func newError(msg string) *APIError {
	return &APIError{Detail: msg}
}

// FieldError is a validation failure on one input field.
type FieldError struct {
	Detail string `json:"detail"`
	Field  string `json:"field,omitempty"`
}

// StockError is returned when a consumption exceeds what is on hand.
type StockError struct {
	Detail    string          `json:"detail"`
	Attempted decimal.Decimal `json:"attempted"`
	Available decimal.Decimal `json:"available"`
}

// Messages for failures whose engine text is not meant for staff.
const (
	msgNotFound    = "Row not found"
	msgConflict    = "This item was changed by someone else. Please try again."
	msgUnavailable = "Storage is unavailable. Please try again."
	msgInternal    = "Internal server error"
	msgBadID       = "Invalid row id"
)

// writeError maps an engine error to a status code and envelope. Store
// failures are logged with the request id; their text never reaches the
// client.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		verr  stockledger.ValidationError
		stock stockledger.InsufficientStockError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, FieldError{Detail: verr.Message, Field: verr.Field})
	case errors.As(err, &stock):
		c.JSON(http.StatusConflict, StockError{Detail: stock.Error(), Attempted: stock.Attempted, Available: stock.Available})
	case stockledger.IsForbidden(err):
		c.JSON(http.StatusForbidden, newError(err.Error()))
	case stockledger.IsNotFound(err):
		c.JSON(http.StatusNotFound, newError(msgNotFound))
	case errors.Is(err, stockledger.ErrUnknownKind):
		c.JSON(http.StatusBadRequest, newError(err.Error()))
	case stockledger.IsRetryable(err):
		c.JSON(http.StatusConflict, newError(msgConflict))
	case errors.Is(err, stockledger.ErrStore),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		logger.Error("store failure",
			"request_id", c.GetString(RequestIDKey),
			"path", c.FullPath(),
			"error", err,
		)
		c.JSON(http.StatusServiceUnavailable, newError(msgUnavailable))
	default:
		logger.Error("unhandled error",
			"request_id", c.GetString(RequestIDKey),
			"path", c.FullPath(),
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, newError(msgInternal))
	}
}
