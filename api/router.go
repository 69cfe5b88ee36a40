// Package api exposes the stock ledger over HTTP with gin.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sukino/stockledger"
)

// DefaultBasePath prefixes every ledger route.
const DefaultBasePath = "/api/v1"

// Config configures the router.
type Config struct {
	// BasePath prefixes the ledger routes (default "/api/v1").
	BasePath string
	// JWTSecret verifies HMAC-signed bearer tokens. Required.
	JWTSecret []byte
	// Logger receives request and error logs (default slog.Default()).
	Logger *slog.Logger
	// Gatherer backs GET /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
	// Location renders export dates (default time.Local).
	Location *time.Location
	// Clock stamps export file names (default time.Now).
	Clock func() time.Time
	// ReleaseMode puts gin in release mode.
	ReleaseMode bool
	// AllowOrigins enables CORS for these origins. "*" allows any origin.
	// Empty disables the CORS middleware.
	AllowOrigins []string
}

// NewRouter returns a gin engine serving l.
func NewRouter(l *stockledger.Ledger, cfg Config) *gin.Engine {
	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(RequestID())
	r.Use(Logger(cfg.Logger))
	r.Use(Recovery(cfg.Logger))
	if len(cfg.AllowOrigins) > 0 {
		r.Use(cors.New(corsConfig(cfg.AllowOrigins)))
	}

	r.GET("/healthz", health(l))
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	basePath := cfg.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}
	Register(r.Group(basePath, JWTAuth(cfg.JWTSecret)), l, cfg)
	return r
}

// Register mounts the ledger routes on g. Callers provide authentication.
func Register(g gin.IRoutes, l *stockledger.Ledger, cfg Config) {
	h := &Handler{ledger: l, logger: cfg.Logger, location: cfg.Location, clock: cfg.Clock}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.location == nil {
		h.location = time.Local
	}
	if h.clock == nil {
		h.clock = time.Now
	}

	g.GET("/branches", h.listBranches)

	g.GET("/branches/:branch/purchases", h.listPurchases)
	g.POST("/branches/:branch/purchases", h.recordPurchase)
	g.PATCH("/branches/:branch/purchases/:id", h.editPurchase)
	g.DELETE("/branches/:branch/purchases/:id", h.deletePurchase)

	g.GET("/branches/:branch/consumptions", h.listConsumptions)
	g.POST("/branches/:branch/consumptions", h.recordConsumption)
	g.PATCH("/branches/:branch/consumptions/:id", h.editConsumption)
	g.DELETE("/branches/:branch/consumptions/:id", h.deleteConsumption)

	g.GET("/branches/:branch/history/purchases", h.purchaseHistory)
	g.GET("/branches/:branch/history/consumptions", h.consumptionHistory)

	g.GET("/branches/:branch/stock", h.stock)
	g.GET("/branches/:branch/preview", h.preview)
	g.GET("/branches/:branch/items", h.itemNames)
	g.POST("/branches/:branch/merge", h.merge)
	g.GET("/branches/:branch/export", h.export)
}

func corsConfig(origins []string) cors.Config {
	cc := cors.DefaultConfig()
	if slices.Contains(origins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	cc.AddAllowMethods(http.MethodPatch)
	cc.AddAllowHeaders("Authorization", RequestIDHeader)
	cc.AddExposeHeaders("Content-Disposition", RequestIDHeader)
	return cc
}

// health pings the store.
func health(l *stockledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := l.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "store": "error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "store": "connected"})
	}
}
