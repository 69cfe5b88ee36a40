package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sukino/stockledger/access"
)

// Context keys set by the middleware chain.
const (
	RequestIDKey = "request_id"
	ClaimsKey    = "claims"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// Claims are the custom claims carried by every access token. The subject
// is the user id.
type Claims struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Branch string `json:"branch,omitempty"`
	jwt.RegisteredClaims
}

// Principal converts the claims to the caller identity the ledger checks.
func (c *Claims) Principal() access.Principal {
	return access.Principal{
		UserID: c.Subject,
		Name:   c.Name,
		Role:   access.ParseRole(c.Role),
		Branch: c.Branch,
	}
}

// RequestID reuses an incoming X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		c.Set(RequestIDKey, rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}

// Logger logs each request with method, path, status, latency, and request_id.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"request_id", c.GetString(RequestIDKey),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// Recovery turns panics into 500 responses without exposing the panic.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					"request_id", c.GetString(RequestIDKey),
					"panic", r,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, newError(msgInternal))
			}
		}()
		c.Next()
	}
}

// JWTAuth validates the Bearer token and attaches the caller to the
// request context.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newError("Authentication required"))
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newError("Invalid or expired token"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Request = c.Request.WithContext(access.WithPrincipal(c.Request.Context(), claims.Principal()))
		c.Next()
	}
}

// GetClaims returns the verified claims, or nil on unauthenticated routes.
func GetClaims(c *gin.Context) *Claims {
	claims, _ := c.Get(ClaimsKey)
	cl, _ := claims.(*Claims)
	return cl
}
