// Package context carries request-scoped values between middleware, handlers
// and usecases.
package context

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
)

// ContextKey names values stored in echo.Context and context.Context.
type ContextKey string

const (
	// KeyRequestID holds the request ID in echo.Context.
	KeyRequestID ContextKey = "request_id"

	// KeyScope holds the requestScope in context.Context.
	KeyScope ContextKey = "request_scope"

	// HeaderXRequestID is the HTTP header name for request ID.
	HeaderXRequestID = "X-Request-Id"
)

// requestScope travels with a request from the edge down to the usecases and
// the audit and event records they emit.
type requestScope struct {
	requestID string
	logger    *slog.Logger
}

// WithRequest binds a request ID and its logger to ctx.
func WithRequest(ctx context.Context, requestID string, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, KeyScope, requestScope{requestID: requestID, logger: logger})
}

func scopeOf(ctx context.Context) (requestScope, bool) {
	scope, ok := ctx.Value(KeyScope).(requestScope)

	return scope, ok
}

// SetRequestID records the request ID on echo.Context for response envelopes.
func SetRequestID(c echo.Context, requestID string) {
	c.Set(string(KeyRequestID), requestID)
}

// GetRequestID returns the ID assigned by the request ID middleware. Requests
// that bypassed it fall back to the ID bound on the request context, if any.
func GetRequestID(c echo.Context) string {
	if id, ok := c.Get(string(KeyRequestID)).(string); ok && id != "" {
		return id
	}

	return GetRequestIDFromContext(c.Request().Context())
}

// GetRequestIDFromContext returns "" outside a request.
func GetRequestIDFromContext(ctx context.Context) string {
	scope, _ := scopeOf(ctx)

	return scope.requestID
}

// GetLogger returns the request logger, or nil outside a request.
func GetLogger(ctx context.Context) *slog.Logger {
	scope, _ := scopeOf(ctx)

	return scope.logger
}

// GetLoggerOrDefault is GetLogger with a fallback for background work.
func GetLoggerOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger := GetLogger(ctx); logger != nil {
		return logger
	}

	return fallback
}
