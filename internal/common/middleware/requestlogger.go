// Package middleware provides HTTP middleware for request logging, panic
// recovery, and timeout handling. It integrates with zerolog for structured
// logging and supports request tracing through unique request IDs.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// requestIdContextKey is a custom type for the context key storing request IDs.
type requestIdContextKey string

const (
	requestIdKey = requestIdContextKey("requestId")

	// RequestIDHeader is the response header carrying the request ID.
	RequestIDHeader = "X-Request-ID"
)

// RequestLogger logs incoming requests and adds a unique request ID to both
// the request context and response headers. The request-scoped logger carries
// the request ID so downstream handlers can log with log.Ctx(ctx).
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		requestID := newRequestId()
		ctx = context.WithValue(ctx, requestIdKey, requestID)
		ctx = log.With().Str("request_id", requestID).Logger().WithContext(ctx)

		w.Header().Set(RequestIDHeader, requestID)

		requestFields := map[string]any{
			"requestMethod": r.Method,
			"requestPath":   r.URL.Path,
			"remoteIP":      r.RemoteAddr,
			"proto":         r.Proto,
		}
		log.Ctx(ctx).Info().Fields(requestFields).Msg("incoming request")

		defer func() {
			log.Ctx(ctx).Info().
				Str("duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds())).
				Msg("request completed")
		}()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the request ID stored by RequestLogger, or an
// empty string if none is present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIdKey).(string); ok {
		return id
	}
	return ""
}

// newRequestId generates a unique request identifier. It attempts a UUID
// first, falling back to a timestamp-based ID if generation fails.
func newRequestId() string {
	u, err := uuid.NewRandom()
	if err == nil {
		return u.String()
	}
	return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
}
