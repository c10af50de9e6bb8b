package server

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vergatan10/api-whatsapp-gateway/internal/common/httpx"
)

// apiKeyHeader and apiKeyQueryParam are the two ways a caller can present
// its bearer token.
const (
	apiKeyHeader     = "x-api-key"
	apiKeyQueryParam = "apiKey"
)

type authContextKey string

const (
	sessionIDKey = authContextKey("sessionId")
	usedKeyKey   = authContextKey("apiKey")
)

// requestKey extracts the bearer token from the header or query parameter.
func requestKey(r *http.Request) string {
	if key := r.Header.Get(apiKeyHeader); key != "" {
		return key
	}
	return r.URL.Query().Get(apiKeyQueryParam)
}

// Authenticator resolves the presented API key to a session identity and
// stores both on the request context. Missing keys yield 401, unknown keys
// 403. The admin key always resolves to the reserved default identity.
func (s *Server) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := requestKey(r)
		if key == "" {
			httpx.ErrMissingKeyInRequest().Send(w)
			return
		}
		sessionID, ok := s.keys.Resolve(key)
		if !ok {
			log.Ctx(r.Context()).Warn().Msg("request with invalid api key")
			httpx.ErrInvalidKey().Send(w)
			return
		}
		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		ctx = context.WithValue(ctx, usedKeyKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminOnly admits only the configured admin key.
func (s *Server) AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := requestKey(r)
		if key == "" {
			httpx.ErrMissingKeyInRequest().Send(w)
			return
		}
		if !s.keys.IsAdmin(key) {
			httpx.ErrForbidden("only the admin key may access this resource").Send(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionFromContext returns the session identity resolved by Authenticator.
func sessionFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

// keyFromContext returns the bearer token the caller authenticated with.
func keyFromContext(ctx context.Context) string {
	if key, ok := ctx.Value(usedKeyKey).(string); ok {
		return key
	}
	return ""
}
