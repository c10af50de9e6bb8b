// Package server provides the gateway's HTTP surface. It translates REST
// requests into session connection manager operations and formats JSON
// responses, with bearer-token authentication resolved through the API key
// store.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/vergatan10/api-whatsapp-gateway/internal/common/httpx"
	"github.com/vergatan10/api-whatsapp-gateway/internal/common/middleware"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/apikey"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/config"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/session"
)

// Server is the gateway HTTP server.
type Server struct {
	Router  *chi.Mux
	manager *session.Manager
	keys    *apikey.Store
}

// New creates a server bound to the given session manager and key store.
func New(manager *session.Manager, keys *apikey.Store) (*Server, error) {
	s := &Server{
		Router:  chi.NewRouter(),
		manager: manager,
		keys:    keys,
	}
	return s, nil
}

// MountHandlers sets up all routes and middleware.
func (s *Server) MountHandlers() {
	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	if config.Config().HandleCORS {
		s.Router.Use(s.handleCORS)
	}
	if timeout := config.Config().RequestTimeout; timeout > 0 {
		s.Router.Use(middleware.SetTimeout(timeout))
	}

	s.Router.Get("/", s.getLiveness)
	s.Router.Get("/ready", s.getReadiness)

	s.Router.Route("/api", func(r chi.Router) {
		r.Post("/session/create", httpx.WrapHttpRsp(s.createSession))

		r.Group(func(r chi.Router) {
			r.Use(s.Authenticator)
			r.Get("/session/qr", httpx.WrapHttpRsp(s.getSessionQR))
			r.Get("/session/status", httpx.WrapHttpRsp(s.getSessionStatus))
			r.Post("/session/logout", httpx.WrapHttpRsp(s.logoutSession))
			r.Post("/send", httpx.WrapHttpRsp(s.sendMessage))
		})

		r.Group(func(r chi.Router) {
			r.Use(s.AdminOnly)
			r.Get("/keys", httpx.WrapHttpRsp(s.listKeys))
		})
	})
}

// getLiveness reports that the gateway process is up.
func (s *Server) getLiveness(w http.ResponseWriter, r *http.Request) {
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{
		"status": "online",
	})
}

// getReadiness reports readiness for load balancers and monitoring systems.
func (s *Server) getReadiness(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("readiness check")
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// handleCORS provides CORS middleware for cross-origin requests.
func (s *Server) handleCORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "X-Api-Key"},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}
