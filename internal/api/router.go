package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-relay/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		r.With(s.requireScope(auth.ScopePublish)).Post("/publish", s.handlePublish)
		r.With(s.requireScope(auth.ScopeRead)).Get("/messages", s.handleListMessages)

		// Browsers cannot set headers on a WebSocket handshake, so the token
		// may also arrive as ?token=.
		r.With(s.requireScope(auth.ScopeStream)).Get("/ws", s.handleWebSocket)
	})

	return r
}
