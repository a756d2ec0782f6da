package server

import "github.com/go-chi/chi/v5"

// setupRoutes configures every API route, grounded on the teacher's
// routes.go route tree (same /session/{sessionID} nesting convention),
// trimmed to the session-lifecycle + chat operations this spec defines.
func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/session", func(r chi.Router) {
		r.Post("/", s.createSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/reset", s.resetSession)
		})
	})

	// WebSocket endpoint: carries the Event Publisher's client event
	// stream (spec §6) for one session, and accepts inbound chat requests
	// and elicitation responses (see ws.go).
	r.Get("/ws/{sessionID}", s.handleWebSocket)

	r.Get("/healthz", s.healthz)
}
