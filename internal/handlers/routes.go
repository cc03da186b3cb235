package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	r.Use(h.cors)

	// Public
	r.Get("/healthz", h.handleHealth)
	r.Handle(h.metricsPath, h.Metrics.Handler())
	r.Get("/invites/{code}/qr.png", h.handleInviteQR)

	// REST commands (protected)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(h.requestTimeout))
		r.Use(h.Auth.RequireAuthAPI)
		r.Use(h.rateLimit)
		r.Use(h.forwardToken)

		// Competitions
		r.Post("/api/competitions", h.handleCreateCompetition)
		r.Post("/api/competitions/join", h.handleJoinCompetition)
		r.Post("/api/competitions/{id}/leave", h.handleLeaveCompetition)
		r.Delete("/api/competitions/{id}", h.handleDeleteCompetition)
		r.Put("/api/competitions/{id}/inactive", h.handleSetInactive)
		r.Get("/api/competitions/{id}/share", h.handleShareCompetition)

		// Votes
		r.Post("/api/competitions/{id}/votes", h.handleCastVote)
		r.Post("/api/ceremony-votes", h.handleCastCeremonyVote)
		r.Get("/api/ceremonies/{year}/votes", h.handleGetCeremonyVotes)

		// Account
		r.Put("/api/account/push-token", h.handleUpdatePushToken)
		r.Delete("/api/account", h.handleDeleteAccount)
		r.Get("/api/account/preferences", h.handleGetPreferences)
		r.Put("/api/account/preferences/{key}", h.handleSetPreference)
	})

	// WebSocket views (protected, token may come from the query string)
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.RequireAuthAPI)
		r.Use(h.rateLimit)
		r.Use(h.forwardToken)

		r.Get("/ws/home", h.handleHomeWS)
		r.Get("/ws/ceremonies", h.handleCeremoniesWS)
		r.Get("/ws/ceremonies/{id}", h.handleCeremonyWS)
		r.Get("/ws/competitions/{id}", h.handleCompetitionWS)
		r.Get("/ws/competitions/{id}/categories/{categoryID}", h.handleCategoryWS)
		r.Get("/ws/competitions/{id}/leaderboard", h.handleLeaderboardWS)
		r.Get("/ws/profile", h.handleProfileWS)
	})

	return r
}

// handleHealth reports liveness
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if h.Hub != nil {
		clients = h.Hub.ClientCount()
	}
	respondOK(w, HealthResponse{Status: "ok", Clients: clients})
}
