package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/team-inbox/internal/middleware"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
)

// RouterConfig collects everything the HTTP surface is built from.
type RouterConfig struct {
	Health        *HealthHandler
	Teams         *TeamHandler
	Channels      *ChannelHandler
	Conversations *ConversationHandler
	Webhook       *WebhookHandler

	JWTSecret         string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	Logger            *logger.Logger
}

// NewRouter builds the chi router for the API server.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)

	r.Handle("/metrics", promhttp.Handler())

	// Provider callbacks authenticate by signature, not JWT.
	r.Route("/webhooks", func(r chi.Router) {
		r.Use(middleware.WebhookRateLimit(cfg.RateLimitRequests*10, cfg.RateLimitWindow))
		r.Post("/twilio", cfg.Webhook.Twilio)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/teams", func(r chi.Router) {
			r.Post("/", cfg.Teams.Create)
			r.Get("/", cfg.Teams.List)

			r.Route("/{teamID}", func(r chi.Router) {
				r.Get("/", cfg.Teams.Get)
				r.Patch("/", cfg.Teams.Update)
				r.Delete("/", cfg.Teams.Delete)

				r.Get("/members", cfg.Teams.ListMembers)
				r.Post("/members", cfg.Teams.AddMember)
				r.Patch("/members/{memberID}", cfg.Teams.UpdateMember)
				r.Delete("/members/{memberID}", cfg.Teams.RemoveMember)

				r.Get("/channels", cfg.Channels.List)
				r.Post("/channels", cfg.Channels.Create)
				r.Delete("/channels/{channelID}", cfg.Channels.Delete)

				r.Get("/conversations", cfg.Conversations.ListByTeam)
			})
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", cfg.Conversations.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.Conversations.Get)
				r.Patch("/", cfg.Conversations.Update)

				r.Get("/messages", cfg.Conversations.ListMessages)

				r.Get("/notes", cfg.Conversations.ListNotes)
				r.Post("/notes", cfg.Conversations.AddNote)
			})
		})
	})

	return r
}
