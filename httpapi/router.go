package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chat-relay/contract"
	"chat-relay/services"
)

// NewRouter assembles the full HTTP surface: the authenticated REST API,
// the websocket endpoint and the metrics endpoint.
func NewRouter(log *slog.Logger, chat *services.ChatService,
	verifier contract.TokenVerifier, wsHandler http.Handler,
	registry *prometheus.Registry) http.Handler {

	h := NewHandler(log, chat)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Handle("/ws", wsHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(Auth(verifier))

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", h.ListConversations)
			r.Post("/", h.AccessConversation)

			r.Route("/group", func(r chi.Router) {
				r.Post("/", h.CreateGroup)
				r.Put("/rename", h.RenameGroup)
				r.Put("/add", h.AddToGroup)
				r.Put("/remove", h.RemoveFromGroup)
			})

			r.Route("/{conversationID}", func(r chi.Router) {
				r.Get("/messages", h.History)
				r.Post("/messages", h.SendMessage)
				r.Get("/messages/{messageID}", h.GetMessage)
				r.Put("/read", h.MarkRead)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.SearchUsers)
			r.Get("/profile", h.Profile)
		})
	})

	return r
}
