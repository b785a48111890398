package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/listflow/internal/metrics"
)

// NewRouter configures all routes.
func NewRouter(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Api-Key"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health.HandleHealth)
	r.Get("/health/live", h.Health.HandleLiveness)
	r.Handle("/metrics", metrics.Handler())

	// Public endpoints reached from emails and the subscribe form.
	r.Route("/public", func(r chi.Router) {
		r.Post("/subscriber", h.PublicSubscribe)
		r.Get("/subscriber/confirm", h.ConfirmSubscriber)
		r.Get("/subscriber/unsubscribe", h.UnsubscribePage)
		r.Post("/subscriber/unsubscribe", h.UnsubscribeSubmit)
	})

	r.Route("/subscriber", func(r chi.Router) {
		r.Post("/", h.UpsertSubscriber)
		r.Get("/", h.GetSubscriber)
		r.Delete("/", h.DeleteSubscriber)
		r.Get("/status", h.SubscriberStatus)
		r.Get("/history", h.SubscriberHistory)
		r.Post("/tag", h.TagSubscriber)
		r.Post("/untag", h.UntagSubscriber)
		r.Post("/email", h.ChangeEmail)
		r.Post("/unsubscribe", h.AdminUnsubscribe)
	})

	r.Route("/autoresponder", func(r chi.Router) {
		r.Post("/trigger", h.TriggerAutoresponder)
		r.Post("/", h.PutAutoresponder)
		r.Get("/", h.GetAutoresponder)
		r.Delete("/", h.DeleteAutoresponder)
	})
	r.Get("/autoresponders", h.ListAutoresponders)

	r.Get("/lists", h.ListLists)
	r.Post("/list", h.PutList)
	r.Delete("/list", h.DeleteList)

	r.Get("/settings/blocked-domains", h.GetBlockedDomains)
	r.Post("/settings/blocked-domains", h.PutBlockedDomains)
	r.Get("/settings/auto-confirm-tags", h.GetAutoConfirmTags)
	r.Post("/settings/auto-confirm-tags", h.PutAutoConfirmTags)

	r.Post("/email", h.SendSingleEmail)

	r.Post("/broadcast", h.SubmitBroadcast)
	r.Get("/broadcast", h.GetPendingBroadcast)
	r.Delete("/broadcast/lease", h.ReleaseBroadcastLease)
	r.Post("/subscriber-count", h.PreviewCount)
	r.Get("/subscriber-count", h.PreviewResult)

	r.Get("/unsubscribe-link", h.UnsubscribeLink)

	return r
}
