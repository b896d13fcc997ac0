package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/paygw-chargebee/api"
	"github.com/frahmantamala/paygw-chargebee/internal/auth"
	"github.com/frahmantamala/paygw-chargebee/internal/checkout"
	"github.com/frahmantamala/paygw-chargebee/internal/transport/middleware"
	"github.com/frahmantamala/paygw-chargebee/internal/transport/swagger"
)

func RegisterAllRoutes(router *chi.Mux, healthHandler *HealthHandler, authHandler *auth.Handler, checkoutHandler *checkout.Handler, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.Spec())
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Group(func(pr chi.Router) {
			pr.Use(authHandler.AuthMiddleware)

			pr.Route("/checkout", func(cr chi.Router) {
				cr.Get("/start", checkoutHandler.Start)
				cr.Get("/return", checkoutHandler.Return)
			})
		})
	})
}
