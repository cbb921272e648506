package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	redisadapter "github.com/DucAnhIT03/movie-serverside/internal/adapters/redis"
	"github.com/DucAnhIT03/movie-serverside/internal/observability"
)

// SetupRouter wires the public surface. Gateway callbacks, health probes
// and metrics stay outside auth; everything else requires a token, and
// authed POSTs additionally require an Idempotency-Key.
func SetupRouter(h *Handlers, logger observability.Logger, cache *redisadapter.Cache, idemp *redisadapter.Idempotency, jwtSecret string, idempTTL time.Duration) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(RateLimitMiddleware(cache))

	r.Group(func(r chi.Router) {
		r.Use(JWTMiddleware(jwtSecret))
		r.Use(IdempotencyMiddleware(idemp, idempTTL))

		r.Post("/v1/bookings", h.CreateBooking)
		r.Get("/v1/bookings", h.ListBookings)
		r.Get("/v1/bookings/{id}", h.GetBooking)
		r.Patch("/v1/bookings/{id}", h.UpdateBooking)
		r.Delete("/v1/bookings/{id}", h.DeleteBooking)
		r.Post("/v1/payments", h.CreatePayment)
		r.Get("/v1/admin/bookings", h.AdminListBookings)
	})

	r.Post("/v1/payments/callback/{method}", h.PaymentCallback)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
