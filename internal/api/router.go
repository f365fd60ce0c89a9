package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/zeromonos/waste-pickup-booking/internal/booking"
)

type RouterConfig struct {
	Service *booking.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client // optional, nil when the catalog cache is disabled
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Citizen endpoints
	r.Post("/api/bookings", createBookingHandler(cfg.Service))
	r.Get("/api/bookings/municipalities", listMunicipalitiesHandler(cfg.Service))
	r.Get("/api/bookings/{token}", getBookingHandler(cfg.Service))
	r.Put("/api/bookings/{token}/cancel", cancelBookingHandler(cfg.Service))

	// Staff endpoints
	r.Get("/api/staff/bookings", staffListBookingsHandler(cfg.Service))
	r.Patch("/api/staff/bookings/{token}/status", staffUpdateStatusHandler(cfg.Service))

	return r
}
