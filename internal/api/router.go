package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/schedule"
)

type ChatEngine interface {
	Handle(ctx context.Context, cpf, text string) string
}

type AppointmentService interface {
	ListByPatient(ctx context.Context, patientID string) ([]appointment.View, error)
	ListAll(ctx context.Context) ([]appointment.View, error)
	OpenSlots(ctx context.Context, specialty string, date schedule.Date) ([]schedule.Clock, error)
}

type RouterConfig struct {
	Chat     ChatEngine
	Service  AppointmentService
	Checks   []HealthCheck
	Metrics  http.Handler
	Logger   *zap.Logger
	Location *time.Location
	Now      func() time.Time
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Post("/chat", chatHandler(cfg.Chat))

	r.Get("/specialties", specialtiesHandler)
	r.Get("/availability", availabilityHandler(cfg.Service, loc, now, log))
	r.Get("/appointments", listAppointmentsHandler(cfg.Service, log))
	r.Get("/patients/{cpf}/appointments", listPatientAppointmentsHandler(cfg.Service, log))

	return r
}
