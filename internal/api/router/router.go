// Package router assembles the HTTP surface of the clinic API: all handlers,
// the staff auth boundary, and the ambient middleware stack.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/graftline/clinic-crm/internal/calendar"
	"github.com/graftline/clinic-crm/internal/doctors"
	"github.com/graftline/clinic-crm/internal/export"
	httpmiddleware "github.com/graftline/clinic-crm/internal/http/middleware"
	"github.com/graftline/clinic-crm/internal/patients"
	"github.com/graftline/clinic-crm/internal/quotes"
	"github.com/graftline/clinic-crm/internal/scheduling"
	"github.com/graftline/clinic-crm/internal/simulation"
	"github.com/graftline/clinic-crm/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	SchedulingHandler  *scheduling.Handler
	PatientsHandler    *patients.Handler
	DoctorsHandler     *doctors.Handler
	QuotesHandler      *quotes.Handler
	CalendarHandler    *calendar.Handler
	SimulationHandler  *simulation.Handler
	ExportHandler      *export.Handler
	MetricsHandler     http.Handler
	StaffAuthSecret    string
	CORSAllowedOrigins []string

	// Requests per second and burst per tenant; zero disables rate limiting.
	RateLimitPerSec float64
	RateLimitBurst  int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (health checks, metrics)
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Staff API: everything below requires a resolved tenant actor.
	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.StaffAuth(cfg.StaffAuthSecret))
		if cfg.RateLimitPerSec > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst))
		}

		if cfg.SchedulingHandler != nil {
			api.Route("/appointments", func(r chi.Router) {
				r.Post("/", cfg.SchedulingHandler.CreateAppointment)
				r.Get("/", cfg.SchedulingHandler.ListAppointments)
				r.Get("/{appointmentID}", cfg.SchedulingHandler.GetAppointment)
				r.Patch("/{appointmentID}/status", cfg.SchedulingHandler.TransitionAppointment)
				r.Delete("/{appointmentID}", cfg.SchedulingHandler.DeleteAppointment)
			})
		}

		if cfg.PatientsHandler != nil {
			api.Route("/patients", func(r chi.Router) {
				r.Post("/", cfg.PatientsHandler.CreatePatient)
				r.Get("/", cfg.PatientsHandler.ListPatients)
				r.Route("/{patientID}", func(r chi.Router) {
					r.Get("/", cfg.PatientsHandler.GetPatient)
					r.Patch("/", cfg.PatientsHandler.UpdatePatient)
					r.Delete("/", cfg.PatientsHandler.DeletePatient)
					r.Put("/milestones", cfg.PatientsHandler.SaveMilestones)
					r.Post("/milestones/ensure", cfg.PatientsHandler.EnsureMilestones)
					if cfg.QuotesHandler != nil {
						r.Get("/quotes", cfg.QuotesHandler.ListPatientQuotes)
					}
					if cfg.SimulationHandler != nil {
						r.Post("/simulation", cfg.SimulationHandler.Simulate)
					}
					if cfg.ExportHandler != nil {
						r.Get("/export/pdf", cfg.ExportHandler.PatientSummary)
					}
				})
			})
		}

		if cfg.DoctorsHandler != nil {
			api.Route("/doctors", func(r chi.Router) {
				r.Post("/", cfg.DoctorsHandler.CreateDoctor)
				r.Get("/", cfg.DoctorsHandler.ListDoctors)
				r.Get("/{doctorID}", cfg.DoctorsHandler.GetDoctor)
				r.Patch("/{doctorID}/active", cfg.DoctorsHandler.SetDoctorActive)
			})
		}

		if cfg.QuotesHandler != nil {
			api.Route("/quotes", func(r chi.Router) {
				r.Post("/", cfg.QuotesHandler.CreateQuote)
				r.Get("/{quoteID}", cfg.QuotesHandler.GetQuote)
				r.Patch("/{quoteID}/status", cfg.QuotesHandler.TransitionQuote)
				r.Delete("/{quoteID}", cfg.QuotesHandler.DeleteQuote)
				if cfg.ExportHandler != nil {
					r.Get("/{quoteID}/pdf", cfg.ExportHandler.Quote)
				}
			})
		}

		if cfg.CalendarHandler != nil {
			api.Get("/calendar", cfg.CalendarHandler.GetCalendar)
		}
	})

	return r
}
