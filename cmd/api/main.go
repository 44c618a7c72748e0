package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/graftline/clinic-crm/cmd/mainconfig"
	"github.com/graftline/clinic-crm/internal/api/router"
	"github.com/graftline/clinic-crm/internal/app/bootstrap"
	"github.com/graftline/clinic-crm/internal/calendar"
	appconfig "github.com/graftline/clinic-crm/internal/config"
	"github.com/graftline/clinic-crm/internal/doctors"
	"github.com/graftline/clinic-crm/internal/export"
	"github.com/graftline/clinic-crm/internal/notify"
	"github.com/graftline/clinic-crm/internal/observability/metrics"
	"github.com/graftline/clinic-crm/internal/patients"
	"github.com/graftline/clinic-crm/internal/quotes"
	"github.com/graftline/clinic-crm/internal/scheduling"
	"github.com/graftline/clinic-crm/internal/simulation"
	"github.com/graftline/clinic-crm/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-crm API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := bootstrap.BuildPgxPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	schedulingMetrics := metrics.NewSchedulingMetrics(registry)
	simulationMetrics := metrics.NewSimulationMetrics(registry)

	// Scheduling core
	store := scheduling.NewPostgresStore(pool)
	notifyService := notify.NewService(bootstrap.BuildEmailSender(cfg, awsCfg, logger), logger)

	var calendarService *calendar.Service
	if redisClient != nil {
		calendarService = calendar.NewService(store, redisClient, logger,
			calendar.WithCacheTTL(cfg.CalendarCacheTTL))
	}

	patientsRepo := patients.NewPostgresRepository(pool)

	coordinatorOpts := []scheduling.CoordinatorOption{
		scheduling.WithMetrics(schedulingMetrics),
		scheduling.WithHoldPolicy(scheduling.NewHoldPolicy(cfg.HoldTTL)),
		scheduling.WithWindowMargin(cfg.ConflictWindowMargin),
		scheduling.WithMinDuration(time.Duration(cfg.MinAppointmentMinutes) * time.Minute),
	}
	syncOpts := []scheduling.SyncOption{
		scheduling.WithSyncMetrics(schedulingMetrics),
	}
	if calendarService != nil {
		coordinatorOpts = append(coordinatorOpts, scheduling.WithCacheInvalidator(calendarService))
		syncOpts = append(syncOpts, scheduling.WithSyncCacheInvalidator(calendarService))
	}

	synchronizer := scheduling.NewSynchronizer(store, logger, syncOpts...)
	patientsService := patients.NewService(patientsRepo, synchronizer, logger)

	coordinatorOpts = append(coordinatorOpts,
		scheduling.WithBookingNotifier(notifyService, patientsService))
	coordinator := scheduling.NewCoordinator(store, logger, coordinatorOpts...)

	quotesRepo := quotes.NewPostgresRepository(pool)
	quotesService := quotes.NewService(quotesRepo, logger,
		quotes.WithMilestoneStamper(patientsService),
		quotes.WithNotifier(notifyService, patientsService),
	)

	doctorsRepo := doctors.NewPostgresRepository(pool)

	// Simulation (optional: requires a Gemini API key)
	var simulationHandler *simulation.Handler
	generator, err := bootstrap.BuildImageGenerator(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to init image generator", "error", err)
		os.Exit(1)
	}
	if generator != nil {
		photoStore := bootstrap.BuildPhotoStore(awsCfg, cfg, logger)
		simulationService := simulation.NewService(generator, photoStore, logger,
			simulation.WithMetrics(simulationMetrics))
		simulationHandler = simulation.NewHandler(simulationService, logger)
	}

	renderer := export.NewRenderer(export.ClinicBranding{
		Name:    cfg.SendGridFromName,
		Tagline: "Advanced hair restoration",
		ContactLines: []string{
			cfg.SendGridFromEmail,
			cfg.PublicBaseURL,
		},
	})

	var calendarHandler *calendar.Handler
	if calendarService != nil {
		calendarHandler = calendar.NewHandler(calendarService, logger)
	}

	routerCfg := &router.Config{
		Logger:             logger,
		SchedulingHandler:  scheduling.NewHandler(coordinator, store, logger),
		PatientsHandler:    patients.NewHandler(patientsService, logger),
		DoctorsHandler:     doctors.NewHandler(doctorsRepo, logger),
		QuotesHandler:      quotes.NewHandler(quotesService, logger),
		CalendarHandler:    calendarHandler,
		SimulationHandler:  simulationHandler,
		ExportHandler:      export.NewHandler(renderer, patientsService, quotesService, logger),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		StaffAuthSecret:    cfg.StaffJWTSecret,
		CORSAllowedOrigins: []string{cfg.PublicBaseURL},
		RateLimitPerSec:    50,
		RateLimitBurst:     100,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
