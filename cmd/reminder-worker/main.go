// Command reminder-worker sweeps provisional bookings and emails patients
// before their held slot lapses.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/graftline/clinic-crm/cmd/mainconfig"
	"github.com/graftline/clinic-crm/internal/app/bootstrap"
	appconfig "github.com/graftline/clinic-crm/internal/config"
	"github.com/graftline/clinic-crm/internal/notify"
	"github.com/graftline/clinic-crm/internal/patients"
	"github.com/graftline/clinic-crm/internal/scheduling"
	holdsworker "github.com/graftline/clinic-crm/internal/worker/holds"
	"github.com/graftline/clinic-crm/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("reminder worker requires DATABASE_URL")
		os.Exit(1)
	}

	pool, err := bootstrap.BuildPgxPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	store := scheduling.NewPostgresStore(pool)
	patientsRepo := patients.NewPostgresRepository(pool)
	patientsService := patients.NewService(patientsRepo, scheduling.NewSynchronizer(store, logger), logger)
	notifyService := notify.NewService(bootstrap.BuildEmailSender(cfg, awsCfg, logger), logger)

	reminder := holdsworker.NewReminder(store, notifyService, patientsService, redisClient, logger).
		WithLeadTime(2 * time.Hour)

	go reminder.Run(ctx)
	logger.Info("reminder worker started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("reminder worker shutting down")
	cancel()
	time.Sleep(2 * time.Second)
}
