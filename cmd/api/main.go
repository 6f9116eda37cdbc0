package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/greia-app/verification-backend/api/routes"
	"github.com/greia-app/verification-backend/internal/agents"
	"github.com/greia-app/verification-backend/internal/notifications"
	"github.com/greia-app/verification-backend/internal/users"
	"github.com/greia-app/verification-backend/internal/verification"
	"github.com/greia-app/verification-backend/pkg/config"
	"github.com/greia-app/verification-backend/pkg/db"
	"github.com/greia-app/verification-backend/pkg/identity"
	"github.com/greia-app/verification-backend/pkg/logger"
	"github.com/greia-app/verification-backend/pkg/mailer"
	"github.com/greia-app/verification-backend/pkg/metrics"
	"github.com/greia-app/verification-backend/pkg/migrate"
	"github.com/greia-app/verification-backend/pkg/redis"
	"github.com/greia-app/verification-backend/pkg/registry"
	"github.com/greia-app/verification-backend/pkg/storage/gcs"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}

	identityClient, err := identity.NewClient(cfg.Identity)
	if err != nil {
		logg.Error(context.Background(), "failed to create identity client", err)
		os.Exit(1)
	}

	licenseClient, err := registry.NewLicenseClient(cfg.Registries)
	if err != nil {
		logg.Error(context.Background(), "failed to create license registry client", err)
		os.Exit(1)
	}
	insuranceClient, err := registry.NewInsuranceClient(cfg.Registries)
	if err != nil {
		logg.Error(context.Background(), "failed to create insurance registry client", err)
		os.Exit(1)
	}
	companyClient, err := registry.NewCompanyClient(cfg.Registries)
	if err != nil {
		logg.Error(context.Background(), "failed to create company registry client", err)
		os.Exit(1)
	}

	mailClient, err := mailer.New(cfg.Sendgrid, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create mailer", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())

	notifier, err := notifications.NewNotifier(notificationsRepo, mailClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	verificationService, err := verification.NewService(verification.ServiceParams{
		DB:          dbClient,
		Repo:        verification.NewRepository(dbClient.DB()),
		Users:       usersRepo,
		Identity:    identityClient,
		Notifier:    notifier,
		GCS:         gcsClient,
		Bucket:      cfg.GCS.BucketName,
		UploadTTL:   cfg.GCS.UploadURLExpiry,
		DownloadTTL: cfg.GCS.DownloadURLExpiry,
		Logger:      logg,
		Metrics:     metrics.NewVerificationDecisionMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create verification service", err)
		os.Exit(1)
	}

	agentsService, err := agents.NewService(agents.ServiceParams{
		DB:        dbClient,
		Repo:      agents.NewRepository(dbClient.DB()),
		Users:     usersRepo,
		Base:      verificationService,
		Licenses:  licenseClient,
		Insurers:  insuranceClient,
		Companies: companyClient,
		Notifier:  notifier,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create agents service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			verificationService,
			agentsService,
			notificationsService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
