package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/greia-app/verification-backend/api/controllers"
	"github.com/greia-app/verification-backend/api/middleware"
	"github.com/greia-app/verification-backend/internal/agents"
	"github.com/greia-app/verification-backend/internal/notifications"
	"github.com/greia-app/verification-backend/internal/verification"
	"github.com/greia-app/verification-backend/pkg/config"
	"github.com/greia-app/verification-backend/pkg/db"
	"github.com/greia-app/verification-backend/pkg/logger"
	"github.com/greia-app/verification-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	verificationService verification.Service,
	agentsService agents.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/verifications", func(r chi.Router) {
			r.Post("/", controllers.StartVerification(verificationService, logg))
			r.Post("/documents/upload-url", controllers.CreateUploadURL(verificationService, logg))
			r.Get("/{verificationId}", controllers.GetVerification(verificationService, logg))
			r.Post("/{verificationId}/documents", controllers.SubmitDocuments(verificationService, logg))
		})

		r.Route("/agents/verifications", func(r chi.Router) {
			r.Post("/", controllers.StartAgentVerification(agentsService, logg))
			r.Post("/{verificationId}/checks", controllers.RunAgentChecks(agentsService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	return r
}
