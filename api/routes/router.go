package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/atelier-backend/api/controllers"
	"github.com/angelmondragon/atelier-backend/api/middleware"
	"github.com/angelmondragon/atelier-backend/internal/allocation"
	"github.com/angelmondragon/atelier-backend/internal/assignments"
	"github.com/angelmondragon/atelier-backend/pkg/config"
	"github.com/angelmondragon/atelier-backend/pkg/db"
	"github.com/angelmondragon/atelier-backend/pkg/logger"
	"github.com/angelmondragon/atelier-backend/pkg/metrics"
	"github.com/angelmondragon/atelier-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	engine allocation.Engine,
	assignmentService assignments.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
	)

	checks := map[string]db.Pinger{"database": dbP}
	var idempotencyStore redis.IdempotencyStore
	if redisClient != nil {
		checks["redis"] = redisClient
		idempotencyStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Get("/people/{personId}/allocation", controllers.PersonAllocation(engine, logg))

		r.Route("/allocation", func(r chi.Router) {
			r.Get("/team", controllers.TeamAllocation(engine, logg))
			r.Post("/validate", controllers.ValidateAllocation(engine, logg))
		})

		r.Route("/assignments", func(r chi.Router) {
			r.Post("/", controllers.AssignmentCreate(assignmentService, logg))
			r.Get("/", controllers.AssignmentList(assignmentService, logg))
			r.Route("/{assignmentId}", func(r chi.Router) {
				r.Get("/", controllers.AssignmentGet(assignmentService, logg))
				r.Patch("/", controllers.AssignmentUpdate(assignmentService, logg))
				r.Delete("/", controllers.AssignmentDelete(assignmentService, logg))
				r.Post("/deactivate", controllers.AssignmentDeactivate(assignmentService, logg))
			})
		})
	})

	return r
}
