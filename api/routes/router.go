package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bookhive/bookhive-backend/api/controllers"
	"github.com/bookhive/bookhive-backend/api/middleware"
	"github.com/bookhive/bookhive-backend/pkg/config"
	"github.com/bookhive/bookhive-backend/pkg/logger"
)

const readinessTimeout = 5 * time.Second

// Pinger is any dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams carries everything the operational router serves.
type RouterParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         Pinger
	Redis      Pinger
	Prometheus prometheus.Gatherer
}

// NewRouter builds the operational HTTP surface: liveness, readiness and
// metrics.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(params.Logger),
		middleware.RequestID(params.Logger),
		middleware.Logging(params.Logger),
	)

	deps := map[string]func() error{}
	if params.DB != nil {
		deps["database"] = timedPing(params.DB)
	}
	if params.Redis != nil {
		deps["redis"] = timedPing(params.Redis)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(params.Config))
		r.Get("/ready", controllers.HealthReady(params.Config, params.Logger, deps))
	})

	if params.Prometheus != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Prometheus, promhttp.HandlerOpts{}))
	}

	return r
}

func timedPing(p Pinger) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
		defer cancel()
		return p.Ping(ctx)
	}
}
