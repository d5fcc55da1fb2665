// internal/app/features/metrics/routes.go
package metrics

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Routes serves the Prometheus exposition for g, mounted at "/metrics".
func Routes(g prometheus.Gatherer, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Handle("/", promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorLog:      zap.NewStdLog(logger),
		ErrorHandling: promhttp.ContinueOnError,
	}))
	return r
}
