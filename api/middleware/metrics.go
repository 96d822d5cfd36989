package middleware

import (
	"net/http"
	"time"

	"github.com/angelmondragon/atelier-backend/pkg/metrics"
)

// Metrics records request counts and latency keyed by the chi route pattern,
// so path parameters do not explode label cardinality.
func Metrics(recorder *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if recorder == nil {
				next.ServeHTTP(w, r)
				return
			}
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)

			route := matchedRoute(r)
			if route == "" {
				route = "unmatched"
			}
			recorder.Observe(route, r.Method, rec.statusCode(), time.Since(start))
		})
	}
}
