package health

import (
	"encoding/json"
	"net/http"
)

// Handler serves the aggregate Report as JSON. Unhealthy reports get 503;
// degraded ones still get 200 because the query path keeps working.
func Handler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := agg.Report(r.Context())

		code := http.StatusOK
		if report.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	}
}
