// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"

	"github.com/VictoriaMetrics/metrics"
)

// RecordRun records one full processor invocation.
func RecordRun(success bool) {
	name := `automation_runs_total{success="` + strconv.FormatBool(success) + `"}`
	metrics.GetOrCreateCounter(name).Inc()
}

// RecordItemOutcome records the final outcome of one queue item in a run.
func RecordItemOutcome(outcome string) {
	name := `automation_items_total{outcome="` + outcome + `"}`
	metrics.GetOrCreateCounter(name).Inc()
}

// RecordDispatch records one dispatch attempt per channel.
func RecordDispatch(channel string, success bool) {
	name := `automation_dispatch_attempts_total{channel="` + channel + `",success="` + strconv.FormatBool(success) + `"}`
	metrics.GetOrCreateCounter(name).Inc()
}

// Handler serves the Prometheus exposition endpoint.
func Handler(w http.ResponseWriter, _ *http.Request) {
	metrics.WritePrometheus(w, true)
}
