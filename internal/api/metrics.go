package api

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AaronLay10/gridrunner/internal/coordinator"
	"github.com/AaronLay10/gridrunner/internal/events"
	"github.com/AaronLay10/gridrunner/internal/version"
)

var metricsState = &MetricsState{}

var (
	routeRequests    atomic.Int64
	routeRateLimited atomic.Int64
)

// MetricsState holds process-level metric labels.
type MetricsState struct {
	mu         sync.RWMutex
	startTime  time.Time
	scenarioID string
}

// InitMetrics records the process start time.
func InitMetrics(scenarioID string) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.startTime = time.Now()
	metricsState.scenarioID = scenarioID
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

// metricsHandler returns Prometheus text-format metrics.
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	metricsState.mu.RLock()
	startTime := metricsState.startTime
	scenarioID := metricsState.scenarioID
	metricsState.mu.RUnlock()

	readiness.mu.RLock()
	mqttConnected := readiness.mqttConnected
	postgresConnected := readiness.postgresConnected
	readiness.mu.RUnlock()

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	writeMetric := func(name, mtype, help string, value interface{}, labels string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
	}

	labels := fmt.Sprintf(`scenario="%s",instance="%s",version="%s"`, scenarioID, hostname, version.Version)

	writeMetric("gridrunner_uptime_seconds", "gauge",
		"Seconds since the process started", time.Since(startTime).Seconds(), labels)
	writeMetric("gridrunner_events_total", "counter",
		"Events emitted since startup", events.TotalCount(), labels)
	writeMetric("gridrunner_mqtt_connected", "gauge",
		"Whether the MQTT broker is connected (1) or not (0)", boolGauge(mqttConnected), labels)
	writeMetric("gridrunner_postgres_connected", "gauge",
		"Whether PostgreSQL is connected (1) or not (0)", boolGauge(postgresConnected), labels)
	writeMetric("gridrunner_ws_clients", "gauge",
		"Active WebSocket clients", events.SubscriberCount(), labels)
	writeMetric("gridrunner_route_requests_total", "counter",
		"Accepted POST /route requests", routeRequests.Load(), labels)
	writeMetric("gridrunner_route_rate_limited_total", "counter",
		"Rejected POST /route requests", routeRateLimited.Load(), labels)

	c := getRunController()
	if c == nil {
		return
	}
	snap := c.Snapshot()
	runLabels := labels + fmt.Sprintf(`,run_id="%s"`, snap.RunID)
	writeMetric("gridrunner_run_step_index", "gauge",
		"Index of the robot's current route step (-1 before the first step)", snap.StepIndex, runLabels)
	writeMetric("gridrunner_run_total_steps", "gauge",
		"Number of cells in the planned route", snap.TotalSteps, runLabels)
	writeMetric("gridrunner_run_waypoints_captured", "gauge",
		"Index of the last waypoint reached", snap.Captured, runLabels)
	for _, s := range coordinator.States {
		writeMetric("gridrunner_run_state", "gauge",
			"1 for the run's current coordinator state",
			boolGauge(snap.State == string(s)), runLabels+fmt.Sprintf(`,state="%s"`, s))
	}
}
