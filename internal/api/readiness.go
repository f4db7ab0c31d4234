package api

import (
	"net/http"
	"strings"
	"sync"
)

// readiness tracks dependency health for /ready and /metrics. Optional
// dependencies report "unavailable" without failing readiness.
var readiness = &readinessState{}

type readinessState struct {
	mu                sync.RWMutex
	runnerReady       bool
	mqttConnected     bool
	mqttOptional      bool
	postgresConnected bool
	postgresOptional  bool
}

// SetRunnerReady marks whether a run is loaded.
func SetRunnerReady(ready bool) {
	readiness.mu.Lock()
	readiness.runnerReady = ready
	readiness.mu.Unlock()
}

func SetMQTTStatus(connected, optional bool) {
	readiness.mu.Lock()
	readiness.mqttConnected = connected
	readiness.mqttOptional = optional
	readiness.mu.Unlock()
}

func SetPostgresStatus(connected, optional bool) {
	readiness.mu.Lock()
	readiness.postgresConnected = connected
	readiness.postgresOptional = optional
	readiness.mu.Unlock()
}

type Check struct {
	Status string `json:"status"`
}

type ReadinessResponse struct {
	Ready       bool             `json:"ready"`
	Checks      map[string]Check `json:"checks"`
	NotReadyMsg string           `json:"message,omitempty"`
}

func dependencyCheck(connected, optional bool) (Check, bool) {
	switch {
	case connected:
		return Check{Status: "ok"}, true
	case optional:
		return Check{Status: "unavailable"}, true
	default:
		return Check{Status: "not_ready"}, false
	}
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	readiness.mu.RLock()
	runnerReady := readiness.runnerReady
	mqttCheck, mqttOK := dependencyCheck(readiness.mqttConnected, readiness.mqttOptional)
	pgCheck, pgOK := dependencyCheck(readiness.postgresConnected, readiness.postgresOptional)
	readiness.mu.RUnlock()

	resp := ReadinessResponse{
		Ready:  true,
		Checks: map[string]Check{"mqtt": mqttCheck, "postgres": pgCheck},
	}

	var failing []string
	if runnerReady {
		resp.Checks["runner"] = Check{Status: "ok"}
	} else {
		resp.Checks["runner"] = Check{Status: "not_ready"}
		failing = append(failing, "runner")
	}
	if !mqttOK {
		failing = append(failing, "mqtt")
	}
	if !pgOK {
		failing = append(failing, "postgres")
	}

	status := http.StatusOK
	if len(failing) > 0 {
		resp.Ready = false
		resp.NotReadyMsg = "not ready: " + strings.Join(failing, ", ")
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
