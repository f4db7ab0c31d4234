package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/AaronLay10/gridrunner/internal/coordinator"
	"github.com/AaronLay10/gridrunner/internal/events"
	"github.com/AaronLay10/gridrunner/internal/grid"
	"github.com/AaronLay10/gridrunner/internal/logging"
	"github.com/AaronLay10/gridrunner/internal/pathfind"
	"github.com/AaronLay10/gridrunner/internal/planner"
	"github.com/AaronLay10/gridrunner/internal/runner"
)

// MaxGridCells bounds the grids POST /route will plan over.
const MaxGridCells = 1_000_000

// RunController is the active run as seen by the API. *runner.Runner
// satisfies it.
type RunController interface {
	Snapshot() runner.Snapshot
	Dispatch(action coordinator.Action) error
}

var (
	controller   RunController
	controllerMu sync.RWMutex
)

// SetRunController sets the run served by /state and /dispatch.
func SetRunController(c RunController) {
	controllerMu.Lock()
	controller = c
	controllerMu.Unlock()
}

func getRunController() RunController {
	controllerMu.RLock()
	defer controllerMu.RUnlock()
	return controller
}

var (
	routeLimiter   = newRouteLimiter(20, 40)
	routeLimiterMu sync.RWMutex
)

func newRouteLimiter(rate, burst int) ratelimit.RateLimiter {
	return ratelimit.New(&ratelimit.Config{
		Rate:     rate,
		Burst:    burst,
		FailOpen: true,
	})
}

// SetRouteRateLimit replaces the per-client limiter for POST /route.
func SetRouteRateLimit(rate, burst int) {
	l := newRouteLimiter(rate, burst)
	routeLimiterMu.Lock()
	routeLimiter = l
	routeLimiterMu.Unlock()
}

func getRouteLimiter() ratelimit.RateLimiter {
	routeLimiterMu.RLock()
	defer routeLimiterMu.RUnlock()
	return routeLimiter
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	resp := HealthResponse{
		Status:    "ok",
		Service:   "gridrunner",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	writeJSON(w, http.StatusOK, resp)
}

// eventsHandler returns buffered events. ?run_id= filters to one run and
// ?limit= keeps only the newest n.
func eventsHandler(w http.ResponseWriter, r *http.Request) {
	var out []events.Event
	if runID := r.URL.Query().Get("run_id"); runID != "" {
		out = events.RunEvents(runID)
	} else {
		out = events.Snapshot()
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n < len(out) {
		out = out[len(out)-n:]
	}
	if out == nil {
		out = []events.Event{}
	}
	writeJSON(w, http.StatusOK, out)
}

type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{OK: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func stateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	c := getRunController()
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, "no active run")
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// RouteRequest describes a grid and waypoints to plan over.
type RouteRequest struct {
	Rows      int             `json:"rows"`
	Cols      int             `json:"cols"`
	Obstacles []grid.Position `json:"obstacles"`
	Waypoints []grid.Position `json:"waypoints"`
	Diagonal  bool            `json:"diagonal"`
}

type RouteResponse struct {
	OK    bool           `json:"ok"`
	Route *planner.Route `json:"route,omitempty"`
	Error string         `json:"error,omitempty"`
	Leg   *int           `json:"leg,omitempty"`
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// routeHandler plans a route for the posted grid. ?format=geojson returns
// a GeoJSON FeatureCollection instead of the route JSON.
func routeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !getRouteLimiter().Allow(r.Context(), clientKey(r)) {
		routeRateLimited.Add(1)
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	routeRequests.Add(1)

	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Rows <= 0 || req.Cols <= 0 || req.Rows > MaxGridCells/req.Cols {
		writeError(w, http.StatusBadRequest, "rows and cols must be positive and within limits")
		return
	}

	g := grid.New(req.Rows, req.Cols)
	for _, p := range req.Obstacles {
		if err := g.AddObstacleChecked(p); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	for i, p := range req.Waypoints {
		if !g.IsWithinBounds(p) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("waypoint %d: %s out of bounds", i, p))
			return
		}
	}

	var topo grid.Topology = g
	if req.Diagonal {
		topo = grid.EightConnected(g)
	}

	events.Emit("info", events.RouteRequested, "", map[string]interface{}{
		"rows":      req.Rows,
		"cols":      req.Cols,
		"waypoints": len(req.Waypoints),
		"diagonal":  req.Diagonal,
	})

	route, err := planner.PlanContext(r.Context(), topo, req.Waypoints)
	if err != nil {
		resp := RouteResponse{OK: false, Error: err.Error()}
		status := http.StatusInternalServerError
		var leg *planner.LegFailure
		switch {
		case errors.Is(err, planner.ErrInvalidWaypoints):
			status = http.StatusBadRequest
		case errors.As(err, &leg) && errors.Is(err, pathfind.ErrNoPath):
			status = http.StatusUnprocessableEntity
			idx := leg.Index
			resp.Leg = &idx
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			status = http.StatusRequestTimeout
		}
		writeJSON(w, status, resp)
		return
	}

	if r.URL.Query().Get("format") == "geojson" {
		b, err := route.GeoJSON()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "encode geojson")
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write(b)
		return
	}
	writeJSON(w, http.StatusOK, RouteResponse{OK: true, Route: route})
}

type DispatchRequest struct {
	Action string `json:"action"`
}

type DispatchResponse struct {
	OK    bool   `json:"ok"`
	State string `json:"state,omitempty"`
	Error string `json:"error,omitempty"`
}

func dispatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "action required")
		return
	}
	action, err := coordinator.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c := getRunController()
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, "no active run")
		return
	}
	if err := c.Dispatch(action); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, DispatchResponse{OK: true, State: c.Snapshot().State})
}

// NewMux wires every route.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler)
	mux.HandleFunc("/metrics", metricsHandler)
	mux.HandleFunc("/events", eventsHandler)
	mux.HandleFunc("/ws/events", wsEventsHandler)
	mux.HandleFunc("/state", stateHandler)
	mux.HandleFunc("/route", routeHandler)
	mux.HandleFunc("/dispatch", RequireOperator(dispatchHandler))
	return mux
}

// Serve runs the API on port until ctx is done, then shuts down
// gracefully. TLS is used when configured.
func Serve(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           NewMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tlsCfg, err := serverTLSConfig()
	if err != nil {
		return err
	}
	srv.TLSConfig = tlsCfg

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Add(logging.Component("api")).Add(logging.Str("addr", srv.Addr)).Add(logging.Str("tls", strconv.FormatBool(tlsCfg != nil))).Msg("api listening")
		var err error
		if tlsCfg != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		events.CloseAllSubscribers()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
