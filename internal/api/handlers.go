package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"drtnav/internal/buildinfo"
	"drtnav/internal/metrics"
	"drtnav/internal/model"
	"drtnav/internal/notify"
	"drtnav/internal/opt"
	"drtnav/internal/store"
)

// Routes builds the full handler tree with metrics instrumentation.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.MapHandler)
	mux.HandleFunc("/filter", s.FilterHandler)

	mux.HandleFunc("/v1/dispatch", s.DispatchHandler)
	mux.HandleFunc("/v1/runs/latest", s.LatestRunHandler)
	mux.HandleFunc("/v1/runs/stream", s.RunStreamHandler)
	mux.HandleFunc("/v1/runs/ws", s.RunWSHandler)

	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/version", s.VersionHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return s.withMetrics(mux)
}

type dispatchRequest struct {
	Start            string `json:"start,omitempty"`
	End              string `json:"end,omitempty"`
	MaxWaitMinutes   int    `json:"maxWaitMinutes,omitempty"`
	MaxTravelMinutes int    `json:"maxTravelMinutes,omitempty"`
	VehicleLimit     int    `json:"vehicleLimit,omitempty"`
}

// DispatchHandler triggers one dispatch run over the filtered request
// backlog and streams its lifecycle through the broker.
func (s *Server) DispatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !getPrincipal(r).CanDispatch() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher role required", r.URL.Path)
		return
	}

	var req dispatchRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
	}
	filter, err := parseTimeFilter(req.Start, req.End)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid time window", err.Error(), r.URL.Path)
		return
	}
	params := model.RunParams{
		MaxWaitMinutes:   req.MaxWaitMinutes,
		MaxTravelMinutes: req.MaxTravelMinutes,
		VehicleLimit:     req.VehicleLimit,
	}
	if err := validateRunParams(params); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid parameters", err.Error(), r.URL.Path)
		return
	}

	s.Broker.Publish(RunTopic, SSEEvent{Type: "run.started", Data: map[string]any{
		"ts": time.Now().UTC().Format(time.RFC3339),
	}})

	started := time.Now()
	run, err := s.Engine.Run(r.Context(), filter, params)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("error").Inc()
		s.Broker.Publish(RunTopic, SSEEvent{Type: "run.failed", Data: map[string]any{"error": err.Error()}})
		if errors.Is(err, opt.ErrNoVehicles) {
			writeProblem(w, http.StatusConflict, "No vehicles", "no vehicles available for dispatch", r.URL.Path)
			return
		}
		s.Log.Error().Err(err).Msg("dispatch run failed")
		writeProblem(w, http.StatusInternalServerError, "Dispatch failed", err.Error(), r.URL.Path)
		return
	}

	s.setLatestRun(run)
	s.recordRunMetrics(run, time.Since(started))
	s.publishRunEvents(run)
	s.Notifier.Emit(notify.EventRunCompleted, run)

	writeJSON(w, http.StatusOK, run)
}

func (s *Server) recordRunMetrics(run *model.RunResult, elapsed time.Duration) {
	metrics.RunsTotal.WithLabelValues("ok").Inc()
	metrics.RunDuration.Observe(elapsed.Seconds())
	assigned := run.RequestCount - run.SkippedCount - run.ForcedCount
	if assigned > 0 {
		metrics.RequestsAssigned.WithLabelValues("assigned").Add(float64(assigned))
	}
	if run.ForcedCount > 0 {
		metrics.RequestsAssigned.WithLabelValues("forced").Add(float64(run.ForcedCount))
	}
	if run.SkippedCount > 0 {
		metrics.RequestsAssigned.WithLabelValues("skipped").Add(float64(run.SkippedCount))
	}
	metrics.VehiclesDegraded.Add(float64(len(run.Degraded)))
}

func (s *Server) publishRunEvents(run *model.RunResult) {
	for _, v := range run.Vehicles {
		rr := run.Routes[v.ID]
		switch rr.State {
		case model.RouteRouted:
			s.Broker.Publish(RunTopic, SSEEvent{Type: "vehicle.routed", Data: map[string]any{
				"runId": run.RunID, "vehicleId": v.ID,
				"requests": len(run.Assignments[v.ID]), "distanceKm": rr.DistanceKm,
			}})
		case model.RouteDegraded:
			s.Broker.Publish(RunTopic, SSEEvent{Type: "vehicle.degraded", Data: map[string]any{
				"runId": run.RunID, "vehicleId": v.ID, "reason": rr.Reason,
			}})
		}
	}
	s.Broker.Publish(RunTopic, SSEEvent{Type: "run.completed", Data: map[string]any{
		"runId": run.RunID, "requests": run.RequestCount,
		"skipped": run.SkippedCount, "forced": run.ForcedCount,
		"degraded": len(run.Degraded),
	}})
}

func (s *Server) LatestRunHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	run := s.LatestRun()
	if run == nil {
		writeProblem(w, http.StatusNotFound, "No runs", "no dispatch run has completed yet", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// RunStreamHandler streams run lifecycle events as SSE with heartbeats.
func (s *Server) RunStreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(RunTopic)
	defer s.Broker.Unsubscribe(RunTopic, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"ts\":\"%s\"}\n\n", time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()

	notifyDone := r.Context().Done()
	for {
		select {
		case <-notifyDone:
			return
		case evt := <-ch:
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			heartbeat()
		}
	}
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if pg, ok := s.Store.(*store.Postgres); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Info())
}

// withMetrics records request counts and latencies on the dedicated registry.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		status := strconv.Itoa(rec.status)
		path := metricsPath(r.URL.Path)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

// metricsPath collapses unknown paths so path probing cannot grow the label
// set without bound.
func metricsPath(p string) string {
	switch p {
	case "/", "/filter",
		"/v1/dispatch", "/v1/runs/latest", "/v1/runs/stream", "/v1/runs/ws",
		"/healthz", "/readyz", "/metrics", "/version":
		return p
	}
	return "other"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the metrics wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps WebSocket upgrades working through the metrics wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}
