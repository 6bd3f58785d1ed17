package api

import (
    "net/http"

    "github.com/prometheus/client_golang/prometheus/promhttp"

    "vrpsearch/internal/metrics"
)

// Routes builds the service mux wrapped in request logging.
func (s *Server) Routes() http.Handler {
    mux := http.NewServeMux()

    // Solving
    mux.HandleFunc("/v1/solve", s.SolveHandler)
    mux.HandleFunc("/v1/runs", s.RunsIndexHandler)
    mux.HandleFunc("/v1/runs/", s.RunByIDHandler) // includes /snapshots, /webhooks, /events/stream, /ws

    // Catalog and configuration
    mux.HandleFunc("/v1/instances", s.InstancesHandler)
    mux.HandleFunc("/v1/solver/config", s.SolverConfigHandler)

    // Admin
    mux.HandleFunc("/v1/admin/solver/profiles", s.AdminProfilesHandler)
    mux.HandleFunc("/v1/admin/solver/profiles/", s.AdminProfilesHandler)

    // Health and introspection
    mux.HandleFunc("/healthz", s.HealthHandler)
    mux.HandleFunc("/readyz", s.ReadyHandler)
    mux.HandleFunc("/debug/info", s.DebugJSON)
    mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
    mux.HandleFunc("/openapi.json", s.OpenAPIHandler)
    mux.HandleFunc("/docs", s.DocsHandler)
    metrics.RegisterDefault()
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    return logMiddleware(s.Log, mux)
}
