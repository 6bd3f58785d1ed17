package metrics

import (
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // SearchRuns counts finished runs by algorithm and final status
    SearchRuns = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "search_runs_total", Help: "Finished search runs by algorithm and status."},
        []string{"algorithm", "status"},
    )
    // SearchActive is the number of runs currently iterating
    SearchActive = prometheus.NewGauge(
        prometheus.GaugeOpts{Name: "search_runs_active", Help: "Search runs currently executing."},
    )
    // SearchIterations counts outer iterations performed
    SearchIterations = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "search_iterations_total", Help: "Search iterations performed."},
        []string{"algorithm"},
    )
    // SearchDuration records wall time per run in seconds
    SearchDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "search_duration_seconds", Help: "Search run duration in seconds.", Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120}},
        []string{"algorithm"},
    )
    // SearchBestCost is the best cost of the latest finished run per instance
    SearchBestCost = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{Name: "search_best_cost", Help: "Best cost of the latest finished run per instance and algorithm."},
        []string{"instance", "algorithm"},
    )

    // WebhookDeliveries counts webhook delivery outcomes by event type and status
    WebhookDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
        []string{"event_type", "status"},
    )
    // WebhookLatency tracks webhook delivery latencies in milliseconds
    WebhookLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
        []string{"event_type", "status"},
    )
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(SearchRuns)
        Registry.MustRegister(SearchActive)
        Registry.MustRegister(SearchIterations)
        Registry.MustRegister(SearchDuration)
        Registry.MustRegister(SearchBestCost)
        Registry.MustRegister(WebhookDeliveries)
        Registry.MustRegister(WebhookLatency)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once

// ObserveRun records a finished run.
func ObserveRun(instance, algorithm, status string, iterations int, bestCost float64, hasCost bool, d time.Duration) {
    SearchRuns.WithLabelValues(algorithm, status).Inc()
    SearchIterations.WithLabelValues(algorithm).Add(float64(iterations))
    SearchDuration.WithLabelValues(algorithm).Observe(d.Seconds())
    if hasCost {
        SearchBestCost.WithLabelValues(instance, algorithm).Set(bestCost)
    }
}
