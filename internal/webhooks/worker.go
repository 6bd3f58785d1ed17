package webhooks

import (
    "bytes"
    "context"
    "net/http"
    "sync"
    "time"

    "github.com/sirupsen/logrus"

    "vrpsearch/internal/metrics"
    "vrpsearch/internal/store"
)

type Worker struct {
    Store       store.Store
    HTTP        *http.Client
    MaxAttempts int
    Interval    time.Duration
    Log         logrus.FieldLogger

    stop chan struct{}
    done chan struct{}
    once sync.Once
}

func NewWorker(s store.Store, maxAttempts int, interval time.Duration) *Worker {
    if maxAttempts <= 0 { maxAttempts = 8 }
    if interval <= 0 { interval = time.Second }
    return &Worker{
        Store:       s,
        HTTP:        &http.Client{Timeout: 5 * time.Second},
        MaxAttempts: maxAttempts,
        Interval:    interval,
        Log:         logrus.WithField("component", "webhooks"),
        stop:        make(chan struct{}),
        done:        make(chan struct{}),
    }
}

func (w *Worker) Start() {
    go func() {
        defer close(w.done)
        ticker := time.NewTicker(w.Interval)
        defer ticker.Stop()
        for {
            select {
            case <-w.stop:
                return
            case <-ticker.C:
                w.processOnce()
            }
        }
    }()
}

// Stop ends the polling loop and waits for the current batch.
func (w *Worker) Stop() {
    w.once.Do(func() { close(w.stop) })
    <-w.done
}

func (w *Worker) processOnce() {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    items, err := w.Store.FetchDueWebhookDeliveries(ctx, 50)
    if err != nil {
        w.Log.WithError(err).Warn("fetch due deliveries")
        return
    }
    for _, it := range items {
        w.deliver(ctx, it)
    }
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
    log := w.Log.WithFields(logrus.Fields{"delivery": it.ID, "run": it.RunID, "attempt": it.Attempts + 1})
    success := false
    code := 0
    lastErr := ""
    start := time.Now()
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
    if err == nil {
        req.Header.Set("Content-Type", "application/json")
        req.Header.Set("X-Event-Type", it.EventType)
        req.Header.Set("X-Delivery-Id", it.ID)
        if it.Secret != "" {
            req.Header.Set("X-Signature", SignHMAC(it.Secret, it.Payload))
        }
        var resp *http.Response
        resp, err = w.HTTP.Do(req)
        if err == nil {
            code = resp.StatusCode
            _ = resp.Body.Close()
            success = code >= 200 && code < 300
            if !success { lastErr = http.StatusText(code) }
        }
    }
    if err != nil { lastErr = err.Error() }
    latency := int(time.Since(start).Milliseconds())

    status := "delivered"
    switch {
    case success:
        err = w.Store.MarkWebhookDelivery(ctx, it.ID, true, nil, "", code, latency)
    case it.Attempts+1 >= w.MaxAttempts:
        status = "failed"
        log.WithField("code", code).Warn("webhook delivery gave up: " + lastErr)
        err = w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency)
    default:
        status = "retry"
        next := time.Now().Add(nextBackoff(it.Attempts))
        log.WithField("code", code).WithField("next", next).Debug("webhook delivery will retry")
        err = w.Store.MarkWebhookDelivery(ctx, it.ID, false, &next, lastErr, code, latency)
    }
    if err != nil {
        log.WithError(err).Error("record webhook delivery")
    }
    metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
    metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency))
}

func nextBackoff(attempts int) time.Duration {
    if attempts < 0 { attempts = 0 }
    if attempts > 10 { attempts = 10 }
    base := time.Second * time.Duration(1<<attempts)
    if base > time.Hour { base = time.Hour }
    return base
}
