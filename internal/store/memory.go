package store

import (
    "context"
    "fmt"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"

    "vrpsearch/internal/model"
    "vrpsearch/internal/opt"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu        sync.Mutex
    runs      map[string]model.Run              // id -> run
    runOrder  []string                          // ids in creation order
    snapshots map[string][]opt.WeightSnapshot   // run id -> snapshots
    profiles  map[string]model.Profile          // name -> profile
    // Webhooks queue state
    deliveries map[string]*WebhookDelivery // id -> delivery state
    order      []string                    // delivery ids in enqueue order
    dedup      map[string]string           // run|event|url|key -> delivery id
}

func NewMemory() *Memory {
    return &Memory{
        runs:       map[string]model.Run{},
        snapshots:  map[string][]opt.WeightSnapshot{},
        profiles:   map[string]model.Profile{},
        deliveries: map[string]*WebhookDelivery{},
        dedup:      map[string]string{},
    }
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) CreateRun(ctx context.Context, run model.Run) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if run.ID == "" { run.ID = uuid.New().String() }
    if _, ok := m.runs[run.ID]; !ok {
        m.runOrder = append(m.runOrder, run.ID)
    }
    m.runs[run.ID] = cloneRun(run)
    return nil
}

func (m *Memory) UpdateRun(ctx context.Context, run model.Run) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, ok := m.runs[run.ID]; !ok { return ErrNotFound }
    m.runs[run.ID] = cloneRun(run)
    return nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (model.Run, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[id]
    if !ok { return model.Run{}, ErrNotFound }
    return cloneRun(r), nil
}

// ListRuns pages newest first; the cursor is the last id of the previous page.
func (m *Memory) ListRuns(ctx context.Context, owner string, status model.RunStatus, cursor string, limit int) ([]model.Run, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 || limit > 500 { limit = 100 }
    start := len(m.runOrder) - 1
    if cursor != "" {
        start = -2
        for i := len(m.runOrder) - 1; i >= 0; i-- {
            if m.runOrder[i] == cursor { start = i - 1; break }
        }
        if start == -2 { return nil, "", fmt.Errorf("%w: %q", ErrInvalidCursor, cursor) }
    }
    // collect one past the page to know whether another page exists
    out := []model.Run{}
    for i := start; i >= 0 && len(out) <= limit; i-- {
        r := m.runs[m.runOrder[i]]
        if owner != "" && r.Owner != owner { continue }
        if status != "" && r.Status != status { continue }
        out = append(out, cloneRun(r))
    }
    next := ""
    if len(out) > limit {
        out = out[:limit]
        next = out[limit-1].ID
    }
    return out, next, nil
}

func (m *Memory) SaveRunSnapshots(ctx context.Context, runID string, snaps []opt.WeightSnapshot) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.snapshots[runID] = append(m.snapshots[runID], snaps...)
    return nil
}

func (m *Memory) ListRunSnapshots(ctx context.Context, runID string) ([]opt.WeightSnapshot, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := append([]opt.WeightSnapshot{}, m.snapshots[runID]...)
    sort.SliceStable(out, func(i, j int) bool { return out[i].Iteration < out[j].Iteration })
    return out, nil
}

func (m *Memory) GetProfile(ctx context.Context, name string) (model.Profile, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    p, ok := m.profiles[name]
    if !ok { return model.Profile{}, ErrNotFound }
    return p, nil
}

func (m *Memory) ListProfiles(ctx context.Context) ([]model.Profile, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := make([]model.Profile, 0, len(m.profiles))
    for _, p := range m.profiles { out = append(out, p) }
    sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
    return out, nil
}

func (m *Memory) SaveProfile(ctx context.Context, p model.Profile) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if p.UpdatedAt.IsZero() { p.UpdatedAt = time.Now().UTC() }
    m.profiles[p.Name] = p
    return nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, runID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    key := runID + "|" + eventType + "|" + url + "|" + dedupKey(payload)
    if id, ok := m.dedup[key]; ok { return id, nil }
    id := uuid.New().String()
    m.deliveries[id] = &WebhookDelivery{ID: id, RunID: runID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: DeliveryPending, NextAttemptAt: time.Now()}
    m.order = append(m.order, id)
    m.dedup[key] = id
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := time.Now()
    out := []WebhookDelivery{}
    for _, id := range m.order {
        d := m.deliveries[id]
        if (d.Status == DeliveryPending || d.Status == DeliveryRetry) && !d.NextAttemptAt.After(now) {
            out = append(out, *d)
            if limit > 0 && len(out) >= limit { break }
        }
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Attempts++
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        d.Status = DeliveryDelivered
        now := time.Now()
        d.DeliveredAt = &now
        return nil
    }
    d.Status = DeliveryRetry
    d.LastError = lastError
    if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt } else { d.NextAttemptAt = time.Now().Add(1 * time.Minute) }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Attempts++
    d.Status = DeliveryFailed
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, runID string) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []WebhookDelivery{}
    for _, id := range m.order {
        if d := m.deliveries[id]; d.RunID == runID { out = append(out, *d) }
    }
    return out, nil
}

// cloneRun copies the slices a caller could mutate after handing the run over.
func cloneRun(r model.Run) model.Run {
    if r.Routes != nil {
        routes := make([][]int, len(r.Routes))
        for i, rt := range r.Routes { routes[i] = append([]int(nil), rt...) }
        r.Routes = routes
    }
    if r.StartSummaries != nil {
        r.StartSummaries = append([]opt.StartSummary(nil), r.StartSummaries...)
    }
    return r
}
